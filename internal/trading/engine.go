// Package trading settles buy, sell and deposit requests against a user's
// portfolio.
package trading

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/Krchnk/valutatrade-wallet/internal/domain"
	"github.com/Krchnk/valutatrade-wallet/internal/storages"
)

// Engine runs one trade at a time: load the portfolio, resolve the rate,
// mutate, persist. Nothing is written when any step fails.
type Engine struct {
	mu         sync.Mutex
	portfolios storages.PortfolioStore
	rates      domain.RateSource
	currencies *domain.Registry
	logger     logrus.FieldLogger
}

func NewEngine(portfolios storages.PortfolioStore, rates domain.RateSource, currencies *domain.Registry, logger logrus.FieldLogger) *Engine {
	return &Engine{
		portfolios: portfolios,
		rates:      rates,
		currencies: currencies,
		logger:     logger,
	}
}

// Buy purchases amount units of code with USD.
func (e *Engine) Buy(ctx context.Context, userID int, code string, amount decimal.Decimal) (*domain.TradeReceipt, error) {
	code, err := e.validate(code, amount)
	if err != nil {
		return nil, tradeError(domain.SideBuy, code, err)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	p, err := e.portfolios.Load(ctx, userID)
	if err != nil {
		return nil, tradeError(domain.SideBuy, code, errors.Wrap(err, "load portfolio"))
	}

	rate, err := e.rates.GetRate(code, domain.USD)
	if err != nil {
		return nil, tradeError(domain.SideBuy, code, err)
	}

	oldBalance := balanceOf(p, code)
	usdBefore := balanceOf(p, domain.USD)
	cost := amount.Mul(rate)

	ok, err := p.BuyCurrency(code, amount, rate)
	if err != nil {
		return nil, tradeError(domain.SideBuy, code, err)
	}
	if !ok {
		return nil, tradeError(domain.SideBuy, code, errors.Wrapf(domain.ErrInsufficientFunds,
			"available %s USD, required %s USD", usdBefore.StringFixed(2), cost.StringFixed(2)))
	}

	if err := e.portfolios.Save(ctx, p); err != nil {
		return nil, tradeError(domain.SideBuy, code, errors.Wrap(err, "save portfolio"))
	}

	receipt := &domain.TradeReceipt{
		TradeID:    uuid.NewString(),
		Side:       domain.SideBuy,
		Currency:   code,
		Amount:     amount,
		Rate:       rate,
		Total:      cost,
		OldBalance: oldBalance,
		NewBalance: balanceOf(p, code),
		USDBefore:  usdBefore,
		USDAfter:   balanceOf(p, domain.USD),
	}
	e.logReceipt(userID, receipt)
	return receipt, nil
}

// Sell converts amount units of code into USD. Wallet existence and balance
// are checked before the rate is resolved.
func (e *Engine) Sell(ctx context.Context, userID int, code string, amount decimal.Decimal) (*domain.TradeReceipt, error) {
	code, err := e.validate(code, amount)
	if err != nil {
		return nil, tradeError(domain.SideSell, code, err)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	p, err := e.portfolios.Load(ctx, userID)
	if err != nil {
		return nil, tradeError(domain.SideSell, code, errors.Wrap(err, "load portfolio"))
	}

	w := p.GetWallet(code)
	if w == nil {
		return nil, tradeError(domain.SideSell, code, errors.Wrapf(domain.ErrMissingWallet, "you have no %s wallet", code))
	}
	oldBalance := w.Balance()
	if oldBalance.LessThan(amount) {
		return nil, tradeError(domain.SideSell, code, errors.Wrapf(domain.ErrInsufficientFunds,
			"available %s %s, required %s", oldBalance.StringFixed(4), code, amount.StringFixed(4)))
	}

	rate, err := e.rates.GetRate(code, domain.USD)
	if err != nil {
		return nil, tradeError(domain.SideSell, code, err)
	}

	usdBefore := balanceOf(p, domain.USD)
	ok, err := p.SellCurrency(code, amount, rate)
	if err != nil {
		return nil, tradeError(domain.SideSell, code, err)
	}
	if !ok {
		return nil, tradeError(domain.SideSell, code, domain.ErrInsufficientFunds)
	}

	if err := e.portfolios.Save(ctx, p); err != nil {
		return nil, tradeError(domain.SideSell, code, errors.Wrap(err, "save portfolio"))
	}

	receipt := &domain.TradeReceipt{
		TradeID:    uuid.NewString(),
		Side:       domain.SideSell,
		Currency:   code,
		Amount:     amount,
		Rate:       rate,
		Total:      amount.Mul(rate),
		OldBalance: oldBalance,
		NewBalance: w.Balance(),
		USDBefore:  usdBefore,
		USDAfter:   balanceOf(p, domain.USD),
	}
	e.logReceipt(userID, receipt)
	return receipt, nil
}

// Deposit credits amount units of code, opening the wallet if needed.
func (e *Engine) Deposit(ctx context.Context, userID int, code string, amount decimal.Decimal) (*domain.TradeReceipt, error) {
	code, err := e.validate(code, amount)
	if err != nil {
		return nil, tradeError(domain.SideDeposit, code, err)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	p, err := e.portfolios.Load(ctx, userID)
	if err != nil {
		return nil, tradeError(domain.SideDeposit, code, errors.Wrap(err, "load portfolio"))
	}

	oldBalance := balanceOf(p, code)
	usdBefore := balanceOf(p, domain.USD)
	w, err := p.Deposit(code, amount)
	if err != nil {
		return nil, tradeError(domain.SideDeposit, code, err)
	}
	if err := e.portfolios.Save(ctx, p); err != nil {
		return nil, tradeError(domain.SideDeposit, code, errors.Wrap(err, "save portfolio"))
	}

	receipt := &domain.TradeReceipt{
		TradeID:    uuid.NewString(),
		Side:       domain.SideDeposit,
		Currency:   code,
		Amount:     amount,
		Rate:       decimal.NewFromInt(1),
		Total:      amount,
		OldBalance: oldBalance,
		NewBalance: w.Balance(),
		USDBefore:  usdBefore,
		USDAfter:   balanceOf(p, domain.USD),
	}
	e.logReceipt(userID, receipt)
	return receipt, nil
}

func (e *Engine) Portfolio(ctx context.Context, userID int) (*domain.Portfolio, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	p, err := e.portfolios.Load(ctx, userID)
	if err != nil {
		return nil, errors.Wrap(err, "load portfolio")
	}
	return p, nil
}

func (e *Engine) validate(code string, amount decimal.Decimal) (string, error) {
	c, err := e.currencies.Get(code)
	if err != nil {
		return code, err
	}
	if !amount.IsPositive() {
		return c.Code, errors.Wrap(domain.ErrInvalidArgument, "amount must be positive")
	}
	return c.Code, nil
}

func (e *Engine) logReceipt(userID int, r *domain.TradeReceipt) {
	e.logger.WithFields(logrus.Fields{
		"trade_id":    r.TradeID,
		"user_id":     userID,
		"side":        r.Side,
		"currency":    r.Currency,
		"amount":      r.Amount.String(),
		"rate":        r.Rate.String(),
		"total":       r.Total.String(),
		"new_balance": r.NewBalance.String(),
	}).Info("trade settled")
}

func balanceOf(p *domain.Portfolio, code string) decimal.Decimal {
	if w := p.GetWallet(code); w != nil {
		return w.Balance()
	}
	return decimal.Zero
}

func tradeError(side domain.Side, code string, err error) error {
	return &domain.TradeError{Op: string(side), Currency: code, Err: err}
}
