package domain

import (
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

// Wallet holds the balance of one currency. The balance never goes negative.
type Wallet struct {
	currency string
	balance  decimal.Decimal
}

func NewWallet(code string, initial decimal.Decimal) (*Wallet, error) {
	code, err := NormalizeCode(code)
	if err != nil {
		return nil, err
	}
	if initial.IsNegative() {
		return nil, errors.Wrapf(ErrInvalidArgument, "initial balance of %s must not be negative", code)
	}
	return &Wallet{currency: code, balance: initial}, nil
}

func (w *Wallet) Currency() string { return w.currency }

func (w *Wallet) Balance() decimal.Decimal { return w.balance }

func (w *Wallet) Deposit(amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return errors.Wrap(ErrInvalidArgument, "deposit amount must be positive")
	}
	w.balance = w.balance.Add(amount)
	return nil
}

func (w *Wallet) Withdraw(amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return errors.Wrap(ErrInvalidArgument, "withdraw amount must be positive")
	}
	if w.balance.LessThan(amount) {
		return errors.Wrapf(ErrInsufficientFunds, "available %s %s, required %s",
			w.balance.StringFixed(4), w.currency, amount.StringFixed(4))
	}
	w.balance = w.balance.Sub(amount)
	return nil
}
