package domain

import (
	"sort"
	"strings"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

// RateSource converts one unit of from into to.
type RateSource interface {
	GetRate(from, to string) (decimal.Decimal, error)
}

// Portfolio is the set of wallets owned by one user, keyed by currency code.
type Portfolio struct {
	userID  int
	wallets map[string]*Wallet
}

func NewPortfolio(userID int) *Portfolio {
	return &Portfolio{userID: userID, wallets: make(map[string]*Wallet)}
}

func RestorePortfolio(userID int, balances map[string]decimal.Decimal) (*Portfolio, error) {
	p := NewPortfolio(userID)
	for code, balance := range balances {
		if _, err := p.AddCurrency(code, balance); err != nil {
			return nil, errors.Wrapf(err, "restore wallet %s of user %d", code, userID)
		}
	}
	return p, nil
}

func (p *Portfolio) UserID() int { return p.userID }

// AddCurrency opens a new wallet. It fails if one already exists for code.
func (p *Portfolio) AddCurrency(code string, initial decimal.Decimal) (*Wallet, error) {
	w, err := NewWallet(code, initial)
	if err != nil {
		return nil, err
	}
	if _, exists := p.wallets[w.currency]; exists {
		return nil, errors.Wrapf(ErrInvalidArgument, "wallet %s already exists", w.currency)
	}
	p.wallets[w.currency] = w
	return w, nil
}

// GetWallet returns the wallet for code or nil when the user holds none.
func (p *Portfolio) GetWallet(code string) *Wallet {
	return p.wallets[strings.ToUpper(strings.TrimSpace(code))]
}

func (p *Portfolio) Wallets() []*Wallet {
	out := make([]*Wallet, 0, len(p.wallets))
	for _, w := range p.wallets {
		out = append(out, w)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].currency < out[j].currency })
	return out
}

func (p *Portfolio) Balances() map[string]decimal.Decimal {
	out := make(map[string]decimal.Decimal, len(p.wallets))
	for code, w := range p.wallets {
		out[code] = w.balance
	}
	return out
}

// Deposit credits amount to the wallet for code, creating it if needed.
func (p *Portfolio) Deposit(code string, amount decimal.Decimal) (*Wallet, error) {
	if !amount.IsPositive() {
		return nil, errors.Wrap(ErrInvalidArgument, "deposit amount must be positive")
	}
	w, err := p.walletOrNew(code)
	if err != nil {
		return nil, err
	}
	if err := w.Deposit(amount); err != nil {
		return nil, err
	}
	p.wallets[w.currency] = w
	return w, nil
}

// BuyCurrency pays amount*price USD for amount units of target. It returns
// false without touching any wallet when the USD balance cannot cover the cost.
func (p *Portfolio) BuyCurrency(target string, amount, price decimal.Decimal) (bool, error) {
	if err := validateTrade(amount, price); err != nil {
		return false, err
	}
	dst, err := p.walletOrNew(target)
	if err != nil {
		return false, err
	}
	if dst.currency == USD {
		return false, errors.Wrap(ErrInvalidArgument, "cannot buy the funding currency")
	}
	usd := p.wallets[USD]
	if usd == nil {
		return false, errors.Wrap(ErrMissingWallet, "USD wallet is required to fund purchases")
	}

	cost := amount.Mul(price)
	if usd.balance.LessThan(cost) {
		return false, nil
	}

	// Every check has passed; neither mutation below can fail.
	usd.balance = usd.balance.Sub(cost)
	dst.balance = dst.balance.Add(amount)
	p.wallets[dst.currency] = dst
	return true, nil
}

// SellCurrency converts amount units of source into amount*price USD. It
// returns false without touching any wallet when source holds less than amount.
func (p *Portfolio) SellCurrency(source string, amount, price decimal.Decimal) (bool, error) {
	if err := validateTrade(amount, price); err != nil {
		return false, err
	}
	code, err := NormalizeCode(source)
	if err != nil {
		return false, err
	}
	if code == USD {
		return false, errors.Wrap(ErrInvalidArgument, "cannot sell the funding currency")
	}
	src := p.wallets[code]
	if src == nil {
		return false, errors.Wrapf(ErrMissingWallet, "no %s wallet to sell from", code)
	}
	if src.balance.LessThan(amount) {
		return false, nil
	}
	usd, err := p.walletOrNew(USD)
	if err != nil {
		return false, err
	}

	src.balance = src.balance.Sub(amount)
	usd.balance = usd.balance.Add(amount.Mul(price))
	p.wallets[USD] = usd
	return true, nil
}

// Valuation is the result of TotalValue. Skipped lists wallets that could not
// be converted into Base and were left out of Total.
type Valuation struct {
	Base    string
	Total   decimal.Decimal
	Skipped []string
}

// TotalValue sums every wallet converted into base. Wallets without a usable
// rate are skipped; only an unknown base currency is an error.
func (p *Portfolio) TotalValue(base string, currencies *Registry, rates RateSource) (Valuation, error) {
	c, err := currencies.Get(base)
	if err != nil {
		return Valuation{}, err
	}
	v := Valuation{Base: c.Code, Total: decimal.Zero}
	for _, w := range p.Wallets() {
		if w.currency == c.Code {
			v.Total = v.Total.Add(w.balance)
			continue
		}
		rate, err := rates.GetRate(w.currency, c.Code)
		if err != nil {
			v.Skipped = append(v.Skipped, w.currency)
			continue
		}
		v.Total = v.Total.Add(w.balance.Mul(rate))
	}
	return v, nil
}

func (p *Portfolio) walletOrNew(code string) (*Wallet, error) {
	code, err := NormalizeCode(code)
	if err != nil {
		return nil, err
	}
	if w, ok := p.wallets[code]; ok {
		return w, nil
	}
	return NewWallet(code, decimal.Zero)
}

func validateTrade(amount, price decimal.Decimal) error {
	if !amount.IsPositive() {
		return errors.Wrap(ErrInvalidArgument, "amount must be positive")
	}
	if !price.IsPositive() {
		return errors.Wrap(ErrInvalidArgument, "price must be positive")
	}
	return nil
}
