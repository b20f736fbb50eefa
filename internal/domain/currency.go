package domain

import (
	"fmt"
	"sort"
	"strings"

	"github.com/pkg/errors"
)

// USD is the funding currency every trade settles against.
const USD = "USD"

// Kind selects which payload of a Currency is populated.
type Kind int

const (
	KindFiat Kind = iota + 1
	KindCrypto
)

func (k Kind) String() string {
	switch k {
	case KindFiat:
		return "FIAT"
	case KindCrypto:
		return "CRYPTO"
	default:
		return "UNKNOWN"
	}
}

type FiatInfo struct {
	IssuingCountry string
}

type CryptoInfo struct {
	Algorithm string
	MarketCap float64
}

// Currency describes a tradable currency. Exactly one of Fiat and Crypto is
// set, as selected by Kind.
type Currency struct {
	Code   string
	Name   string
	Kind   Kind
	Fiat   *FiatInfo
	Crypto *CryptoInfo
}

func NewFiat(name, code, country string) (Currency, error) {
	code, err := NormalizeCode(code)
	if err != nil {
		return Currency{}, err
	}
	if strings.TrimSpace(name) == "" {
		return Currency{}, errors.Wrap(ErrInvalidArgument, "currency name must not be empty")
	}
	return Currency{Code: code, Name: name, Kind: KindFiat, Fiat: &FiatInfo{IssuingCountry: country}}, nil
}

func NewCrypto(name, code, algorithm string, marketCap float64) (Currency, error) {
	code, err := NormalizeCode(code)
	if err != nil {
		return Currency{}, err
	}
	if strings.TrimSpace(name) == "" {
		return Currency{}, errors.Wrap(ErrInvalidArgument, "currency name must not be empty")
	}
	if marketCap < 0 {
		return Currency{}, errors.Wrap(ErrInvalidArgument, "market cap must not be negative")
	}
	return Currency{
		Code:   code,
		Name:   name,
		Kind:   KindCrypto,
		Crypto: &CryptoInfo{Algorithm: algorithm, MarketCap: marketCap},
	}, nil
}

// DisplayInfo renders the currency for tables and logs.
func (c Currency) DisplayInfo() string {
	switch c.Kind {
	case KindFiat:
		country := ""
		if c.Fiat != nil {
			country = c.Fiat.IssuingCountry
		}
		return fmt.Sprintf("[FIAT] %s — %s (Issuing: %s)", c.Code, c.Name, country)
	case KindCrypto:
		algo, mcap := "", "N/A"
		if c.Crypto != nil {
			algo = c.Crypto.Algorithm
			if c.Crypto.MarketCap > 0 {
				mcap = fmt.Sprintf("%.2e", c.Crypto.MarketCap)
			}
		}
		return fmt.Sprintf("[CRYPTO] %s — %s (Algo: %s, MCAP: %s)", c.Code, c.Name, algo, mcap)
	default:
		return fmt.Sprintf("%s — %s", c.Code, c.Name)
	}
}

func (c Currency) String() string { return c.DisplayInfo() }

// NormalizeCode trims and upper-cases a currency code and checks that it is
// 3 to 5 letters or digits.
func NormalizeCode(code string) (string, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" {
		return "", errors.Wrap(ErrInvalidArgument, "currency code must not be empty")
	}
	if n := len(code); n < 3 || n > 5 {
		return "", errors.Wrapf(ErrInvalidArgument, "currency code %q must be 3 to 5 characters", code)
	}
	for _, r := range code {
		if (r < 'A' || r > 'Z') && (r < '0' || r > '9') {
			return "", errors.Wrapf(ErrInvalidArgument, "currency code %q must contain only letters and digits", code)
		}
	}
	return code, nil
}

// Registry maps currency codes to currencies. It is built by the caller and
// passed to whatever needs it.
type Registry struct {
	byCode map[string]Currency
}

func NewRegistry(currencies ...Currency) *Registry {
	r := &Registry{byCode: make(map[string]Currency, len(currencies))}
	for _, c := range currencies {
		r.Register(c)
	}
	return r
}

// DefaultRegistry returns the built-in set of fiat and crypto currencies.
func DefaultRegistry() *Registry {
	return NewRegistry(
		Currency{Code: "USD", Name: "US Dollar", Kind: KindFiat, Fiat: &FiatInfo{IssuingCountry: "United States"}},
		Currency{Code: "EUR", Name: "Euro", Kind: KindFiat, Fiat: &FiatInfo{IssuingCountry: "Eurozone"}},
		Currency{Code: "GBP", Name: "British Pound", Kind: KindFiat, Fiat: &FiatInfo{IssuingCountry: "United Kingdom"}},
		Currency{Code: "JPY", Name: "Japanese Yen", Kind: KindFiat, Fiat: &FiatInfo{IssuingCountry: "Japan"}},
		Currency{Code: "RUB", Name: "Russian Ruble", Kind: KindFiat, Fiat: &FiatInfo{IssuingCountry: "Russia"}},
		Currency{Code: "CHF", Name: "Swiss Franc", Kind: KindFiat, Fiat: &FiatInfo{IssuingCountry: "Switzerland"}},
		Currency{Code: "CNY", Name: "Chinese Yuan", Kind: KindFiat, Fiat: &FiatInfo{IssuingCountry: "China"}},
		Currency{Code: "BTC", Name: "Bitcoin", Kind: KindCrypto, Crypto: &CryptoInfo{Algorithm: "SHA-256", MarketCap: 1.12e12}},
		Currency{Code: "ETH", Name: "Ethereum", Kind: KindCrypto, Crypto: &CryptoInfo{Algorithm: "Ethash", MarketCap: 4.2e11}},
		Currency{Code: "LTC", Name: "Litecoin", Kind: KindCrypto, Crypto: &CryptoInfo{Algorithm: "Scrypt", MarketCap: 6.5e9}},
		Currency{Code: "XRP", Name: "Ripple", Kind: KindCrypto, Crypto: &CryptoInfo{Algorithm: "XRP Ledger Consensus", MarketCap: 3.8e10}},
		Currency{Code: "ADA", Name: "Cardano", Kind: KindCrypto, Crypto: &CryptoInfo{Algorithm: "Ouroboros", MarketCap: 1.4e10}},
	)
}

func (r *Registry) Register(c Currency) {
	r.byCode[c.Code] = c
}

// Get returns the currency for code, which is normalized first.
func (r *Registry) Get(code string) (Currency, error) {
	normalized, err := NormalizeCode(code)
	if err != nil {
		return Currency{}, err
	}
	c, ok := r.byCode[normalized]
	if !ok {
		return Currency{}, errors.Wrapf(ErrCurrencyUnknown, "currency %q not found", normalized)
	}
	return c, nil
}

func (r *Registry) Has(code string) bool {
	_, err := r.Get(code)
	return err == nil
}

// All returns every registered currency ordered by code.
func (r *Registry) All() []Currency {
	out := make([]Currency, 0, len(r.byCode))
	for _, c := range r.byCode {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out
}
