package domain

import (
	"fmt"

	"github.com/pkg/errors"
)

var (
	ErrInvalidArgument      = errors.New("invalid argument")
	ErrMissingWallet        = errors.New("wallet does not exist")
	ErrInsufficientFunds    = errors.New("insufficient funds")
	ErrRateUnavailable      = errors.New("exchange rate unavailable")
	ErrCurrencyUnknown      = errors.New("unknown currency")
	ErrAuthenticationFailed = errors.New("authentication failed")
	ErrTradingFailed        = errors.New("trade failed")
	ErrUserExists           = errors.New("username already taken")
	ErrNotLoggedIn          = errors.New("not logged in")
)

// TradeError reports a failed buy, sell or deposit. It matches ErrTradingFailed
// with errors.Is and unwraps to the cause, so callers can test either.
type TradeError struct {
	Op       string
	Currency string
	Err      error
}

func (e *TradeError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Currency, e.Err)
}

func (e *TradeError) Unwrap() error { return e.Err }

func (e *TradeError) Is(target error) bool { return target == ErrTradingFailed }
