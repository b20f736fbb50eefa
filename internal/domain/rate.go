package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// RateQuote is the observed price of one unit of From in To.
type RateQuote struct {
	From       string
	To         string
	Rate       decimal.Decimal
	ObservedAt time.Time
}

// PairKey is the cache key of a directional pair, e.g. "BTC_USD".
func PairKey(from, to string) string {
	return from + "_" + to
}

type RateSnapshot struct {
	Quotes      map[string]RateQuote
	Source      string
	LastRefresh time.Time
}

func NewRateSnapshot() RateSnapshot {
	return RateSnapshot{Quotes: make(map[string]RateQuote)}
}
