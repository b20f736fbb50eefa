package domain

import (
	"encoding/json"

	"github.com/shopspring/decimal"
)

type Side string

const (
	SideBuy     Side = "buy"
	SideSell    Side = "sell"
	SideDeposit Side = "deposit"
)

// TradeReceipt is the settlement record handed back to the caller after a
// trade. It is never persisted.
type TradeReceipt struct {
	TradeID    string
	Side       Side
	Currency   string
	Amount     decimal.Decimal
	Rate       decimal.Decimal
	Total      decimal.Decimal // USD paid for a buy, USD received for a sell
	OldBalance decimal.Decimal
	NewBalance decimal.Decimal
	USDBefore  decimal.Decimal
	USDAfter   decimal.Decimal
}

// MarshalJSON names the total total_cost for buys and total_income otherwise.
func (r TradeReceipt) MarshalJSON() ([]byte, error) {
	out := map[string]any{
		"trade_id":    r.TradeID,
		"side":        r.Side,
		"currency":    r.Currency,
		"amount":      r.Amount,
		"rate":        r.Rate,
		"old_balance": r.OldBalance,
		"new_balance": r.NewBalance,
		"usd_before":  r.USDBefore,
		"usd_after":   r.USDAfter,
	}
	if r.Side == SideBuy {
		out["total_cost"] = r.Total
	} else {
		out["total_income"] = r.Total
	}
	return json.Marshal(out)
}
