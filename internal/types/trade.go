package types

import "time"

// Trade is one executed fill. Quantity is signed: positive buys, negative
// sells. Cost is commission only; slippage is already inside FillPrice.
type Trade struct {
	Symbol    string  `json:"symbol"`
	Quantity  float64 `json:"quantity"`
	FillPrice float64 `json:"fill_price"`
	Cost      float64 `json:"cost"`
}

// Notional returns the absolute traded value.
func (t Trade) Notional() float64 {
	n := t.Quantity * t.FillPrice
	if n < 0 {
		return -n
	}
	return n
}

// TradeResult holds the ordered fills of one simulated day together with the
// per-symbol diagnostics accumulated while deciding them.
type TradeResult struct {
	Date     time.Time `json:"date"`
	Trades   []Trade   `json:"trades"`
	Rejected []string  `json:"rejected,omitempty"` // "SYM: reason" diagnostics
}
