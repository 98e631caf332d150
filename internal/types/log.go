package types

import "time"

// DailyLog is the immutable record of one simulated day. Equity always
// equals usable cash + pending settlement cash + marked positions at close.
type DailyLog struct {
	Date        time.Time           `json:"date"`
	Cash        float64             `json:"cash"`
	PendingCash float64             `json:"pending_cash"`
	Equity      float64             `json:"equity"`
	Positions   map[string]Position `json:"positions"`
	Trades      []Trade             `json:"trades"`
	PnL         float64             `json:"pnl"`
	Drawdown    float64             `json:"drawdown"`
	Notes       []string            `json:"notes,omitempty"`
}

// EquityPoint is one point of the equity curve.
type EquityPoint struct {
	Date   time.Time `json:"date"`
	Equity float64   `json:"equity"`
}

// BacktestMetrics aggregates performance statistics over a full log sequence.
type BacktestMetrics struct {
	Summary     map[string]float64 `json:"summary"`
	EquityCurve []EquityPoint      `json:"equity_curve,omitempty"`
}
