package types

import "time"

// PortfolioView is the read-only window other components get into the
// position tracker. Only the day orchestrator may mutate the tracker itself.
type PortfolioView interface {
	// Holdings returns current signed quantities per symbol.
	Holdings() map[string]float64
	// UsableCash returns settled cash available for buys.
	UsableCash() float64
	// CanClose reports whether a position-reducing trade in symbol is
	// allowed on date under the minimum holding period.
	CanClose(symbol string, date time.Time) bool
}

// Context carries the per-day state every pipeline stage needs. It is built
// fresh by the day orchestrator each day and threaded explicitly; there is
// no process-wide run state.
type Context struct {
	Date    time.Time
	Capital float64

	MaxLeverage     float64
	MaxPositionSize float64
	AllowShorts     bool
	VolLookback     int
	RiskTarget      float64
	MaxWeight       float64
	MinNotional     float64
	MinPrice        float64

	Portfolio PortfolioView
}
