package model

import (
	"blackbox/internal/feature"
	"blackbox/internal/types"
)

// Alpha predicts raw per-symbol scores from today's features. Symbols
// without enough history get the missing sentinel, never an implicit zero.
type Alpha interface {
	Name() string
	Predict(ctx types.Context, window feature.Window) (types.SignalSet, error)
}

// Risk enforces position caps, the aggregate leverage cap, and the
// short-sale policy. Violating symbols are zeroed, not dropped, so
// diagnostics keep the attempted direction visible.
type Risk interface {
	Name() string
	Apply(ctx types.Context, signals types.SignalSet) types.SignalSet
}

// Cost penalizes signals by the expected transaction cost of reaching them.
type Cost interface {
	Name() string
	Adjust(ctx types.Context, signals types.SignalSet, window feature.Window) types.SignalSet
}

// Portfolio converts adjusted signals into target weights for the given
// capital. It never sees current holdings; it always produces from-scratch
// desired state.
type Portfolio interface {
	Name() string
	Construct(ctx types.Context, signals types.SignalSet, window feature.Window) types.PortfolioTarget
}

// Set bundles the four capability models of one strategy.
type Set struct {
	Alpha     Alpha
	Risk      Risk
	Cost      Cost
	Portfolio Portfolio
}
