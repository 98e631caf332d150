package types

import (
	"math"
	"sort"
	"time"
)

// PortfolioTarget is the desired post-trade state: symbol weights plus the
// capital they apply to. Weights are fractions of capital; gross exposure is
// the sum of absolute weights.
type PortfolioTarget struct {
	Weights map[string]float64
	Capital float64
}

// EmptyTarget returns an all-zero target for the given capital (no trading).
func EmptyTarget(capital float64) PortfolioTarget {
	return PortfolioTarget{Weights: map[string]float64{}, Capital: capital}
}

// Gross returns the sum of absolute weights.
func (t PortfolioTarget) Gross() float64 {
	total := 0.0
	for _, w := range t.Weights {
		total += math.Abs(w)
	}
	return total
}

// Symbols returns weighted symbols in deterministic order.
func (t PortfolioTarget) Symbols() []string {
	out := make([]string, 0, len(t.Weights))
	for sym := range t.Weights {
		out = append(out, sym)
	}
	sort.Strings(out)
	return out
}

// Position is a net signed holding in one symbol.
type Position struct {
	Symbol    string    `json:"symbol"`
	Quantity  float64   `json:"quantity"`
	AvgCost   float64   `json:"avg_cost"`
	EntryDate time.Time `json:"entry_date"`
}

// SettlementEntry is sale proceeds waiting to become usable cash.
type SettlementEntry struct {
	Amount        float64   `json:"amount"`
	AvailableDate time.Time `json:"available_date"`
}
