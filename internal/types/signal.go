package types

import (
	"math"
	"sort"
)

// SignalSet maps symbol to a score. NaN marks a missing value and is
// distinct from an explicit zero; every pipeline stage must resolve NaNs
// before the portfolio constructor runs.
type SignalSet map[string]float64

// NewSignalSet returns an empty signal set.
func NewSignalSet() SignalSet {
	return make(SignalSet)
}

// Missing is the sentinel for symbols without a usable score.
func Missing() float64 {
	return math.NaN()
}

// IsMissing reports whether v is the missing sentinel or otherwise unusable.
func IsMissing(v float64) bool {
	return math.IsNaN(v) || math.IsInf(v, 0)
}

// Symbols returns the symbols in deterministic order.
func (s SignalSet) Symbols() []string {
	out := make([]string, 0, len(s))
	for sym := range s {
		out = append(out, sym)
	}
	sort.Strings(out)
	return out
}

// Clone returns a deep copy.
func (s SignalSet) Clone() SignalSet {
	out := make(SignalSet, len(s))
	for sym, v := range s {
		out[sym] = v
	}
	return out
}

// Clean removes missing entries and returns one *InvalidSignalError per
// dropped symbol, ordered by symbol.
func (s SignalSet) Clean() (SignalSet, []error) {
	out := make(SignalSet, len(s))
	var syms []string
	for sym, v := range s {
		if IsMissing(v) {
			syms = append(syms, sym)
			continue
		}
		out[sym] = v
	}
	sort.Strings(syms)
	var dropped []error
	for _, sym := range syms {
		dropped = append(dropped, &InvalidSignalError{Symbol: sym})
	}
	return out, dropped
}

// Gross returns the sum of absolute scores, skipping missing entries.
func (s SignalSet) Gross() float64 {
	total := 0.0
	for _, v := range s {
		if IsMissing(v) {
			continue
		}
		total += math.Abs(v)
	}
	return total
}

// Scale multiplies every non-missing score by factor in place.
func (s SignalSet) Scale(factor float64) {
	for sym, v := range s {
		if IsMissing(v) {
			continue
		}
		s[sym] = v * factor
	}
}
