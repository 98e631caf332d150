package model

import (
	"math"

	"blackbox/internal/types"
)

// normalizeCrossSection 对当日信号做截面 z-score 并截断到 ±cap。
// 截面退化（不足两个有效值或方差为零）时原样返回，保持确定性。
func normalizeCrossSection(signals types.SignalSet, cap float64) types.SignalSet {
	var sum, sumSq float64
	n := 0
	for _, v := range signals {
		if types.IsMissing(v) {
			continue
		}
		sum += v
		sumSq += v * v
		n++
	}
	if n < 2 {
		return signals
	}
	mean := sum / float64(n)
	variance := sumSq/float64(n) - mean*mean
	if variance <= 0 {
		return signals
	}
	std := math.Sqrt(variance)

	out := make(types.SignalSet, len(signals))
	for sym, v := range signals {
		if types.IsMissing(v) {
			out[sym] = v
			continue
		}
		z := (v - mean) / std
		if z > cap {
			z = cap
		} else if z < -cap {
			z = -cap
		}
		out[sym] = z
	}
	return out
}
