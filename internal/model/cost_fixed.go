package model

import (
	"math"

	"blackbox/internal/feature"
	"blackbox/internal/types"
)

// fixedCost 按滑点加佣金的线性费率惩罚换手。
type fixedCost struct {
	Slippage       float64 `mapstructure:"slippage"`
	CommissionRate float64 `mapstructure:"commission_rate"`
	PenaltyFactor  float64 `mapstructure:"penalty_factor"`
}

func newFixedCost(spec Spec) (Cost, error) {
	c := &fixedCost{
		Slippage:       0.0001,
		CommissionRate: 0.0001,
		PenaltyFactor:  0.001,
	}
	if err := decodeParams(spec, c); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *fixedCost) Name() string { return "fixed" }

func (c *fixedCost) Adjust(ctx types.Context, signals types.SignalSet, window feature.Window) types.SignalSet {
	current := currentWeights(ctx, window)
	rate := c.Slippage + c.CommissionRate
	out := make(types.SignalSet, len(signals))
	for sym, v := range signals {
		if types.IsMissing(v) {
			out[sym] = v
			continue
		}
		turnover := math.Abs(v - current[sym])
		penalty := turnover * rate * c.PenaltyFactor
		// 惩罚只向零收缩，不允许翻转方向
		if v > 0 {
			out[sym] = math.Max(v-penalty, 0)
		} else if v < 0 {
			out[sym] = math.Min(v+penalty, 0)
		} else {
			out[sym] = 0
		}
	}
	return out
}
