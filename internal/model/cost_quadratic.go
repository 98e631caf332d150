package model

import (
	"math"

	"blackbox/internal/feature"
	"blackbox/internal/types"
)

// quadraticImpactCost 估算达到目标信号所需换手的成本：
// 固定佣金下限 + 与换手平方成正比的市场冲击，全部以资本占比计。
// 预期成本超过信号价值一定比例的 symbol 直接置零。
type quadraticImpactCost struct {
	CommissionRate    float64 `mapstructure:"commission_rate"`
	ImpactCoefficient float64 `mapstructure:"impact_coefficient"`
	MinCommission     float64 `mapstructure:"min_commission"`
	MaxCostFraction   float64 `mapstructure:"max_cost_fraction"`
}

func newQuadraticImpactCost(spec Spec) (Cost, error) {
	c := &quadraticImpactCost{
		CommissionRate:    0.0001,
		ImpactCoefficient: 0.00005,
		MinCommission:     0,
		MaxCostFraction:   0.5,
	}
	if err := decodeParams(spec, c); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *quadraticImpactCost) Name() string { return "quadratic_market_impact" }

func (c *quadraticImpactCost) Adjust(ctx types.Context, signals types.SignalSet, window feature.Window) types.SignalSet {
	current := currentWeights(ctx, window)
	out := make(types.SignalSet, len(signals))
	for sym, v := range signals {
		if types.IsMissing(v) {
			out[sym] = v
			continue
		}
		turnover := math.Abs(v - current[sym])
		commission := c.CommissionRate * turnover
		if commission < c.MinCommission {
			commission = c.MinCommission
		}
		impact := c.ImpactCoefficient * turnover * turnover
		cost := commission + impact

		if c.MaxCostFraction > 0 && math.Abs(v) > 0 && cost > c.MaxCostFraction*math.Abs(v) {
			out[sym] = 0
			continue
		}
		shrink := 1.0 - math.Min(cost, 1.0)
		out[sym] = v * shrink
	}
	return out
}

// currentWeights 用今日收盘价把持仓数量折算成资本占比。
func currentWeights(ctx types.Context, window feature.Window) map[string]float64 {
	out := make(map[string]float64)
	if ctx.Portfolio == nil || ctx.Capital <= 0 {
		return out
	}
	today := window.Today()
	for sym, qty := range ctx.Portfolio.Holdings() {
		price, ok := today.Value(sym, feature.ColClose)
		if !ok || price <= 0 {
			continue
		}
		out[sym] = qty * price / ctx.Capital
	}
	return out
}
