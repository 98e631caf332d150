package model

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"blackbox/internal/market"
	"blackbox/internal/types"
)

func TestFixedCost_ShrinksTowardZero(t *testing.T) {
	c, err := NewCost(Spec{Name: "fixed", Params: map[string]any{
		"slippage":        0.001,
		"commission_rate": 0.001,
		"penalty_factor":  1.0,
	}})
	require.NoError(t, err)

	history := map[string][]market.Bar{"AAAUSDT": wobbleBars("2024-01-01", 5, 100)}
	window := lastWindow(t, history, 3)

	out := c.Adjust(types.Context{}, types.SignalSet{"AAAUSDT": 0.5}, window)

	// 换手 0.5，费率 0.002：惩罚 0.001
	assert.InDelta(t, 0.5-0.5*0.002, out["AAAUSDT"], 1e-12)
}

func TestFixedCost_NeverFlipsSign(t *testing.T) {
	c, err := NewCost(Spec{Name: "fixed", Params: map[string]any{
		"slippage":        0.5,
		"commission_rate": 0.5,
		"penalty_factor":  100.0,
	}})
	require.NoError(t, err)

	history := map[string][]market.Bar{"AAAUSDT": wobbleBars("2024-01-01", 5, 100)}
	window := lastWindow(t, history, 3)

	out := c.Adjust(types.Context{},
		types.SignalSet{"AAAUSDT": 0.01, "BBBUSDT": -0.01}, window)

	assert.Zero(t, out["AAAUSDT"])
	assert.Zero(t, out["BBBUSDT"])
}

func TestFixedCost_MissingSignalPassesThrough(t *testing.T) {
	c, err := NewCost(Spec{Name: "fixed"})
	require.NoError(t, err)

	history := map[string][]market.Bar{"AAAUSDT": wobbleBars("2024-01-01", 5, 100)}
	window := lastWindow(t, history, 3)

	out := c.Adjust(types.Context{}, types.SignalSet{"AAAUSDT": types.Missing()}, window)
	assert.True(t, math.IsNaN(out["AAAUSDT"]))
}

func TestQuadraticCost_ZeroesWhenCostDominatesSignal(t *testing.T) {
	c, err := NewCost(Spec{Name: "quadratic_market_impact", Params: map[string]any{
		"commission_rate":    0.5,
		"impact_coefficient": 1.0,
		"max_cost_fraction":  0.1,
	}})
	require.NoError(t, err)

	history := map[string][]market.Bar{"AAAUSDT": wobbleBars("2024-01-01", 5, 100)}
	window := lastWindow(t, history, 3)

	out := c.Adjust(types.Context{}, types.SignalSet{"AAAUSDT": 0.5}, window)
	assert.Zero(t, out["AAAUSDT"])
}

func TestQuadraticCost_SmallCostShrinksProportionally(t *testing.T) {
	c, err := NewCost(Spec{Name: "quadratic_market_impact"})
	require.NoError(t, err)

	history := map[string][]market.Bar{"AAAUSDT": wobbleBars("2024-01-01", 5, 100)}
	window := lastWindow(t, history, 3)

	out := c.Adjust(types.Context{}, types.SignalSet{"AAAUSDT": 0.5}, window)

	// 默认参数下成本极小：轻微收缩，方向不变
	assert.Greater(t, out["AAAUSDT"], 0.0)
	assert.Less(t, out["AAAUSDT"], 0.5)
	assert.InDelta(t, 0.5, out["AAAUSDT"], 0.001)
}
