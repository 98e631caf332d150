package types

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsMissing(t *testing.T) {
	assert.True(t, IsMissing(Missing()))
	assert.True(t, IsMissing(math.Inf(1)))
	assert.True(t, IsMissing(math.Inf(-1)))
	assert.False(t, IsMissing(0))
	assert.False(t, IsMissing(-1.5))
}

func TestSignalSet_Clean(t *testing.T) {
	s := SignalSet{"B": Missing(), "A": 1.0, "C": math.Inf(1), "D": 0.0}
	cleaned, dropped := s.Clean()

	require.Len(t, dropped, 2)
	var invalid *InvalidSignalError
	require.ErrorAs(t, dropped[0], &invalid)
	assert.Equal(t, "B", invalid.Symbol)
	require.ErrorAs(t, dropped[1], &invalid)
	assert.Equal(t, "C", invalid.Symbol)

	assert.Len(t, cleaned, 2)
	assert.Equal(t, 1.0, cleaned["A"])
	// 显式 0 不是缺失
	assert.Contains(t, cleaned, "D")
}

func TestSignalSet_GrossSkipsMissing(t *testing.T) {
	s := SignalSet{"A": 0.5, "B": -0.3, "C": Missing()}
	assert.InDelta(t, 0.8, s.Gross(), 1e-12)
}

func TestSignalSet_Scale(t *testing.T) {
	s := SignalSet{"A": 0.5, "B": -0.5, "C": Missing()}
	s.Scale(0.5)
	assert.Equal(t, 0.25, s["A"])
	assert.Equal(t, -0.25, s["B"])
	assert.True(t, math.IsNaN(s["C"]))
}

func TestSignalSet_SymbolsSorted(t *testing.T) {
	s := SignalSet{"C": 1, "A": 2, "B": 3}
	assert.Equal(t, []string{"A", "B", "C"}, s.Symbols())
}

func TestSignalSet_CloneIsIndependent(t *testing.T) {
	s := SignalSet{"A": 1.0}
	c := s.Clone()
	c["A"] = 2.0
	assert.Equal(t, 1.0, s["A"])
}

func TestPortfolioTarget(t *testing.T) {
	target := PortfolioTarget{Capital: 1000, Weights: map[string]float64{"B": -0.3, "A": 0.5}}
	assert.InDelta(t, 0.8, target.Gross(), 1e-12)
	assert.Equal(t, []string{"A", "B"}, target.Symbols())

	empty := EmptyTarget(500)
	assert.NotNil(t, empty.Weights)
	assert.Empty(t, empty.Weights)
	assert.Equal(t, 500.0, empty.Capital)
}

func TestTradeNotional(t *testing.T) {
	assert.Equal(t, 1000.0, Trade{Quantity: 10, FillPrice: 100}.Notional())
	assert.Equal(t, 1000.0, Trade{Quantity: -10, FillPrice: 100}.Notional())
}
