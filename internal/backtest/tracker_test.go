package backtest

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"blackbox/internal/types"
)

func day(s string) time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return t
}

func TestTracker_BuyDebitsCashImmediately(t *testing.T) {
	tr := NewTracker(10000, 0)
	tr.Update(day("2024-01-01"), []types.Trade{
		{Symbol: "BTCUSDT", Quantity: 10, FillPrice: 100, Cost: 1},
	}, 2)

	assert.InDelta(t, 8999, tr.UsableCash(), 1e-9)
	assert.InDelta(t, 10, tr.Holdings()["BTCUSDT"], 1e-9)
	assert.Zero(t, tr.PendingCash())
}

func TestTracker_SellProceedsSettleAfterDelay(t *testing.T) {
	tr := NewTracker(10000, 0)
	tr.Update(day("2024-01-01"), []types.Trade{
		{Symbol: "BTCUSDT", Quantity: 10, FillPrice: 100, Cost: 0},
	}, 2)
	tr.Update(day("2024-01-02"), []types.Trade{
		{Symbol: "BTCUSDT", Quantity: -10, FillPrice: 110, Cost: 2},
	}, 2)

	// 卖出毛收入 1100 进入结算队列，佣金从现金扣
	assert.InDelta(t, 8998, tr.UsableCash(), 1e-9)
	assert.InDelta(t, 1100, tr.PendingCash(), 1e-9)
	assert.Empty(t, tr.Holdings())

	t.Run("BeforeDue", func(t *testing.T) {
		merged := tr.MergeSettlements(day("2024-01-03"))
		assert.Zero(t, merged)
		assert.InDelta(t, 1100, tr.PendingCash(), 1e-9)
	})

	t.Run("OnDue", func(t *testing.T) {
		merged := tr.MergeSettlements(day("2024-01-04"))
		assert.InDelta(t, 1100, merged, 1e-9)
		assert.Zero(t, tr.PendingCash())
		assert.InDelta(t, 10098, tr.UsableCash(), 1e-9)
	})
}

func TestTracker_ZeroDelayCreditsImmediately(t *testing.T) {
	tr := NewTracker(1000, 0)
	tr.Update(day("2024-01-01"), []types.Trade{
		{Symbol: "ETHUSDT", Quantity: 5, FillPrice: 100, Cost: 0},
	}, 0)
	tr.Update(day("2024-01-02"), []types.Trade{
		{Symbol: "ETHUSDT", Quantity: -5, FillPrice: 100, Cost: 0},
	}, 0)

	assert.InDelta(t, 1000, tr.UsableCash(), 1e-9)
	assert.Zero(t, tr.PendingCash())
}

func TestTracker_SellCommissionNettedFromSettlementWhenCashShort(t *testing.T) {
	tr := NewTracker(1000, 0)
	tr.Update(day("2024-01-01"), []types.Trade{
		{Symbol: "BTCUSDT", Quantity: 10, FillPrice: 100, Cost: 0},
	}, 2)
	assert.Zero(t, tr.UsableCash())

	// 现金为零时卖出佣金从结算款里冲抵，现金绝不为负
	tr.Update(day("2024-01-02"), []types.Trade{
		{Symbol: "BTCUSDT", Quantity: -10, FillPrice: 100, Cost: 3},
	}, 2)
	assert.Zero(t, tr.UsableCash())
	assert.InDelta(t, 997, tr.PendingCash(), 1e-9)
}

func TestTracker_AddAveragesCostKeepsEntryDate(t *testing.T) {
	tr := NewTracker(100000, 0)
	tr.Update(day("2024-01-01"), []types.Trade{
		{Symbol: "BTCUSDT", Quantity: 10, FillPrice: 100},
	}, 0)
	tr.Update(day("2024-01-05"), []types.Trade{
		{Symbol: "BTCUSDT", Quantity: 10, FillPrice: 200},
	}, 0)

	pos := tr.PositionsSnapshot()["BTCUSDT"]
	assert.InDelta(t, 20, pos.Quantity, 1e-9)
	assert.InDelta(t, 150, pos.AvgCost, 1e-9)
	assert.Equal(t, day("2024-01-01"), pos.EntryDate)
}

func TestTracker_ReduceKeepsCostFlipResets(t *testing.T) {
	tr := NewTracker(100000, 0)
	tr.Update(day("2024-01-01"), []types.Trade{
		{Symbol: "BTCUSDT", Quantity: 10, FillPrice: 100},
	}, 0)

	t.Run("Reduce", func(t *testing.T) {
		tr.Update(day("2024-01-02"), []types.Trade{
			{Symbol: "BTCUSDT", Quantity: -4, FillPrice: 120},
		}, 0)
		pos := tr.PositionsSnapshot()["BTCUSDT"]
		assert.InDelta(t, 6, pos.Quantity, 1e-9)
		assert.InDelta(t, 100, pos.AvgCost, 1e-9)
		assert.Equal(t, day("2024-01-01"), pos.EntryDate)
	})

	t.Run("Flip", func(t *testing.T) {
		tr.Update(day("2024-01-03"), []types.Trade{
			{Symbol: "BTCUSDT", Quantity: -10, FillPrice: 130},
		}, 0)
		pos := tr.PositionsSnapshot()["BTCUSDT"]
		assert.InDelta(t, -4, pos.Quantity, 1e-9)
		assert.InDelta(t, 130, pos.AvgCost, 1e-9)
		assert.Equal(t, day("2024-01-03"), pos.EntryDate)
	})
}

func TestTracker_FullCloseRemovesPosition(t *testing.T) {
	tr := NewTracker(100000, 0)
	tr.Update(day("2024-01-01"), []types.Trade{
		{Symbol: "BTCUSDT", Quantity: 3, FillPrice: 100},
	}, 0)
	tr.Update(day("2024-01-02"), []types.Trade{
		{Symbol: "BTCUSDT", Quantity: -3, FillPrice: 100},
	}, 0)
	assert.Empty(t, tr.PositionsSnapshot())
	assert.Empty(t, tr.PositionSymbols())
}

func TestTracker_CanCloseHonorsMinHoldingPeriod(t *testing.T) {
	tr := NewTracker(100000, 2)
	tr.Update(day("2024-01-01"), []types.Trade{
		{Symbol: "BTCUSDT", Quantity: 10, FillPrice: 100},
	}, 0)

	assert.False(t, tr.CanClose("BTCUSDT", day("2024-01-01")))
	assert.False(t, tr.CanClose("BTCUSDT", day("2024-01-02")))
	assert.True(t, tr.CanClose("BTCUSDT", day("2024-01-03")))
	// 没有持仓的 symbol 不受约束
	assert.True(t, tr.CanClose("ETHUSDT", day("2024-01-01")))
}

func TestTracker_ValueFallsBackToLastMarkedPrice(t *testing.T) {
	tr := NewTracker(1000, 0)
	tr.Update(day("2024-01-01"), []types.Trade{
		{Symbol: "BTCUSDT", Quantity: 5, FillPrice: 100},
	}, 0)
	tr.MarkPrices(map[string]float64{"BTCUSDT": 120})

	t.Run("WithPrice", func(t *testing.T) {
		v := tr.Value(map[string]float64{"BTCUSDT": 130})
		assert.InDelta(t, 500+5*130, v, 1e-9)
	})

	t.Run("MissingPrice", func(t *testing.T) {
		v := tr.Value(map[string]float64{})
		assert.InDelta(t, 500+5*120, v, 1e-9)
	})
}

func TestTracker_ValueIncludesPendingSettlements(t *testing.T) {
	tr := NewTracker(1000, 0)
	tr.Update(day("2024-01-01"), []types.Trade{
		{Symbol: "BTCUSDT", Quantity: 10, FillPrice: 100},
	}, 2)
	tr.Update(day("2024-01-02"), []types.Trade{
		{Symbol: "BTCUSDT", Quantity: -10, FillPrice: 100},
	}, 2)

	// 等待结算的卖出款仍然是组合价值的一部分
	assert.InDelta(t, 1000, tr.Value(map[string]float64{}), 1e-9)
}
