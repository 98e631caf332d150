package backtest

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"blackbox/internal/config"
	"blackbox/internal/types"
)

func newTestResultStore(t *testing.T) *ResultStore {
	t.Helper()
	store, err := NewResultStore(filepath.Join(t.TempDir(), "results.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func sampleRun(id string) Run {
	return Run{
		ID:             id,
		Status:         RunStatusPending,
		StartDate:      "2024-01-01",
		EndDate:        "2024-03-01",
		InitialCapital: 100000,
		Config: RunConfig{
			Symbols:   []string{"BTCUSDT", "ETHUSDT"},
			StartDate: "2024-01-01",
			EndDate:   "2024-03-01",
			Backtest:  config.BacktestConfig{InitialCapital: 100000, MaxLeverage: 1},
			Models:    config.ModelsConfig{Alpha: config.ModelSpec{Name: "momentum"}},
		},
	}
}

func TestResultStore_InsertAndGetRun(t *testing.T) {
	store := newTestResultStore(t)
	ctx := context.Background()

	require.NoError(t, store.InsertRun(ctx, sampleRun("run-1")))

	got, err := store.GetRun(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, RunStatusPending, got.Status)
	assert.Equal(t, "2024-01-01", got.StartDate)
	assert.Equal(t, []string{"BTCUSDT", "ETHUSDT"}, got.Config.Symbols)
	assert.Equal(t, "momentum", got.Config.Models.Alpha.Name)
	assert.Equal(t, 100000.0, got.InitialCapital)
	assert.False(t, got.CreatedAt.IsZero())
}

func TestResultStore_StatusTransitions(t *testing.T) {
	store := newTestResultStore(t)
	ctx := context.Background()
	require.NoError(t, store.InsertRun(ctx, sampleRun("run-1")))

	require.NoError(t, store.UpdateRunStatus(ctx, "run-1", RunStatusRunning, ""))
	got, err := store.GetRun(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, RunStatusRunning, got.Status)
	assert.True(t, got.CompletedAt.IsZero())

	require.NoError(t, store.UpdateRunStatus(ctx, "run-1", RunStatusFailed, "boom"))
	got, err = store.GetRun(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, RunStatusFailed, got.Status)
	assert.Equal(t, "boom", got.Message)
	assert.False(t, got.CompletedAt.IsZero())
}

func TestResultStore_UpdateRunSummary(t *testing.T) {
	store := newTestResultStore(t)
	ctx := context.Background()
	require.NoError(t, store.InsertRun(ctx, sampleRun("run-1")))

	stats := RunStats{
		FinalEquity: 123456,
		TotalReturn: 0.2345,
		MaxDrawdown: -0.12,
		Sharpe:      1.5,
		Trades:      42,
		Days:        60,
	}
	require.NoError(t, store.UpdateRunSummary(ctx, "run-1", RunStatusDone, stats, ""))

	got, err := store.GetRun(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, RunStatusDone, got.Status)
	assert.Equal(t, 123456.0, got.FinalEquity)
	assert.Equal(t, 0.2345, got.TotalReturn)
	assert.Equal(t, -0.12, got.MaxDrawdown)
	assert.Equal(t, 1.5, got.Stats.Sharpe)
	assert.Equal(t, 42, got.Stats.Trades)
	assert.Equal(t, 60, got.Stats.Days)
}

func TestResultStore_DailyLogsAndTrades(t *testing.T) {
	store := newTestResultStore(t)
	ctx := context.Background()
	require.NoError(t, store.InsertRun(ctx, sampleRun("run-1")))

	logs := []types.DailyLog{
		{
			Date:   day("2024-01-01"),
			Cash:   0,
			Equity: 100000,
			Positions: map[string]types.Position{
				"BTCUSDT": {Symbol: "BTCUSDT", Quantity: 10, AvgCost: 100, EntryDate: day("2024-01-01")},
			},
			Trades: []types.Trade{{Symbol: "BTCUSDT", Quantity: 10, FillPrice: 100, Cost: 1}},
			Notes:  []string{"ETHUSDT: 缺少开盘价"},
		},
		{
			Date:        day("2024-01-02"),
			Cash:        0,
			PendingCash: 101000,
			Equity:      101000,
			PnL:         1000,
			Trades:      []types.Trade{{Symbol: "BTCUSDT", Quantity: -10, FillPrice: 101, Cost: 1}},
		},
	}
	require.NoError(t, store.InsertDailyLogs(ctx, "run-1", logs))

	t.Run("Logs", func(t *testing.T) {
		recs, err := store.ListDailyLogs(ctx, "run-1", 0)
		require.NoError(t, err)
		require.Len(t, recs, 2)
		assert.Equal(t, "2024-01-01", recs[0].Date)
		assert.Equal(t, 100000.0, recs[0].Equity)
		assert.Equal(t, 10.0, recs[0].Positions["BTCUSDT"].Quantity)
		assert.Equal(t, []string{"ETHUSDT: 缺少开盘价"}, recs[0].Notes)
		assert.Equal(t, 101000.0, recs[1].PendingCash)
		assert.Empty(t, recs[1].Positions)
	})

	t.Run("Trades", func(t *testing.T) {
		trades, err := store.ListTrades(ctx, "run-1", 0)
		require.NoError(t, err)
		require.Len(t, trades, 2)
		assert.Equal(t, "2024-01-01", trades[0].Date)
		assert.Equal(t, 10.0, trades[0].Quantity)
		assert.Equal(t, "2024-01-02", trades[1].Date)
		assert.Equal(t, -10.0, trades[1].Quantity)
	})

	t.Run("EquityCurve", func(t *testing.T) {
		curve, err := store.EquityCurve(ctx, "run-1")
		require.NoError(t, err)
		require.Len(t, curve, 2)
		assert.Equal(t, day("2024-01-01"), curve[0].Date)
		assert.Equal(t, 100000.0, curve[0].Equity)
		assert.Equal(t, 101000.0, curve[1].Equity)
	})
}

func TestResultStore_ListRunsNewestFirst(t *testing.T) {
	store := newTestResultStore(t)
	ctx := context.Background()
	require.NoError(t, store.InsertRun(ctx, sampleRun("run-1")))
	require.NoError(t, store.InsertRun(ctx, sampleRun("run-2")))

	runs, err := store.ListRuns(ctx, 10)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	ids := []string{runs[0].ID, runs[1].ID}
	assert.ElementsMatch(t, []string{"run-1", "run-2"}, ids)
}
