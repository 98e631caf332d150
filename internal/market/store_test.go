package market

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := NewStore(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func mkBars(start string, prices ...float64) []Bar {
	d, _ := time.Parse(DateLayout, start)
	bars := make([]Bar, len(prices))
	for i, p := range prices {
		bars[i] = Bar{Date: d, Open: p, High: p + 1, Low: p - 1, Close: p, Volume: 100}
		d = d.AddDate(0, 0, 1)
	}
	return bars
}

func TestStore_InsertAndRangeBars(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	n, err := store.InsertBars(ctx, "btcusdt", mkBars("2024-01-01", 100, 101, 102, 103))
	require.NoError(t, err)
	assert.Equal(t, 4, n)

	bars, err := store.RangeBars(ctx, "BTCUSDT", day("2024-01-02"), day("2024-01-03"))
	require.NoError(t, err)
	require.Len(t, bars, 2)
	assert.Equal(t, 101.0, bars[0].Close)
	assert.Equal(t, 102.0, bars[1].Close)
	assert.Equal(t, day("2024-01-02"), bars[0].Date)
}

func TestStore_UpsertOverwritesSameDate(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	_, err := store.InsertBars(ctx, "BTCUSDT", mkBars("2024-01-01", 100))
	require.NoError(t, err)
	_, err = store.InsertBars(ctx, "BTCUSDT", mkBars("2024-01-01", 200))
	require.NoError(t, err)

	bars, err := store.RangeBars(ctx, "BTCUSDT", day("2024-01-01"), day("2024-01-01"))
	require.NoError(t, err)
	require.Len(t, bars, 1)
	assert.Equal(t, 200.0, bars[0].Close)
}

func TestStore_ManifestTracksRange(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	_, err := store.InsertBars(ctx, "ETHUSDT", mkBars("2024-01-05", 50, 51, 52))
	require.NoError(t, err)

	m, err := store.Manifest(ctx, "ETHUSDT")
	require.NoError(t, err)
	assert.Equal(t, "ETHUSDT", m.Symbol)
	assert.Equal(t, "2024-01-05", m.MinDate)
	assert.Equal(t, "2024-01-07", m.MaxDate)
	assert.EqualValues(t, 3, m.Rows)
	assert.Positive(t, m.LastSyncAt)
}

func TestStore_EmptySymbolHasEmptyRange(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	bars, err := store.RangeBars(ctx, "NEWUSDT", day("2024-01-01"), day("2024-12-31"))
	require.NoError(t, err)
	assert.Empty(t, bars)

	m, err := store.Manifest(ctx, "NEWUSDT")
	require.NoError(t, err)
	assert.Empty(t, m.MinDate)
	assert.Zero(t, m.Rows)
}

func TestStore_MissingDates(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	_, err := store.InsertBars(ctx, "BTCUSDT", mkBars("2024-01-01", 100, 101))
	require.NoError(t, err)
	_, err = store.InsertBars(ctx, "BTCUSDT", mkBars("2024-01-05", 104, 105))
	require.NoError(t, err)

	missing, err := store.MissingDates(ctx, "BTCUSDT")
	require.NoError(t, err)
	assert.Equal(t, []string{"2024-01-03", "2024-01-04"}, missing)

	t.Run("ContiguousIsClean", func(t *testing.T) {
		_, err := store.InsertBars(ctx, "BTCUSDT", mkBars("2024-01-03", 102, 103))
		require.NoError(t, err)
		missing, err := store.MissingDates(ctx, "BTCUSDT")
		require.NoError(t, err)
		assert.Empty(t, missing)
	})

	t.Run("EmptySymbol", func(t *testing.T) {
		missing, err := store.MissingDates(ctx, "SOLUSDT")
		require.NoError(t, err)
		assert.Empty(t, missing)
	})
}

func day(s string) time.Time {
	t, _ := time.Parse(DateLayout, s)
	return t
}
