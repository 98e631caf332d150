package market

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildSnapshots(t *testing.T) {
	d1 := day("2024-01-01")
	d2 := day("2024-01-02")
	history := map[string][]Bar{
		"BTCUSDT": {
			{Date: d1, Open: 100, High: 105, Low: 95, Close: 102, Volume: 10},
			{Date: d2, Open: 102, High: 110, Low: 101, Close: 108, Volume: 12},
		},
		"ETHUSDT": {
			{Date: d2, Open: 50, High: 52, Low: 49, Close: 51, Volume: 20},
		},
	}

	snaps := BuildSnapshots(history)
	require.Len(t, snaps, 2)

	first := snaps[0]
	assert.Equal(t, d1, first.Date)
	assert.Equal(t, 100.0, first.Open["BTCUSDT"])
	assert.Equal(t, 102.0, first.Close["BTCUSDT"])
	// 缺数据的 symbol 标记为 Missing，不补零
	assert.NotContains(t, first.Close, "ETHUSDT")
	assert.Equal(t, []string{"ETHUSDT"}, first.Missing)

	second := snaps[1]
	assert.Equal(t, d2, second.Date)
	assert.Equal(t, 108.0, second.Close["BTCUSDT"])
	assert.Equal(t, 51.0, second.Close["ETHUSDT"])
	assert.Empty(t, second.Missing)
}

func TestBuildSnapshots_SortedByDate(t *testing.T) {
	history := map[string][]Bar{
		"BTCUSDT": {
			{Date: day("2024-01-03"), Close: 3},
			{Date: day("2024-01-01"), Close: 1},
			{Date: day("2024-01-02"), Close: 2},
		},
	}
	snaps := BuildSnapshots(history)
	require.Len(t, snaps, 3)
	for i := 1; i < len(snaps); i++ {
		assert.True(t, snaps[i-1].Date.Before(snaps[i].Date))
	}
}

func TestBuildSnapshots_NormalizesToUTCDay(t *testing.T) {
	loc := time.FixedZone("UTC+8", 8*3600)
	history := map[string][]Bar{
		"BTCUSDT": {
			{Date: time.Date(2024, 1, 1, 10, 30, 0, 0, loc), Close: 1},
		},
	}
	snaps := BuildSnapshots(history)
	require.Len(t, snaps, 1)
	assert.Equal(t, day("2024-01-01"), snaps[0].Date)
}

func TestBuildSnapshots_Empty(t *testing.T) {
	assert.Empty(t, BuildSnapshots(nil))
}
