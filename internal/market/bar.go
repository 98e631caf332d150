package market

import (
	"sort"
	"time"

	"blackbox/internal/types"
)

// DateLayout 是全仓库统一的日期格式。
const DateLayout = "2006-01-02"

// Bar 表示一个 symbol 的单日行情。
type Bar struct {
	Date   time.Time `json:"date"`
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume float64   `json:"volume"`
}

// Snapshot 表示整个 universe 某一天的行情切片，缺失的 symbol 记录在 Missing。
type Snapshot struct {
	Date    time.Time          `json:"date"`
	Open    map[string]float64 `json:"open"`
	High    map[string]float64 `json:"high"`
	Low     map[string]float64 `json:"low"`
	Close   map[string]float64 `json:"close"`
	Volume  map[string]float64 `json:"volume"`
	Missing []string           `json:"missing,omitempty"`
}

// BuildSnapshots 将各 symbol 的日线序列汇总为按日期排序的快照序列。
// 日期取所有 symbol 的并集；某天缺某 symbol 时标记为 Missing，不静默补零。
func BuildSnapshots(history map[string][]Bar) []Snapshot {
	byDate := make(map[time.Time]map[string]Bar)
	symbols := make([]string, 0, len(history))
	for sym, bars := range history {
		symbols = append(symbols, sym)
		for _, b := range bars {
			day := types.Day(b.Date)
			if byDate[day] == nil {
				byDate[day] = make(map[string]Bar)
			}
			byDate[day][sym] = b
		}
	}
	sort.Strings(symbols)

	dates := make([]time.Time, 0, len(byDate))
	for d := range byDate {
		dates = append(dates, d)
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })

	out := make([]Snapshot, 0, len(dates))
	for _, d := range dates {
		snap := Snapshot{
			Date:   d,
			Open:   make(map[string]float64),
			High:   make(map[string]float64),
			Low:    make(map[string]float64),
			Close:  make(map[string]float64),
			Volume: make(map[string]float64),
		}
		day := byDate[d]
		for _, sym := range symbols {
			b, ok := day[sym]
			if !ok {
				snap.Missing = append(snap.Missing, sym)
				continue
			}
			snap.Open[sym] = b.Open
			snap.High[sym] = b.High
			snap.Low[sym] = b.Low
			snap.Close[sym] = b.Close
			snap.Volume[sym] = b.Volume
		}
		out = append(out, snap)
	}
	return out
}
