package feature

import (
	"context"
	"math"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"blackbox/internal/market"
	"blackbox/internal/types"
)

// Row 是某一天全 universe 的特征切片：symbol → 列名 → 值。
// 缺失值用 NaN 表示，绝不与 0 混淆。
type Row struct {
	Date   time.Time
	Values map[string]map[string]float64
}

// Value 返回 today 行中某 symbol 某列的值；缺失时第二返回值为 false。
func (r Row) Value(symbol, column string) (float64, bool) {
	cols, ok := r.Values[symbol]
	if !ok {
		return math.NaN(), false
	}
	v, ok := cols[column]
	if !ok || types.IsMissing(v) {
		return math.NaN(), false
	}
	return v, true
}

// Symbols 返回该行包含的 symbol，按字典序。
func (r Row) Symbols() []string {
	out := make([]string, 0, len(r.Values))
	for sym := range r.Values {
		out = append(out, sym)
	}
	sort.Strings(out)
	return out
}

// Matrix 是整个回测期的特征矩阵，行按日期升序。
type Matrix struct {
	Rows    []Row
	Columns []string
	Warmup  int

	index map[time.Time]int
}

// Build 对每个 symbol 并行计算特征列，再按日期组装为行。
// 每个 symbol 的序列只依赖自身历史，组装阶段是同步屏障，结果与并发度无关。
func Build(ctx context.Context, history map[string][]market.Bar, gens []Generator) (*Matrix, error) {
	columns := make([]string, 0, len(gens))
	warmup := 1
	for _, g := range gens {
		columns = append(columns, g.Name())
		if g.Warmup() > warmup {
			warmup = g.Warmup()
		}
	}
	sort.Strings(columns)

	symbols := make([]string, 0, len(history))
	for sym := range history {
		symbols = append(symbols, sym)
	}
	sort.Strings(symbols)

	type symbolSeries struct {
		dates  []time.Time
		series map[string][]float64
	}
	results := make(map[string]symbolSeries, len(symbols))
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(8)
	for _, sym := range symbols {
		sym := sym
		bars := history[sym]
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			dates := make([]time.Time, len(bars))
			for i, b := range bars {
				dates[i] = types.Day(b.Date)
			}
			series := make(map[string][]float64, len(gens))
			for _, gen := range gens {
				series[gen.Name()] = gen.Compute(bars)
			}
			mu.Lock()
			results[sym] = symbolSeries{dates: dates, series: series}
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	byDate := make(map[time.Time]map[string]map[string]float64)
	for _, sym := range symbols {
		res := results[sym]
		for i, d := range res.dates {
			if byDate[d] == nil {
				byDate[d] = make(map[string]map[string]float64)
			}
			cols := make(map[string]float64, len(res.series))
			for name, vals := range res.series {
				cols[name] = vals[i]
			}
			byDate[d][sym] = cols
		}
	}

	dates := make([]time.Time, 0, len(byDate))
	for d := range byDate {
		dates = append(dates, d)
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })

	m := &Matrix{
		Columns: columns,
		Warmup:  warmup,
		index:   make(map[time.Time]int, len(dates)),
	}
	for i, d := range dates {
		m.Rows = append(m.Rows, Row{Date: d, Values: byDate[d]})
		m.index[d] = i
	}
	return m, nil
}

// Window 是以某天结尾的特征窗口，rows 按日期升序，最后一行即 today。
type Window struct {
	rows []Row
}

// WindowEnding 返回以 date 结尾、恰好 lookback 行的窗口。
// date 没有特征行、或行前历史不足 lookback 时返回 false。
func (m *Matrix) WindowEnding(date time.Time, lookback int) (Window, bool) {
	idx, ok := m.index[types.Day(date)]
	if !ok {
		return Window{}, false
	}
	return m.windowAt(idx, lookback)
}

// WindowBefore 返回 date 之前最近一个特征行结尾的窗口。
// 信号只能用到昨收，窗口一定不含 date 当天的行。
func (m *Matrix) WindowBefore(date time.Time, lookback int) (Window, bool) {
	d := types.Day(date)
	idx := sort.Search(len(m.Rows), func(i int) bool {
		return !m.Rows[i].Date.Before(d)
	}) - 1
	return m.windowAt(idx, lookback)
}

func (m *Matrix) windowAt(idx, lookback int) (Window, bool) {
	if idx < 0 || lookback <= 0 || idx+1 < lookback {
		return Window{}, false
	}
	return Window{rows: m.Rows[idx-lookback+1 : idx+1]}, true
}

// Len 返回窗口行数。
func (w Window) Len() int { return len(w.rows) }

// Today 返回窗口最后一行。
func (w Window) Today() Row {
	if len(w.rows) == 0 {
		return Row{Values: map[string]map[string]float64{}}
	}
	return w.rows[len(w.rows)-1]
}

// Series 返回某 symbol 某列在窗口内的序列（含 NaN 占位）。
func (w Window) Series(symbol, column string) []float64 {
	out := make([]float64, 0, len(w.rows))
	for _, row := range w.rows {
		if cols, ok := row.Values[symbol]; ok {
			if v, ok := cols[column]; ok {
				out = append(out, v)
				continue
			}
		}
		out = append(out, math.NaN())
	}
	return out
}

// CheckHistory 检查 symbol 在窗口内是否有 need 行有效收盘价，
// 不足时返回 *types.InsufficientHistoryError。
func (w Window) CheckHistory(symbol string, need int) error {
	have := 0
	for _, c := range w.Series(symbol, ColClose) {
		if !types.IsMissing(c) && c > 0 {
			have++
		}
	}
	if have < need {
		return &types.InsufficientHistoryError{Symbol: symbol, Need: need, Have: have}
	}
	return nil
}

// CloseReturns 返回某 symbol 在窗口内的日收益率序列，NaN 被跳过。
func (w Window) CloseReturns(symbol string) []float64 {
	closes := w.Series(symbol, ColClose)
	var out []float64
	prev := math.NaN()
	for _, c := range closes {
		if types.IsMissing(c) || c <= 0 {
			continue
		}
		if !types.IsMissing(prev) {
			out = append(out, c/prev-1)
		}
		prev = c
	}
	return out
}
