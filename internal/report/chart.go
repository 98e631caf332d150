package report

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"

	"blackbox/internal/market"
	"blackbox/internal/types"
)

const (
	colorEquity   = "#5470c6"
	colorDrawdown = "#ee6666"
)

// WriteEquityChart 把权益曲线与回撤画成单页 HTML。
func WriteEquityChart(path, title string, logs []types.DailyLog) error {
	if len(logs) == 0 {
		return fmt.Errorf("日志为空，无法绘图")
	}
	xAxis := make([]string, len(logs))
	equity := make([]opts.LineData, len(logs))
	drawdown := make([]opts.LineData, len(logs))
	for i, log := range logs {
		xAxis[i] = log.Date.Format(market.DateLayout)
		equity[i] = opts.LineData{Value: log.Equity}
		drawdown[i] = opts.LineData{Value: log.Drawdown * 100}
	}

	equityLine := charts.NewLine()
	equityLine.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Width: "1200px", Height: "480px"}),
		charts.WithTitleOpts(opts.Title{Title: title, Subtitle: "equity"}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithDataZoomOpts(opts.DataZoom{Type: "slider", XAxisIndex: []int{0}}),
		charts.WithYAxisOpts(opts.YAxis{Scale: opts.Bool(true)}),
	)
	equityLine.SetXAxis(xAxis)
	equityLine.AddSeries("Equity", equity,
		charts.WithLineStyleOpts(opts.LineStyle{Color: colorEquity, Width: 2}),
		charts.WithLineChartOpts(opts.LineChart{ShowSymbol: opts.Bool(false)}))

	ddLine := charts.NewLine()
	ddLine.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Width: "1200px", Height: "240px"}),
		charts.WithTitleOpts(opts.Title{Title: "Drawdown (%)"}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
	)
	ddLine.SetXAxis(xAxis)
	ddLine.AddSeries("Drawdown", drawdown,
		charts.WithLineStyleOpts(opts.LineStyle{Color: colorDrawdown, Width: 2}),
		charts.WithLineChartOpts(opts.LineChart{ShowSymbol: opts.Bool(false)}))

	page := components.NewPage()
	page.SetLayout(components.PageFlexLayout)
	page.AddCharts(equityLine, ddLine)

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("创建输出目录失败: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return page.Render(f)
}
