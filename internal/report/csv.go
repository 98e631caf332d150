package report

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"

	"blackbox/internal/market"
	"blackbox/internal/types"
)

// WriteDailyLogsCSV 导出日志序列，一行一个交易日。
func WriteDailyLogsCSV(path string, logs []types.DailyLog) error {
	f, err := createFile(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	defer w.Flush()

	header := []string{"date", "cash", "pending_cash", "equity", "pnl", "drawdown", "positions", "trades"}
	if err := w.Write(header); err != nil {
		return err
	}
	for _, log := range logs {
		row := []string{
			log.Date.Format(market.DateLayout),
			formatFloat(log.Cash),
			formatFloat(log.PendingCash),
			formatFloat(log.Equity),
			formatFloat(log.PnL),
			formatFloat(log.Drawdown),
			strconv.Itoa(len(log.Positions)),
			strconv.Itoa(len(log.Trades)),
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

// WriteTradesCSV 导出全部成交，按日期、symbol 排序。
func WriteTradesCSV(path string, logs []types.DailyLog) error {
	f, err := createFile(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	defer w.Flush()

	if err := w.Write([]string{"date", "symbol", "quantity", "fill_price", "notional", "cost"}); err != nil {
		return err
	}
	for _, log := range logs {
		for _, trade := range log.Trades {
			row := []string{
				log.Date.Format(market.DateLayout),
				trade.Symbol,
				formatFloat(trade.Quantity),
				formatFloat(trade.FillPrice),
				formatFloat(trade.Notional()),
				formatFloat(trade.Cost),
			}
			if err := w.Write(row); err != nil {
				return err
			}
		}
	}
	w.Flush()
	return w.Error()
}

// WriteMetricsCSV 导出指标摘要，按名称排序保证输出稳定。
func WriteMetricsCSV(path string, metrics types.BacktestMetrics) error {
	f, err := createFile(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	defer w.Flush()

	if err := w.Write([]string{"metric", "value"}); err != nil {
		return err
	}
	names := make([]string, 0, len(metrics.Summary))
	for name := range metrics.Summary {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if err := w.Write([]string{name, formatFloat(metrics.Summary[name])}); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

func createFile(path string) (*os.File, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("创建输出目录失败: %w", err)
	}
	return os.Create(path)
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
