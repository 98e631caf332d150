package backtest

import (
	"math"

	"blackbox/internal/types"
)

// MetricsConfig 控制指标年化口径与输出内容。
type MetricsConfig struct {
	RiskFreeRate       float64 // 年化无风险利率
	TradingDays        int     // 年化天数，缺省 252
	IncludeEquityCurve bool
}

// ComputeMetrics 是日志序列上的纯函数：同一份日志永远得到同一份
// 指标。所有退化情形（零波动、零回撤、零下行）都输出 0 哨兵值，
// 绝不触发除零。
func ComputeMetrics(logs []types.DailyLog, cfg MetricsConfig) types.BacktestMetrics {
	if cfg.TradingDays <= 0 {
		cfg.TradingDays = 252
	}
	summary := map[string]float64{
		"days":                  float64(len(logs)),
		"total_return":          0,
		"annualized_return":     0,
		"annualized_volatility": 0,
		"sharpe":                0,
		"sortino":               0,
		"max_drawdown":          0,
		"calmar":                0,
		"final_equity":          0,
	}
	metrics := types.BacktestMetrics{Summary: summary}
	if len(logs) == 0 {
		return metrics
	}

	first, last := logs[0].Equity, logs[len(logs)-1].Equity
	summary["final_equity"] = last

	returns := dailyReturns(logs)
	annual := float64(cfg.TradingDays)

	if first != 0 {
		total := last/first - 1
		summary["total_return"] = total
		years := float64(len(logs)) / annual
		if years > 0 && total > -1 {
			summary["annualized_return"] = math.Pow(1+total, 1/years) - 1
		}
	}

	std := sampleStd(returns)
	summary["annualized_volatility"] = std * math.Sqrt(annual)

	dailyRF := cfg.RiskFreeRate / annual
	excess := mean(returns) - dailyRF
	if std > 0 {
		summary["sharpe"] = excess / std * math.Sqrt(annual)
	}
	if downside := downsideDeviation(returns); downside > 0 {
		summary["sortino"] = excess / downside * math.Sqrt(annual)
	}

	maxDD := 0.0
	for _, log := range logs {
		if log.Drawdown < maxDD {
			maxDD = log.Drawdown
		}
	}
	summary["max_drawdown"] = maxDD
	if maxDD < 0 {
		summary["calmar"] = summary["annualized_return"] / math.Abs(maxDD)
	}

	if cfg.IncludeEquityCurve {
		curve := make([]types.EquityPoint, len(logs))
		for i, log := range logs {
			curve[i] = types.EquityPoint{Date: log.Date, Equity: log.Equity}
		}
		metrics.EquityCurve = curve
	}
	return metrics
}

// dailyReturns 由相邻权益值导出日收益，前值为零的日子剔除。
func dailyReturns(logs []types.DailyLog) []float64 {
	if len(logs) < 2 {
		return nil
	}
	out := make([]float64, 0, len(logs)-1)
	for i := 1; i < len(logs); i++ {
		prev := logs[i-1].Equity
		if prev == 0 {
			continue
		}
		out = append(out, (logs[i].Equity-prev)/prev)
	}
	return out
}

func mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	total := 0.0
	for _, x := range xs {
		total += x
	}
	return total / float64(len(xs))
}

// sampleStd 样本标准差，少于 2 个样本返回 0。
func sampleStd(xs []float64) float64 {
	if len(xs) < 2 {
		return 0
	}
	m := mean(xs)
	sum := 0.0
	for _, x := range xs {
		d := x - m
		sum += d * d
	}
	return math.Sqrt(sum / float64(len(xs)-1))
}

// downsideDeviation 只统计负收益的样本标准差。
func downsideDeviation(xs []float64) float64 {
	var neg []float64
	for _, x := range xs {
		if x < 0 {
			neg = append(neg, x)
		}
	}
	return sampleStd(neg)
}
