package backtest

import (
	"encoding/json"
	"time"

	"blackbox/internal/config"
)

const (
	RunStatusPending = "pending"
	RunStatusRunning = "running"
	RunStatusDone    = "done"
	RunStatusFailed  = "failed"
)

// RunConfig 记录本次回测的参数快照，便于重放。
type RunConfig struct {
	Symbols   []string              `json:"symbols"`
	StartDate string                `json:"start_date"`
	EndDate   string                `json:"end_date"`
	Backtest  config.BacktestConfig `json:"backtest"`
	Models    config.ModelsConfig   `json:"models"`
	Features  []config.FeatureSpec  `json:"features"`
}

// RunStats 汇总收益与风险指标，供前端展示。
type RunStats struct {
	FinalEquity      float64   `json:"final_equity"`
	TotalReturn      float64   `json:"total_return"`
	AnnualizedReturn float64   `json:"annualized_return"`
	Volatility       float64   `json:"annualized_volatility"`
	Sharpe           float64   `json:"sharpe"`
	Sortino          float64   `json:"sortino"`
	MaxDrawdown      float64   `json:"max_drawdown"`
	Calmar           float64   `json:"calmar"`
	Trades           int       `json:"trades"`
	Days             int       `json:"days"`
	FinishedAt       time.Time `json:"finished_at"`
}

// statsFromMetrics 把指标摘要折叠进 RunStats。
func statsFromMetrics(m map[string]float64, trades int) RunStats {
	return RunStats{
		FinalEquity:      m["final_equity"],
		TotalReturn:      m["total_return"],
		AnnualizedReturn: m["annualized_return"],
		Volatility:       m["annualized_volatility"],
		Sharpe:           m["sharpe"],
		Sortino:          m["sortino"],
		MaxDrawdown:      m["max_drawdown"],
		Calmar:           m["calmar"],
		Trades:           trades,
		Days:             int(m["days"]),
	}
}

// Run 表示一次回测任务。
type Run struct {
	ID             string    `json:"id"`
	Status         string    `json:"status"`
	StartDate      string    `json:"start_date"`
	EndDate        string    `json:"end_date"`
	InitialCapital float64   `json:"initial_capital"`
	FinalEquity    float64   `json:"final_equity"`
	TotalReturn    float64   `json:"total_return"`
	MaxDrawdown    float64   `json:"max_drawdown"`
	Message        string    `json:"message"`
	Config         RunConfig `json:"config"`
	Stats          RunStats  `json:"stats"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
	CompletedAt    time.Time `json:"completed_at"`
}

// MarshalConfig 返回 config JSON。
func (r Run) MarshalConfig() ([]byte, error) {
	return json.Marshal(r.Config)
}

// RunRequest 为 HTTP 提交使用，零值字段沿用服务配置。
type RunRequest struct {
	Symbols            []string `json:"symbols"`
	StartDate          string   `json:"start_date"`
	EndDate            string   `json:"end_date"`
	InitialCapital     float64  `json:"initial_capital"`
	AllowShorts        *bool    `json:"allow_shorts"`
	IncludeEquityCurve bool     `json:"include_equity_curve"`
}
