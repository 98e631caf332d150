package config

import (
	"strings"
	"time"
)

// Config 是 blackbox 的主配置载体。
type Config struct {
	App      AppConfig      `toml:"app"`
	Data     DataConfig     `toml:"data"`
	Features FeaturesConfig `toml:"features"`
	Models   ModelsConfig   `toml:"models"`
	Backtest BacktestConfig `toml:"backtest"`
	Report   ReportConfig   `toml:"report"`
}

type AppConfig struct {
	Env      string `toml:"env"`
	LogLevel string `toml:"log_level"`
	HTTPAddr string `toml:"http_addr"`
	LogPath  string `toml:"log_path"`
}

// DataConfig 描述日线数据的来源与存放位置。
type DataConfig struct {
	Dir          string `toml:"dir"`           // 单 symbol 一库的 sqlite 目录
	Source       string `toml:"source"`        // 目前仅支持 "binance"
	RESTBaseURL  string `toml:"rest_base_url"` // 留空使用官方地址
	UniverseFile string `toml:"universe_file"`
	StartDate    string `toml:"start_date"` // "2006-01-02"
	EndDate      string `toml:"end_date"`
}

// StartTime 解析 start_date，格式错误在 validate 阶段已被拦截。
func (d DataConfig) StartTime() time.Time {
	t, _ := time.Parse("2006-01-02", strings.TrimSpace(d.StartDate))
	return t
}

func (d DataConfig) EndTime() time.Time {
	t, _ := time.Parse("2006-01-02", strings.TrimSpace(d.EndDate))
	return t
}

// FeatureSpec 与 ModelSpec 结构相同，分开命名以免配置段混用。
type FeatureSpec struct {
	Name   string         `toml:"name"`
	Params map[string]any `toml:"params"`
}

type FeaturesConfig struct {
	Generators []FeatureSpec `toml:"generators"`
}

type ModelSpec struct {
	Name   string         `toml:"name"`
	Params map[string]any `toml:"params"`
}

// ModelsConfig 选择参与流水线的四个模型。
type ModelsConfig struct {
	Alpha     ModelSpec `toml:"alpha"`
	Risk      ModelSpec `toml:"risk"`
	Cost      ModelSpec `toml:"cost"`
	Portfolio ModelSpec `toml:"portfolio"`
}

// BacktestConfig 汇集模拟器的全部参数。
type BacktestConfig struct {
	InitialCapital   float64 `toml:"initial_capital"`
	MaxLeverage      float64 `toml:"max_leverage"`
	MaxPositionSize  float64 `toml:"max_position_size"`
	AllowShorts      bool    `toml:"allow_shorts"`
	Slippage         float64 `toml:"slippage"`
	CommissionRate   float64 `toml:"commission_rate"`
	MinCommission    float64 `toml:"min_commission"`
	Fractional       bool    `toml:"fractional"`
	MinNotional      float64 `toml:"min_notional"`
	MinPrice         float64 `toml:"min_price"`
	VolLookback      int     `toml:"vol_lookback"`
	RiskTarget       float64 `toml:"risk_target"`
	MaxWeight        float64 `toml:"max_weight"`
	MinHoldingPeriod int     `toml:"min_holding_period"`
	SettlementDelay  int     `toml:"settlement_delay"`
	RiskFreeRate     float64 `toml:"risk_free_rate"`
	TradingDays      int     `toml:"trading_days"`
	ResultDB         string  `toml:"result_db"`
}

type ReportConfig struct {
	OutputDir   string `toml:"output_dir"`
	EquityCurve bool   `toml:"equity_curve"`
	Chart       bool   `toml:"chart"`
}

// keySet 用于追踪配置文件中显式设置的字段路径。
type keySet map[string]struct{}

func (k keySet) mark(path string) {
	path = strings.ToLower(strings.TrimSpace(path))
	if path == "" {
		return
	}
	k[path] = struct{}{}
}

func (k keySet) isSet(path string) bool {
	if len(k) == 0 {
		return false
	}
	path = strings.ToLower(strings.TrimSpace(path))
	if path == "" {
		return false
	}
	_, ok := k[path]
	return ok
}

// fieldDefault 描述单个字段的默认值设置规则。
type fieldDefault struct {
	key   string
	need  func() bool
	apply func()
}
