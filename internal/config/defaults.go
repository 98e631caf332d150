package config

import "strings"

// 默认值常量
const (
	defaultAppEnv      = "dev"
	defaultAppLogLevel = "info"
	defaultAppHTTPAddr = ":8085"
	defaultAppLogPath  = "logs/blackbox.log"

	defaultDataDir      = "data/bars"
	defaultDataSource   = "binance"
	defaultUniverseFile = "configs/universe.yaml"

	defaultAlphaModel     = "momentum"
	defaultRiskModel      = "position_limit"
	defaultCostModel      = "quadratic_market_impact"
	defaultPortfolioModel = "volatility_scaled"

	defaultInitialCapital  = 1_000_000.0
	defaultMaxLeverage     = 1.0
	defaultMaxPositionSize = 0.25
	defaultSlippage        = 0.0002
	defaultCommissionRate  = 0.0001
	defaultMinNotional     = 1.0
	defaultVolLookback     = 20
	defaultRiskTarget      = 0.02
	defaultMaxWeight       = 0.2
	defaultSettlementDelay = 2
	defaultTradingDays     = 252
	defaultResultDB        = "data/results.db"

	defaultReportDir = "reports"
)

// applyDefaults 为所有子配置应用默认值。
func (c *Config) applyDefaults(keys keySet) {
	c.App.applyDefaults(keys)
	c.Data.applyDefaults(keys)
	c.Models.applyDefaults(keys)
	c.Backtest.applyDefaults(keys)
	c.Report.applyDefaults(keys)
}

func (a *AppConfig) applyDefaults(keys keySet) {
	if a == nil {
		return
	}
	applyFieldDefaults(keys,
		stringFieldDefault("app.env", &a.Env, defaultAppEnv),
		stringFieldDefault("app.log_level", &a.LogLevel, defaultAppLogLevel),
		stringFieldDefault("app.http_addr", &a.HTTPAddr, defaultAppHTTPAddr),
		stringFieldDefault("app.log_path", &a.LogPath, defaultAppLogPath),
	)
}

func (d *DataConfig) applyDefaults(keys keySet) {
	if d == nil {
		return
	}
	applyFieldDefaults(keys,
		stringFieldDefault("data.dir", &d.Dir, defaultDataDir),
		stringFieldDefault("data.source", &d.Source, defaultDataSource),
		stringFieldDefault("data.universe_file", &d.UniverseFile, defaultUniverseFile),
	)
	d.Source = strings.ToLower(strings.TrimSpace(d.Source))
}

func (m *ModelsConfig) applyDefaults(keys keySet) {
	if m == nil {
		return
	}
	applyFieldDefaults(keys,
		stringFieldDefault("models.alpha.name", &m.Alpha.Name, defaultAlphaModel),
		stringFieldDefault("models.risk.name", &m.Risk.Name, defaultRiskModel),
		stringFieldDefault("models.cost.name", &m.Cost.Name, defaultCostModel),
		stringFieldDefault("models.portfolio.name", &m.Portfolio.Name, defaultPortfolioModel),
	)
}

func (b *BacktestConfig) applyDefaults(keys keySet) {
	if b == nil {
		return
	}
	applyFieldDefaults(keys,
		fieldDefault{
			key:   "backtest.initial_capital",
			need:  func() bool { return b.InitialCapital <= 0 },
			apply: func() { b.InitialCapital = defaultInitialCapital },
		},
		fieldDefault{
			key:   "backtest.max_leverage",
			need:  func() bool { return b.MaxLeverage <= 0 },
			apply: func() { b.MaxLeverage = defaultMaxLeverage },
		},
		fieldDefault{
			key:   "backtest.max_position_size",
			need:  func() bool { return b.MaxPositionSize <= 0 },
			apply: func() { b.MaxPositionSize = defaultMaxPositionSize },
		},
		boolFieldDefault("backtest.allow_shorts", &b.AllowShorts, true),
		boolFieldDefault("backtest.fractional", &b.Fractional, true),
		fieldDefault{
			key:   "backtest.slippage",
			need:  func() bool { return b.Slippage < 0 },
			apply: func() { b.Slippage = defaultSlippage },
		},
		fieldDefault{
			key:   "backtest.commission_rate",
			need:  func() bool { return b.CommissionRate < 0 },
			apply: func() { b.CommissionRate = defaultCommissionRate },
		},
		fieldDefault{
			key:   "backtest.min_notional",
			need:  func() bool { return b.MinNotional < 0 },
			apply: func() { b.MinNotional = defaultMinNotional },
		},
		fieldDefault{
			key:   "backtest.vol_lookback",
			need:  func() bool { return b.VolLookback <= 0 },
			apply: func() { b.VolLookback = defaultVolLookback },
		},
		fieldDefault{
			key:   "backtest.risk_target",
			need:  func() bool { return b.RiskTarget <= 0 },
			apply: func() { b.RiskTarget = defaultRiskTarget },
		},
		fieldDefault{
			key:   "backtest.max_weight",
			need:  func() bool { return b.MaxWeight <= 0 },
			apply: func() { b.MaxWeight = defaultMaxWeight },
		},
		fieldDefault{
			key:   "backtest.settlement_delay",
			need:  func() bool { return b.SettlementDelay < 0 },
			apply: func() { b.SettlementDelay = defaultSettlementDelay },
		},
		fieldDefault{
			key:   "backtest.trading_days",
			need:  func() bool { return b.TradingDays <= 0 },
			apply: func() { b.TradingDays = defaultTradingDays },
		},
		stringFieldDefault("backtest.result_db", &b.ResultDB, defaultResultDB),
	)
	if b.MinCommission < 0 {
		b.MinCommission = 0
	}
	if b.MinHoldingPeriod < 0 {
		b.MinHoldingPeriod = 0
	}
	if b.MinPrice < 0 {
		b.MinPrice = 0
	}
	if b.RiskFreeRate < 0 {
		b.RiskFreeRate = 0
	}
}

func (r *ReportConfig) applyDefaults(keys keySet) {
	if r == nil {
		return
	}
	applyFieldDefaults(keys,
		stringFieldDefault("report.output_dir", &r.OutputDir, defaultReportDir),
		boolFieldDefault("report.equity_curve", &r.EquityCurve, true),
		boolFieldDefault("report.chart", &r.Chart, true),
	)
}

// Helper functions

func applyFieldDefaults(keys keySet, defs ...fieldDefault) {
	for _, def := range defs {
		if def.apply == nil {
			continue
		}
		if def.key != "" && keys.isSet(def.key) {
			continue
		}
		if def.need != nil && !def.need() {
			continue
		}
		def.apply()
	}
}

func stringFieldDefault(key string, target *string, def string) fieldDefault {
	return fieldDefault{
		key: key,
		need: func() bool {
			return target != nil && strings.TrimSpace(*target) == ""
		},
		apply: func() {
			if target != nil {
				*target = def
			}
		},
	}
}

func boolFieldDefault(key string, target *bool, def bool) fieldDefault {
	return fieldDefault{
		key:  key,
		need: func() bool { return target != nil },
		apply: func() {
			if target != nil {
				*target = def
			}
		},
	}
}
