package config

import (
	"fmt"
	"strings"
	"time"
)

// validate 对配置进行基础校验。
func validate(c *Config) error {
	if err := c.App.validate(); err != nil {
		return err
	}
	if err := c.Data.validate(); err != nil {
		return err
	}
	if err := c.Models.validate(); err != nil {
		return err
	}
	if err := c.Backtest.validate(); err != nil {
		return err
	}
	return nil
}

func (a *AppConfig) validate() error {
	switch strings.ToLower(strings.TrimSpace(a.LogLevel)) {
	case "debug", "info", "warn", "error":
		return nil
	default:
		return fmt.Errorf("app.log_level must be one of debug/info/warn/error, got %s", a.LogLevel)
	}
}

func (d *DataConfig) validate() error {
	if d.Source != "binance" {
		return fmt.Errorf("data.source only supports 'binance', got %s", d.Source)
	}
	if strings.TrimSpace(d.UniverseFile) == "" {
		return fmt.Errorf("data.universe_file cannot be empty")
	}
	start, err := time.Parse("2006-01-02", strings.TrimSpace(d.StartDate))
	if err != nil {
		return fmt.Errorf("data.start_date must be YYYY-MM-DD: %w", err)
	}
	end, err := time.Parse("2006-01-02", strings.TrimSpace(d.EndDate))
	if err != nil {
		return fmt.Errorf("data.end_date must be YYYY-MM-DD: %w", err)
	}
	if end.Before(start) {
		return fmt.Errorf("data.end_date %s is before start_date %s", d.EndDate, d.StartDate)
	}
	return nil
}

func (m *ModelsConfig) validate() error {
	for _, spec := range []struct {
		section string
		name    string
	}{
		{"models.alpha", m.Alpha.Name},
		{"models.risk", m.Risk.Name},
		{"models.cost", m.Cost.Name},
		{"models.portfolio", m.Portfolio.Name},
	} {
		if strings.TrimSpace(spec.name) == "" {
			return fmt.Errorf("%s.name cannot be empty", spec.section)
		}
	}
	return nil
}

func (b *BacktestConfig) validate() error {
	if b.InitialCapital <= 0 {
		return fmt.Errorf("backtest.initial_capital must be > 0")
	}
	if b.MaxLeverage <= 0 {
		return fmt.Errorf("backtest.max_leverage must be > 0")
	}
	if b.MaxPositionSize <= 0 || b.MaxPositionSize > b.MaxLeverage {
		return fmt.Errorf("backtest.max_position_size must be in (0, max_leverage]")
	}
	if b.Slippage < 0 || b.Slippage >= 1 {
		return fmt.Errorf("backtest.slippage must be in [0, 1)")
	}
	if b.CommissionRate < 0 || b.CommissionRate >= 1 {
		return fmt.Errorf("backtest.commission_rate must be in [0, 1)")
	}
	if b.MaxWeight <= 0 || b.MaxWeight > b.MaxLeverage {
		return fmt.Errorf("backtest.max_weight must be in (0, max_leverage]")
	}
	if b.VolLookback < 2 {
		return fmt.Errorf("backtest.vol_lookback must be >= 2")
	}
	if b.SettlementDelay < 0 {
		return fmt.Errorf("backtest.settlement_delay must be >= 0")
	}
	if b.MinHoldingPeriod < 0 {
		return fmt.Errorf("backtest.min_holding_period must be >= 0")
	}
	if b.TradingDays <= 0 {
		return fmt.Errorf("backtest.trading_days must be > 0")
	}
	return nil
}
