package backtest

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"

	"blackbox/internal/config"
	"blackbox/internal/feature"
	"blackbox/internal/logger"
	"blackbox/internal/market"
	"blackbox/internal/model"
	"blackbox/internal/types"
)

// Engine 驱动严格顺序的日循环：结算合并 → 信号流水线 →
// 组合构建 → 模拟成交 → 状态更新 → 记账。日与日之间不存在并行，
// 因为前一日的 Tracker 状态是后一日的前提。
type Engine struct {
	cfg     config.BacktestConfig
	models  model.Set
	feats   *feature.Matrix
	exec    *Executor
	tracker *Tracker
}

func NewEngine(cfg config.BacktestConfig, set model.Set, feats *feature.Matrix) *Engine {
	return &Engine{
		cfg:    cfg,
		models: set,
		feats:  feats,
		exec: &Executor{
			Slippage:       cfg.Slippage,
			CommissionRate: cfg.CommissionRate,
			MinCommission:  cfg.MinCommission,
			Fractional:     cfg.Fractional,
			AllowShorts:    cfg.AllowShorts,
			MinNotional:    cfg.MinNotional,
		},
		tracker: NewTracker(cfg.InitialCapital, cfg.MinHoldingPeriod),
	}
}

// Run 按时间顺序推演全部快照，每个日期恰好产出一条 DailyLog。
// 单 symbol、单日的问题吸收进当日日志；只有结构性故障
//（某日所有 symbol 都无价格）会中止整个回测。
func (e *Engine) Run(ctx context.Context, snapshots []market.Snapshot) ([]types.DailyLog, error) {
	if len(snapshots) == 0 {
		return nil, fmt.Errorf("回测区间内没有任何快照")
	}
	lookback := e.feats.Warmup
	// VolLookback 个收益率需要 VolLookback+1 行价格
	if v := e.cfg.VolLookback + 1; v > lookback {
		lookback = v
	}

	logs := make([]types.DailyLog, 0, len(snapshots))
	prevEquity := e.cfg.InitialCapital
	peakEquity := e.cfg.InitialCapital

	for _, snap := range snapshots {
		select {
		case <-ctx.Done():
			return logs, ctx.Err()
		default:
		}
		if len(snap.Close) == 0 {
			return logs, &types.MissingPriceError{Date: snap.Date.Format(market.DateLayout)}
		}

		e.tracker.MergeSettlements(snap.Date)

		var notes []string
		tctx := e.dayContext(snap)
		result := types.TradeResult{Date: snap.Date}

		// 信号只允许用到昨收：窗口截止到 snap.Date 之前最近的特征行，
		// 由此得到的目标在今日开盘成交。
		window, ok := e.feats.WindowBefore(snap.Date, lookback)
		if !ok {
			notes = append(notes, "insufficient feature history, mark-to-market only")
		} else {
			target, dayNotes := e.pipeline(tctx, window, snapshotSymbols(snap), lookback)
			notes = append(notes, dayNotes...)
			result = e.exec.Execute(tctx, target, e.tracker, snap.Open)
			notes = append(notes, result.Rejected...)
			e.tracker.Update(snap.Date, result.Trades, e.cfg.SettlementDelay)
		}

		e.tracker.MarkPrices(snap.Close)
		equity := e.tracker.Value(snap.Close)
		drawdown := 0.0
		if peakEquity > 0 && equity < peakEquity {
			drawdown = (equity - peakEquity) / peakEquity
		}
		if equity > peakEquity {
			peakEquity = equity
		}

		logs = append(logs, types.DailyLog{
			Date:        snap.Date,
			Cash:        e.tracker.UsableCash(),
			PendingCash: e.tracker.PendingCash(),
			Equity:      equity,
			Positions:   e.tracker.PositionsSnapshot(),
			Trades:      result.Trades,
			PnL:         equity - prevEquity,
			Drawdown:    drawdown,
			Notes:       notes,
		})
		prevEquity = equity
	}
	return logs, nil
}

// pipeline 执行 Alpha → Risk → Cost → Portfolio 四段。
// 历史不足、信号非法都是单 symbol 问题，折进当日 notes，不影响其余 symbol。
func (e *Engine) pipeline(tctx types.Context, window feature.Window, symbols []string, lookback int) (types.PortfolioTarget, []string) {
	var notes []string
	for _, sym := range symbols {
		var short *types.InsufficientHistoryError
		if err := window.CheckHistory(sym, lookback); errors.As(err, &short) {
			notes = append(notes, short.Error())
		}
	}

	signals, err := e.models.Alpha.Predict(tctx, window)
	if err != nil {
		logger.Warnf("[engine] %s alpha 失败: %v", tctx.Date.Format(market.DateLayout), err)
		return types.EmptyTarget(tctx.Capital), append(notes, "alpha failed: "+err.Error())
	}
	cleaned, dropped := signals.Clean()
	signals = cleaned
	for _, err := range dropped {
		var invalid *types.InvalidSignalError
		if errors.As(err, &invalid) {
			notes = append(notes, invalid.Error())
		}
	}

	signals = e.models.Risk.Apply(tctx, signals)
	signals = e.models.Cost.Adjust(tctx, signals, window)
	target := e.models.Portfolio.Construct(tctx, signals, window)
	return target, notes
}

func snapshotSymbols(snap market.Snapshot) []string {
	out := make([]string, 0, len(snap.Close))
	for sym := range snap.Close {
		out = append(out, sym)
	}
	sort.Strings(out)
	return out
}

// dayContext 每天重建一次上下文，只读视图指向 Tracker 本体。
func (e *Engine) dayContext(snap market.Snapshot) types.Context {
	capital := e.tracker.Value(snap.Open)
	if capital < 0 || math.IsNaN(capital) {
		capital = 0
	}
	return types.Context{
		Date:            snap.Date,
		Capital:         capital,
		MaxLeverage:     e.cfg.MaxLeverage,
		MaxPositionSize: e.cfg.MaxPositionSize,
		AllowShorts:     e.cfg.AllowShorts,
		VolLookback:     e.cfg.VolLookback,
		RiskTarget:      e.cfg.RiskTarget,
		MaxWeight:       e.cfg.MaxWeight,
		MinNotional:     e.cfg.MinNotional,
		MinPrice:        e.cfg.MinPrice,
		Portfolio:       e.tracker,
	}
}

// Tracker 暴露给测试使用。
func (e *Engine) Tracker() *Tracker {
	return e.tracker
}
