package backtest

import (
	"context"
	"fmt"
	"strings"
	"time"

	"blackbox/internal/config"
	"blackbox/internal/feature"
	"blackbox/internal/logger"
	"blackbox/internal/market"
	"blackbox/internal/model"
	"blackbox/internal/types"

	"github.com/google/uuid"
)

// ServiceConfig 汇集 Service 的全部依赖。
type ServiceConfig struct {
	Cfg           *config.Config
	Store         *market.Store
	Source        market.BarSource
	Results       *ResultStore
	Universe      []string
	MaxConcurrent int
}

// Service 负责数据准备与回测任务编排。提交的任务在后台执行，
// 并发数由信号量限制。
type Service struct {
	cfg      *config.Config
	store    *market.Store
	source   market.BarSource
	results  *ResultStore
	universe []string

	sem     chan struct{}
	baseCtx context.Context
}

func NewService(sc ServiceConfig) (*Service, error) {
	if sc.Cfg == nil {
		return nil, fmt.Errorf("config 不能为空")
	}
	if sc.Store == nil {
		return nil, fmt.Errorf("bar store 不能为空")
	}
	if sc.Results == nil {
		return nil, fmt.Errorf("result store 不能为空")
	}
	if len(sc.Universe) == 0 {
		return nil, fmt.Errorf("universe 不能为空")
	}
	maxConcurrent := sc.MaxConcurrent
	if maxConcurrent <= 0 {
		maxConcurrent = 1
	}
	return &Service{
		cfg:      sc.Cfg,
		store:    sc.Store,
		source:   sc.Source,
		results:  sc.Results,
		universe: sc.Universe,
		sem:      make(chan struct{}, maxConcurrent),
		baseCtx:  context.Background(),
	}, nil
}

func (s *Service) SetContext(ctx context.Context) {
	if ctx != nil {
		s.baseCtx = ctx
	}
}

func (s *Service) ctx() context.Context {
	if s.baseCtx != nil {
		return s.baseCtx
	}
	return context.Background()
}

// StartRun 创建回测任务并立即返回，模拟过程在后台进行。
func (s *Service) StartRun(req RunRequest) (Run, error) {
	runCfg, err := s.resolveRunConfig(req)
	if err != nil {
		return Run{}, err
	}
	run := Run{
		ID:             uuid.NewString(),
		Status:         RunStatusPending,
		StartDate:      runCfg.StartDate,
		EndDate:        runCfg.EndDate,
		InitialCapital: runCfg.Backtest.InitialCapital,
		FinalEquity:    runCfg.Backtest.InitialCapital,
		Config:         runCfg,
	}
	if err := s.results.InsertRun(s.ctx(), run); err != nil {
		return Run{}, err
	}
	go s.runLoop(run.ID, runCfg, req.IncludeEquityCurve)
	return run, nil
}

func (s *Service) runLoop(runID string, runCfg RunConfig, includeCurve bool) {
	select {
	case s.sem <- struct{}{}:
	default:
		logger.Warnf("[backtest] run %s 等待可用 worker", runID)
		s.sem <- struct{}{}
	}
	defer func() { <-s.sem }()

	ctx := s.ctx()
	_ = s.results.UpdateRunStatus(ctx, runID, RunStatusRunning, "准备数据…")
	logs, metrics, err := s.execute(ctx, runID, runCfg, includeCurve)
	if err != nil {
		logger.Warnf("[backtest] run %s 失败: %v", runID, err)
		_ = s.results.UpdateRunStatus(ctx, runID, RunStatusFailed, err.Error())
		return
	}
	stats := statsFromMetrics(metrics.Summary, countTrades(logs))
	stats.FinishedAt = time.Now()
	if err := s.results.UpdateRunSummary(ctx, runID, RunStatusDone, stats, "完成"); err != nil {
		logger.Warnf("[backtest] run %s 写入汇总失败: %v", runID, err)
	}
}

// RunOnce 同步执行一次回测，供 CLI 单跑模式使用。
func (s *Service) RunOnce(ctx context.Context, req RunRequest) (Run, []types.DailyLog, types.BacktestMetrics, error) {
	runCfg, err := s.resolveRunConfig(req)
	if err != nil {
		return Run{}, nil, types.BacktestMetrics{}, err
	}
	run := Run{
		ID:             uuid.NewString(),
		Status:         RunStatusRunning,
		StartDate:      runCfg.StartDate,
		EndDate:        runCfg.EndDate,
		InitialCapital: runCfg.Backtest.InitialCapital,
		Config:         runCfg,
	}
	if err := s.results.InsertRun(ctx, run); err != nil {
		return Run{}, nil, types.BacktestMetrics{}, err
	}
	logs, metrics, err := s.execute(ctx, run.ID, runCfg, req.IncludeEquityCurve)
	if err != nil {
		_ = s.results.UpdateRunStatus(ctx, run.ID, RunStatusFailed, err.Error())
		return run, nil, types.BacktestMetrics{}, err
	}
	stats := statsFromMetrics(metrics.Summary, countTrades(logs))
	stats.FinishedAt = time.Now()
	if err := s.results.UpdateRunSummary(ctx, run.ID, RunStatusDone, stats, "完成"); err != nil {
		logger.Warnf("[backtest] run %s 写入汇总失败: %v", run.ID, err)
	}
	run.Status = RunStatusDone
	run.Stats = stats
	run.FinalEquity = stats.FinalEquity
	run.TotalReturn = stats.TotalReturn
	run.MaxDrawdown = stats.MaxDrawdown
	return run, logs, metrics, nil
}

// execute 完成一次回测的全部步骤：备数据、建特征、跑日循环、算指标、落库。
func (s *Service) execute(ctx context.Context, runID string, runCfg RunConfig, includeCurve bool) ([]types.DailyLog, types.BacktestMetrics, error) {
	gens, err := buildGenerators(runCfg.Features)
	if err != nil {
		return nil, types.BacktestMetrics{}, err
	}
	lookback := pipelineWarmup(gens, runCfg.Backtest.VolLookback)

	start, err := time.Parse(market.DateLayout, runCfg.StartDate)
	if err != nil {
		return nil, types.BacktestMetrics{}, fmt.Errorf("start_date 非法: %w", err)
	}
	end, err := time.Parse(market.DateLayout, runCfg.EndDate)
	if err != nil {
		return nil, types.BacktestMetrics{}, fmt.Errorf("end_date 非法: %w", err)
	}
	// 日历天 ≈ 交易日（加密市场无休市），多取一截防节假日市场不适用时亏空。
	warmStart := types.AddDays(start, -(lookback + 7))

	if err := s.EnsureBars(ctx, runCfg.Symbols, warmStart, end); err != nil {
		return nil, types.BacktestMetrics{}, err
	}
	_ = s.results.UpdateRunStatus(ctx, runID, RunStatusRunning, "构建特征矩阵…")

	history, err := s.LoadHistory(ctx, runCfg.Symbols, warmStart, end)
	if err != nil {
		return nil, types.BacktestMetrics{}, err
	}
	feats, err := feature.Build(ctx, history, gens)
	if err != nil {
		return nil, types.BacktestMetrics{}, err
	}

	snapshots := market.BuildSnapshots(history)
	inRange := snapshots[:0]
	for _, snap := range snapshots {
		if snap.Date.Before(start) || snap.Date.After(end) {
			continue
		}
		inRange = append(inRange, snap)
	}
	if len(inRange) == 0 {
		return nil, types.BacktestMetrics{}, fmt.Errorf("区间 [%s, %s] 内没有行情数据", runCfg.StartDate, runCfg.EndDate)
	}

	set, err := model.NewSet(
		model.Spec(runCfg.Models.Alpha),
		model.Spec(runCfg.Models.Risk),
		model.Spec(runCfg.Models.Cost),
		model.Spec(runCfg.Models.Portfolio),
	)
	if err != nil {
		return nil, types.BacktestMetrics{}, err
	}

	_ = s.results.UpdateRunStatus(ctx, runID, RunStatusRunning,
		fmt.Sprintf("模拟 %d 个交易日…", len(inRange)))
	engine := NewEngine(runCfg.Backtest, set, feats)
	logs, err := engine.Run(ctx, inRange)
	if err != nil {
		return nil, types.BacktestMetrics{}, err
	}

	metrics := ComputeMetrics(logs, MetricsConfig{
		RiskFreeRate:       runCfg.Backtest.RiskFreeRate,
		TradingDays:        runCfg.Backtest.TradingDays,
		IncludeEquityCurve: includeCurve,
	})
	if err := s.results.InsertDailyLogs(ctx, runID, logs); err != nil {
		return nil, types.BacktestMetrics{}, err
	}
	return logs, metrics, nil
}

// EnsureBars 保证 store 覆盖 [start, end]，缺口从数据源补齐。
func (s *Service) EnsureBars(ctx context.Context, symbols []string, start, end time.Time) error {
	for _, sym := range symbols {
		if err := s.ensureSymbolBars(ctx, sym, start, end); err != nil {
			return fmt.Errorf("准备 %s 数据失败: %w", sym, err)
		}
	}
	return nil
}

func (s *Service) ensureSymbolBars(ctx context.Context, symbol string, start, end time.Time) error {
	manifest, err := s.store.Manifest(ctx, symbol)
	if err != nil {
		return err
	}
	var fetches [][2]time.Time
	if manifest.Rows == 0 {
		fetches = append(fetches, [2]time.Time{start, end})
	} else {
		have0, err := time.Parse(market.DateLayout, manifest.MinDate)
		if err != nil {
			return err
		}
		have1, err := time.Parse(market.DateLayout, manifest.MaxDate)
		if err != nil {
			return err
		}
		if start.Before(have0) {
			fetches = append(fetches, [2]time.Time{start, types.AddDays(have0, -1)})
		}
		if end.After(have1) {
			fetches = append(fetches, [2]time.Time{types.AddDays(have1, 1), end})
		}
	}
	if len(fetches) == 0 {
		return nil
	}
	if s.source == nil {
		return fmt.Errorf("%s 数据缺失且未配置数据源", symbol)
	}
	for _, span := range fetches {
		bars, err := s.source.FetchDaily(ctx, symbol, span[0], span[1])
		if err != nil {
			return err
		}
		if len(bars) == 0 {
			continue
		}
		n, err := s.store.InsertBars(ctx, symbol, bars)
		if err != nil {
			return err
		}
		logger.Infof("[data] %s 从 %s 补齐 %d 根日线 (%s ~ %s)", symbol, s.source.Name(), n,
			span[0].Format(market.DateLayout), span[1].Format(market.DateLayout))
	}
	missing, err := s.store.MissingDates(ctx, symbol)
	if err != nil {
		return err
	}
	if len(missing) > 0 {
		logger.Warnf("[data] %s 覆盖区间内缺 %d 天，例如 %s", symbol, len(missing), missing[0])
	}
	return nil
}

// LoadHistory 读取全部 symbol 的日线序列。
func (s *Service) LoadHistory(ctx context.Context, symbols []string, start, end time.Time) (map[string][]market.Bar, error) {
	out := make(map[string][]market.Bar, len(symbols))
	for _, sym := range symbols {
		bars, err := s.store.RangeBars(ctx, sym, start, end)
		if err != nil {
			return nil, err
		}
		if len(bars) == 0 {
			logger.Warnf("[data] %s 在区间内没有日线，跳过", sym)
			continue
		}
		out[sym] = bars
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("所有 symbol 都缺少日线数据")
	}
	return out, nil
}

// ManifestInfo 透出单个 symbol 的数据覆盖情况。
func (s *Service) ManifestInfo(ctx context.Context, symbol string) (market.Manifest, error) {
	return s.store.Manifest(ctx, strings.ToUpper(strings.TrimSpace(symbol)))
}

// Universe 返回配置的 symbol 清单副本。
func (s *Service) Universe() []string {
	return append([]string(nil), s.universe...)
}

// resolveRunConfig 用请求覆盖服务配置，生成本次运行的参数快照。
func (s *Service) resolveRunConfig(req RunRequest) (RunConfig, error) {
	symbols := req.Symbols
	if len(symbols) == 0 {
		symbols = s.universe
	}
	normalized := make([]string, 0, len(symbols))
	for _, sym := range symbols {
		sym = strings.ToUpper(strings.TrimSpace(sym))
		if sym != "" {
			normalized = append(normalized, sym)
		}
	}
	if len(normalized) == 0 {
		return RunConfig{}, fmt.Errorf("symbols 不能为空")
	}

	startDate := strings.TrimSpace(req.StartDate)
	if startDate == "" {
		startDate = s.cfg.Data.StartDate
	}
	endDate := strings.TrimSpace(req.EndDate)
	if endDate == "" {
		endDate = s.cfg.Data.EndDate
	}
	start, err := time.Parse(market.DateLayout, startDate)
	if err != nil {
		return RunConfig{}, fmt.Errorf("start_date 必须为 YYYY-MM-DD: %w", err)
	}
	end, err := time.Parse(market.DateLayout, endDate)
	if err != nil {
		return RunConfig{}, fmt.Errorf("end_date 必须为 YYYY-MM-DD: %w", err)
	}
	if end.Before(start) {
		return RunConfig{}, fmt.Errorf("end_date 早于 start_date")
	}

	bt := s.cfg.Backtest
	if req.InitialCapital > 0 {
		bt.InitialCapital = req.InitialCapital
	}
	if req.AllowShorts != nil {
		bt.AllowShorts = *req.AllowShorts
	}
	return RunConfig{
		Symbols:   normalized,
		StartDate: startDate,
		EndDate:   endDate,
		Backtest:  bt,
		Models:    s.cfg.Models,
		Features:  append([]config.FeatureSpec(nil), s.cfg.Features.Generators...),
	}, nil
}

func buildGenerators(specs []config.FeatureSpec) ([]feature.Generator, error) {
	converted := make([]feature.Spec, len(specs))
	for i, spec := range specs {
		converted[i] = feature.Spec(spec)
	}
	return feature.NewPipeline(converted)
}

// pipelineWarmup 取所有生成器预热长度与波动率回看窗口的最大值。
// 波动率要 volLookback 个收益率，对应 volLookback+1 行价格。
func pipelineWarmup(gens []feature.Generator, volLookback int) int {
	warmup := volLookback + 1
	for _, g := range gens {
		if g.Warmup() > warmup {
			warmup = g.Warmup()
		}
	}
	return warmup
}

func countTrades(logs []types.DailyLog) int {
	total := 0
	for _, log := range logs {
		total += len(log.Trades)
	}
	return total
}
