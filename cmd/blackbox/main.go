package main

import (
	"context"
	"flag"
	"io"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"blackbox/internal/backtest"
	bbcfg "blackbox/internal/config"
	"blackbox/internal/logger"
	"blackbox/internal/market"
	"blackbox/internal/report"
)

func main() {
	serve := flag.Bool("serve", false, "启动 HTTP 服务而非单次回测")
	flag.Parse()

	cfgPath := os.Getenv("BLACKBOX_CONFIG")
	if cfgPath == "" {
		cfgPath = "configs/config.yaml"
	}
	cfg, err := bbcfg.Load(cfgPath)
	if err != nil {
		log.Fatalf("读取配置失败: %v", err)
	}
	logFile, err := setupLogOutput(cfg.App.LogPath)
	if err != nil {
		log.Fatalf("初始化日志文件失败: %v", err)
	}
	if logFile != nil {
		defer logFile.Close()
	}
	logger.SetLevel(cfg.App.LogLevel)
	logger.Infof("✓ 配置加载成功（环境=%s，区间=%s~%s）", cfg.App.Env, cfg.Data.StartDate, cfg.Data.EndDate)

	universe, err := bbcfg.LoadUniverse(cfg.Data.UniverseFile)
	if err != nil {
		log.Fatalf("读取 universe 失败: %v", err)
	}
	store, err := market.NewStore(cfg.Data.Dir)
	if err != nil {
		log.Fatalf("初始化行情存储失败: %v", err)
	}
	defer store.Close()
	results, err := backtest.NewResultStore(cfg.Backtest.ResultDB)
	if err != nil {
		log.Fatalf("初始化结果存储失败: %v", err)
	}
	defer results.Close()

	svc, err := backtest.NewService(backtest.ServiceConfig{
		Cfg:           cfg,
		Store:         store,
		Source:        market.NewBinanceSource(cfg.Data.RESTBaseURL),
		Results:       results,
		Universe:      universe,
		MaxConcurrent: 2,
	})
	if err != nil {
		log.Fatalf("初始化回测服务失败: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	svc.SetContext(ctx)

	if *serve {
		server, err := backtest.NewHTTPServer(backtest.HTTPConfig{
			Addr:    cfg.App.HTTPAddr,
			Svc:     svc,
			Results: results,
		})
		if err != nil {
			log.Fatalf("初始化 HTTP 服务失败: %v", err)
		}
		logger.Infof("HTTP 服务监听 %s", cfg.App.HTTPAddr)
		if err := server.Start(ctx); err != nil {
			log.Fatalf("HTTP 服务退出: %v", err)
		}
		return
	}

	run, logs, metrics, err := svc.RunOnce(ctx, backtest.RunRequest{
		IncludeEquityCurve: cfg.Report.EquityCurve,
	})
	if err != nil {
		log.Fatalf("回测失败: %v", err)
	}
	logger.Infof("回测完成 run=%s days=%d final=%.2f return=%.2f%% sharpe=%.2f maxDD=%.2f%%",
		run.ID, run.Stats.Days, run.Stats.FinalEquity, run.Stats.TotalReturn*100,
		run.Stats.Sharpe, run.Stats.MaxDrawdown*100)

	outDir := filepath.Join(cfg.Report.OutputDir, run.ID)
	if err := report.WriteDailyLogsCSV(filepath.Join(outDir, "daily_logs.csv"), logs); err != nil {
		logger.Errorf("导出日志 CSV 失败: %v", err)
	}
	if err := report.WriteTradesCSV(filepath.Join(outDir, "trades.csv"), logs); err != nil {
		logger.Errorf("导出成交 CSV 失败: %v", err)
	}
	if err := report.WriteMetricsCSV(filepath.Join(outDir, "metrics.csv"), metrics); err != nil {
		logger.Errorf("导出指标 CSV 失败: %v", err)
	}
	if cfg.Report.Chart {
		if err := report.WriteEquityChart(filepath.Join(outDir, "equity.html"), "Backtest "+run.ID, logs); err != nil {
			logger.Errorf("绘制权益曲线失败: %v", err)
		}
	}
	logger.Infof("报告已写入 %s", outDir)
}

func setupLogOutput(path string) (*os.File, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return nil, nil
	}
	dir := filepath.Dir(trimmed)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	file, err := os.OpenFile(trimmed, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, err
	}
	mw := io.MultiWriter(os.Stdout, file)
	log.SetOutput(mw)
	logger.SetOutput(mw)
	return file, nil
}
