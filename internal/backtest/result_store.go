package backtest

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"blackbox/internal/market"
	"blackbox/internal/types"

	_ "modernc.org/sqlite"
)

// ResultStore 管理 backtest_runs/trades/daily_logs 表。
type ResultStore struct {
	mu   sync.Mutex
	db   *sql.DB
	path string
}

func NewResultStore(path string) (*ResultStore, error) {
	if path == "" {
		return nil, fmt.Errorf("result store path 不能为空")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	dsn := fmt.Sprintf("file:%s?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&cache=shared", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	if err := ensureResultSchema(db); err != nil {
		db.Close()
		return nil, err
	}
	return &ResultStore{db: db, path: path}, nil
}

func (s *ResultStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

func ensureResultSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS backtest_runs (
			id TEXT PRIMARY KEY,
			status TEXT NOT NULL,
			start_date TEXT NOT NULL,
			end_date TEXT NOT NULL,
			initial_capital REAL NOT NULL,
			final_equity REAL NOT NULL DEFAULT 0,
			total_return REAL NOT NULL DEFAULT 0,
			max_drawdown REAL NOT NULL DEFAULT 0,
			trades INTEGER NOT NULL DEFAULT 0,
			days INTEGER NOT NULL DEFAULT 0,
			config_json TEXT NOT NULL,
			stats_json TEXT,
			message TEXT,
			created_at INTEGER NOT NULL,
			updated_at INTEGER NOT NULL,
			completed_at INTEGER
		);`,
		`CREATE TABLE IF NOT EXISTS backtest_trades (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id TEXT NOT NULL,
			trade_date TEXT NOT NULL,
			symbol TEXT NOT NULL,
			quantity REAL NOT NULL,
			fill_price REAL NOT NULL,
			cost REAL NOT NULL,
			FOREIGN KEY(run_id) REFERENCES backtest_runs(id) ON DELETE CASCADE
		);`,
		`CREATE TABLE IF NOT EXISTS backtest_daily_logs (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id TEXT NOT NULL,
			log_date TEXT NOT NULL,
			cash REAL NOT NULL,
			pending_cash REAL NOT NULL,
			equity REAL NOT NULL,
			pnl REAL NOT NULL,
			drawdown REAL NOT NULL,
			positions_json TEXT,
			notes_json TEXT,
			FOREIGN KEY(run_id) REFERENCES backtest_runs(id) ON DELETE CASCADE
		);`,
		`CREATE INDEX IF NOT EXISTS idx_trades_run ON backtest_trades(run_id, trade_date);`,
		`CREATE INDEX IF NOT EXISTS idx_daily_logs_run ON backtest_daily_logs(run_id, log_date);`,
	}
	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// InsertRun 写入一条 run 记录。
func (s *ResultStore) InsertRun(ctx context.Context, run Run) error {
	cfgJSON, err := json.Marshal(run.Config)
	if err != nil {
		return err
	}
	statsJSON, err := json.Marshal(run.Stats)
	if err != nil {
		return err
	}
	now := time.Now().UnixMilli()
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO backtest_runs
			(id, status, start_date, end_date, initial_capital, final_equity, total_return,
			max_drawdown, trades, days, config_json, stats_json, message, created_at, updated_at, completed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.Status, run.StartDate, run.EndDate, run.InitialCapital, run.FinalEquity,
		run.TotalReturn, run.MaxDrawdown, run.Stats.Trades, run.Stats.Days,
		string(cfgJSON), bytesOrNil(statsJSON), run.Message, now, now, nullableTime(run.CompletedAt))
	return err
}

// UpdateRunStatus 仅更新状态与提示。
func (s *ResultStore) UpdateRunStatus(ctx context.Context, id, status, message string) error {
	now := time.Now().UnixMilli()
	var completed interface{}
	if status == RunStatusDone || status == RunStatusFailed {
		completed = now
	}
	_, err := s.db.ExecContext(ctx, `
		UPDATE backtest_runs
		SET status=?, message=?, updated_at=?, completed_at=CASE WHEN ? IS NULL THEN completed_at ELSE ? END
		WHERE id=?`, status, message, now, completed, completed, id)
	return err
}

// UpdateRunSummary 更新最终状态与指标。
func (s *ResultStore) UpdateRunSummary(ctx context.Context, id, status string, stats RunStats, message string) error {
	statsJSON, err := json.Marshal(stats)
	if err != nil {
		return err
	}
	now := time.Now().UnixMilli()
	var completed interface{}
	if status == RunStatusDone || status == RunStatusFailed {
		completed = now
	}
	_, err = s.db.ExecContext(ctx, `
		UPDATE backtest_runs
		SET status=?, final_equity=?, total_return=?, max_drawdown=?, trades=?, days=?,
		    stats_json=?, message=?, updated_at=?,
		    completed_at=CASE WHEN ? IS NULL THEN completed_at ELSE ? END
		WHERE id=?`,
		status, stats.FinalEquity, stats.TotalReturn, stats.MaxDrawdown, stats.Trades, stats.Days,
		string(statsJSON), message, now, completed, completed, id)
	return err
}

// InsertDailyLogs 事务批量写入全部日志与成交。
func (s *ResultStore) InsertDailyLogs(ctx context.Context, runID string, logs []types.DailyLog) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	logStmt, err := tx.PrepareContext(ctx, `
		INSERT INTO backtest_daily_logs
			(run_id, log_date, cash, pending_cash, equity, pnl, drawdown, positions_json, notes_json)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer logStmt.Close()
	tradeStmt, err := tx.PrepareContext(ctx, `
		INSERT INTO backtest_trades (run_id, trade_date, symbol, quantity, fill_price, cost)
		VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer tradeStmt.Close()

	for _, log := range logs {
		day := log.Date.Format(market.DateLayout)
		positionsJSON, err := json.Marshal(log.Positions)
		if err != nil {
			return err
		}
		notesJSON, err := json.Marshal(log.Notes)
		if err != nil {
			return err
		}
		if _, err := logStmt.ExecContext(ctx, runID, day, log.Cash, log.PendingCash,
			log.Equity, log.PnL, log.Drawdown, string(positionsJSON), string(notesJSON)); err != nil {
			return err
		}
		for _, trade := range log.Trades {
			if _, err := tradeStmt.ExecContext(ctx, runID, day, trade.Symbol,
				trade.Quantity, trade.FillPrice, trade.Cost); err != nil {
				return err
			}
		}
	}
	return tx.Commit()
}

func (s *ResultStore) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, status, start_date, end_date, initial_capital, final_equity, total_return,
		       max_drawdown, trades, days, config_json, stats_json, message, created_at, updated_at, completed_at
		FROM backtest_runs
		ORDER BY created_at DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, run)
	}
	return list, rows.Err()
}

func (s *ResultStore) GetRun(ctx context.Context, id string) (Run, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, status, start_date, end_date, initial_capital, final_equity, total_return,
		       max_drawdown, trades, days, config_json, stats_json, message, created_at, updated_at, completed_at
		FROM backtest_runs WHERE id=?`, id)
	return scanRun(row)
}

// TradeRecord 是持久化后的单笔成交。
type TradeRecord struct {
	ID        int64   `json:"id"`
	RunID     string  `json:"run_id"`
	Date      string  `json:"date"`
	Symbol    string  `json:"symbol"`
	Quantity  float64 `json:"quantity"`
	FillPrice float64 `json:"fill_price"`
	Cost      float64 `json:"cost"`
}

func (s *ResultStore) ListTrades(ctx context.Context, runID string, limit int) ([]TradeRecord, error) {
	if limit <= 0 || limit > 2000 {
		limit = 500
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, trade_date, symbol, quantity, fill_price, cost
		FROM backtest_trades
		WHERE run_id=?
		ORDER BY trade_date ASC, id ASC
		LIMIT ?`, runID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []TradeRecord
	for rows.Next() {
		var rec TradeRecord
		if err := rows.Scan(&rec.ID, &rec.Date, &rec.Symbol, &rec.Quantity, &rec.FillPrice, &rec.Cost); err != nil {
			return nil, err
		}
		rec.RunID = runID
		out = append(out, rec)
	}
	return out, rows.Err()
}

// DailyLogRecord 是持久化后的单日记录。
type DailyLogRecord struct {
	ID          int64                     `json:"id"`
	RunID       string                    `json:"run_id"`
	Date        string                    `json:"date"`
	Cash        float64                   `json:"cash"`
	PendingCash float64                   `json:"pending_cash"`
	Equity      float64                   `json:"equity"`
	PnL         float64                   `json:"pnl"`
	Drawdown    float64                   `json:"drawdown"`
	Positions   map[string]types.Position `json:"positions,omitempty"`
	Notes       []string                  `json:"notes,omitempty"`
}

func (s *ResultStore) ListDailyLogs(ctx context.Context, runID string, limit int) ([]DailyLogRecord, error) {
	if limit <= 0 || limit > 5000 {
		limit = 1000
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, log_date, cash, pending_cash, equity, pnl, drawdown, positions_json, notes_json
		FROM backtest_daily_logs
		WHERE run_id=?
		ORDER BY log_date ASC, id ASC
		LIMIT ?`, runID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []DailyLogRecord
	for rows.Next() {
		var rec DailyLogRecord
		var positionsStr, notesStr sql.NullString
		if err := rows.Scan(&rec.ID, &rec.Date, &rec.Cash, &rec.PendingCash, &rec.Equity,
			&rec.PnL, &rec.Drawdown, &positionsStr, &notesStr); err != nil {
			return nil, err
		}
		rec.RunID = runID
		if positionsStr.Valid && positionsStr.String != "" {
			if err := json.Unmarshal([]byte(positionsStr.String), &rec.Positions); err != nil {
				return nil, err
			}
		}
		if notesStr.Valid && notesStr.String != "" {
			if err := json.Unmarshal([]byte(notesStr.String), &rec.Notes); err != nil {
				return nil, err
			}
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// EquityCurve 返回 run 的 (date, equity) 序列。
func (s *ResultStore) EquityCurve(ctx context.Context, runID string) ([]types.EquityPoint, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT log_date, equity FROM backtest_daily_logs
		WHERE run_id=? ORDER BY log_date ASC`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []types.EquityPoint
	for rows.Next() {
		var day string
		var equity float64
		if err := rows.Scan(&day, &equity); err != nil {
			return nil, err
		}
		date, err := time.Parse(market.DateLayout, day)
		if err != nil {
			return nil, err
		}
		out = append(out, types.EquityPoint{Date: date, Equity: equity})
	}
	return out, rows.Err()
}

func bytesOrNil(b []byte) interface{} {
	if len(b) == 0 {
		return nil
	}
	return string(b)
}

func nullableTime(t time.Time) interface{} {
	if t.IsZero() {
		return nil
	}
	return t.UnixMilli()
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanRun(row scanner) (Run, error) {
	var run Run
	var cfgStr string
	var statsStr sql.NullString
	var trades, days int
	var createdAt, updatedAt int64
	var completedAt sql.NullInt64
	if err := row.Scan(&run.ID, &run.Status, &run.StartDate, &run.EndDate, &run.InitialCapital,
		&run.FinalEquity, &run.TotalReturn, &run.MaxDrawdown, &trades, &days,
		&cfgStr, &statsStr, &run.Message, &createdAt, &updatedAt, &completedAt); err != nil {
		return Run{}, err
	}
	run.CreatedAt = timeFromMillis(createdAt)
	run.UpdatedAt = timeFromMillis(updatedAt)
	if completedAt.Valid {
		run.CompletedAt = timeFromMillis(completedAt.Int64)
	}
	if err := json.Unmarshal([]byte(cfgStr), &run.Config); err != nil {
		return Run{}, err
	}
	if statsStr.Valid && statsStr.String != "" {
		if err := json.Unmarshal([]byte(statsStr.String), &run.Stats); err != nil {
			return Run{}, err
		}
	} else {
		run.Stats = RunStats{
			FinalEquity: run.FinalEquity,
			TotalReturn: run.TotalReturn,
			MaxDrawdown: run.MaxDrawdown,
			Trades:      trades,
			Days:        days,
		}
	}
	return run, nil
}

func timeFromMillis(ms int64) time.Time {
	if ms <= 0 {
		return time.Time{}
	}
	return time.Unix(0, ms*int64(time.Millisecond))
}
