// Package storage - postgres.go provides the Postgres/TimescaleDB implementation.
package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/nitinkhare/quantpipeline/internal/types"
)

// PostgresStore implements Store using a pgx connection pool.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore opens a pool against connStr and ensures the schema this
// package owns exists. connStr follows the standard postgres:// DSN format.
func NewPostgresStore(connStr string) (*PostgresStore, error) {
	if connStr == "" {
		return nil, fmt.Errorf("postgres store: connection string is required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, connStr)
	if err != nil {
		return nil, fmt.Errorf("postgres store: open pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres store: ping: %w", err)
	}

	ps := &PostgresStore{pool: pool}
	if err := ps.ensureSchema(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres store: ensure schema: %w", err)
	}
	return ps, nil
}

func (ps *PostgresStore) ensureSchema(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS orders (
			id BIGSERIAL PRIMARY KEY,
			side TEXT NOT NULL,
			symbol TEXT NOT NULL,
			qty INTEGER NOT NULL,
			price DOUBLE PRECISION NOT NULL,
			ts BIGINT NOT NULL,
			status TEXT NOT NULL,
			filled_qty INTEGER NOT NULL,
			filled_price DOUBLE PRECISION NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE TABLE IF NOT EXISTS trades (
			id BIGSERIAL PRIMARY KEY,
			strategy_id TEXT NOT NULL,
			signal_id TEXT,
			symbol TEXT NOT NULL,
			side TEXT NOT NULL,
			quantity INTEGER NOT NULL,
			entry_price DOUBLE PRECISION NOT NULL,
			exit_price DOUBLE PRECISION NOT NULL DEFAULT 0,
			stop_loss DOUBLE PRECISION NOT NULL DEFAULT 0,
			target DOUBLE PRECISION NOT NULL DEFAULT 0,
			entry_time TIMESTAMPTZ NOT NULL,
			exit_time TIMESTAMPTZ,
			exit_reason TEXT,
			pnl DOUBLE PRECISION NOT NULL DEFAULT 0,
			status TEXT NOT NULL DEFAULT 'open',
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE TABLE IF NOT EXISTS signals (
			id BIGSERIAL PRIMARY KEY,
			strategy_id TEXT NOT NULL,
			symbol TEXT NOT NULL,
			side TEXT NOT NULL,
			price DOUBLE PRECISION NOT NULL,
			ts BIGINT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE TABLE IF NOT EXISTS equity_points (
			run_id TEXT NOT NULL,
			ts TIMESTAMPTZ NOT NULL,
			equity DOUBLE PRECISION NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS backtest_runs (
			run_id TEXT PRIMARY KEY,
			label TEXT NOT NULL,
			strategy TEXT NOT NULL,
			symbol TEXT NOT NULL,
			initial_capital DOUBLE PRECISION NOT NULL,
			final_equity DOUBLE PRECISION NOT NULL,
			total_return DOUBLE PRECISION NOT NULL,
			sharpe_ratio DOUBLE PRECISION NOT NULL,
			max_drawdown DOUBLE PRECISION NOT NULL,
			win_rate DOUBLE PRECISION NOT NULL,
			profit_factor DOUBLE PRECISION NOT NULL,
			num_trades INTEGER NOT NULL,
			realized_pnl DOUBLE PRECISION NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
	}
	for _, stmt := range stmts {
		if _, err := ps.pool.Exec(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

// Close releases the underlying connection pool.
func (ps *PostgresStore) Close() {
	ps.pool.Close()
}

func (ps *PostgresStore) SaveOrder(ctx context.Context, order types.Order, status string, filledQty int, filledPrice float64) error {
	_, err := ps.pool.Exec(ctx, `
		INSERT INTO orders (side, symbol, qty, price, ts, status, filled_qty, filled_price)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		string(order.Side), order.Symbol, order.Qty, order.Price, order.Ts, status, filledQty, filledPrice)
	if err != nil {
		return fmt.Errorf("postgres store: save order: %w", err)
	}
	return nil
}

func (ps *PostgresStore) GetOrders(ctx context.Context, symbol string) ([]OrderRecord, error) {
	rows, err := ps.pool.Query(ctx, `
		SELECT id, side, symbol, qty, price, ts, status, filled_qty, filled_price, created_at
		FROM orders WHERE symbol = $1 ORDER BY id`, symbol)
	if err != nil {
		return nil, fmt.Errorf("postgres store: get orders: %w", err)
	}
	defer rows.Close()

	var out []OrderRecord
	for rows.Next() {
		var r OrderRecord
		if err := rows.Scan(&r.ID, &r.Side, &r.Symbol, &r.Qty, &r.Price, &r.Ts, &r.Status, &r.FilledQty, &r.FilledPrice, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("postgres store: scan order: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (ps *PostgresStore) SaveTrade(ctx context.Context, t *TradeRecord) error {
	err := ps.pool.QueryRow(ctx, `
		INSERT INTO trades (strategy_id, signal_id, symbol, side, quantity, entry_price, exit_price,
			stop_loss, target, entry_time, exit_time, exit_reason, pnl, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		RETURNING id`,
		t.StrategyID, t.SignalID, t.Symbol, t.Side, t.Quantity, t.EntryPrice, t.ExitPrice,
		t.StopLoss, t.Target, t.EntryTime, t.ExitTime, t.ExitReason, t.PnL, t.Status,
	).Scan(&t.ID)
	if err != nil {
		return fmt.Errorf("postgres store: save trade: %w", err)
	}
	return nil
}

func (ps *PostgresStore) GetOpenTrades(ctx context.Context) ([]TradeRecord, error) {
	return ps.queryTrades(ctx, `WHERE status = 'open' ORDER BY entry_time`)
}

func (ps *PostgresStore) GetAllClosedTrades(ctx context.Context) ([]TradeRecord, error) {
	return ps.queryTrades(ctx, `WHERE status = 'closed' ORDER BY exit_time`)
}

func (ps *PostgresStore) GetTradesByStrategy(ctx context.Context, strategyID string) ([]TradeRecord, error) {
	return ps.queryTrades(ctx, `WHERE strategy_id = $1 ORDER BY entry_time`, strategyID)
}

func (ps *PostgresStore) GetDailyPnL(ctx context.Context, day time.Time) (float64, error) {
	var pnl float64
	err := ps.pool.QueryRow(ctx, `
		SELECT COALESCE(SUM(pnl), 0) FROM trades
		WHERE status = 'closed' AND DATE(exit_time AT TIME ZONE 'America/New_York') = $1`,
		day.Format("2006-01-02"),
	).Scan(&pnl)
	if err != nil {
		return 0, fmt.Errorf("postgres store: get daily pnl: %w", err)
	}
	return pnl, nil
}

func (ps *PostgresStore) queryTrades(ctx context.Context, whereClause string, args ...interface{}) ([]TradeRecord, error) {
	rows, err := ps.pool.Query(ctx, `
		SELECT id, strategy_id, signal_id, symbol, side, quantity, entry_price, exit_price,
			stop_loss, target, entry_time, exit_time, exit_reason, pnl, status, created_at
		FROM trades `+whereClause, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres store: query trades: %w", err)
	}
	defer rows.Close()

	var out []TradeRecord
	for rows.Next() {
		var t TradeRecord
		if err := rows.Scan(&t.ID, &t.StrategyID, &t.SignalID, &t.Symbol, &t.Side, &t.Quantity,
			&t.EntryPrice, &t.ExitPrice, &t.StopLoss, &t.Target, &t.EntryTime, &t.ExitTime,
			&t.ExitReason, &t.PnL, &t.Status, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("postgres store: scan trade: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (ps *PostgresStore) CloseTrade(ctx context.Context, id int64, exitPrice float64, exitReason string) error {
	tag, err := ps.pool.Exec(ctx, `
		UPDATE trades SET exit_price = $1, exit_reason = $2, exit_time = now(), status = 'closed'
		WHERE id = $3 AND status = 'open'`, exitPrice, exitReason, id)
	if err != nil {
		return fmt.Errorf("postgres store: close trade: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("postgres store: close trade: no open trade with id %d", id)
	}
	return nil
}

func (ps *PostgresStore) SaveSignal(ctx context.Context, s *SignalRecord) error {
	err := ps.pool.QueryRow(ctx, `
		INSERT INTO signals (strategy_id, symbol, side, price, ts)
		VALUES ($1, $2, $3, $4, $5) RETURNING id`,
		s.StrategyID, s.Symbol, s.Side, s.Price, s.Ts,
	).Scan(&s.ID)
	if err != nil {
		return fmt.Errorf("postgres store: save signal: %w", err)
	}
	return nil
}

func (ps *PostgresStore) GetSignalsBySymbol(ctx context.Context, symbol string) ([]SignalRecord, error) {
	rows, err := ps.pool.Query(ctx, `
		SELECT id, strategy_id, symbol, side, price, ts, created_at
		FROM signals WHERE symbol = $1 ORDER BY ts`, symbol)
	if err != nil {
		return nil, fmt.Errorf("postgres store: get signals: %w", err)
	}
	defer rows.Close()

	var out []SignalRecord
	for rows.Next() {
		var s SignalRecord
		if err := rows.Scan(&s.ID, &s.StrategyID, &s.Symbol, &s.Side, &s.Price, &s.Ts, &s.CreatedAt); err != nil {
			return nil, fmt.Errorf("postgres store: scan signal: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (ps *PostgresStore) SaveEquityPoint(ctx context.Context, point EquityPoint) error {
	_, err := ps.pool.Exec(ctx, `
		INSERT INTO equity_points (run_id, ts, equity) VALUES ($1, $2, $3)`,
		point.RunID, point.Timestamp, point.Equity)
	if err != nil {
		return fmt.Errorf("postgres store: save equity point: %w", err)
	}
	return nil
}

func (ps *PostgresStore) GetEquityCurve(ctx context.Context, runID string) ([]EquityPoint, error) {
	rows, err := ps.pool.Query(ctx, `
		SELECT run_id, ts, equity FROM equity_points WHERE run_id = $1 ORDER BY ts`, runID)
	if err != nil {
		return nil, fmt.Errorf("postgres store: get equity curve: %w", err)
	}
	defer rows.Close()

	var out []EquityPoint
	for rows.Next() {
		var p EquityPoint
		if err := rows.Scan(&p.RunID, &p.Timestamp, &p.Equity); err != nil {
			return nil, fmt.Errorf("postgres store: scan equity point: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (ps *PostgresStore) SaveBacktestRun(ctx context.Context, run BacktestRunRecord) error {
	_, err := ps.pool.Exec(ctx, `
		INSERT INTO backtest_runs (run_id, label, strategy, symbol, initial_capital, final_equity,
			total_return, sharpe_ratio, max_drawdown, win_rate, profit_factor, num_trades, realized_pnl)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (run_id) DO UPDATE SET
			final_equity = EXCLUDED.final_equity,
			total_return = EXCLUDED.total_return,
			sharpe_ratio = EXCLUDED.sharpe_ratio,
			max_drawdown = EXCLUDED.max_drawdown,
			win_rate = EXCLUDED.win_rate,
			profit_factor = EXCLUDED.profit_factor,
			num_trades = EXCLUDED.num_trades,
			realized_pnl = EXCLUDED.realized_pnl`,
		run.RunID, run.Label, run.Strategy, run.Symbol, run.InitialCapital, run.FinalEquity,
		run.TotalReturn, run.SharpeRatio, run.MaxDrawdown, run.WinRate, run.ProfitFactor,
		run.NumTrades, run.RealizedPnL)
	if err != nil {
		return fmt.Errorf("postgres store: save backtest run: %w", err)
	}
	return nil
}

func (ps *PostgresStore) GetBacktestRuns(ctx context.Context, label string) ([]BacktestRunRecord, error) {
	rows, err := ps.pool.Query(ctx, `
		SELECT run_id, label, strategy, symbol, initial_capital, final_equity, total_return,
			sharpe_ratio, max_drawdown, win_rate, profit_factor, num_trades, realized_pnl, created_at
		FROM backtest_runs WHERE label = $1 ORDER BY created_at`, label)
	if err != nil {
		return nil, fmt.Errorf("postgres store: get backtest runs: %w", err)
	}
	defer rows.Close()

	var out []BacktestRunRecord
	for rows.Next() {
		var r BacktestRunRecord
		if err := rows.Scan(&r.RunID, &r.Label, &r.Strategy, &r.Symbol, &r.InitialCapital, &r.FinalEquity,
			&r.TotalReturn, &r.SharpeRatio, &r.MaxDrawdown, &r.WinRate, &r.ProfitFactor, &r.NumTrades,
			&r.RealizedPnL, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("postgres store: scan backtest run: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (ps *PostgresStore) Ping(ctx context.Context) error {
	return ps.pool.Ping(ctx)
}
