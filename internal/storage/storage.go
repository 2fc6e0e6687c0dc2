// Package storage persists orders, closed trades, and backtest artifacts to
// Postgres/TimescaleDB so a run's results outlive the process that produced
// them.
package storage

import (
	"context"
	"time"

	"github.com/nitinkhare/quantpipeline/internal/types"
)

// TradeRecord is one closed round-trip position: an entry fill paired with
// its exit fill, with realized P&L. Records are written through SaveTrade and
// CloseTrade; neither the backtester nor the order manager writes them.
type TradeRecord struct {
	ID         int64
	StrategyID string
	SignalID   string
	Symbol     string
	Side       string
	Quantity   int
	EntryPrice float64
	ExitPrice  float64
	StopLoss   float64
	Target     float64
	EntryTime  time.Time
	ExitTime   *time.Time
	ExitReason string
	PnL        float64
	Status     string // "open" | "closed"
	CreatedAt  time.Time
}

// SignalRecord is one strategy-emitted signal, kept for later replay and
// attribution even if it never resulted in an order.
type SignalRecord struct {
	ID         int64
	StrategyID string
	Symbol     string
	Side       string
	Price      float64
	Ts         int64
	CreatedAt  time.Time
}

// OrderRecord is one audited order, with its terminal execution outcome.
type OrderRecord struct {
	ID          int64
	Side        string
	Symbol      string
	Qty         int
	Price       float64
	Ts          int64
	Status      string
	FilledQty   int
	FilledPrice float64
	CreatedAt   time.Time
}

// EquityPoint is one mark-to-market sample on a backtest's equity curve.
type EquityPoint struct {
	RunID     string
	Timestamp time.Time
	Equity    float64
}

// BacktestRunRecord summarizes one completed backtester run.
type BacktestRunRecord struct {
	RunID          string
	Label          string
	Strategy       string
	Symbol         string
	InitialCapital float64
	FinalEquity    float64
	TotalReturn    float64
	SharpeRatio    float64
	MaxDrawdown    float64
	WinRate        float64
	ProfitFactor   float64
	NumTrades      int
	RealizedPnL    float64
	CreatedAt      time.Time
}

// Store defines the persistence interface for the trading system.
type Store interface {
	SaveOrder(ctx context.Context, order types.Order, status string, filledQty int, filledPrice float64) error
	GetOrders(ctx context.Context, symbol string) ([]OrderRecord, error)

	SaveTrade(ctx context.Context, t *TradeRecord) error
	GetOpenTrades(ctx context.Context) ([]TradeRecord, error)
	GetAllClosedTrades(ctx context.Context) ([]TradeRecord, error)
	GetTradesByStrategy(ctx context.Context, strategyID string) ([]TradeRecord, error)
	GetDailyPnL(ctx context.Context, day time.Time) (float64, error)
	CloseTrade(ctx context.Context, id int64, exitPrice float64, exitReason string) error

	SaveSignal(ctx context.Context, s *SignalRecord) error
	GetSignalsBySymbol(ctx context.Context, symbol string) ([]SignalRecord, error)

	SaveEquityPoint(ctx context.Context, point EquityPoint) error
	GetEquityCurve(ctx context.Context, runID string) ([]EquityPoint, error)

	SaveBacktestRun(ctx context.Context, run BacktestRunRecord) error
	GetBacktestRuns(ctx context.Context, label string) ([]BacktestRunRecord, error)

	Ping(ctx context.Context) error
	Close()
}
