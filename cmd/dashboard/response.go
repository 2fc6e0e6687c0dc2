package main

import "time"

// MetricsResponse contains overall performance metrics
type MetricsResponse struct {
	TotalPnL        float64   `json:"total_pnl"`
	TotalPnLPercent float64   `json:"total_pnl_percent"`
	WinRate         float64   `json:"win_rate"`
	ProfitFactor    float64   `json:"profit_factor"`
	Drawdown        float64   `json:"drawdown"`
	DrawdownPercent float64   `json:"drawdown_percent"`
	SharpeRatio     float64   `json:"sharpe_ratio"`
	TotalTrades     int       `json:"total_trades"`
	WinningTrades   int       `json:"winning_trades"`
	LosingTrades    int       `json:"losing_trades"`
	AvgPnL          float64   `json:"avg_pnl"`
	GrossProfit     float64   `json:"gross_profit"`
	GrossLoss       float64   `json:"gross_loss"`
	AvgHoldDays     float64   `json:"avg_hold_days"`
	InitialCapital  float64   `json:"initial_capital"`
	FinalCapital    float64   `json:"final_capital"`
	Timestamp       time.Time `json:"timestamp"`
}

// PositionResponse represents a single open position
type PositionResponse struct {
	ID                   int64     `json:"id"`
	Symbol               string    `json:"symbol"`
	Quantity             int       `json:"quantity"`
	EntryPrice           float64   `json:"entry_price"`
	EntryTime            time.Time `json:"entry_time"`
	StopLoss             float64   `json:"stop_loss"`
	Target               float64   `json:"target"`
	StrategyID           string    `json:"strategy_id"`
	UnrealizedPnL        float64   `json:"unrealized_pnl"`
	UnrealizedPnLPercent float64   `json:"unrealized_pnl_percent"`
}

// PositionsResponse contains all open positions
type PositionsResponse struct {
	Positions                 []PositionResponse `json:"positions"`
	TotalCapitalUsed          float64             `json:"total_capital_used"`
	AvailableCapital          float64             `json:"available_capital"`
	CapitalUtilizationPercent float64             `json:"capital_utilization_percent"`
	OpenPositionCount         int                 `json:"open_position_count"`
	Timestamp                 time.Time           `json:"timestamp"`
}

// EquityCurvePoint represents a single point in the equity curve
type EquityCurvePoint struct {
	Date            time.Time `json:"date"`
	Equity          float64   `json:"equity"`
	Drawdown        float64   `json:"drawdown"`
	DrawdownPercent float64   `json:"drawdown_percent"`
}

// EquityCurveResponse contains the equity curve data for charting
type EquityCurveResponse struct {
	Points             []EquityCurvePoint `json:"points"`
	StartEquity        float64            `json:"start_equity"`
	FinalEquity        float64            `json:"final_equity"`
	MaxDrawdown        float64            `json:"max_drawdown"`
	MaxDrawdownPercent float64            `json:"max_drawdown_percent"`
	TotalReturn        float64            `json:"total_return"`
	TotalReturnPercent float64            `json:"total_return_percent"`
	Timestamp          time.Time          `json:"timestamp"`
}

// StatusResponse contains system status information
type StatusResponse struct {
	IsRunning        bool      `json:"is_running"`
	OpenPositions    int       `json:"open_positions"`
	AvailableCapital float64   `json:"available_capital"`
	TotalCapital     float64   `json:"total_capital"`
	DailyPnL         float64   `json:"daily_pnl"`
	Message          string    `json:"message"`
	Timestamp        time.Time `json:"timestamp"`
}

// ErrorResponse is returned when an error occurs
type ErrorResponse struct {
	Error     string    `json:"error"`
	Message   string    `json:"message"`
	Code      int       `json:"code"`
	Timestamp time.Time `json:"timestamp"`
}

// StrategyParameter describes one tunable parameter of a registered strategy.
type StrategyParameter struct {
	Name        string      `json:"name"`
	Type        string      `json:"type"` // "float" | "int"
	DisplayName string      `json:"display_name"`
	Default     interface{} `json:"default"`
	Min         float64     `json:"min"`
	Max         float64     `json:"max"`
	Step        float64     `json:"step"`
}

// StrategyInfo describes one strategy registered with the backtester.
type StrategyInfo struct {
	ID          string              `json:"id"`
	Name        string              `json:"name"`
	Description string              `json:"description"`
	Parameters  []StrategyParameter `json:"parameters"`
}

// StrategiesResponse lists available strategies.
type StrategiesResponse struct {
	Strategies []StrategyInfo `json:"strategies"`
	Timestamp  time.Time      `json:"timestamp"`
}

// BacktestRunRequest submits a new backtest job.
type BacktestRunRequest struct {
	StrategyID string                 `json:"strategy_id"`
	Symbol     string                 `json:"symbol"`
	Name       string                 `json:"name"`
	DateFrom   string                 `json:"date_from"`
	DateTo     string                 `json:"date_to"`
	Capital    float64                `json:"capital"`
	Parameters map[string]interface{} `json:"parameters"`
}

// BacktestRunResponse acknowledges a queued backtest job.
type BacktestRunResponse struct {
	BacktestRunID string    `json:"backtest_run_id"`
	Status        string    `json:"status"`
	Message       string    `json:"message"`
	Timestamp     time.Time `json:"timestamp"`
}

// BacktestRun summarizes one completed backtest run, mirroring storage.BacktestRunRecord.
type BacktestRun struct {
	ID             string    `json:"id"`
	Label          string    `json:"label"`
	Strategy       string    `json:"strategy"`
	Symbol         string    `json:"symbol"`
	InitialCapital float64   `json:"initial_capital"`
	FinalEquity    float64   `json:"final_equity"`
	TotalReturn    float64   `json:"total_return"`
	SharpeRatio    float64   `json:"sharpe_ratio"`
	MaxDrawdown    float64   `json:"max_drawdown"`
	WinRate        float64   `json:"win_rate"`
	ProfitFactor   float64   `json:"profit_factor"`
	NumTrades      int       `json:"num_trades"`
	RealizedPnL    float64   `json:"realized_pnl"`
	CreatedAt      time.Time `json:"created_at"`
}

// BacktestListResponse is a paginated list of backtest runs.
type BacktestListResponse struct {
	Runs       []BacktestRun `json:"runs"`
	TotalCount int           `json:"total_count"`
	Limit      int           `json:"limit"`
	Offset     int           `json:"offset"`
	Timestamp  time.Time     `json:"timestamp"`
}

// BacktestResults holds the summary metrics for one backtest run.
type BacktestResults struct {
	TotalPnL     float64 `json:"total_pnl"`
	WinRate      float64 `json:"win_rate"`
	ProfitFactor float64 `json:"profit_factor"`
	SharpeRatio  float64 `json:"sharpe_ratio"`
	MaxDrawdown  float64 `json:"max_drawdown"`
	TotalTrades  int     `json:"total_trades"`
}

// BacktestTrade is one closed trade produced by a backtest run.
type BacktestTrade struct {
	Symbol     string    `json:"symbol"`
	Side       string    `json:"side"`
	Quantity   int       `json:"quantity"`
	EntryPrice float64   `json:"entry_price"`
	ExitPrice  float64   `json:"exit_price"`
	EntryTime  time.Time `json:"entry_time"`
	ExitTime   time.Time `json:"exit_time"`
	PnL        float64   `json:"pnl"`
}

// BacktestEquityCurvePoint is one point on a backtest run's equity curve.
type BacktestEquityCurvePoint struct {
	Timestamp time.Time `json:"timestamp"`
	Equity    float64   `json:"equity"`
}

// BacktestDetailResponse returns the full detail for one backtest run.
type BacktestDetailResponse struct {
	BacktestRun BacktestRun                `json:"backtest_run"`
	Results     BacktestResults            `json:"results"`
	Trades      []BacktestTrade            `json:"trades"`
	EquityCurve []BacktestEquityCurvePoint `json:"equity_curve"`
	Timestamp   time.Time                  `json:"timestamp"`
}

// BacktestComparisonMetric compares one metric across several backtest runs.
type BacktestComparisonMetric struct {
	RunID        string  `json:"run_id"`
	Label        string  `json:"label"`
	TotalReturn  float64 `json:"total_return"`
	SharpeRatio  float64 `json:"sharpe_ratio"`
	MaxDrawdown  float64 `json:"max_drawdown"`
	WinRate      float64 `json:"win_rate"`
	ProfitFactor float64 `json:"profit_factor"`
}

// BacktestComparisonResponse compares several backtest runs side by side.
type BacktestComparisonResponse struct {
	Comparison []BacktestComparisonMetric `json:"comparison"`
	BestBy     map[string]string          `json:"best_by"` // metric -> winning run_id
	Timestamp  time.Time                  `json:"timestamp"`
}
