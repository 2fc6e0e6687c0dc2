package main

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/nitinkhare/quantpipeline/internal/storage"
)

// knownStrategies mirrors the strategy aliases accepted by cmd/backtester's
// strategyFactory. Kept in sync by hand since the registry itself only
// knows how to construct a strategy, not describe its tunables to a client.
var knownStrategies = []StrategyInfo{
	{
		ID:          "ma_crossover",
		Name:        "Moving Average Crossover",
		Description: "Buys when a short moving average crosses above a long one, sells on the reverse cross",
		Parameters: []StrategyParameter{
			{Name: "short_window", Type: "int", DisplayName: "Short Window (bars)", Default: 10, Min: 2, Max: 50, Step: 1},
			{Name: "long_window", Type: "int", DisplayName: "Long Window (bars)", Default: 30, Min: 5, Max: 200, Step: 1},
			{Name: "position_size", Type: "int", DisplayName: "Position Size (shares)", Default: 100, Min: 1, Max: 10000, Step: 1},
		},
	},
	{
		ID:          "momentum",
		Name:        "Momentum",
		Description: "Trades in the direction of price momentum over a lookback window",
		Parameters: []StrategyParameter{
			{Name: "window", Type: "int", DisplayName: "Lookback Window (bars)", Default: 20, Min: 2, Max: 200, Step: 1},
			{Name: "threshold", Type: "float", DisplayName: "Momentum Threshold", Default: 0.02, Min: 0.001, Max: 0.2, Step: 0.001},
			{Name: "position_size", Type: "int", DisplayName: "Position Size (shares)", Default: 100, Min: 1, Max: 10000, Step: 1},
		},
	},
	{
		ID:          "zscore",
		Name:        "Z-Score Mean Reversion",
		Description: "Fades price deviations from the rolling mean beyond a z-score threshold",
		Parameters: []StrategyParameter{
			{Name: "window", Type: "int", DisplayName: "Rolling Window (bars)", Default: 20, Min: 2, Max: 200, Step: 1},
			{Name: "threshold", Type: "float", DisplayName: "Z-Score Threshold", Default: 2.0, Min: 0.5, Max: 5.0, Step: 0.1},
			{Name: "position_size", Type: "int", DisplayName: "Position Size (shares)", Default: 100, Min: 1, Max: 10000, Step: 1},
		},
	},
	{
		ID:          "sentiment",
		Name:        "Sentiment",
		Description: "Trades on externally-supplied sentiment scores with a cooldown between signals",
		Parameters: []StrategyParameter{
			{Name: "positive_threshold", Type: "float", DisplayName: "Positive Threshold", Default: 0.6, Min: 0.0, Max: 1.0, Step: 0.05},
			{Name: "negative_threshold", Type: "float", DisplayName: "Negative Threshold", Default: -0.6, Min: -1.0, Max: 0.0, Step: 0.05},
			{Name: "cooldown_bars", Type: "int", DisplayName: "Cooldown (bars)", Default: 5, Min: 0, Max: 100, Step: 1},
			{Name: "position_size", Type: "int", DisplayName: "Position Size (shares)", Default: 100, Min: 1, Max: 10000, Step: 1},
		},
	},
}

// handleBacktestRun handles POST /api/backtest/run - submits a backtest job.
//
// Actually running a sweep belongs to cmd/backtester; this endpoint only
// validates and logs the request and replies PENDING with a fresh run ID.
// Nothing is stored and no backtest is started from here.
func (s *Server) handleBacktestRun(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.respondError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req BacktestRunRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.StrategyID == "" {
		s.respondError(w, http.StatusBadRequest, "strategy_id is required")
		return
	}
	if req.Symbol == "" {
		s.respondError(w, http.StatusBadRequest, "symbol is required")
		return
	}
	if req.Name == "" {
		req.Name = req.StrategyID + " - " + time.Now().Format("2006-01-02 15:04:05")
	}
	if req.DateFrom == "" || req.DateTo == "" {
		s.respondError(w, http.StatusBadRequest, "date_from and date_to are required")
		return
	}

	runID := uuid.NewString()
	s.logger.Printf("backtest run queued: id=%s strategy=%s symbol=%s range=%s..%s",
		runID, req.StrategyID, req.Symbol, req.DateFrom, req.DateTo)

	resp := BacktestRunResponse{
		BacktestRunID: runID,
		Status:        "PENDING",
		Message:       "backtest request accepted but not run; use cmd/backtester to produce results",
		Timestamp:     time.Now(),
	}

	s.respondJSON(w, http.StatusAccepted, resp)
}

// handleBacktestStrategies handles GET /api/backtest/strategies - returns available strategies
func (s *Server) handleBacktestStrategies(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.respondError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	resp := StrategiesResponse{
		Strategies: knownStrategies,
		Timestamp:  time.Now(),
	}

	s.respondJSON(w, http.StatusOK, resp)
}

// handleBacktestRuns handles GET /api/backtest/runs - returns list of backtest runs
func (s *Server) handleBacktestRuns(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.respondError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	label := r.URL.Query().Get("label")

	ctx := r.Context()
	records, err := s.store.GetBacktestRuns(ctx, label)
	if err != nil {
		s.logger.Printf("failed to get backtest runs: %v", err)
		s.respondError(w, http.StatusInternalServerError, "failed to fetch backtest runs")
		return
	}

	runs := make([]BacktestRun, len(records))
	for i, r := range records {
		runs[i] = toBacktestRun(r)
	}

	resp := BacktestListResponse{
		Runs:       runs,
		TotalCount: len(runs),
		Limit:      len(runs),
		Offset:     0,
		Timestamp:  time.Now(),
	}

	s.respondJSON(w, http.StatusOK, resp)
}

// handleBacktestResults handles GET /api/backtest/results/:id - returns full backtest results
func (s *Server) handleBacktestResults(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.respondError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	pathParts := strings.Split(r.URL.Path, "/")
	if len(pathParts) < 5 || pathParts[4] == "" {
		s.respondError(w, http.StatusBadRequest, "backtest run ID is required")
		return
	}
	runID := pathParts[4]

	ctx := r.Context()

	runs, err := s.store.GetBacktestRuns(ctx, "")
	if err != nil {
		s.logger.Printf("failed to get backtest runs: %v", err)
		s.respondError(w, http.StatusInternalServerError, "failed to fetch backtest run")
		return
	}

	var found *storage.BacktestRunRecord
	for i := range runs {
		if runs[i].RunID == runID {
			found = &runs[i]
			break
		}
	}
	if found == nil {
		s.respondError(w, http.StatusNotFound, "backtest run not found")
		return
	}

	trades, err := s.store.GetTradesByStrategy(ctx, found.Strategy)
	if err != nil {
		s.logger.Printf("failed to get trades for backtest run %s: %v", runID, err)
		s.respondError(w, http.StatusInternalServerError, "failed to fetch backtest trades")
		return
	}

	backtestTrades := make([]BacktestTrade, 0, len(trades))
	for _, t := range trades {
		exitTime := t.EntryTime
		if t.ExitTime != nil {
			exitTime = *t.ExitTime
		}
		backtestTrades = append(backtestTrades, BacktestTrade{
			Symbol:     t.Symbol,
			Side:       t.Side,
			Quantity:   t.Quantity,
			EntryPrice: t.EntryPrice,
			ExitPrice:  t.ExitPrice,
			EntryTime:  t.EntryTime,
			ExitTime:   exitTime,
			PnL:        t.PnL,
		})
	}

	curve, err := s.store.GetEquityCurve(ctx, runID)
	if err != nil {
		s.logger.Printf("failed to get equity curve for backtest run %s: %v", runID, err)
		s.respondError(w, http.StatusInternalServerError, "failed to fetch equity curve")
		return
	}

	equityCurve := make([]BacktestEquityCurvePoint, len(curve))
	for i, p := range curve {
		equityCurve[i] = BacktestEquityCurvePoint{Timestamp: p.Timestamp, Equity: p.Equity}
	}

	resp := BacktestDetailResponse{
		BacktestRun: toBacktestRun(*found),
		Results: BacktestResults{
			TotalPnL:     found.RealizedPnL,
			WinRate:      found.WinRate,
			ProfitFactor: found.ProfitFactor,
			SharpeRatio:  found.SharpeRatio,
			MaxDrawdown:  found.MaxDrawdown,
			TotalTrades:  found.NumTrades,
		},
		Trades:      backtestTrades,
		EquityCurve: equityCurve,
		Timestamp:   time.Now(),
	}

	s.respondJSON(w, http.StatusOK, resp)
}

// handleBacktestCompare handles POST /api/backtest/results/compare - compares multiple backtests
func (s *Server) handleBacktestCompare(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.respondError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req struct {
		BacktestRunIDs []string `json:"backtest_run_ids"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if len(req.BacktestRunIDs) == 0 {
		s.respondError(w, http.StatusBadRequest, "backtest_run_ids is required")
		return
	}

	ctx := r.Context()
	runs, err := s.store.GetBacktestRuns(ctx, "")
	if err != nil {
		s.logger.Printf("failed to get backtest runs: %v", err)
		s.respondError(w, http.StatusInternalServerError, "failed to fetch backtest runs")
		return
	}

	wanted := make(map[string]bool, len(req.BacktestRunIDs))
	for _, id := range req.BacktestRunIDs {
		wanted[id] = true
	}

	comparison := make([]BacktestComparisonMetric, 0, len(req.BacktestRunIDs))
	for _, run := range runs {
		if !wanted[run.RunID] {
			continue
		}
		comparison = append(comparison, BacktestComparisonMetric{
			RunID:        run.RunID,
			Label:        run.Label,
			TotalReturn:  run.TotalReturn,
			SharpeRatio:  run.SharpeRatio,
			MaxDrawdown:  run.MaxDrawdown,
			WinRate:      run.WinRate,
			ProfitFactor: run.ProfitFactor,
		})
	}

	bestBy := make(map[string]string)
	if len(comparison) > 0 {
		bestBy["total_return"] = bestRunBy(comparison, func(m BacktestComparisonMetric) float64 { return m.TotalReturn })
		bestBy["sharpe_ratio"] = bestRunBy(comparison, func(m BacktestComparisonMetric) float64 { return m.SharpeRatio })
		bestBy["win_rate"] = bestRunBy(comparison, func(m BacktestComparisonMetric) float64 { return m.WinRate })
		bestBy["max_drawdown"] = bestRunBy(comparison, func(m BacktestComparisonMetric) float64 { return -m.MaxDrawdown })
	}

	resp := BacktestComparisonResponse{
		Comparison: comparison,
		BestBy:     bestBy,
		Timestamp:  time.Now(),
	}

	s.respondJSON(w, http.StatusOK, resp)
}

func bestRunBy(metrics []BacktestComparisonMetric, score func(BacktestComparisonMetric) float64) string {
	best := metrics[0]
	bestScore := score(best)
	for _, m := range metrics[1:] {
		if s := score(m); s > bestScore {
			best, bestScore = m, s
		}
	}
	return best.RunID
}

func toBacktestRun(r storage.BacktestRunRecord) BacktestRun {
	return BacktestRun{
		ID:             r.RunID,
		Label:          r.Label,
		Strategy:       r.Strategy,
		Symbol:         r.Symbol,
		InitialCapital: r.InitialCapital,
		FinalEquity:    r.FinalEquity,
		TotalReturn:    r.TotalReturn,
		SharpeRatio:    r.SharpeRatio,
		MaxDrawdown:    r.MaxDrawdown,
		WinRate:        r.WinRate,
		ProfitFactor:   r.ProfitFactor,
		NumTrades:      r.NumTrades,
		RealizedPnL:    r.RealizedPnL,
		CreatedAt:      r.CreatedAt,
	}
}
