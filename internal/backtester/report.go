package backtester

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

// metricsDoc is the JSON shape written to <label>_metrics.json.
type metricsDoc struct {
	Label        string  `json:"label"`
	TotalReturn  float64 `json:"total_return"`
	SharpeRatio  float64 `json:"sharpe_ratio"`
	MaxDrawdown  float64 `json:"max_drawdown"`
	WinRate      float64 `json:"win_rate"`
	ProfitFactor float64 `json:"profit_factor"`
	NumTrades    int     `json:"num_trades"`
	RealizedPnL  float64 `json:"realized_pnl"`
	FinalEquity  float64 `json:"final_equity"`
}

// PlotHook lets a caller compose a plotting package into the reporting
// pipeline without the backtester depending on one directly; spec.md §1
// excludes plotting from this module's scope.
type PlotHook func(result *Result) error

// WriteArtifacts writes <label>_metrics.json, <label>_trade_log.csv, and
// <label>_completed_trades.csv under dir, per spec.md §6. If plotHook is
// non-nil and skipPlots is false, it is invoked after the CSV/JSON
// artifacts are on disk.
func WriteArtifacts(dir string, result *Result, skipPlots bool, plotHook PlotHook) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("backtester: create output dir: %w", err)
	}

	if err := writeMetrics(dir, result); err != nil {
		return err
	}
	if err := writeTradeLog(dir, result); err != nil {
		return err
	}
	if err := writeCompletedTrades(dir, result); err != nil {
		return err
	}

	if !skipPlots && plotHook != nil {
		if err := plotHook(result); err != nil {
			return fmt.Errorf("backtester: plot hook: %w", err)
		}
	}
	return nil
}

func writeMetrics(dir string, result *Result) error {
	doc := metricsDoc{
		Label:        result.Label,
		TotalReturn:  result.Metrics.TotalReturn,
		SharpeRatio:  result.Metrics.SharpeRatio,
		MaxDrawdown:  result.Metrics.MaxDrawdown,
		WinRate:      result.Metrics.WinRate,
		ProfitFactor: result.Metrics.ProfitFactor,
		NumTrades:    result.Metrics.NumTrades,
		RealizedPnL:  result.Metrics.RealizedPnL,
		FinalEquity:  result.FinalEquity,
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("backtester: marshal metrics: %w", err)
	}
	path := filepath.Join(dir, result.Label+"_metrics.json")
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("backtester: write metrics: %w", err)
	}
	return nil
}

func writeTradeLog(dir string, result *Result) error {
	path := filepath.Join(dir, result.Label+"_trade_log.csv")
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("backtester: create trade log: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	defer w.Flush()

	if err := w.Write([]string{"timestamp", "signal", "symbol", "status", "qty", "price", "reason", "order_id"}); err != nil {
		return err
	}
	for _, e := range result.TradeLog {
		row := []string{
			e.Timestamp.Format(time.RFC3339),
			e.Signal,
			e.Symbol,
			e.Status,
			strconv.Itoa(e.Qty),
			strconv.FormatFloat(e.Price, 'f', -1, 64),
			e.Reason,
			strconv.FormatInt(e.OrderID, 10),
		}
		if err := w.Write(row); err != nil {
			return fmt.Errorf("backtester: write trade log row: %w", err)
		}
	}
	return nil
}

func writeCompletedTrades(dir string, result *Result) error {
	path := filepath.Join(dir, result.Label+"_completed_trades.csv")
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("backtester: create completed trades: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	defer w.Flush()

	if err := w.Write([]string{"entry_time", "exit_time", "qty", "entry_price", "exit_price", "pnl"}); err != nil {
		return err
	}
	for _, t := range result.CompletedTrades {
		row := []string{
			t.EntryTime.Format(time.RFC3339),
			t.ExitTime.Format(time.RFC3339),
			strconv.Itoa(t.Qty),
			strconv.FormatFloat(t.EntryPrice, 'f', -1, 64),
			strconv.FormatFloat(t.ExitPrice, 'f', -1, 64),
			strconv.FormatFloat(t.PnL, 'f', -1, 64),
		}
		if err := w.Write(row); err != nil {
			return fmt.Errorf("backtester: write completed trade row: %w", err)
		}
	}
	return nil
}

// sweepDoc is the JSON shape written for parameter_sweep.json.
type sweepDoc struct {
	Name    string     `json:"name"`
	Metrics metricsDoc `json:"metrics"`
}

// WriteSweepReport writes parameter_sweep.json under dir, one entry per
// sweep result, already sorted by the caller (Sweep sorts by realized P&L).
func WriteSweepReport(dir string, results []SweepResult) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("backtester: create output dir: %w", err)
	}

	docs := make([]sweepDoc, 0, len(results))
	for _, r := range results {
		docs = append(docs, sweepDoc{
			Name: r.Name,
			Metrics: metricsDoc{
				Label:        r.Result.Label,
				TotalReturn:  r.Result.Metrics.TotalReturn,
				SharpeRatio:  r.Result.Metrics.SharpeRatio,
				MaxDrawdown:  r.Result.Metrics.MaxDrawdown,
				WinRate:      r.Result.Metrics.WinRate,
				ProfitFactor: r.Result.Metrics.ProfitFactor,
				NumTrades:    r.Result.Metrics.NumTrades,
				RealizedPnL:  r.Result.Metrics.RealizedPnL,
				FinalEquity:  r.Result.FinalEquity,
			},
		})
	}

	data, err := json.MarshalIndent(docs, "", "  ")
	if err != nil {
		return fmt.Errorf("backtester: marshal sweep report: %w", err)
	}
	path := filepath.Join(dir, "parameter_sweep.json")
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("backtester: write sweep report: %w", err)
	}
	return nil
}
