package backtester

import (
	"context"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/nitinkhare/quantpipeline/internal/config"
	"github.com/nitinkhare/quantpipeline/internal/strategy"
)

func writeMarketDataCSV(t *testing.T, rows [][]string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "market_data.csv")

	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create csv: %v", err)
	}
	defer f.Close()

	f.WriteString("Datetime,Open,High,Low,Close,Volume,Symbol\n")
	for _, r := range rows {
		f.WriteString(r[0] + "," + r[1] + "," + r[1] + "," + r[1] + "," + r[1] + "," + r[2] + "," + r[3] + "\n")
	}
	return path
}

func permissiveRiskConfig() config.RiskConfig {
	return config.RiskConfig{
		MaxOrderSize: 1000,
		MaxPosition:  1000,
		Cash:         100000,
		MaxTotalBuy:  1_000_000,
		MaxTotalSell: 1_000_000,
	}
}

// a synthetic dip-uptrend-downtrend series long enough to seed a 3/5 MA
// crossover (short below long) and produce at least one buy and one sell signal.
func trendReversalRows() [][]string {
	base := time.Date(2026, 1, 1, 9, 30, 0, 0, time.UTC)
	prices := []float64{104, 103, 102, 101, 100, 101, 102, 103, 104, 105, 106, 104, 101, 98, 95, 92, 90}
	rows := make([][]string, 0, len(prices))
	for i, p := range prices {
		ts := base.Add(time.Duration(i) * time.Minute).Format("2006-01-02T15:04:05Z07:00")
		rows = append(rows, []string{ts, strconv.FormatFloat(p, 'f', -1, 64), "1000", "AAPL"})
	}
	return rows
}

func TestRun_EmptyDataReturnsZeroedMetrics(t *testing.T) {
	path := writeMarketDataCSV(t, nil)
	s := strategy.NewMACrossover("AAPL", 3, 5, 10)

	result, err := Run(context.Background(), RunConfig{
		Label:          "empty",
		Strategy:       s,
		DataPath:       path,
		Symbol:         "AAPL",
		InitialCapital: 100000,
		Risk:           permissiveRiskConfig(),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.EquityCurve) != 0 {
		t.Errorf("expected no equity points for empty data, got %d", len(result.EquityCurve))
	}
	if result.Metrics.NumTrades != 0 {
		t.Errorf("expected zero trades, got %d", result.Metrics.NumTrades)
	}
	if result.Metrics.TotalReturn != 0 {
		t.Errorf("expected zero total return, got %v", result.Metrics.TotalReturn)
	}
}

func TestRun_TrendReversalProducesCompletedTrade(t *testing.T) {
	path := writeMarketDataCSV(t, trendReversalRows())
	s := strategy.NewMACrossover("AAPL", 3, 5, 10)

	result, err := Run(context.Background(), RunConfig{
		Label:          "ma_test",
		Strategy:       s,
		DataPath:       path,
		Symbol:         "AAPL",
		InitialCapital: 100000,
		Risk:           permissiveRiskConfig(),
		Seed:           42,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.EquityCurve) == 0 {
		t.Fatal("expected equity curve points for non-empty data")
	}
	// Whether a full round trip closes within this short series depends on
	// the matching engine's stochastic cancel/partial outcomes, so assert
	// only on bookkeeping consistency, not a guaranteed close.
	for _, trade := range result.CompletedTrades {
		if trade.Qty <= 0 {
			t.Errorf("completed trade must have positive qty, got %+v", trade)
		}
		if !trade.ExitTime.After(trade.EntryTime) && trade.ExitTime != trade.EntryTime {
			t.Errorf("exit time must not precede entry time: %+v", trade)
		}
	}
}

func TestRun_UnknownSymbolNeverSignals(t *testing.T) {
	path := writeMarketDataCSV(t, trendReversalRows())
	s := strategy.NewMACrossover("MSFT", 3, 5, 10)

	result, err := Run(context.Background(), RunConfig{
		Label:          "no_match",
		Strategy:       s,
		DataPath:       path,
		Symbol:         "MSFT",
		InitialCapital: 100000,
		Risk:           permissiveRiskConfig(),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.TradeLog) != 0 {
		t.Errorf("expected no trade log entries for a symbol absent from the data, got %d", len(result.TradeLog))
	}
}

func TestWriteArtifacts_ProducesExpectedFiles(t *testing.T) {
	result := &Result{
		Label: "demo",
		EquityCurve: []EquityPoint{
			{Timestamp: time.Now(), Equity: 100000},
			{Timestamp: time.Now(), Equity: 101000},
		},
		TradeLog: []TradeLogEntry{
			{Timestamp: time.Now(), Signal: "BUY", Symbol: "AAPL", Status: "FILLED", Qty: 10, Price: 100, OrderID: 1},
		},
		CompletedTrades: []CompletedTrade{
			{EntryTime: time.Now(), ExitTime: time.Now(), Qty: 10, EntryPrice: 100, ExitPrice: 110, PnL: 100},
		},
		Metrics:     Metrics{TotalReturn: 0.01, NumTrades: 1, RealizedPnL: 100},
		FinalEquity: 101000,
	}

	dir := t.TempDir()
	if err := WriteArtifacts(dir, result, true, nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for _, name := range []string{"demo_metrics.json", "demo_trade_log.csv", "demo_completed_trades.csv"} {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			t.Errorf("expected artifact %s to exist: %v", name, err)
		}
	}
}

func TestSweep_SortsByRealizedPnLDescending(t *testing.T) {
	path := writeMarketDataCSV(t, trendReversalRows())

	configs := []SweepConfig{
		{Name: "fast", Build: func() strategy.Strategy { return strategy.NewMACrossover("AAPL", 2, 4, 10) }, Symbol: "AAPL", Label: "fast"},
		{Name: "slow", Build: func() strategy.Strategy { return strategy.NewMACrossover("AAPL", 3, 6, 10) }, Symbol: "AAPL", Label: "slow"},
	}

	results, err := Sweep(context.Background(), path, 100000, permissiveRiskConfig(), nil, configs)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 sweep results, got %d", len(results))
	}
	for i := 1; i < len(results); i++ {
		if results[i-1].Result.Metrics.RealizedPnL < results[i].Result.Metrics.RealizedPnL {
			t.Errorf("expected descending realized P&L ordering, got %+v", results)
		}
	}
}
