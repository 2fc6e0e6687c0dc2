package strategy

import (
	"testing"
	"time"

	"github.com/nitinkhare/quantpipeline/internal/types"
)

func feedBars(s Strategy, prices []float64) []*types.Signal {
	var signals []*types.Signal
	base := time.Date(2026, 1, 1, 9, 30, 0, 0, time.UTC)
	for i, p := range prices {
		bar := types.MarketDataPoint{
			Timestamp: base.Add(time.Duration(i) * time.Minute),
			Symbol:    s.Symbol(),
			Price:     p,
		}
		if sig := s.OnNewBar(bar); sig != nil {
			signals = append(signals, sig)
		}
	}
	return signals
}

func TestMACrossover_BuyThenSell(t *testing.T) {
	s := NewMACrossover("AAPL", 2, 3, 10)
	prices := []float64{105, 104, 103, 102, 101, 102, 103, 104, 103, 102, 101}

	signals := feedBars(s, prices)
	if len(signals) < 2 {
		t.Fatalf("expected at least a BUY and a SELL, got %d signals", len(signals))
	}
	if signals[0].Action != types.ActionBuy {
		t.Errorf("expected first signal BUY, got %s", signals[0].Action)
	}
	if signals[len(signals)-1].Action != types.ActionSell {
		t.Errorf("expected last signal SELL, got %s", signals[len(signals)-1].Action)
	}
}

func TestMACrossover_WindowsNeverFill_NoSignals(t *testing.T) {
	s := NewMACrossover("AAPL", 5, 10, 10)
	prices := []float64{100, 101, 102, 103}
	if signals := feedBars(s, prices); len(signals) != 0 {
		t.Errorf("expected no signals before windows fill, got %d", len(signals))
	}
}

func TestMACrossover_NoDuplicateSameSideSignals(t *testing.T) {
	s := NewMACrossover("AAPL", 2, 3, 10)
	prices := []float64{105, 104, 103, 102, 101, 102, 103, 104, 103, 102, 101, 100, 99, 100, 101, 102}
	signals := feedBars(s, prices)

	lastAction := types.Action("")
	for _, sig := range signals {
		if sig.Action == lastAction {
			t.Fatalf("duplicate same-side signal: %s followed by %s", lastAction, sig.Action)
		}
		lastAction = sig.Action
	}
}

func TestMACrossover_IgnoresOtherSymbols(t *testing.T) {
	s := NewMACrossover("AAPL", 2, 3, 10)
	bar := types.MarketDataPoint{Symbol: "MSFT", Price: 100, Timestamp: time.Now()}
	if sig := s.OnNewBar(bar); sig != nil {
		t.Errorf("expected nil signal for non-target symbol, got %+v", sig)
	}
}
