// Package backtester replays historical market data through a strategy,
// the order manager, and the simulated matching engine, producing an
// equity curve, a trade log, and the performance metrics defined in
// spec.md §4.H.
package backtester

import (
	"context"
	"fmt"
	"log"
	"math"
	"math/rand"
	"sort"
	"time"

	"github.com/nitinkhare/quantpipeline/internal/config"
	"github.com/nitinkhare/quantpipeline/internal/gateway"
	"github.com/nitinkhare/quantpipeline/internal/matching"
	"github.com/nitinkhare/quantpipeline/internal/ordermanager"
	"github.com/nitinkhare/quantpipeline/internal/risk"
	"github.com/nitinkhare/quantpipeline/internal/strategy"
	"github.com/nitinkhare/quantpipeline/internal/types"
)

// EquityPoint is one mark-to-market sample on the run's equity curve.
type EquityPoint struct {
	Timestamp time.Time
	Equity    float64
}

// TradeLogEntry is one row of the per-run trade log: every signal that
// reached the order manager, whatever its outcome.
type TradeLogEntry struct {
	Timestamp time.Time
	Signal    string
	Symbol    string
	Status    string
	Qty       int
	Price     float64
	Reason    string
	OrderID   int64
}

// CompletedTrade is one closed round-trip position, produced when a SELL
// reduces the open position to (or towards) zero.
type CompletedTrade struct {
	EntryTime  time.Time
	ExitTime   time.Time
	Qty        int
	EntryPrice float64
	ExitPrice  float64
	PnL        float64
}

// Metrics summarizes a completed run per spec.md §4.H.
type Metrics struct {
	TotalReturn  float64
	SharpeRatio  float64
	MaxDrawdown  float64
	WinRate      float64
	ProfitFactor float64
	NumTrades    int
	RealizedPnL  float64
}

// Result is everything a backtest run produces.
type Result struct {
	Label           string
	EquityCurve     []EquityPoint
	TradeLog        []TradeLogEntry
	CompletedTrades []CompletedTrade
	Metrics         Metrics
	FinalEquity     float64
}

// RunConfig parameterizes one backtest run.
type RunConfig struct {
	Label          string
	Strategy       strategy.Strategy
	DataPath       string
	Symbol         string
	InitialCapital float64
	Risk           config.RiskConfig
	Seed           int64 // matching-engine RNG seed; 0 uses a fixed default for reproducibility
	Logger         *log.Logger
}

// Run drives one full replay: load data, stream bars through the strategy
// and order manager, and compute the resulting metrics.
func Run(ctx context.Context, cfg RunConfig) (*Result, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = log.New(log.Writer(), "", log.LstdFlags)
	}

	bars, err := gateway.LoadMarketData(cfg.DataPath, logger)
	if err != nil {
		return nil, fmt.Errorf("backtester: load market data: %w", err)
	}

	riskCfg := cfg.Risk
	if riskCfg.Cash == 0 {
		riskCfg.Cash = cfg.InitialCapital
	}
	riskMgr := risk.NewManager(riskCfg, logger)

	seed := cfg.Seed
	if seed == 0 {
		seed = 1
	}
	engine := matching.New(rand.New(rand.NewSource(seed)))
	om := ordermanager.NewSimulatedManager(engine, riskMgr, nil, logger)

	acc := &account{cash: cfg.InitialCapital}
	result := &Result{Label: cfg.Label}

	for _, bar := range bars {
		if bar.Symbol != cfg.Symbol {
			continue
		}

		acc.lastPrice = bar.Price
		result.EquityCurve = append(result.EquityCurve, EquityPoint{
			Timestamp: bar.Timestamp,
			Equity:    acc.equity(),
		})

		sig := cfg.Strategy.OnNewBar(bar)
		if sig == nil {
			continue
		}

		side := types.Buy
		if sig.Action == types.ActionSell {
			side = types.Sell
		}
		order := types.Order{
			Side:   side,
			Symbol: sig.Symbol,
			Qty:    cfg.Strategy.PositionSize(),
			Price:  sig.Price,
		}

		procResult := om.ProcessOrder(ctx, order)

		entry := TradeLogEntry{
			Timestamp: bar.Timestamp,
			Signal:    string(sig.Action),
			Symbol:    sig.Symbol,
			Qty:       order.Qty,
			Price:     order.Price,
			Reason:    sig.Reason,
		}
		if procResult.OK {
			entry.Status = string(procResult.Status)
			entry.OrderID = procResult.Order.ID
		} else {
			entry.Status = "REJECTED: " + procResult.Msg
		}
		result.TradeLog = append(result.TradeLog, entry)

		if !procResult.OK || (procResult.Status != ordermanager.Filled && procResult.Status != ordermanager.Partial) {
			continue
		}
		if procResult.FilledQty <= 0 {
			continue
		}

		if sig.Action == types.ActionBuy {
			acc.openOrAverage(procResult.FilledQty, procResult.FilledPrice, bar.Timestamp)
		} else {
			if trade, ok := acc.closePartial(procResult.FilledQty, procResult.FilledPrice, bar.Timestamp); ok {
				result.CompletedTrades = append(result.CompletedTrades, trade)
			}
		}
	}

	result.FinalEquity = acc.equity()
	result.Metrics = computeMetrics(cfg.InitialCapital, result.FinalEquity, result.EquityCurve, result.CompletedTrades)
	return result, nil
}

// account tracks the backtester's own fill bookkeeping, kept separate from
// the risk engine's ledger per spec.md §4.H step 5.
type account struct {
	cash           float64
	position       int
	avgEntryPrice  float64
	openTradeStart time.Time
	lastPrice      float64
}

func (a *account) equity() float64 {
	return a.cash + float64(a.position)*a.lastPrice
}

func (a *account) openOrAverage(qty int, price float64, ts time.Time) {
	if a.position == 0 {
		a.position = qty
		a.avgEntryPrice = price
		a.openTradeStart = ts
	} else {
		newPos := a.position + qty
		a.avgEntryPrice = (a.avgEntryPrice*float64(a.position) + price*float64(qty)) / float64(newPos)
		a.position = newPos
	}
	a.cash -= float64(qty) * price
}

func (a *account) closePartial(qty int, price float64, ts time.Time) (CompletedTrade, bool) {
	if a.position <= 0 {
		return CompletedTrade{}, false
	}
	closeQty := qty
	if closeQty > a.position {
		closeQty = a.position
	}

	a.cash += float64(closeQty) * price
	pnl := (price - a.avgEntryPrice) * float64(closeQty)
	trade := CompletedTrade{
		EntryTime:  a.openTradeStart,
		ExitTime:   ts,
		Qty:        closeQty,
		EntryPrice: a.avgEntryPrice,
		ExitPrice:  price,
		PnL:        pnl,
	}

	a.position -= closeQty
	if a.position == 0 {
		a.avgEntryPrice = 0
		a.openTradeStart = time.Time{}
	}
	return trade, true
}

func computeMetrics(initialCapital, finalEquity float64, curve []EquityPoint, trades []CompletedTrade) Metrics {
	var m Metrics

	if initialCapital > 0 {
		m.TotalReturn = (finalEquity - initialCapital) / initialCapital
	}

	m.SharpeRatio = sharpeRatio(curve)
	m.MaxDrawdown = maxDrawdown(curve)

	m.NumTrades = len(trades)
	var grossProfit, grossLoss float64
	var wins int
	for _, t := range trades {
		m.RealizedPnL += t.PnL
		if t.PnL > 0 {
			wins++
			grossProfit += t.PnL
		} else if t.PnL < 0 {
			grossLoss += -t.PnL
		}
	}

	if m.NumTrades > 0 {
		m.WinRate = float64(wins) / float64(m.NumTrades)
	}
	switch {
	case grossLoss > 0:
		m.ProfitFactor = grossProfit / grossLoss
	case grossProfit > 0:
		m.ProfitFactor = math.Inf(1)
	default:
		m.ProfitFactor = 0
	}

	return m
}

// sharpeRatio computes the annualized Sharpe ratio from per-bar percentage
// returns on the equity curve, assuming 252 trading periods per year and a
// zero risk-free rate.
func sharpeRatio(curve []EquityPoint) float64 {
	if len(curve) < 3 {
		return 0
	}

	var returns []float64
	for i := 1; i < len(curve); i++ {
		prev := curve[i-1].Equity
		if prev == 0 {
			continue
		}
		returns = append(returns, (curve[i].Equity-prev)/prev)
	}
	if len(returns) < 2 {
		return 0
	}

	var sum float64
	for _, r := range returns {
		sum += r
	}
	mean := sum / float64(len(returns))

	var variance float64
	for _, r := range returns {
		diff := r - mean
		variance += diff * diff
	}
	variance /= float64(len(returns) - 1)
	stdev := math.Sqrt(variance)
	if stdev == 0 {
		return 0
	}

	return (mean / stdev) * math.Sqrt(252)
}

// maxDrawdown returns the worst peak-to-trough decline over the equity
// curve, expressed as a fraction (negative or zero; zero when equity never
// fell below its running maximum).
func maxDrawdown(curve []EquityPoint) float64 {
	if len(curve) == 0 {
		return 0
	}

	runningMax := curve[0].Equity
	worst := 0.0
	for _, p := range curve {
		if p.Equity > runningMax {
			runningMax = p.Equity
		}
		if runningMax == 0 {
			continue
		}
		dd := (p.Equity - runningMax) / runningMax
		if dd < worst {
			worst = dd
		}
	}
	return worst
}

// SweepConfig names one entry in a parameter sweep.
type SweepConfig struct {
	Name   string
	Build  func() strategy.Strategy
	Symbol string
	Label  string
}

// SweepResult pairs a sweep entry's name with its run result.
type SweepResult struct {
	Name   string
	Result *Result
}

// Sweep runs every config in configs against the same data/capital/risk
// parameters and returns results sorted by realized P&L, descending, per
// spec.md §4.H.
func Sweep(ctx context.Context, dataPath string, initialCapital float64, riskCfg config.RiskConfig, logger *log.Logger, configs []SweepConfig) ([]SweepResult, error) {
	out := make([]SweepResult, 0, len(configs))
	for _, sc := range configs {
		res, err := Run(ctx, RunConfig{
			Label:          sc.Label,
			Strategy:       sc.Build(),
			DataPath:       dataPath,
			Symbol:         sc.Symbol,
			InitialCapital: initialCapital,
			Risk:           riskCfg,
			Logger:         logger,
		})
		if err != nil {
			return nil, fmt.Errorf("backtester: sweep %q: %w", sc.Name, err)
		}
		out = append(out, SweepResult{Name: sc.Name, Result: res})
	}

	sort.Slice(out, func(i, j int) bool {
		return out[i].Result.Metrics.RealizedPnL > out[j].Result.Metrics.RealizedPnL
	})
	return out, nil
}
