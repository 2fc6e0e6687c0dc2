// Package main is the backtester entrypoint: it drives a single strategy
// (or a parameter sweep over several) against a historical CSV of market
// data and writes the resulting metrics, trade log, and completed-trades
// report to disk. See spec.md §4.H and §6 for the full contract.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/nitinkhare/quantpipeline/internal/backtester"
	"github.com/nitinkhare/quantpipeline/internal/config"
	"github.com/nitinkhare/quantpipeline/internal/strategy"
)

func main() {
	strategyName := flag.String("strategy", "ma", "strategy to run: ma | momentum | zscore | sentiment")
	symbol := flag.String("symbol", "AAPL", "symbol to trade")
	dataPath := flag.String("data", "data/market_data.csv", "path to historical market data CSV")
	initialCapital := flag.Float64("initial-capital", 100000, "starting cash")
	positionSize := flag.Int("position-size", 10, "quantity per signal")

	shortWindow := flag.Int("short-window", 5, "ma: short window length")
	longWindow := flag.Int("long-window", 20, "ma: long window length")
	momentumWindow := flag.Int("momentum-window", 10, "momentum: lookback window length")
	momentumThreshold := flag.Float64("momentum-threshold", 0.02, "momentum: entry threshold")
	lookbackWindow := flag.Int("lookback-window", 20, "zscore: lookback window length")
	zscoreThreshold := flag.Float64("zscore-threshold", 2.0, "zscore: entry threshold")
	sentimentPositive := flag.Float64("sentiment-positive", 0.5, "sentiment: positive entry threshold")
	sentimentNegative := flag.Float64("sentiment-negative", -0.5, "sentiment: negative exit threshold")
	sentimentCooldown := flag.Int("sentiment-cooldown", 5, "sentiment: cooldown bars between signals")

	maxOrderSize := flag.Int("max-order-size", 1000, "risk: max quantity per order")
	maxPosition := flag.Int("max-position", 1000, "risk: max absolute net position per symbol")
	cash := flag.Float64("cash", 0, "risk: starting cash for the risk ledger (defaults to --initial-capital)")
	maxTotalBuy := flag.Int("max-total-buy", 1_000_000, "risk: cumulative lifetime buy cap")
	maxTotalSell := flag.Int("max-total-sell", 1_000_000, "risk: cumulative lifetime sell cap")

	outputDir := flag.String("output-dir", "reports", "directory to write artifacts to")
	skipPlots := flag.Bool("skip-plots", false, "skip plot generation (no-op: this build has no plotting dependency)")
	sweep := flag.Bool("sweep", false, "run a small built-in parameter sweep instead of a single backtest")

	flag.Parse()

	logger := log.New(os.Stdout, "[backtester] ", log.LstdFlags)

	riskCfg := config.RiskConfig{
		MaxOrderSize: *maxOrderSize,
		MaxPosition:  *maxPosition,
		Cash:         *cash,
		MaxTotalBuy:  *maxTotalBuy,
		MaxTotalSell: *maxTotalSell,
	}
	if riskCfg.Cash == 0 {
		riskCfg.Cash = *initialCapital
	}

	ctx := context.Background()

	if *sweep {
		if err := runSweep(ctx, *dataPath, *symbol, *initialCapital, *positionSize, riskCfg, *outputDir, logger); err != nil {
			fmt.Fprintf(os.Stderr, "backtester: sweep failed: %v\n", err)
			os.Exit(1)
		}
		return
	}

	build, err := strategyFactory(*strategyName, *symbol, *positionSize, strategyParams{
		shortWindow:       *shortWindow,
		longWindow:        *longWindow,
		momentumWindow:    *momentumWindow,
		momentumThreshold: *momentumThreshold,
		lookbackWindow:    *lookbackWindow,
		zscoreThreshold:   *zscoreThreshold,
		sentimentPositive: *sentimentPositive,
		sentimentNegative: *sentimentNegative,
		sentimentCooldown: *sentimentCooldown,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "backtester: %v\n", err)
		os.Exit(1)
	}

	result, err := backtester.Run(ctx, backtester.RunConfig{
		Label:          strings.ToLower(*strategyName) + "_" + *symbol,
		Strategy:       build(),
		DataPath:       *dataPath,
		Symbol:         *symbol,
		InitialCapital: *initialCapital,
		Risk:           riskCfg,
		Logger:         logger,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "backtester: run failed: %v\n", err)
		os.Exit(1)
	}

	if err := backtester.WriteArtifacts(*outputDir, result, *skipPlots, nil); err != nil {
		fmt.Fprintf(os.Stderr, "backtester: write artifacts failed: %v\n", err)
		os.Exit(1)
	}

	logger.Printf("done: trades=%d realized_pnl=%.2f total_return=%.4f sharpe=%.3f max_drawdown=%.4f",
		result.Metrics.NumTrades, result.Metrics.RealizedPnL, result.Metrics.TotalReturn,
		result.Metrics.SharpeRatio, result.Metrics.MaxDrawdown)
}

type strategyParams struct {
	shortWindow       int
	longWindow        int
	momentumWindow    int
	momentumThreshold float64
	lookbackWindow    int
	zscoreThreshold   float64
	sentimentPositive float64
	sentimentNegative float64
	sentimentCooldown int
}

// strategyFactory resolves --strategy (aliases accepted, case-insensitive)
// into a constructor for a fresh strategy instance, per spec.md §6.
func strategyFactory(name, symbol string, positionSize int, p strategyParams) (func() strategy.Strategy, error) {
	switch strings.ToLower(name) {
	case "ma", "ma_crossover", "macrossover":
		return func() strategy.Strategy {
			return strategy.NewMACrossover(symbol, p.shortWindow, p.longWindow, positionSize)
		}, nil
	case "momentum", "mom":
		return func() strategy.Strategy {
			return strategy.NewMomentum(symbol, p.momentumWindow, p.momentumThreshold, positionSize)
		}, nil
	case "zscore", "z":
		return func() strategy.Strategy {
			return strategy.NewZScore(symbol, p.lookbackWindow, p.zscoreThreshold, positionSize)
		}, nil
	case "sentiment", "sent":
		return func() strategy.Strategy {
			return strategy.NewSentiment(symbol, p.sentimentPositive, p.sentimentNegative, p.sentimentCooldown, positionSize, nil)
		}, nil
	default:
		return nil, fmt.Errorf("unknown strategy %q (want one of: ma, momentum, zscore, sentiment)", name)
	}
}

func runSweep(ctx context.Context, dataPath, symbol string, initialCapital float64, positionSize int, riskCfg config.RiskConfig, outputDir string, logger *log.Logger) error {
	configs := []backtester.SweepConfig{
		{
			Name:   "ma_fast",
			Symbol: symbol,
			Label:  "ma_fast_" + symbol,
			Build:  func() strategy.Strategy { return strategy.NewMACrossover(symbol, 5, 15, positionSize) },
		},
		{
			Name:   "ma_slow",
			Symbol: symbol,
			Label:  "ma_slow_" + symbol,
			Build:  func() strategy.Strategy { return strategy.NewMACrossover(symbol, 10, 30, positionSize) },
		},
		{
			Name:   "momentum_default",
			Symbol: symbol,
			Label:  "momentum_default_" + symbol,
			Build:  func() strategy.Strategy { return strategy.NewMomentum(symbol, 10, 0.02, positionSize) },
		},
		{
			Name:   "zscore_default",
			Symbol: symbol,
			Label:  "zscore_default_" + symbol,
			Build:  func() strategy.Strategy { return strategy.NewZScore(symbol, 20, 2.0, positionSize) },
		},
	}

	results, err := backtester.Sweep(ctx, dataPath, initialCapital, riskCfg, logger, configs)
	if err != nil {
		return err
	}
	if err := backtester.WriteSweepReport(outputDir, results); err != nil {
		return err
	}
	for _, r := range results {
		logger.Printf("sweep %-20s realized_pnl=%.2f total_return=%.4f trades=%d",
			r.Name, r.Result.Metrics.RealizedPnL, r.Result.Metrics.TotalReturn, r.Result.Metrics.NumTrades)
	}
	return nil
}
