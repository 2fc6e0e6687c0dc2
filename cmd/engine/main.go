// Package main is the live-trading entrypoint: it drives a single strategy
// bar-by-bar through internal/scheduler for as long as the market calendar
// says trading is open, routing every resulting signal through the same
// process_order pipeline the backtester uses. See spec.md §4.F and §5 for
// the full contract.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/nitinkhare/quantpipeline/internal/audit"
	"github.com/nitinkhare/quantpipeline/internal/broker"
	"github.com/nitinkhare/quantpipeline/internal/config"
	"github.com/nitinkhare/quantpipeline/internal/gateway"
	"github.com/nitinkhare/quantpipeline/internal/market"
	"github.com/nitinkhare/quantpipeline/internal/matching"
	"github.com/nitinkhare/quantpipeline/internal/ordermanager"
	"github.com/nitinkhare/quantpipeline/internal/risk"
	"github.com/nitinkhare/quantpipeline/internal/scheduler"
	"github.com/nitinkhare/quantpipeline/internal/storage"
	"github.com/nitinkhare/quantpipeline/internal/strategy"
	"github.com/nitinkhare/quantpipeline/internal/types"
	"github.com/nitinkhare/quantpipeline/internal/webhook"
)

func main() {
	configPath := flag.String("config", "config.json", "path to config.json")
	dataPath := flag.String("data", "data/market_data.csv", "path to the bar feed CSV (replayed as the live feed)")
	symbol := flag.String("symbol", "AAPL", "symbol to trade")
	strategyName := flag.String("strategy", "ma", "strategy to run: ma | momentum | zscore | sentiment")
	positionSize := flag.Int("position-size", 10, "quantity per signal")
	tick := flag.Duration("tick", time.Second, "scheduler drive interval while the market is open")
	seed := flag.Int64("seed", time.Now().UnixNano(), "matching engine RNG seed (paper mode only)")

	shortWindow := flag.Int("short-window", 5, "ma: short window length")
	longWindow := flag.Int("long-window", 20, "ma: long window length")
	momentumWindow := flag.Int("momentum-window", 10, "momentum: lookback window length")
	momentumThreshold := flag.Float64("momentum-threshold", 0.02, "momentum: entry threshold")
	lookbackWindow := flag.Int("lookback-window", 20, "zscore: lookback window length")
	zscoreThreshold := flag.Float64("zscore-threshold", 2.0, "zscore: entry threshold")
	sentimentPositive := flag.Float64("sentiment-positive", 0.5, "sentiment: positive entry threshold")
	sentimentNegative := flag.Float64("sentiment-negative", -0.5, "sentiment: negative exit threshold")
	sentimentCooldown := flag.Int("sentiment-cooldown", 5, "sentiment: cooldown bars between signals")

	flag.Parse()

	logger := log.New(os.Stdout, "[engine] ", log.LstdFlags)

	if err := run(engineFlags{
		configPath:        *configPath,
		dataPath:          *dataPath,
		symbol:            *symbol,
		strategyName:      *strategyName,
		positionSize:      *positionSize,
		tick:              *tick,
		seed:              *seed,
		shortWindow:       *shortWindow,
		longWindow:        *longWindow,
		momentumWindow:    *momentumWindow,
		momentumThreshold: *momentumThreshold,
		lookbackWindow:    *lookbackWindow,
		zscoreThreshold:   *zscoreThreshold,
		sentimentPositive: *sentimentPositive,
		sentimentNegative: *sentimentNegative,
		sentimentCooldown: *sentimentCooldown,
	}, logger); err != nil {
		fmt.Fprintf(os.Stderr, "engine: %v\n", err)
		os.Exit(1)
	}
}

type engineFlags struct {
	configPath   string
	dataPath     string
	symbol       string
	strategyName string
	positionSize int
	tick         time.Duration
	seed         int64

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

func run(f engineFlags, logger *log.Logger) error {
	cfg, err := config.Load(f.configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	store, err := storage.NewPostgresStore(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("connect storage: %w", err)
	}
	defer store.Close()

	cal, err := market.NewCalendar(cfg.MarketCalendarPath)
	if err != nil {
		return fmt.Errorf("load market calendar: %w", err)
	}

	runStart := time.Now()
	auditDir := cfg.Paths.LogDir
	if auditDir == "" {
		auditDir = "logs"
	}
	auditLogger, err := audit.NewLogger(auditDir, runStart)
	if err != nil {
		return fmt.Errorf("open audit logger: %w", err)
	}

	build, err := strategyFactory(f.strategyName, f.symbol, f.positionSize, f)
	if err != nil {
		return err
	}
	strat := build()

	bars, err := gateway.LoadMarketData(f.dataPath, logger)
	if err != nil {
		return fmt.Errorf("load market data: %w", err)
	}
	logger.Printf("loaded %d bars from %s for %s", len(bars), f.dataPath, f.symbol)

	breaker := risk.NewCircuitBreaker(cfg.Risk.CircuitBreaker, logger)

	om, err := buildOrderManager(cfg, cal, auditLogger, logger, f.seed)
	if err != nil {
		return err
	}
	om.WithCircuitBreaker(breaker)

	watcher := config.NewConfigWatcher(f.configPath, cfg, logger)
	watcher.OnChange(func(old, newCfg *config.Config) {
		breaker.UpdateConfig(newCfg.Risk.CircuitBreaker)
		logger.Printf("[engine] applied reloaded risk config")
	})
	if err := watcher.Start(); err != nil {
		logger.Printf("[engine] config watcher disabled: %v", err)
	}
	defer watcher.Stop()

	if cfg.Webhook.Enabled {
		hookSrv := webhook.NewServer(webhook.Config{
			Port:    cfg.Webhook.Port,
			Path:    cfg.Webhook.Path,
			Enabled: cfg.Webhook.Enabled,
		}, logger)
		hookSrv.OnOrderUpdate(func(u webhook.OrderUpdate) {
			logger.Printf("[engine] broker postback: order=%s status=%s filled=%d/%.2f",
				u.OrderID, u.Status, u.FilledQty, u.AveragePrice)
		})
		if err := hookSrv.Start(); err != nil {
			logger.Printf("[engine] webhook server disabled: %v", err)
		} else {
			defer hookSrv.Shutdown(context.Background())
		}
	}

	sched := scheduler.New(cal, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Println("[engine] shutdown signal received")
		cancel()
	}()

	idx := 0
	drive := func(ctx context.Context) error {
		if idx >= len(bars) {
			logger.Println("[engine] bar feed exhausted, idling")
			return nil
		}
		bar := bars[idx]
		idx++

		sig := strat.OnNewBar(bar)
		if sig == nil || sig.Action == types.ActionHold {
			return nil
		}

		if err := store.SaveSignal(ctx, &storage.SignalRecord{
			StrategyID: f.strategyName,
			Symbol:     sig.Symbol,
			Side:       string(sig.Action),
			Price:      sig.Price,
			Ts:         sig.Timestamp.Unix(),
		}); err != nil {
			logger.Printf("[engine] save signal failed: %v", err)
		}

		side := types.Buy
		if sig.Action == types.ActionSell {
			side = types.Sell
		}
		order := types.Order{Side: side, Symbol: sig.Symbol, Qty: f.positionSize, Price: sig.Price}

		result := om.ProcessOrder(ctx, order)
		if !result.OK {
			logger.Printf("[engine] order rejected: %s", result.Msg)
			return nil
		}
		logger.Printf("[engine] order %s: status=%s filled_qty=%d filled_price=%.2f",
			sig.Reason, result.Status, result.FilledQty, result.FilledPrice)

		if err := store.SaveOrder(ctx, result.Order, string(result.Status), result.FilledQty, result.FilledPrice); err != nil {
			logger.Printf("[engine] save order failed: %v", err)
		}
		return nil
	}

	logger.Printf("[engine] starting scheduler: %s", sched.Status())
	return sched.Run(ctx, f.tick, drive)
}

func buildOrderManager(cfg *config.Config, cal *market.Calendar, auditLogger *audit.Logger, logger *log.Logger, seed int64) (*ordermanager.Manager, error) {
	if cfg.TradingMode == config.ModePaper {
		riskMgr := risk.NewManager(cfg.Risk, logger)
		engine := matching.New(rand.New(rand.NewSource(seed)))
		return ordermanager.NewSimulatedManager(engine, riskMgr, auditLogger, logger), nil
	}

	brokerConfigJSON, ok := cfg.BrokerConfig[cfg.ActiveBroker]
	if !ok {
		return nil, fmt.Errorf("broker_config[%q] missing for live trading", cfg.ActiveBroker)
	}
	liveBroker, err := broker.New(cfg.ActiveBroker, brokerConfigJSON)
	if err != nil {
		return nil, fmt.Errorf("construct broker %q: %w", cfg.ActiveBroker, err)
	}

	const maxPositionEquityPct = 0.2
	maxOrderNotional := float64(cfg.Risk.MaxOrderSize) * cfg.Capital
	liveRisk := risk.NewLiveManager(liveBroker, maxOrderNotional, maxPositionEquityPct, logger)

	return ordermanager.NewLiveManager(liveBroker, liveRisk, cal, auditLogger, logger), nil
}

func strategyFactory(name, symbol string, positionSize int, f engineFlags) (func() strategy.Strategy, error) {
	switch strings.ToLower(name) {
	case "ma", "ma_crossover", "macrossover":
		return func() strategy.Strategy {
			return strategy.NewMACrossover(symbol, f.shortWindow, f.longWindow, positionSize)
		}, nil
	case "momentum", "mom":
		return func() strategy.Strategy {
			return strategy.NewMomentum(symbol, f.momentumWindow, f.momentumThreshold, positionSize)
		}, nil
	case "zscore", "z":
		return func() strategy.Strategy {
			return strategy.NewZScore(symbol, f.lookbackWindow, f.zscoreThreshold, positionSize)
		}, nil
	case "sentiment", "sent":
		return func() strategy.Strategy {
			return strategy.NewSentiment(symbol, f.sentimentPositive, f.sentimentNegative, f.sentimentCooldown, positionSize, nil)
		}, nil
	default:
		return nil, fmt.Errorf("unknown strategy %q (want one of: ma, momentum, zscore, sentiment)", name)
	}
}
