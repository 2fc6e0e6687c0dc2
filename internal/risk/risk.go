// Package risk - risk.go implements the pre-trade risk engine: a process-wide
// singleton that gates every order against absolute size, position, and cash
// guardrails before it reaches an execution venue.
//
// check is pure — it never mutates engine state. Only update_position,
// called by the order manager after a fill (never on cancel), moves the
// ledger forward. This split lets the order manager call check as many
// times as it needs (e.g. a dry run) without double-counting.
package risk

import (
	"log"
	"sync"

	"github.com/nitinkhare/quantpipeline/internal/config"
	"github.com/nitinkhare/quantpipeline/internal/types"
)

// RejectReason identifies why check failed.
type RejectReason string

const (
	RejectOrderSize      RejectReason = "order_size_cap"
	RejectMaxPosition    RejectReason = "max_position_cap"
	RejectCumulativeCap  RejectReason = "cumulative_side_cap"
	RejectCash           RejectReason = "insufficient_cash"
	RejectCircuitBreaker RejectReason = "circuit_breaker_tripped"
)

// Manager is the simulated-mode risk engine. It tracks, per symbol, the net
// position and cumulative buy/sell totals, plus a single shared cash
// balance, and enforces config.RiskConfig's absolute caps against them.
type Manager struct {
	mu     sync.Mutex
	cfg    config.RiskConfig
	logger *log.Logger

	cash       float64
	positions  map[string]int // net qty: positive long, negative short
	buyTotals  map[string]int
	sellTotals map[string]int
	fills      []types.Order
}

// NewManager constructs a standalone risk manager. Most callers should use
// Init/Instance for the process-wide singleton; NewManager exists so tests
// can exercise isolated instances without sharing global state.
func NewManager(cfg config.RiskConfig, logger *log.Logger) *Manager {
	if logger == nil {
		logger = log.New(log.Writer(), "", log.LstdFlags)
	}
	return &Manager{
		cfg:        cfg,
		logger:     logger,
		cash:       cfg.Cash,
		positions:  make(map[string]int),
		buyTotals:  make(map[string]int),
		sellTotals: make(map[string]int),
	}
}

var (
	once      sync.Once
	singleton *Manager
)

// Init performs the one-time, thread-safe construction of the process-wide
// risk engine. Subsequent calls are a silent no-op and return the instance
// built on the first call, regardless of the cfg/logger passed.
func Init(cfg config.RiskConfig, logger *log.Logger) *Manager {
	once.Do(func() {
		singleton = NewManager(cfg, logger)
	})
	return singleton
}

// Instance returns the process-wide risk engine built by Init, or nil if
// Init has not yet been called.
func Instance() *Manager {
	return singleton
}

// Check evaluates order against every guardrail without mutating state.
// It returns (true, "") on acceptance or (false, reason) on the first
// rejection encountered, per spec.md §4.E's ordered checks. Every rejection
// is logged with its reason before returning.
func (m *Manager) Check(order types.Order) (bool, RejectReason) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if order.Qty > m.cfg.MaxOrderSize {
		m.reject(order, RejectOrderSize)
		return false, RejectOrderSize
	}

	currentNet := m.positions[order.Symbol]
	prospective := currentNet
	if order.Side == types.Buy {
		prospective += order.Qty
	} else {
		prospective -= order.Qty
	}
	if m.cfg.MaxPosition > 0 && abs(prospective) > m.cfg.MaxPosition {
		m.reject(order, RejectMaxPosition)
		return false, RejectMaxPosition
	}

	if order.Side == types.Buy {
		if m.cfg.MaxTotalBuy > 0 && m.buyTotals[order.Symbol]+order.Qty > m.cfg.MaxTotalBuy {
			m.reject(order, RejectCumulativeCap)
			return false, RejectCumulativeCap
		}
	} else {
		if m.cfg.MaxTotalSell > 0 && m.sellTotals[order.Symbol]+order.Qty > m.cfg.MaxTotalSell {
			m.reject(order, RejectCumulativeCap)
			return false, RejectCumulativeCap
		}
	}

	if order.Side == types.Buy {
		cost := float64(order.Qty) * order.Price
		if cost > m.cash {
			m.reject(order, RejectCash)
			return false, RejectCash
		}
	}

	return true, ""
}

// UpdatePosition records a fill. Called only on FILLED/PARTIAL execution
// outcomes, never on CANCELLED. filledQty may be less than order.Qty for a
// partial fill; the caller invokes UpdatePosition once per partial.
func (m *Manager) UpdatePosition(order types.Order, filledQty int) {
	m.mu.Lock()
	defer m.mu.Unlock()

	fill := order
	fill.Qty = filledQty
	m.fills = append(m.fills, fill)

	if order.Side == types.Buy {
		m.positions[order.Symbol] += filledQty
		m.buyTotals[order.Symbol] += filledQty
		m.cash -= float64(filledQty) * order.Price
	} else {
		m.positions[order.Symbol] -= filledQty
		m.sellTotals[order.Symbol] += filledQty
		m.cash += float64(filledQty) * order.Price
	}
}

// Cash returns the current cash balance (for reporting/tests).
func (m *Manager) Cash() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cash
}

// Position returns the current net position for symbol (for reporting/tests).
func (m *Manager) Position(symbol string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.positions[symbol]
}

func (m *Manager) reject(order types.Order, reason RejectReason) {
	m.logger.Printf("[risk] rejected order id=%d symbol=%s side=%s qty=%d price=%.2f reason=%s",
		order.ID, order.Symbol, order.Side, order.Qty, order.Price, reason)
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
