// Package ordermanager implements process_order, the single choke point
// every order passes through on its way from a strategy signal to a fill:
// validate, gate on market hours (live only), check risk, execute, and
// audit every step, per spec.md §4.F.
package ordermanager

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/nitinkhare/quantpipeline/internal/audit"
	"github.com/nitinkhare/quantpipeline/internal/broker"
	"github.com/nitinkhare/quantpipeline/internal/market"
	"github.com/nitinkhare/quantpipeline/internal/matching"
	"github.com/nitinkhare/quantpipeline/internal/risk"
	"github.com/nitinkhare/quantpipeline/internal/types"
)

// Status is the terminal execution status of a processed order.
type Status string

const (
	Filled    Status = "FILLED"
	Partial   Status = "PARTIAL"
	Cancelled Status = "CANCELLED"
	Other     Status = "OTHER"
)

// Result is process_order's return value.
type Result struct {
	OK          bool
	Msg         string
	Status      Status
	Order       types.Order
	FilledQty   int
	FilledPrice float64
}

// Manager drives orders through validation, risk, and execution. One
// Manager is built per trading mode (simulated or live); the two modes
// share this type but wire different execute/risk backends.
type Manager struct {
	simulated   bool
	matchEngine *matching.Engine
	liveBroker  broker.Broker
	riskMgr     *risk.Manager
	liveRisk    *risk.LiveManager
	breaker     *risk.CircuitBreaker
	calendar    *market.Calendar
	auditLogger *audit.Logger
	logger      *log.Logger

	orders []types.Order
}

// NewSimulatedManager builds an order manager backed by the simulated
// matching engine and the in-process risk ledger.
func NewSimulatedManager(matchEngine *matching.Engine, riskMgr *risk.Manager, auditLogger *audit.Logger, logger *log.Logger) *Manager {
	if logger == nil {
		logger = log.New(log.Writer(), "", log.LstdFlags)
	}
	return &Manager{
		simulated:   true,
		matchEngine: matchEngine,
		riskMgr:     riskMgr,
		auditLogger: auditLogger,
		logger:      logger,
	}
}

// NewLiveManager builds an order manager backed by a real broker adapter,
// the live risk variant, and a market calendar gate.
func NewLiveManager(b broker.Broker, liveRisk *risk.LiveManager, cal *market.Calendar, auditLogger *audit.Logger, logger *log.Logger) *Manager {
	if logger == nil {
		logger = log.New(log.Writer(), "", log.LstdFlags)
	}
	return &Manager{
		simulated:   false,
		liveBroker:  b,
		liveRisk:    liveRisk,
		calendar:    cal,
		auditLogger: auditLogger,
		logger:      logger,
	}
}

// WithCircuitBreaker attaches a circuit breaker as an additional pre-trade
// gate ahead of the risk check: a tripped breaker rejects every new order
// the same way a risk-check failure does, and every execute() outcome
// (success or error) is fed back into it so repeated broker/matching-engine
// failures trip it automatically. Returns m for chaining at construction.
func (m *Manager) WithCircuitBreaker(breaker *risk.CircuitBreaker) *Manager {
	m.breaker = breaker
	return m
}

// Orders returns every order that has received at least one fill.
func (m *Manager) Orders() []types.Order {
	return m.orders
}

// ProcessOrder runs order through the full pipeline and returns the
// terminal result. It is the sole public operation of the order manager.
func (m *Manager) ProcessOrder(ctx context.Context, order types.Order) Result {
	if err := order.Validate(); err != nil {
		return Result{OK: false, Msg: err.Error()}
	}

	if !m.simulated && !IsCryptoSymbol(order.Symbol) && m.calendar != nil {
		if !m.calendar.IsMarketOpen(time.Now()) {
			msg := "market is closed"
			m.audit(order, "rejected", "", 0, 0, msg)
			return Result{OK: false, Msg: msg}
		}
	}

	order = order.Admit()
	m.audit(order, "sent", "", 0, 0, "")

	if m.breaker != nil && m.breaker.IsTripped() {
		reason := risk.RejectCircuitBreaker
		m.audit(order, "rejected", "", 0, 0, fmt.Sprintf("risk_check_failed:%s", reason))
		return Result{OK: false, Msg: fmt.Sprintf("risk check failed: %s", reason), Order: order}
	}

	if ok, reason := m.checkRisk(ctx, order); !ok {
		m.audit(order, "rejected", "", 0, 0, fmt.Sprintf("risk_check_failed:%s", reason))
		return Result{OK: false, Msg: fmt.Sprintf("risk check failed: %s", reason), Order: order}
	}

	status, filledQty, filledPrice, err := m.execute(ctx, order)
	if err != nil {
		if m.breaker != nil {
			m.breaker.RecordFailure(err.Error())
		}
		m.audit(order, "rejected", "", 0, 0, err.Error())
		return Result{OK: false, Msg: err.Error(), Order: order}
	}
	if m.breaker != nil {
		m.breaker.RecordSuccess()
	}

	if m.simulated && (status == Filled || status == Partial) && filledQty > 0 {
		m.riskMgr.UpdatePosition(order, filledQty)
	}

	if status == Filled || status == Partial {
		m.orders = append(m.orders, order)
		m.audit(order, strings.ToLower(string(status)), string(status), filledQty, filledPrice, "")
	} else {
		m.audit(order, "cancelled", string(status), 0, 0, "")
	}

	return Result{
		OK:          true,
		Status:      status,
		Order:       order,
		FilledQty:   filledQty,
		FilledPrice: filledPrice,
	}
}

func (m *Manager) checkRisk(ctx context.Context, order types.Order) (bool, risk.RejectReason) {
	if m.simulated {
		return m.riskMgr.Check(order)
	}
	return m.liveRisk.Check(ctx, order)
}

func (m *Manager) execute(ctx context.Context, order types.Order) (Status, int, float64, error) {
	if m.simulated {
		result, err := m.matchEngine.SimulateExecution(order)
		if err != nil {
			return Other, 0, 0, err
		}
		return Status(result.Status), result.Qty, result.Price, nil
	}

	req := order.ToBrokerRequest()
	bo := broker.Order{
		Symbol:   req.Symbol,
		Exchange: "NASDAQ",
		Side:     brokerSideFor(req.Side),
		Type:     broker.OrderTypeLimit,
		Quantity: req.Qty,
		Price:    req.Price,
		Product:  "CNC",
		Tag:      "algo",
	}

	resp, err := m.liveBroker.PlaceOrder(ctx, bo)
	if err != nil {
		return Other, 0, 0, err
	}

	statusResp, err := m.liveBroker.GetOrderStatus(ctx, resp.OrderID)
	if err != nil {
		return Other, 0, 0, err
	}

	return mapBrokerStatus(statusResp, order.Qty), statusResp.FilledQty, statusResp.AveragePrice, nil
}

func mapBrokerStatus(s *broker.OrderStatusResponse, requestedQty int) Status {
	switch s.Status {
	case broker.OrderStatusCompleted:
		if s.FilledQty >= requestedQty {
			return Filled
		}
		return Partial
	case broker.OrderStatusCancelled, broker.OrderStatusRejected:
		return Cancelled
	default:
		return Other
	}
}

func brokerSideFor(side types.Side) broker.OrderSide {
	if side == types.Sell {
		return broker.OrderSideSell
	}
	return broker.OrderSideBuy
}

func (m *Manager) audit(order types.Order, eventType, status string, filledQty int, filledPrice float64, note string) {
	if m.auditLogger == nil {
		return
	}
	if err := m.auditLogger.LogOrderEvent(order, eventType, status, filledQty, filledPrice, note); err != nil {
		m.logger.Printf("[ordermanager] audit write failed: %v", err)
	}
}

// IsCryptoSymbol reports whether symbol looks like a crypto trading pair
// (e.g. "BTC-USD"), which is exempt from the market-hours gate since crypto
// markets trade continuously. Equity tickers never contain a hyphen.
func IsCryptoSymbol(symbol string) bool {
	return strings.Contains(symbol, "-")
}
