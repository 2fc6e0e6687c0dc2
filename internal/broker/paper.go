// Package broker - paper.go implements the paper trading broker.
//
// The paper broker simulates order execution. When a matching engine is
// attached it routes every order through the same SimulateExecution path
// the backtester uses (internal/matching), so paper trading and backtests
// share one fill simulator; with no engine attached it falls back to an
// immediate fill at the requested price.
package broker

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/nitinkhare/quantpipeline/internal/matching"
	"github.com/nitinkhare/quantpipeline/internal/types"
)

// PaperBroker simulates broker operations for paper trading.
type PaperBroker struct {
	mu       sync.Mutex
	funds    Fund
	orders   map[string]*paperOrder
	holdings map[string]*Holding
	nextID   int
	engine   *matching.Engine
}

type paperOrder struct {
	Order    Order
	Response OrderStatusResponse
}

// NewPaperBroker creates a paper broker with the given initial capital.
// Fills are immediate, at the requested price.
func NewPaperBroker(initialCapital float64) *PaperBroker {
	return &PaperBroker{
		funds: Fund{
			AvailableCash: initialCapital,
			TotalBalance:  initialCapital,
		},
		orders:   make(map[string]*paperOrder),
		holdings: make(map[string]*Holding),
	}
}

// NewSimulatedPaperBroker creates a paper broker whose fills are drawn from
// the matching engine's synthetic order book, the same path the backtester
// runs through. Pass a seeded rng for reproducible paper sessions.
func NewSimulatedPaperBroker(initialCapital float64, rng *rand.Rand) *PaperBroker {
	pb := NewPaperBroker(initialCapital)
	pb.engine = matching.New(rng)
	return pb
}

func (pb *PaperBroker) GetFunds(_ context.Context) (*Fund, error) {
	pb.mu.Lock()
	defer pb.mu.Unlock()
	f := pb.funds
	return &f, nil
}

func (pb *PaperBroker) GetHoldings(_ context.Context) ([]Holding, error) {
	pb.mu.Lock()
	defer pb.mu.Unlock()

	result := make([]Holding, 0, len(pb.holdings))
	for _, h := range pb.holdings {
		result = append(result, *h)
	}
	return result, nil
}

func (pb *PaperBroker) GetPositions(_ context.Context) ([]Position, error) {
	pb.mu.Lock()
	defer pb.mu.Unlock()

	// In delivery trading, positions are essentially holdings.
	positions := make([]Position, 0, len(pb.holdings))
	for _, h := range pb.holdings {
		positions = append(positions, Position{
			Symbol:       h.Symbol,
			Exchange:     h.Exchange,
			Quantity:     h.Quantity,
			AveragePrice: h.AveragePrice,
			LastPrice:    h.LastPrice,
			PnL:          h.PnL,
			Product:      "CNC",
		})
	}
	return positions, nil
}

// PlaceOrder simulates order placement.
// Without a matching engine, orders are filled immediately in full at the order price;
// with one, the fill quantity, price and cancellation come from SimulateExecution.
func (pb *PaperBroker) PlaceOrder(_ context.Context, order Order) (*OrderResponse, error) {
	pb.mu.Lock()
	defer pb.mu.Unlock()

	pb.nextID++
	orderID := fmt.Sprintf("PAPER-%d", pb.nextID)

	fillQty, fillPrice, status, msg, err := pb.simulateFill(order)
	if err != nil {
		return &OrderResponse{
			OrderID:   orderID,
			Status:    OrderStatusRejected,
			Message:   err.Error(),
			Timestamp: time.Now(),
		}, nil
	}
	if status == OrderStatusCancelled || fillQty == 0 {
		pb.orders[orderID] = &paperOrder{
			Order: order,
			Response: OrderStatusResponse{
				OrderID:   orderID,
				Status:    OrderStatusCancelled,
				Message:   "paper order cancelled by matching engine",
				Timestamp: time.Now(),
			},
		}
		return &OrderResponse{
			OrderID:   orderID,
			Status:    OrderStatusCancelled,
			Message:   "paper order cancelled by matching engine",
			Timestamp: time.Now(),
		}, nil
	}

	cost := fillPrice * float64(fillQty)

	if order.Side == OrderSideBuy {
		if cost > pb.funds.AvailableCash {
			return &OrderResponse{
				OrderID:   orderID,
				Status:    OrderStatusRejected,
				Message:   "insufficient funds",
				Timestamp: time.Now(),
			}, nil
		}

		pb.funds.AvailableCash -= cost
		pb.funds.UsedMargin += cost

		// Update or create holding.
		if h, exists := pb.holdings[order.Symbol]; exists {
			totalQty := h.Quantity + fillQty
			h.AveragePrice = (h.AveragePrice*float64(h.Quantity) + fillPrice*float64(fillQty)) / float64(totalQty)
			h.Quantity = totalQty
		} else {
			pb.holdings[order.Symbol] = &Holding{
				Symbol:       order.Symbol,
				Exchange:     order.Exchange,
				Quantity:     fillQty,
				AveragePrice: fillPrice,
				LastPrice:    fillPrice,
			}
		}
	} else if order.Side == OrderSideSell {
		h, exists := pb.holdings[order.Symbol]
		if !exists || h.Quantity < fillQty {
			return &OrderResponse{
				OrderID:   orderID,
				Status:    OrderStatusRejected,
				Message:   "insufficient holdings",
				Timestamp: time.Now(),
			}, nil
		}

		proceeds := fillPrice * float64(fillQty)
		pb.funds.AvailableCash += proceeds
		pb.funds.UsedMargin -= h.AveragePrice * float64(fillQty)

		h.Quantity -= fillQty
		if h.Quantity == 0 {
			delete(pb.holdings, order.Symbol)
		}
	}

	// Record order's terminal state.
	pb.orders[orderID] = &paperOrder{
		Order: order,
		Response: OrderStatusResponse{
			OrderID:      orderID,
			Status:       status,
			FilledQty:    fillQty,
			PendingQty:   order.Quantity - fillQty,
			AveragePrice: fillPrice,
			Message:      msg,
			Timestamp:    time.Now(),
		},
	}

	return &OrderResponse{
		OrderID:   orderID,
		Status:    status,
		Message:   msg,
		Timestamp: time.Now(),
	}, nil
}

// simulateFill resolves how much of order fills and at what price. With no
// matching engine attached it fills the full quantity at the requested
// price; otherwise it defers to the shared matching-engine simulation.
func (pb *PaperBroker) simulateFill(order Order) (qty int, price float64, status OrderStatus, msg string, err error) {
	if pb.engine == nil {
		return order.Quantity, order.Price, OrderStatusCompleted, "paper fill", nil
	}

	side := types.Buy
	if order.Side == OrderSideSell {
		side = types.Sell
	}
	result, err := pb.engine.SimulateExecution(types.Order{
		Side:   side,
		Symbol: order.Symbol,
		Qty:    order.Quantity,
		Price:  order.Price,
	})
	if err != nil {
		return 0, 0, OrderStatusRejected, "", err
	}

	switch result.Status {
	case matching.Cancelled:
		return 0, 0, OrderStatusCancelled, "matching engine cancelled the order", nil
	case matching.Partial:
		return result.Qty, result.Price, OrderStatusCompleted, "paper partial fill", nil
	default:
		return result.Qty, result.Price, OrderStatusCompleted, "paper fill", nil
	}
}

func (pb *PaperBroker) CancelOrder(_ context.Context, orderID string) error {
	pb.mu.Lock()
	defer pb.mu.Unlock()

	po, exists := pb.orders[orderID]
	if !exists {
		return fmt.Errorf("paper broker: order %s not found", orderID)
	}
	if po.Response.Status == OrderStatusCompleted {
		return fmt.Errorf("paper broker: order %s already completed", orderID)
	}

	po.Response.Status = OrderStatusCancelled
	return nil
}

func (pb *PaperBroker) GetOrderStatus(_ context.Context, orderID string) (*OrderStatusResponse, error) {
	pb.mu.Lock()
	defer pb.mu.Unlock()

	po, exists := pb.orders[orderID]
	if !exists {
		return nil, fmt.Errorf("paper broker: order %s not found", orderID)
	}

	resp := po.Response
	return &resp, nil
}
