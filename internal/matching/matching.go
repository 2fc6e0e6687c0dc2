// Package matching implements the simulated matching engine: a synthetic
// order book is built around the incoming order's reference price, and the
// incoming order is then given a probabilistic fill outcome. This is the
// designated stochastic component of the pipeline — every other component
// is deterministic (spec.md §4.D).
package matching

import (
	"math"
	"math/rand"

	"github.com/nitinkhare/quantpipeline/internal/orderbook"
	"github.com/nitinkhare/quantpipeline/internal/types"
)

// Status is the outcome of a simulated execution.
type Status string

const (
	Filled    Status = "FILLED"
	Partial   Status = "PARTIAL"
	Cancelled Status = "CANCELLED"
)

// Result is the outcome of SimulateExecution.
type Result struct {
	Status Status
	Qty    int
	Price  float64 // 0 when Status is Cancelled
}

const (
	tick        = 0.01
	levels      = 5
	levelMean   = 100.0
	levelStd    = 20.0
	levelFloor  = 1
	cancelProb  = 0.1
	partialProb = 0.7
)

// Engine builds a private synthetic order book per call and samples a
// fill outcome for the submitted order. Engine is not shared across
// concurrent callers — each invocation owns its own book, per spec.md §5.
type Engine struct {
	rng *rand.Rand
}

// New constructs a matching engine. Pass a seeded rng for deterministic
// replay (spec.md §8's round-trip determinism property); pass nil to use
// a source with the fixed seed 1.
func New(rng *rand.Rand) *Engine {
	if rng == nil {
		rng = rand.New(rand.NewSource(1))
	}
	return &Engine{rng: rng}
}

// SimulateExecution runs the full simulation for one order, per spec.md §4.D.
func (e *Engine) SimulateExecution(order types.Order) (Result, error) {
	if err := order.Validate(); err != nil {
		return Result{}, err
	}

	book := orderbook.New()
	var restingID int64 = -1

	for i := 1; i <= levels; i++ {
		buyPrice := order.Price - float64(i)*tick
		sellPrice := order.Price + float64(i)*tick
		restingID--
		book.AddOrder(restingID, orderbook.Buy, order.Symbol, buyPrice, e.syntheticQty(), 0)
		restingID--
		book.AddOrder(restingID, orderbook.Sell, order.Symbol, sellPrice, e.syntheticQty(), 0)
	}

	side := orderbook.Buy
	if order.Side == types.Sell {
		side = orderbook.Sell
	}
	trades, err := book.AddOrder(order.ID, side, order.Symbol, order.Price, order.Qty, order.Ts)
	if err != nil {
		return Result{}, err
	}

	fillPrice := order.Price
	if len(trades) > 0 {
		fillPrice = trades[len(trades)-1].Price
	} else if order.Side == types.Buy {
		if ask, ok := book.BestAsk(); ok {
			fillPrice = ask
		}
	} else {
		if bid, ok := book.BestBid(); ok {
			fillPrice = bid
		}
	}

	u := e.rng.Float64()
	switch {
	case u < cancelProb:
		return Result{Status: Cancelled, Qty: 0, Price: 0}, nil
	case u < partialProb && order.Qty > 1:
		qty := 1 + e.rng.Intn(order.Qty-1)
		return Result{Status: Partial, Qty: qty, Price: fillPrice}, nil
	default:
		return Result{Status: Filled, Qty: order.Qty, Price: fillPrice}, nil
	}
}

// syntheticQty draws a resting size from N(100, 20), floored at 1.
func (e *Engine) syntheticQty() int {
	qty := int(math.Round(levelMean + e.rng.NormFloat64()*levelStd))
	if qty < levelFloor {
		qty = levelFloor
	}
	return qty
}
