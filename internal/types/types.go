// Package types defines the value types that cross every boundary in the
// trading pipeline: market data ticks, strategy signals, and orders.
package types

import (
	"fmt"
	"strings"
	"sync/atomic"
	"time"
)

// Side is the direction of an order or signal action.
type Side string

const (
	Buy  Side = "BUY"
	Sell Side = "SELL"
)

// Action is what a strategy wants to do. HOLD is never emitted by a
// strategy — the absence of a *Signal already means "no action".
type Action string

const (
	ActionBuy  Action = "BUY"
	ActionSell Action = "SELL"
	ActionHold Action = "HOLD"
)

// MarketDataPoint is one immutable bar on a single price channel.
type MarketDataPoint struct {
	Timestamp time.Time
	Symbol    string
	Price     float64
}

// Validate checks the invariants spec.md §3 requires of a MarketDataPoint.
func (m MarketDataPoint) Validate() error {
	if m.Symbol == "" {
		return fmt.Errorf("types: market data point: empty symbol")
	}
	if m.Price <= 0 {
		return fmt.Errorf("types: market data point: non-positive price %v", m.Price)
	}
	return nil
}

// Signal is an immutable BUY/SELL intent emitted by a strategy on a
// specific bar. HOLD is intentionally not a constructible Signal value —
// callers represent "no signal" as a nil *Signal.
type Signal struct {
	Timestamp time.Time
	Action    Action
	Symbol    string
	Price     float64
	Reason    string
}

var orderSeq atomic.Int64

// NextOrderID returns a monotonically increasing order identifier.
// Shared by every package that stamps an Order with an id on admission.
func NextOrderID() int64 {
	return orderSeq.Add(1)
}

// Order is a concrete instruction routed to execution. Side/Symbol/Qty/Price
// must satisfy their constraints before the order leaves validation; Ts and
// ID are filled in on admission when left zero.
type Order struct {
	ID     int64
	Side   Side
	Symbol string
	Qty    int
	Price  float64
	Ts     int64 // epoch seconds
}

// FromMap builds an Order from an untyped field map, as spec.md §4.A's
// Order::from_map describes: it rejects missing fields, non-positive
// qty/price, and unknown sides, and stamps ts/id lazily when absent.
func FromMap(m map[string]any) (Order, error) {
	var o Order

	side, ok := m["side"].(string)
	if !ok {
		return Order{}, fmt.Errorf("types: order: missing side")
	}
	switch Side(strings.ToUpper(side)) {
	case Buy, Sell:
		o.Side = Side(strings.ToUpper(side))
	default:
		return Order{}, fmt.Errorf("types: order: unknown side %q", side)
	}

	symbol, ok := m["symbol"].(string)
	if !ok || symbol == "" {
		return Order{}, fmt.Errorf("types: order: missing symbol")
	}
	o.Symbol = strings.ToUpper(symbol)

	qty, err := toInt(m["qty"])
	if err != nil || qty <= 0 {
		return Order{}, fmt.Errorf("types: order: non-positive or missing qty")
	}
	o.Qty = qty

	price, err := toFloat(m["price"])
	if err != nil || price <= 0 {
		return Order{}, fmt.Errorf("types: order: non-positive or missing price")
	}
	o.Price = price

	if ts, err := toInt64(m["ts"]); err == nil && ts > 0 {
		o.Ts = ts
	} else {
		o.Ts = time.Now().Unix()
	}

	if id, err := toInt64(m["id"]); err == nil && id > 0 {
		o.ID = id
	} else {
		o.ID = NextOrderID()
	}

	return o, nil
}

// ToMap is the inverse of FromMap, used for the round-trip property
// spec.md §8 requires: FromMap(o.ToMap()) == o for any valid order.
func (o Order) ToMap() map[string]any {
	return map[string]any{
		"id":     o.ID,
		"side":   string(o.Side),
		"symbol": o.Symbol,
		"qty":    o.Qty,
		"price":  o.Price,
		"ts":     o.Ts,
	}
}

// Validate checks the basic order constraints from spec.md §4.A: side must
// be BUY/SELL, qty and price must be positive.
func (o Order) Validate() error {
	if o.Side != Buy && o.Side != Sell {
		return fmt.Errorf("types: order: invalid side %q", o.Side)
	}
	if o.Symbol == "" {
		return fmt.Errorf("types: order: empty symbol")
	}
	if o.Qty <= 0 {
		return fmt.Errorf("types: order: non-positive qty %d", o.Qty)
	}
	if o.Price <= 0 {
		return fmt.Errorf("types: order: non-positive price %v", o.Price)
	}
	return nil
}

// Admit stamps ts/id onto an order if they are absent, returning the
// admitted copy. Order is otherwise immutable from the caller's point of
// view — mutation is modeled as construction of a new value.
func (o Order) Admit() Order {
	admitted := o
	if admitted.Ts == 0 {
		admitted.Ts = time.Now().Unix()
	}
	if admitted.ID == 0 {
		admitted.ID = NextOrderID()
	}
	admitted.Symbol = strings.ToUpper(admitted.Symbol)
	return admitted
}

// BrokerRequest is the neutral projection of an Order that a broker adapter
// needs (side, symbol, qty, limit price, time-in-force) without coupling
// the core to any specific broker SDK. See spec.md §4.A / §6.
type BrokerRequest struct {
	Side   Side
	Symbol string
	Qty    int
	Price  float64
	TIF    string // time-in-force, e.g. "DAY"
}

// ToBrokerRequest projects an Order into the neutral broker request shape.
func (o Order) ToBrokerRequest() BrokerRequest {
	return BrokerRequest{
		Side:   o.Side,
		Symbol: o.Symbol,
		Qty:    o.Qty,
		Price:  o.Price,
		TIF:    "DAY",
	}
}

func toInt(v any) (int, error) {
	switch n := v.(type) {
	case int:
		return n, nil
	case int64:
		return int(n), nil
	case float64:
		return int(n), nil
	default:
		return 0, fmt.Errorf("types: not a number: %v", v)
	}
}

func toInt64(v any) (int64, error) {
	switch n := v.(type) {
	case int:
		return int64(n), nil
	case int64:
		return n, nil
	case float64:
		return int64(n), nil
	default:
		return 0, fmt.Errorf("types: not a number: %v", v)
	}
}

func toFloat(v any) (float64, error) {
	switch n := v.(type) {
	case int:
		return float64(n), nil
	case int64:
		return float64(n), nil
	case float64:
		return n, nil
	default:
		return 0, fmt.Errorf("types: not a number: %v", v)
	}
}
