// Package orderbook implements a price-time-priority limit order book with
// add/modify/cancel and crossing-based matching.
//
// The book keeps two binary heaps (bids, asks) of heap entries and a map of
// order id to the authoritative entry. Heap entries carry a version number;
// mutating or cancelling an order bumps the entry's version, which turns
// every older heap entry into a tombstone. Tombstones are never removed
// eagerly — they are skipped lazily on peek, per spec.md §4.C/§9.
package orderbook

import (
	"container/heap"
	"fmt"
	"sync/atomic"
)

// Side is the side of a resting order.
type Side string

const (
	Buy  Side = "BUY"
	Sell Side = "SELL"
)

// Trade is a single match produced by the book.
type Trade struct {
	BuyID  int64
	SellID int64
	Price  float64
	Qty    int
	Ts     int64
}

// entry is the authoritative record for one order id. version is bumped on
// every mutation (add/modify/cancel); heapItem.version must match entry.version
// for a heap item to be considered live.
type entry struct {
	orderID int64
	side    Side
	symbol  string
	price   float64
	qty     int
	ts      int64
	active  bool
	seq     int64
	version int64
}

// heapItem is one pushed element. price and seq determine ordering; version
// lets stale pushes be recognized and skipped without an O(n) heap removal.
type heapItem struct {
	orderID int64
	price   float64 // already sign-adjusted so both heaps are min-heaps
	seq     int64
	version int64
}

type itemHeap []heapItem

func (h itemHeap) Len() int { return len(h) }
func (h itemHeap) Less(i, j int) bool {
	if h[i].price != h[j].price {
		return h[i].price < h[j].price
	}
	return h[i].seq < h[j].seq
}
func (h itemHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *itemHeap) Push(x any)        { *h = append(*h, x.(heapItem)) }
func (h *itemHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

// Book is a price-time-priority order book for a single symbol.
type Book struct {
	bids itemHeap // max-heap on price, modeled as min-heap on -price
	asks itemHeap // min-heap on price

	orders map[int64]*entry
	seq    atomic.Int64

	trades []Trade
}

// New creates an empty order book.
func New() *Book {
	b := &Book{orders: make(map[int64]*entry)}
	heap.Init(&b.bids)
	heap.Init(&b.asks)
	return b
}

// AddOrder admits a new order into the book, assigns it time priority, and
// runs matching. Returns the trades produced by this admission (may be
// empty/nil if the order rests without crossing).
func (b *Book) AddOrder(orderID int64, side Side, symbol string, price float64, qty int, ts int64) ([]Trade, error) {
	if qty <= 0 {
		return nil, fmt.Errorf("orderbook: non-positive qty %d", qty)
	}
	if price <= 0 {
		return nil, fmt.Errorf("orderbook: non-positive price %v", price)
	}
	if _, exists := b.orders[orderID]; exists {
		return nil, fmt.Errorf("orderbook: order %d already exists", orderID)
	}

	e := &entry{
		orderID: orderID,
		side:    side,
		symbol:  symbol,
		price:   price,
		qty:     qty,
		ts:      ts,
		active:  true,
		seq:     b.nextSeq(),
		version: 1,
	}
	b.orders[orderID] = e
	b.pushHeap(e)

	return b.match(e), nil
}

// ModifyOrder mutates the quantity and/or price of a live order, bumps its
// seq and version (losing time priority, since it is effectively a new
// admission at the new terms), pushes a fresh heap entry, and re-matches.
func (b *Book) ModifyOrder(orderID int64, newQty *int, newPrice *float64) ([]Trade, error) {
	e, ok := b.orders[orderID]
	if !ok || !e.active {
		return nil, fmt.Errorf("orderbook: unknown or inactive order %d", orderID)
	}

	if newQty != nil {
		if *newQty <= 0 {
			return nil, fmt.Errorf("orderbook: non-positive qty %d", *newQty)
		}
		e.qty = *newQty
	}
	if newPrice != nil {
		if *newPrice <= 0 {
			return nil, fmt.Errorf("orderbook: non-positive price %v", *newPrice)
		}
		e.price = *newPrice
	}

	e.seq = b.nextSeq()
	e.version++
	b.pushHeap(e)

	return b.match(e), nil
}

// CancelOrder deactivates a live order. The order's heap entries become
// tombstones, cleaned up lazily the next time that side is peeked.
func (b *Book) CancelOrder(orderID int64) error {
	e, ok := b.orders[orderID]
	if !ok {
		return fmt.Errorf("orderbook: unknown order %d", orderID)
	}
	if !e.active {
		return nil
	}
	e.active = false
	e.qty = 0
	e.version++
	return nil
}

// BestBid returns the best live resting buy price and true, or (0, false)
// if the bid side is empty.
func (b *Book) BestBid() (float64, bool) {
	e := b.peekLive(&b.bids)
	if e == nil {
		return 0, false
	}
	return e.price, true
}

// BestAsk returns the best live resting sell price and true, or (0, false)
// if the ask side is empty.
func (b *Book) BestAsk() (float64, bool) {
	e := b.peekLive(&b.asks)
	if e == nil {
		return 0, false
	}
	return e.price, true
}

// DepthLevel is one aggregated price level in Depth's output.
type DepthLevel struct {
	Price float64
	Qty   int
}

// Depth aggregates live entries by price, sorted best-first, for the given
// side.
func (b *Book) Depth(side Side) []DepthLevel {
	levels := make(map[float64]int)
	for _, e := range b.orders {
		if e.active && e.side == side && e.qty > 0 {
			levels[e.price] += e.qty
		}
	}

	out := make([]DepthLevel, 0, len(levels))
	for price, qty := range levels {
		out = append(out, DepthLevel{Price: price, Qty: qty})
	}

	// Bids best-first means highest price first; asks best-first means
	// lowest price first.
	for i := 1; i < len(out); i++ {
		for j := i; j > 0; j-- {
			swap := false
			if side == Buy {
				swap = out[j].Price > out[j-1].Price
			} else {
				swap = out[j].Price < out[j-1].Price
			}
			if !swap {
				break
			}
			out[j], out[j-1] = out[j-1], out[j]
		}
	}
	return out
}

// Trades returns every trade generated by this book so far.
func (b *Book) Trades() []Trade {
	return b.trades
}

func (b *Book) nextSeq() int64 {
	return b.seq.Add(1)
}

func (b *Book) pushHeap(e *entry) {
	item := heapItem{orderID: e.orderID, seq: e.seq, version: e.version}
	if e.side == Buy {
		item.price = -e.price
		heap.Push(&b.bids, item)
	} else {
		item.price = e.price
		heap.Push(&b.asks, item)
	}
}

// peekLive pops stale tops (tombstones) until a live top is found or the
// heap empties, leaving the live entry (if any) at the top of the heap.
func (b *Book) peekLive(h *itemHeap) *entry {
	for h.Len() > 0 {
		top := (*h)[0]
		e, ok := b.orders[top.orderID]
		if !ok || !e.active || e.version != top.version || e.qty <= 0 {
			heap.Pop(h)
			continue
		}
		return e
	}
	return nil
}

// match runs the price-time-priority crossing algorithm for the just
// -admitted/modified entry against the opposite side, per spec.md §4.C.
func (b *Book) match(incoming *entry) []Trade {
	var produced []Trade

	var oppositeHeap *itemHeap
	if incoming.side == Buy {
		oppositeHeap = &b.asks
	} else {
		oppositeHeap = &b.bids
	}

	for incoming.active && incoming.qty > 0 {
		resting := b.peekLive(oppositeHeap)
		if resting == nil {
			break
		}

		if incoming.side == Buy && incoming.price < resting.price {
			break
		}
		if incoming.side == Sell && incoming.price > resting.price {
			break
		}

		tradeQty := min(incoming.qty, resting.qty)
		tradePrice := resting.price // resting side sets price; aggressor gets price improvement

		incoming.qty -= tradeQty
		resting.qty -= tradeQty
		// Note: a fill does not bump resting.version — its existing heap
		// entry is still the correct position for its (unchanged) price.
		// peekLive's e.qty<=0 check retires it once fully consumed.

		var trade Trade
		if incoming.side == Buy {
			trade = Trade{BuyID: incoming.orderID, SellID: resting.orderID, Price: tradePrice, Qty: tradeQty, Ts: incoming.ts}
		} else {
			trade = Trade{BuyID: resting.orderID, SellID: incoming.orderID, Price: tradePrice, Qty: tradeQty, Ts: incoming.ts}
		}
		b.trades = append(b.trades, trade)
		produced = append(produced, trade)

		if resting.qty == 0 {
			resting.active = false
		}
	}

	if incoming.qty == 0 {
		incoming.active = false
	}

	return produced
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
