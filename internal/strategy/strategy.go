// Package strategy implements the streaming strategy family.
//
// Design rules (from spec):
//   - A strategy is an incremental state machine, not a batch function.
//   - Strategies are deterministic given their input sequence: no hidden
//     clocks, no external I/O beyond an optional sentiment callback.
//   - MA crossover signals only on crossing events; momentum, z-score and
//     sentiment also act on threshold levels, gated by their position state.
//   - Numerical degeneracies (div-by-zero, NaN inputs) and bars for a
//     non-target symbol never produce a signal and never error.
package strategy

import "github.com/nitinkhare/quantpipeline/internal/types"

// Strategy is the capability every streaming strategy variant implements.
// One instance trades exactly one symbol; callers key instances by symbol.
type Strategy interface {
	// OnNewBar consumes one MarketDataPoint and returns a Signal if (and
	// only if) this bar crosses an entry/exit condition. Returns nil when
	// there is nothing to do.
	OnNewBar(bar types.MarketDataPoint) *types.Signal

	// Symbol returns the symbol this instance trades.
	Symbol() string

	// PositionSize returns the quantity to use when an emitted signal is
	// turned into an Order.
	PositionSize() int
}

// position tracks whether a strategy instance currently believes itself
// invested. 0 = flat, 1 = long. Shared embedding for all four variants so
// each only has to flip it on emit.
type position int

const (
	flat position = 0
	long position = 1
)
