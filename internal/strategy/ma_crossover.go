// Package strategy - ma_crossover.go implements the moving-average
// crossover strategy: a short rolling average crossing above a long
// rolling average signals entry, crossing back below signals exit.
package strategy

import "github.com/nitinkhare/quantpipeline/internal/types"

// MACrossover maintains two rolling windows of the last ShortW and LongW
// prices (and their running sums, updated in O(1) per bar) and emits a
// signal only on the bar where the short/long relation flips.
type MACrossover struct {
	symbol       string
	shortW       int
	longW        int
	positionSize int

	shortPrices []float64
	longPrices  []float64
	shortSum    float64
	longSum     float64

	seeded           bool
	prevShortGtLong  bool
	pos              position
}

// NewMACrossover constructs a MA crossover strategy for symbol. shortW must
// be less than longW.
func NewMACrossover(symbol string, shortW, longW, positionSize int) *MACrossover {
	return &MACrossover{
		symbol:       symbol,
		shortW:       shortW,
		longW:        longW,
		positionSize: positionSize,
	}
}

func (s *MACrossover) Symbol() string    { return s.symbol }
func (s *MACrossover) PositionSize() int { return s.positionSize }

// OnNewBar implements Strategy. See spec.md §4.B.1 for the crossing rules.
func (s *MACrossover) OnNewBar(bar types.MarketDataPoint) *types.Signal {
	if bar.Symbol != s.symbol {
		return nil
	}

	s.shortSum = pushWindow(&s.shortPrices, s.shortSum, bar.Price, s.shortW)
	s.longSum = pushWindow(&s.longPrices, s.longSum, bar.Price, s.longW)

	if len(s.shortPrices) < s.shortW || len(s.longPrices) < s.longW {
		return nil
	}

	shortAvg := s.shortSum / float64(s.shortW)
	longAvg := s.longSum / float64(s.longW)
	shortGtLong := shortAvg > longAvg

	if !s.seeded {
		// No prior sample exists yet: seed the relation, emit nothing.
		s.seeded = true
		s.prevShortGtLong = shortGtLong
		return nil
	}

	var sig *types.Signal
	if !s.prevShortGtLong && shortGtLong && s.pos == flat {
		sig = &types.Signal{Timestamp: bar.Timestamp, Action: types.ActionBuy, Symbol: s.symbol, Price: bar.Price, Reason: "ma_crossover: short crossed above long"}
		s.pos = long
	} else if s.prevShortGtLong && !shortGtLong && s.pos == long {
		sig = &types.Signal{Timestamp: bar.Timestamp, Action: types.ActionSell, Symbol: s.symbol, Price: bar.Price, Reason: "ma_crossover: short crossed below long"}
		s.pos = flat
	}

	s.prevShortGtLong = shortGtLong
	return sig
}

// pushWindow appends price to the window, dropping the oldest value once
// the window is full, and returns the updated running sum. This keeps each
// bar's window maintenance O(1).
func pushWindow(window *[]float64, sum float64, price float64, capacity int) float64 {
	if len(*window) == capacity {
		sum -= (*window)[0]
		*window = (*window)[1:]
	}
	*window = append(*window, price)
	return sum + price
}
