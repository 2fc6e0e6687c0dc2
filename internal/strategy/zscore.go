// Package strategy - zscore.go implements the z-score mean-reversion
// strategy: entry on an oversold z-score, exit on the mean-crossing that
// follows it.
package strategy

import (
	"math"

	"github.com/nitinkhare/quantpipeline/internal/types"
)

// ZScore maintains a rolling window of the last Window prices and computes
// the population mean/std of that window each bar.
type ZScore struct {
	symbol       string
	window       int
	threshold    float64
	positionSize int

	prices []float64
	pos    position
}

// NewZScore constructs a z-score mean-reversion strategy for symbol.
// window must be >= 2 and threshold must be > 0.
func NewZScore(symbol string, window int, threshold float64, positionSize int) *ZScore {
	return &ZScore{
		symbol:       symbol,
		window:       window,
		threshold:    threshold,
		positionSize: positionSize,
	}
}

func (s *ZScore) Symbol() string    { return s.symbol }
func (s *ZScore) PositionSize() int { return s.positionSize }

// OnNewBar implements Strategy. See spec.md §4.B.3. The exit condition
// recomputes "the previous bar's z-score" by substituting the previous
// price into the current window, rather than replaying history — this is
// the deliberate approximation spec.md §4.B.3/§9 calls out.
func (s *ZScore) OnNewBar(bar types.MarketDataPoint) *types.Signal {
	if bar.Symbol != s.symbol {
		return nil
	}

	s.prices = append(s.prices, bar.Price)
	if len(s.prices) > s.window {
		s.prices = s.prices[len(s.prices)-s.window:]
	}
	if len(s.prices) < s.window {
		return nil
	}

	mean, std := meanStd(s.prices)
	if std == 0 {
		return nil
	}
	z := (bar.Price - mean) / std

	var sig *types.Signal
	if s.pos == flat && z < -s.threshold {
		sig = &types.Signal{Timestamp: bar.Timestamp, Action: types.ActionBuy, Symbol: s.symbol, Price: bar.Price, Reason: "zscore: oversold entry"}
		s.pos = long
	} else if s.pos == long && len(s.prices) >= 2 {
		prevPrice := s.prices[len(s.prices)-2]
		prevWindow := make([]float64, len(s.prices))
		copy(prevWindow, s.prices)
		prevWindow[len(prevWindow)-1] = prevPrice
		prevMean, prevStd := meanStd(prevWindow)
		if prevStd != 0 {
			prevZ := (prevPrice - prevMean) / prevStd
			if prevZ < 0 && z >= 0 {
				sig = &types.Signal{Timestamp: bar.Timestamp, Action: types.ActionSell, Symbol: s.symbol, Price: bar.Price, Reason: "zscore: mean-crossing exit"}
				s.pos = flat
			}
		}
	}

	return sig
}

// meanStd returns the arithmetic mean and population standard deviation
// (divide by N, not N-1) of values.
func meanStd(values []float64) (mean, std float64) {
	n := float64(len(values))
	var sum float64
	for _, v := range values {
		sum += v
	}
	mean = sum / n

	var variance float64
	for _, v := range values {
		d := v - mean
		variance += d * d
	}
	variance /= n

	return mean, math.Sqrt(variance)
}
