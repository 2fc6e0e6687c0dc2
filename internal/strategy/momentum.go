// Package strategy - momentum.go implements the rate-of-change momentum
// strategy: entry requires a crossing above +threshold, exit fires on any
// breach below -threshold. The asymmetry is intentional — see spec.md §9.
package strategy

import "github.com/nitinkhare/quantpipeline/internal/types"

// Momentum tracks the last Window+1 prices and computes the rate of change
// against the price Window bars back.
type Momentum struct {
	symbol       string
	window       int
	threshold    float64
	positionSize int

	prices []float64

	prevMomentumAboveThresh bool
	pos                     position
}

// NewMomentum constructs a momentum strategy for symbol. window must be
// >= 1 and threshold must be > 0.
func NewMomentum(symbol string, window int, threshold float64, positionSize int) *Momentum {
	return &Momentum{
		symbol:       symbol,
		window:       window,
		threshold:    threshold,
		positionSize: positionSize,
	}
}

func (s *Momentum) Symbol() string    { return s.symbol }
func (s *Momentum) PositionSize() int { return s.positionSize }

// OnNewBar implements Strategy. See spec.md §4.B.2.
func (s *Momentum) OnNewBar(bar types.MarketDataPoint) *types.Signal {
	if bar.Symbol != s.symbol {
		return nil
	}

	s.prices = append(s.prices, bar.Price)
	if len(s.prices) > s.window+1 {
		s.prices = s.prices[len(s.prices)-(s.window+1):]
	}
	if len(s.prices) < s.window+1 {
		return nil
	}

	prior := s.prices[0]
	if prior == 0 {
		// Momentum undefined when the divisor is zero; skip this bar.
		return nil
	}
	momentum := (bar.Price - prior) / prior

	aboveThresh := momentum > s.threshold
	belowNegThresh := momentum < -s.threshold

	var sig *types.Signal
	if !s.prevMomentumAboveThresh && aboveThresh && s.pos == flat {
		sig = &types.Signal{Timestamp: bar.Timestamp, Action: types.ActionBuy, Symbol: s.symbol, Price: bar.Price, Reason: "momentum: crossed above threshold"}
		s.pos = long
	} else if belowNegThresh && s.pos == long {
		// Exit fires on any breach, not only on a crossing — asymmetric by
		// contract (spec.md §4.B.2 / §9).
		sig = &types.Signal{Timestamp: bar.Timestamp, Action: types.ActionSell, Symbol: s.symbol, Price: bar.Price, Reason: "momentum: breached negative threshold"}
		s.pos = flat
	}

	s.prevMomentumAboveThresh = aboveThresh
	return sig
}
