// Package strategy - sentiment.go implements the sentiment-gated strategy:
// entries and exits are conditioned on an external sentiment reading rather
// than price action alone, with a cooldown between trades.
package strategy

import "github.com/nitinkhare/quantpipeline/internal/types"

// SentimentLookup resolves a sentiment score in [-1, 1] for a symbol at a
// given bar timestamp. Absent data must yield 0, per spec.md §4.B.4.
type SentimentLookup func(timestampUnix int64, symbol string) float64

// Sentiment gates entry/exit on sentiment rather than price action. A
// cooldown in bars prevents re-entering immediately after a trade.
type Sentiment struct {
	symbol           string
	positiveThresh   float64
	negativeThresh   float64
	cooldownBars     int
	positionSize     int
	lookup           SentimentLookup

	barsSinceTrade int
	pos            position
}

// NewSentiment constructs a sentiment-gated strategy. negativeThresh must
// be < 0 < positiveThresh and cooldownBars must be >= 1. lookup may be nil,
// in which case sentiment is always treated as 0.
func NewSentiment(symbol string, positiveThresh, negativeThresh float64, cooldownBars, positionSize int, lookup SentimentLookup) *Sentiment {
	return &Sentiment{
		symbol:         symbol,
		positiveThresh: positiveThresh,
		negativeThresh: negativeThresh,
		cooldownBars:   cooldownBars,
		positionSize:   positionSize,
		lookup:         lookup,
		barsSinceTrade: cooldownBars,
	}
}

func (s *Sentiment) Symbol() string    { return s.symbol }
func (s *Sentiment) PositionSize() int { return s.positionSize }

// OnNewBar implements Strategy. See spec.md §4.B.4.
func (s *Sentiment) OnNewBar(bar types.MarketDataPoint) *types.Signal {
	if bar.Symbol != s.symbol {
		return nil
	}

	var sentiment float64
	if s.lookup != nil {
		sentiment = s.lookup(bar.Timestamp.Unix(), bar.Symbol)
	}

	if s.barsSinceTrade < s.cooldownBars {
		s.barsSinceTrade++
	}

	var sig *types.Signal
	if s.pos == flat && sentiment >= s.positiveThresh && s.barsSinceTrade >= s.cooldownBars {
		sig = &types.Signal{Timestamp: bar.Timestamp, Action: types.ActionBuy, Symbol: s.symbol, Price: bar.Price, Reason: "sentiment: positive reading above threshold"}
		s.pos = long
		s.barsSinceTrade = 0
	} else if s.pos == long && sentiment <= s.negativeThresh {
		sig = &types.Signal{Timestamp: bar.Timestamp, Action: types.ActionSell, Symbol: s.symbol, Price: bar.Price, Reason: "sentiment: negative reading below threshold"}
		s.pos = flat
		s.barsSinceTrade = 0
	}

	return sig
}
