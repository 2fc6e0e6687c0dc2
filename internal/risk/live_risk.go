// Package risk - live_risk.go implements the live-broker risk variant.
// It shares Manager's logical Check contract and logging behavior, but its
// backing state comes from the broker itself rather than an in-process
// ledger: cash and positions are read back from the broker on every call,
// so there is nothing to desynchronize from the account's real state.
package risk

import (
	"context"
	"log"
	"sync"

	"github.com/nitinkhare/quantpipeline/internal/broker"
	"github.com/nitinkhare/quantpipeline/internal/types"
)

const (
	RejectNotionalCap RejectReason = "notional_cap"
	RejectEquityPct   RejectReason = "position_equity_pct_cap"
)

// LiveManager enforces a per-order notional cap and a max-percentage-of-
// equity cap per symbol, backed by broker funds/position reads.
type LiveManager struct {
	mu     sync.Mutex
	broker broker.Broker
	logger *log.Logger

	maxOrderNotional     float64
	maxPositionEquityPct float64 // e.g. 0.2 == no symbol may exceed 20% of equity
}

// NewLiveManager constructs the live-broker risk variant.
func NewLiveManager(b broker.Broker, maxOrderNotional, maxPositionEquityPct float64, logger *log.Logger) *LiveManager {
	if logger == nil {
		logger = log.New(log.Writer(), "", log.LstdFlags)
	}
	return &LiveManager{
		broker:               b,
		logger:               logger,
		maxOrderNotional:     maxOrderNotional,
		maxPositionEquityPct: maxPositionEquityPct,
	}
}

// Check queries the broker for current funds and positions and evaluates
// order against the notional and equity-percentage caps. Like Manager.Check
// it is read-only; accounting after a fill is the broker's own job.
func (lm *LiveManager) Check(ctx context.Context, order types.Order) (bool, RejectReason) {
	lm.mu.Lock()
	defer lm.mu.Unlock()

	notional := float64(order.Qty) * order.Price
	if lm.maxOrderNotional > 0 && notional > lm.maxOrderNotional {
		lm.reject(order, RejectNotionalCap)
		return false, RejectNotionalCap
	}

	funds, err := lm.broker.GetFunds(ctx)
	if err != nil {
		lm.logger.Printf("[risk-live] could not read funds, rejecting order id=%d: %v", order.ID, err)
		return false, RejectCash
	}

	if order.Side == types.Buy && notional > funds.AvailableCash {
		lm.reject(order, RejectCash)
		return false, RejectCash
	}

	if lm.maxPositionEquityPct > 0 && funds.TotalBalance > 0 {
		positions, err := lm.broker.GetPositions(ctx)
		if err != nil {
			lm.logger.Printf("[risk-live] could not read positions, rejecting order id=%d: %v", order.ID, err)
			return false, RejectEquityPct
		}

		existingNotional := 0.0
		for _, p := range positions {
			if p.Symbol == order.Symbol {
				existingNotional = float64(p.Quantity) * p.LastPrice
			}
		}

		prospectiveNotional := existingNotional
		if order.Side == types.Buy {
			prospectiveNotional += notional
		} else {
			prospectiveNotional -= notional
		}
		if prospectiveNotional < 0 {
			prospectiveNotional = -prospectiveNotional
		}

		if prospectiveNotional/funds.TotalBalance > lm.maxPositionEquityPct {
			lm.reject(order, RejectEquityPct)
			return false, RejectEquityPct
		}
	}

	return true, ""
}

// UpdatePosition is a no-op for the live variant: the broker itself is the
// ledger of record, so there is no in-process state to advance on a fill.
func (lm *LiveManager) UpdatePosition(order types.Order, filledQty int) {}

func (lm *LiveManager) reject(order types.Order, reason RejectReason) {
	lm.logger.Printf("[risk-live] rejected order id=%d symbol=%s side=%s qty=%d price=%.2f reason=%s",
		order.ID, order.Symbol, order.Side, order.Qty, order.Price, reason)
}
