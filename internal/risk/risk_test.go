package risk

import (
	"sync"
	"testing"

	"github.com/nitinkhare/quantpipeline/internal/config"
	"github.com/nitinkhare/quantpipeline/internal/types"
)

func testCfg() config.RiskConfig {
	return config.RiskConfig{
		MaxOrderSize: 50,
		MaxPosition:  100,
		Cash:         10_000,
		MaxTotalBuy:  1000,
		MaxTotalSell: 1000,
	}
}

func TestCheck_OrderSizeCap(t *testing.T) {
	m := NewManager(testCfg(), nil)
	order := types.Order{ID: 1, Side: types.Buy, Symbol: "AAPL", Qty: 51, Price: 10}
	ok, reason := m.Check(order)
	if ok || reason != RejectOrderSize {
		t.Fatalf("expected order-size rejection, got ok=%v reason=%v", ok, reason)
	}
}

func TestCheck_MaxPositionCap(t *testing.T) {
	cfg := testCfg()
	cfg.MaxOrderSize = 60
	m := NewManager(cfg, nil)
	buy := types.Order{ID: 1, Side: types.Buy, Symbol: "AAPL", Qty: 50, Price: 10}

	if ok, _ := m.Check(buy); !ok {
		t.Fatalf("expected first buy to pass")
	}
	m.UpdatePosition(buy, 50)

	// Net position is now 50; a further 51-qty buy would push net to 101 > 100.
	second := types.Order{ID: 2, Side: types.Buy, Symbol: "AAPL", Qty: 51, Price: 10}
	ok, reason := m.Check(second)
	if ok || reason != RejectMaxPosition {
		t.Fatalf("expected max-position rejection, got ok=%v reason=%v", ok, reason)
	}
}

func TestCheck_CumulativeBuyCap(t *testing.T) {
	cfg := testCfg()
	cfg.MaxTotalBuy = 60
	cfg.MaxPosition = 10_000
	m := NewManager(cfg, nil)

	first := types.Order{ID: 1, Side: types.Buy, Symbol: "AAPL", Qty: 50, Price: 1}
	if ok, _ := m.Check(first); !ok {
		t.Fatalf("expected first buy to pass")
	}
	m.UpdatePosition(first, 50)

	second := types.Order{ID: 2, Side: types.Buy, Symbol: "AAPL", Qty: 20, Price: 1}
	ok, reason := m.Check(second)
	if ok || reason != RejectCumulativeCap {
		t.Fatalf("expected cumulative-buy rejection, got ok=%v reason=%v", ok, reason)
	}
}

// TestCheck_CashCapRejectsEveryBuy exercises spec.md §8 scenario 5: a zero
// cash balance must reject every BUY, regardless of qty/price, while SELLs
// are unaffected by the cash check.
func TestCheck_CashCapRejectsEveryBuy(t *testing.T) {
	cfg := testCfg()
	cfg.Cash = 0
	m := NewManager(cfg, nil)

	buy := types.Order{ID: 1, Side: types.Buy, Symbol: "AAPL", Qty: 1, Price: 1}
	if ok, reason := m.Check(buy); ok || reason != RejectCash {
		t.Fatalf("expected cash rejection for any buy with zero cash, got ok=%v reason=%v", ok, reason)
	}

	sell := types.Order{ID: 2, Side: types.Sell, Symbol: "AAPL", Qty: 1, Price: 1}
	if ok, _ := m.Check(sell); !ok {
		t.Fatalf("expected sell to pass with zero cash")
	}
}

func TestCheck_BuyExceedsCash(t *testing.T) {
	cfg := testCfg()
	cfg.Cash = 500
	m := NewManager(cfg, nil)

	order := types.Order{ID: 1, Side: types.Buy, Symbol: "AAPL", Qty: 10, Price: 60}
	ok, reason := m.Check(order)
	if ok || reason != RejectCash {
		t.Fatalf("expected cash rejection (600 > 500), got ok=%v reason=%v", ok, reason)
	}
}

func TestUpdatePosition_TracksCashAndPosition(t *testing.T) {
	m := NewManager(testCfg(), nil)
	buy := types.Order{ID: 1, Side: types.Buy, Symbol: "AAPL", Qty: 10, Price: 100}
	m.UpdatePosition(buy, 10)

	if got := m.Position("AAPL"); got != 10 {
		t.Errorf("expected position 10, got %d", got)
	}
	if got := m.Cash(); got != testCfg().Cash-1000 {
		t.Errorf("expected cash reduced by 1000, got %v", got)
	}

	sell := types.Order{ID: 2, Side: types.Sell, Symbol: "AAPL", Qty: 4, Price: 110}
	m.UpdatePosition(sell, 4)

	if got := m.Position("AAPL"); got != 6 {
		t.Errorf("expected position 6 after partial sell, got %d", got)
	}
	if got := m.Cash(); got != testCfg().Cash-1000+440 {
		t.Errorf("expected cash updated after sell, got %v", got)
	}
}

func TestUpdatePosition_PartialFillUsesPartialQtyNotOrderQty(t *testing.T) {
	m := NewManager(testCfg(), nil)
	order := types.Order{ID: 1, Side: types.Buy, Symbol: "AAPL", Qty: 20, Price: 10}
	m.UpdatePosition(order, 7) // partial fill: only 7 of 20 filled

	if got := m.Position("AAPL"); got != 7 {
		t.Errorf("expected position to reflect filled qty 7, not order qty 20, got %d", got)
	}
}

func TestInit_SecondCallIsSilentNoOp(t *testing.T) {
	once = sync.Once{}
	singleton = nil

	first := Init(config.RiskConfig{MaxOrderSize: 1, MaxPosition: 1, Cash: 1, MaxTotalBuy: 1, MaxTotalSell: 1}, nil)
	second := Init(config.RiskConfig{MaxOrderSize: 99, MaxPosition: 99, Cash: 99, MaxTotalBuy: 99, MaxTotalSell: 99}, nil)

	if first != second {
		t.Fatalf("expected Init to return the same singleton instance on re-init")
	}
	if Instance() != first {
		t.Fatalf("expected Instance() to return the singleton built by Init")
	}
}
