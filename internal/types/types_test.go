package types

import "testing"

func TestFromMap_RejectsMissingFields(t *testing.T) {
	cases := []map[string]any{
		{"symbol": "AAPL", "qty": 10, "price": 100.0},
		{"side": "BUY", "qty": 10, "price": 100.0},
		{"side": "BUY", "symbol": "AAPL", "price": 100.0},
		{"side": "BUY", "symbol": "AAPL", "qty": 10},
		{"side": "BUY", "symbol": "AAPL", "qty": -5, "price": 100.0},
		{"side": "BUY", "symbol": "AAPL", "qty": 5, "price": -1.0},
		{"side": "HOLD", "symbol": "AAPL", "qty": 5, "price": 1.0},
	}
	for i, m := range cases {
		if _, err := FromMap(m); err == nil {
			t.Errorf("case %d: expected error, got none", i)
		}
	}
}

func TestFromMap_AssignsTsAndID(t *testing.T) {
	o, err := FromMap(map[string]any{"side": "buy", "symbol": "aapl", "qty": 10, "price": 100.0})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if o.ID == 0 {
		t.Error("expected a non-zero id to be assigned")
	}
	if o.Ts == 0 {
		t.Error("expected a non-zero ts to be assigned")
	}
	if o.Side != Buy {
		t.Errorf("expected side BUY, got %s", o.Side)
	}
	if o.Symbol != "AAPL" {
		t.Errorf("expected canonicalized symbol AAPL, got %s", o.Symbol)
	}
}

func TestOrder_RoundTrip(t *testing.T) {
	o, err := FromMap(map[string]any{"side": "SELL", "symbol": "MSFT", "qty": 3, "price": 42.5})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	rebuilt, err := FromMap(o.ToMap())
	if err != nil {
		t.Fatalf("unexpected error on round trip: %v", err)
	}
	if rebuilt != o {
		t.Errorf("round trip mismatch: got %+v, want %+v", rebuilt, o)
	}
}

func TestOrder_ToBrokerRequest(t *testing.T) {
	o := Order{Side: Buy, Symbol: "AAPL", Qty: 10, Price: 100}
	req := o.ToBrokerRequest()
	if req.Side != Buy || req.Symbol != "AAPL" || req.Qty != 10 || req.Price != 100 {
		t.Errorf("unexpected broker request: %+v", req)
	}
	if req.TIF == "" {
		t.Error("expected a non-empty time-in-force")
	}
}

func TestMarketDataPoint_Validate(t *testing.T) {
	valid := MarketDataPoint{Symbol: "AAPL", Price: 100}
	if err := valid.Validate(); err != nil {
		t.Errorf("expected valid point to pass, got %v", err)
	}

	invalid := []MarketDataPoint{
		{Symbol: "", Price: 100},
		{Symbol: "AAPL", Price: 0},
		{Symbol: "AAPL", Price: -1},
	}
	for i, m := range invalid {
		if err := m.Validate(); err == nil {
			t.Errorf("case %d: expected error, got none", i)
		}
	}
}
