package broker

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func makeTestLiveBroker(t *testing.T, serverURL string) *LiveBroker {
	t.Helper()

	cfgJSON, _ := json.Marshal(LiveConfig{
		AccountID:   "test-account",
		AccessToken: "test-token",
		BaseURL:     serverURL,
	})

	b, err := NewLiveBroker(cfgJSON)
	if err != nil {
		t.Fatalf("failed to create live broker: %v", err)
	}
	return b.(*LiveBroker)
}

func TestLiveBroker_PlaceOrder_Market(t *testing.T) {
	var received submitReq
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/v1/orders" {
			t.Errorf("unexpected %s %s", r.Method, r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
			return
		}
		if r.Header.Get("Authorization") == "" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}

		json.NewDecoder(r.Body).Decode(&received)
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(submitResp{OrderID: "ORD-12345", Status: "pending_new"})
	}))
	defer server.Close()

	b := makeTestLiveBroker(t, server.URL)

	resp, err := b.PlaceOrder(context.Background(), Order{
		Symbol:   "AAPL",
		Exchange: "NASDAQ",
		Side:     OrderSideBuy,
		Type:     OrderTypeMarket,
		Quantity: 10,
		Tag:      "ma_crossover",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.OrderID != "ORD-12345" {
		t.Errorf("expected order id ORD-12345, got %s", resp.OrderID)
	}
	if resp.Status != OrderStatusPending {
		t.Errorf("expected pending status, got %s", resp.Status)
	}
	if received.ClientOrderID == "" {
		t.Error("expected a client-generated order id to be sent")
	}
	if received.Qty != 10 || received.Symbol != "AAPL" || received.Side != "BUY" {
		t.Errorf("unexpected request body: %+v", received)
	}
}

func TestLiveBroker_GetOrderStatus_MapsFillState(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(orderStatusResp{
			OrderID:        "ORD-1",
			Status:         "filled",
			FilledQty:      10,
			RemainingQty:   0,
			FilledAvgPrice: 101.25,
		})
	}))
	defer server.Close()

	b := makeTestLiveBroker(t, server.URL)
	status, err := b.GetOrderStatus(context.Background(), "ORD-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if status.Status != OrderStatusCompleted {
		t.Errorf("expected completed status, got %s", status.Status)
	}
	if status.FilledQty != 10 || status.AveragePrice != 101.25 {
		t.Errorf("unexpected status: %+v", status)
	}
}

func TestLiveBroker_GetFunds(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(accountResp{Cash: 50000, Equity: 75000, BuyingPower: 100000})
	}))
	defer server.Close()

	b := makeTestLiveBroker(t, server.URL)
	fund, err := b.GetFunds(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if fund.AvailableCash != 50000 || fund.TotalBalance != 75000 {
		t.Errorf("unexpected fund: %+v", fund)
	}
}

func TestLiveBroker_GetPositions(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode([]positionResp{
			{Symbol: "AAPL", Qty: 10, AvgPrice: 100, LastPrice: 105, UnrealizedPL: 50},
		})
	}))
	defer server.Close()

	b := makeTestLiveBroker(t, server.URL)
	positions, err := b.GetPositions(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(positions) != 1 || positions[0].Symbol != "AAPL" || positions[0].PnL != 50 {
		t.Errorf("unexpected positions: %+v", positions)
	}
}

func TestNewLiveBroker_RequiresAccessToken(t *testing.T) {
	cfgJSON, _ := json.Marshal(LiveConfig{BaseURL: "http://localhost"})
	if _, err := NewLiveBroker(cfgJSON); err == nil {
		t.Fatal("expected error for missing access token")
	}
}

func TestNewLiveBroker_RequiresBaseURL(t *testing.T) {
	cfgJSON, _ := json.Marshal(LiveConfig{AccessToken: "tok"})
	if _, err := NewLiveBroker(cfgJSON); err == nil {
		t.Fatal("expected error for missing base url")
	}
}
