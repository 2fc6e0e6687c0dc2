package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"net/http/httptest"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/nitinkhare/quantpipeline/internal/broker"
)

func newTestServer() *Server {
	logger := log.New(os.Stdout, "[test-webhook] ", log.LstdFlags)
	return NewServer(Config{
		Port:    0, // not used in tests (we use httptest)
		Path:    "/webhook/broker/order",
		Enabled: true,
	}, logger)
}

// postJSON sends a POST request with a JSON body to the server's handler.
func postJSON(s *Server, body interface{}) *httptest.ResponseRecorder {
	data, _ := json.Marshal(body)
	req := httptest.NewRequest(http.MethodPost, "/webhook/broker/order", bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	s.handlePostback(w, req)
	return w
}

func TestPostback_Filled(t *testing.T) {
	s := newTestServer()

	var received OrderUpdate
	var mu sync.Mutex
	s.OnOrderUpdate(func(u OrderUpdate) {
		mu.Lock()
		received = u
		mu.Unlock()
	})

	pb := BrokerPostback{
		AccountID:      "acct-1109435372",
		OrderID:        "ORD-123456",
		ClientOrderID:  "sig_ma_crossover_AAPL",
		Status:         "filled",
		Side:           "BUY",
		Symbol:         "AAPL",
		Qty:            10,
		FilledQty:      10,
		RemainingQty:   0,
		FilledAvgPrice: 149.80,
	}

	resp := postJSON(s, pb)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}

	mu.Lock()
	defer mu.Unlock()
	if received.OrderID != "ORD-123456" {
		t.Errorf("expected OrderID ORD-123456, got %s", received.OrderID)
	}
	if received.Status != broker.OrderStatusCompleted {
		t.Errorf("expected status COMPLETED, got %s", received.Status)
	}
	if received.Symbol != "AAPL" {
		t.Errorf("expected symbol AAPL, got %s", received.Symbol)
	}
	if received.Side != "BUY" {
		t.Errorf("expected side BUY, got %s", received.Side)
	}
	if received.FilledQty != 10 {
		t.Errorf("expected filledQty 10, got %d", received.FilledQty)
	}
	if received.AveragePrice != 149.80 {
		t.Errorf("expected avgPrice 149.80, got %.2f", received.AveragePrice)
	}
	if received.CorrelationID != "sig_ma_crossover_AAPL" {
		t.Errorf("expected correlationID sig_ma_crossover_AAPL, got %s", received.CorrelationID)
	}
	if received.PendingQty != 0 {
		t.Errorf("expected pendingQty 0, got %d", received.PendingQty)
	}
}

func TestPostback_Rejected(t *testing.T) {
	s := newTestServer()

	var received OrderUpdate
	var mu sync.Mutex
	s.OnOrderUpdate(func(u OrderUpdate) {
		mu.Lock()
		received = u
		mu.Unlock()
	})

	pb := BrokerPostback{
		OrderID:      "ORD-789",
		Status:       "rejected",
		Side:         "BUY",
		Symbol:       "MSFT",
		Qty:          5,
		ErrorCode:    "ERR-001",
		ErrorMessage: "insufficient margin",
	}

	resp := postJSON(s, pb)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}

	mu.Lock()
	defer mu.Unlock()
	if received.Status != broker.OrderStatusRejected {
		t.Errorf("expected status REJECTED, got %s", received.Status)
	}
	if received.ErrorCode != "ERR-001" {
		t.Errorf("expected errorCode ERR-001, got %s", received.ErrorCode)
	}
	if received.ErrorMessage != "insufficient margin" {
		t.Errorf("expected errorMessage 'insufficient margin', got %s", received.ErrorMessage)
	}
}

func TestPostback_Cancelled(t *testing.T) {
	s := newTestServer()

	var received OrderUpdate
	var mu sync.Mutex
	s.OnOrderUpdate(func(u OrderUpdate) {
		mu.Lock()
		received = u
		mu.Unlock()
	})

	pb := BrokerPostback{
		OrderID:   "ORD-CXL-100",
		Status:    "canceled",
		Side:      "SELL",
		Symbol:    "INFY",
		Qty:       20,
		FilledQty: 0,
	}

	resp := postJSON(s, pb)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}

	mu.Lock()
	defer mu.Unlock()
	if received.Status != broker.OrderStatusCancelled {
		t.Errorf("expected CANCELLED, got %s", received.Status)
	}
	if received.Side != "SELL" {
		t.Errorf("expected side SELL, got %s", received.Side)
	}
}

func TestPostback_PartialFill(t *testing.T) {
	s := newTestServer()

	var received OrderUpdate
	var mu sync.Mutex
	s.OnOrderUpdate(func(u OrderUpdate) {
		mu.Lock()
		received = u
		mu.Unlock()
	})

	pb := BrokerPostback{
		OrderID:        "ORD-PART-200",
		Status:         "partially_filled",
		Side:           "BUY",
		Symbol:         "TSLA",
		Qty:            100,
		FilledQty:      40,
		RemainingQty:   60,
		FilledAvgPrice: 250.25,
	}

	resp := postJSON(s, pb)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}

	mu.Lock()
	defer mu.Unlock()
	if received.Status != broker.OrderStatusOpen {
		t.Errorf("expected OPEN (partially_filled), got %s", received.Status)
	}
	if received.FilledQty != 40 {
		t.Errorf("expected filledQty 40, got %d", received.FilledQty)
	}
	if received.PendingQty != 60 {
		t.Errorf("expected pendingQty 60, got %d", received.PendingQty)
	}
}

func TestPostback_Expired(t *testing.T) {
	s := newTestServer()

	var received OrderUpdate
	var mu sync.Mutex
	s.OnOrderUpdate(func(u OrderUpdate) {
		mu.Lock()
		received = u
		mu.Unlock()
	})

	pb := BrokerPostback{
		OrderID: "ORD-EXP-300",
		Status:  "expired",
		Side:    "BUY",
		Symbol:  "NVDA",
		Qty:     50,
	}

	resp := postJSON(s, pb)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}

	mu.Lock()
	defer mu.Unlock()
	// expired maps to CANCELLED.
	if received.Status != broker.OrderStatusCancelled {
		t.Errorf("expected CANCELLED (expired), got %s", received.Status)
	}
}

func TestPostback_Pending(t *testing.T) {
	s := newTestServer()

	var received OrderUpdate
	var mu sync.Mutex
	s.OnOrderUpdate(func(u OrderUpdate) {
		mu.Lock()
		received = u
		mu.Unlock()
	})

	pb := BrokerPostback{
		OrderID: "ORD-PND-400",
		Status:  "pending_new",
		Side:    "BUY",
		Symbol:  "AMD",
		Qty:     30,
	}

	resp := postJSON(s, pb)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}

	mu.Lock()
	defer mu.Unlock()
	if received.Status != broker.OrderStatusPending {
		t.Errorf("expected PENDING, got %s", received.Status)
	}
}

func TestPostback_New(t *testing.T) {
	s := newTestServer()

	var received OrderUpdate
	var mu sync.Mutex
	s.OnOrderUpdate(func(u OrderUpdate) {
		mu.Lock()
		received = u
		mu.Unlock()
	})

	pb := BrokerPostback{
		OrderID: "ORD-TRS-500",
		Status:  "new",
		Side:    "BUY",
		Symbol:  "GOOG",
		Qty:     15,
	}

	resp := postJSON(s, pb)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}

	mu.Lock()
	defer mu.Unlock()
	if received.Status != broker.OrderStatusPending {
		t.Errorf("expected PENDING (new), got %s", received.Status)
	}
}

func TestPostback_InvalidJSON(t *testing.T) {
	s := newTestServer()

	req := httptest.NewRequest(http.MethodPost, "/webhook/broker/order",
		bytes.NewReader([]byte(`{not valid json`)))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	s.handlePostback(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for invalid JSON, got %d", w.Code)
	}
}

func TestPostback_MissingOrderID(t *testing.T) {
	s := newTestServer()

	pb := BrokerPostback{
		Status: "filled",
		Side:   "BUY",
		Symbol: "AAPL",
	}

	resp := postJSON(s, pb)
	if resp.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for missing order_id, got %d", resp.Code)
	}
}

func TestPostback_WrongMethod(t *testing.T) {
	s := newTestServer()

	req := httptest.NewRequest(http.MethodGet, "/webhook/broker/order", nil)
	w := httptest.NewRecorder()
	s.handlePostback(w, req)

	if w.Code != http.StatusMethodNotAllowed {
		t.Errorf("expected 405 for GET, got %d", w.Code)
	}
}

func TestPostback_MultipleHandlers(t *testing.T) {
	s := newTestServer()

	var wg sync.WaitGroup
	count := 0
	var mu sync.Mutex

	// Register 3 handlers.
	for i := 0; i < 3; i++ {
		wg.Add(1)
		s.OnOrderUpdate(func(_ OrderUpdate) {
			mu.Lock()
			count++
			mu.Unlock()
			wg.Done()
		})
	}

	pb := BrokerPostback{
		OrderID: "ORD-MULTI-600",
		Status:  "filled",
		Side:    "BUY",
		Symbol:  "IBM",
		Qty:     100,
	}

	postJSON(s, pb)
	wg.Wait()

	mu.Lock()
	defer mu.Unlock()
	if count != 3 {
		t.Errorf("expected 3 handler invocations, got %d", count)
	}
}

func TestRecentUpdates(t *testing.T) {
	s := newTestServer()

	// Send 5 postbacks.
	for i := 1; i <= 5; i++ {
		pb := BrokerPostback{
			OrderID: fmt.Sprintf("ORD-%d", i),
			Status:  "filled",
			Side:    "BUY",
			Symbol:  "AAPL",
			Qty:     10,
		}
		postJSON(s, pb)
	}

	// Request last 3.
	recent := s.RecentUpdates(3)
	if len(recent) != 3 {
		t.Fatalf("expected 3 recent updates, got %d", len(recent))
	}
	if recent[0].OrderID != "ORD-3" {
		t.Errorf("expected first recent to be ORD-3, got %s", recent[0].OrderID)
	}
	if recent[2].OrderID != "ORD-5" {
		t.Errorf("expected last recent to be ORD-5, got %s", recent[2].OrderID)
	}
}

func TestServerStartShutdown(t *testing.T) {
	logger := log.New(os.Stdout, "[test-webhook] ", log.LstdFlags)
	s := NewServer(Config{
		Port:    18923, // unlikely to be in use
		Path:    "/webhook/broker/order",
		Enabled: true,
	}, logger)

	if err := s.Start(); err != nil {
		t.Fatalf("failed to start: %v", err)
	}

	// Give server time to bind.
	time.Sleep(50 * time.Millisecond)

	// Health check.
	resp, err := http.Get("http://localhost:18923/health")
	if err != nil {
		t.Fatalf("health check failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("health check expected 200, got %d", resp.StatusCode)
	}

	// Shutdown.
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.Shutdown(ctx); err != nil {
		t.Fatalf("shutdown failed: %v", err)
	}
}
