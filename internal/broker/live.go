// Package broker - live.go implements a generic REST broker adapter.
//
// It is the template live implementation spec.md §6 describes: submit(order)
// -> {status, filled_qty, filled_avg_price}, get_account() -> {cash, equity,
// buying_power}, get_open_position(symbol) -> {qty, market_value}?,
// get_all_positions() -> list. The core treats any broker satisfying the
// Broker interface identically; this file shows the shape a real broker
// SDK wrapper would take without committing the module to one.
package broker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
)

// LiveConfig holds the REST broker's API configuration.
type LiveConfig struct {
	AccountID   string `json:"account_id"`
	AccessToken string `json:"access_token"`
	BaseURL     string `json:"base_url"`
}

// LiveBroker implements the Broker interface against a generic REST
// order-management API. Every order it submits is tagged with a
// client-generated UUID (spec.md §6's broker adapter is non-deterministic
// by nature, unlike the paper broker's sequential "PAPER-%d" ids).
type LiveBroker struct {
	config LiveConfig
	client *http.Client
}

func init() {
	Registry["live"] = NewLiveBroker
}

// NewLiveBroker creates a new REST broker instance from JSON config.
func NewLiveBroker(configJSON []byte) (Broker, error) {
	var cfg LiveConfig
	if err := json.Unmarshal(configJSON, &cfg); err != nil {
		return nil, fmt.Errorf("live broker: parse config: %w", err)
	}
	if cfg.AccessToken == "" {
		return nil, fmt.Errorf("live broker: access_token is required")
	}
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("live broker: base_url is required")
	}

	return &LiveBroker{
		config: cfg,
		client: &http.Client{Timeout: 30 * time.Second},
	}, nil
}

// --- wire request/response shapes ---

type submitReq struct {
	ClientOrderID string  `json:"client_order_id"`
	AccountID     string  `json:"account_id"`
	Symbol        string  `json:"symbol"`
	Side          string  `json:"side"`
	Type          string  `json:"type"`
	TimeInForce   string  `json:"time_in_force"`
	Qty           int     `json:"qty"`
	LimitPrice    float64 `json:"limit_price,omitempty"`
	StopPrice     float64 `json:"stop_price,omitempty"`
}

type submitResp struct {
	OrderID string `json:"order_id"`
	Status  string `json:"status"`
}

type orderStatusResp struct {
	OrderID        string  `json:"order_id"`
	Status         string  `json:"status"`
	FilledQty      int     `json:"filled_qty"`
	RemainingQty   int     `json:"remaining_qty"`
	FilledAvgPrice float64 `json:"filled_avg_price"`
	Message        string  `json:"message"`
}

type accountResp struct {
	Cash        float64 `json:"cash"`
	Equity      float64 `json:"equity"`
	BuyingPower float64 `json:"buying_power"`
}

type positionResp struct {
	Symbol       string  `json:"symbol"`
	Qty          int     `json:"qty"`
	AvgPrice     float64 `json:"avg_entry_price"`
	MarketValue  float64 `json:"market_value"`
	LastPrice    float64 `json:"current_price"`
	UnrealizedPL float64 `json:"unrealized_pl"`
}

type apiErrorResp struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// --- HTTP helper ---

func (b *LiveBroker) doRequest(ctx context.Context, method, path string, body interface{}) ([]byte, error) {
	url := b.config.BaseURL + path

	var bodyReader io.Reader
	if body != nil {
		bodyJSON, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal request: %w", err)
		}
		bodyReader = bytes.NewReader(bodyJSON)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+b.config.AccessToken)

	resp, err := b.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode == http.StatusUnauthorized {
		return nil, fmt.Errorf("authentication failed (401): access token may have expired")
	}
	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, fmt.Errorf("rate limited (429): too many requests")
	}
	if resp.StatusCode >= 400 {
		var apiErr apiErrorResp
		if json.Unmarshal(respBody, &apiErr) == nil && apiErr.Code != "" {
			return nil, fmt.Errorf("broker API error %s: %s", apiErr.Code, apiErr.Message)
		}
		return nil, fmt.Errorf("broker API error %d: %s", resp.StatusCode, string(respBody))
	}

	return respBody, nil
}

// --- Broker interface implementation ---

// PlaceOrder submits an order via POST /v1/orders.
func (b *LiveBroker) PlaceOrder(ctx context.Context, order Order) (*OrderResponse, error) {
	orderType := "limit"
	if order.Type == OrderTypeMarket {
		orderType = "market"
	}

	req := submitReq{
		ClientOrderID: uuid.NewString(),
		AccountID:     b.config.AccountID,
		Symbol:        order.Symbol,
		Side:          string(order.Side),
		Type:          orderType,
		TimeInForce:   "day",
		Qty:           order.Quantity,
		LimitPrice:    order.Price,
		StopPrice:     order.TriggerPrice,
	}

	respBody, err := b.doRequest(ctx, http.MethodPost, "/v1/orders", req)
	if err != nil {
		return nil, fmt.Errorf("live broker PlaceOrder: %w", err)
	}

	var sr submitResp
	if err := json.Unmarshal(respBody, &sr); err != nil {
		return nil, fmt.Errorf("live broker PlaceOrder: parse response: %w", err)
	}

	return &OrderResponse{
		OrderID:   sr.OrderID,
		Status:    mapLiveStatus(sr.Status),
		Message:   fmt.Sprintf("order placed: %s %d %s @ %s", order.Side, order.Quantity, order.Symbol, orderType),
		Timestamp: time.Now(),
	}, nil
}

// GetOrderStatus checks order status via GET /v1/orders/{id}.
func (b *LiveBroker) GetOrderStatus(ctx context.Context, orderID string) (*OrderStatusResponse, error) {
	respBody, err := b.doRequest(ctx, http.MethodGet, "/v1/orders/"+orderID, nil)
	if err != nil {
		return nil, fmt.Errorf("live broker GetOrderStatus: %w", err)
	}

	var detail orderStatusResp
	if err := json.Unmarshal(respBody, &detail); err != nil {
		return nil, fmt.Errorf("live broker GetOrderStatus: parse response: %w", err)
	}

	return &OrderStatusResponse{
		OrderID:      detail.OrderID,
		Status:       mapLiveStatus(detail.Status),
		FilledQty:    detail.FilledQty,
		PendingQty:   detail.RemainingQty,
		AveragePrice: detail.FilledAvgPrice,
		Message:      detail.Message,
		Timestamp:    time.Now(),
	}, nil
}

// CancelOrder cancels a pending order via DELETE /v1/orders/{id}.
func (b *LiveBroker) CancelOrder(ctx context.Context, orderID string) error {
	_, err := b.doRequest(ctx, http.MethodDelete, "/v1/orders/"+orderID, nil)
	if err != nil {
		return fmt.Errorf("live broker CancelOrder: %w", err)
	}
	return nil
}

// GetFunds retrieves account cash/equity via GET /v1/account.
func (b *LiveBroker) GetFunds(ctx context.Context) (*Fund, error) {
	respBody, err := b.doRequest(ctx, http.MethodGet, "/v1/account", nil)
	if err != nil {
		return nil, fmt.Errorf("live broker GetFunds: %w", err)
	}

	var acct accountResp
	if err := json.Unmarshal(respBody, &acct); err != nil {
		return nil, fmt.Errorf("live broker GetFunds: parse response: %w", err)
	}

	return &Fund{
		AvailableCash: acct.Cash,
		UsedMargin:    acct.Equity - acct.Cash,
		TotalBalance:  acct.Equity,
	}, nil
}

// GetHoldings is equivalent to GetPositions for this adapter: the broker's
// REST API models delivery and intraday positions identically.
func (b *LiveBroker) GetHoldings(ctx context.Context) ([]Holding, error) {
	positions, err := b.GetPositions(ctx)
	if err != nil {
		return nil, err
	}
	holdings := make([]Holding, 0, len(positions))
	for _, p := range positions {
		holdings = append(holdings, Holding{
			Symbol:       p.Symbol,
			Exchange:     p.Exchange,
			Quantity:     p.Quantity,
			AveragePrice: p.AveragePrice,
			LastPrice:    p.LastPrice,
			PnL:          p.PnL,
		})
	}
	return holdings, nil
}

// GetPositions retrieves all open positions via GET /v1/positions
// (get_all_positions from spec.md §6; get_open_position(symbol) is a
// client-side filter over the same list).
func (b *LiveBroker) GetPositions(ctx context.Context) ([]Position, error) {
	respBody, err := b.doRequest(ctx, http.MethodGet, "/v1/positions", nil)
	if err != nil {
		return nil, fmt.Errorf("live broker GetPositions: %w", err)
	}

	var raw []positionResp
	if err := json.Unmarshal(respBody, &raw); err != nil {
		return nil, fmt.Errorf("live broker GetPositions: parse response: %w", err)
	}

	positions := make([]Position, 0, len(raw))
	for _, p := range raw {
		positions = append(positions, Position{
			Symbol:       p.Symbol,
			Exchange:     "NASDAQ",
			Quantity:     p.Qty,
			AveragePrice: p.AvgPrice,
			LastPrice:    p.LastPrice,
			PnL:          p.UnrealizedPL,
			Product:      "margin",
		})
	}
	return positions, nil
}

func mapLiveStatus(s string) OrderStatus {
	switch s {
	case "filled":
		return OrderStatusCompleted
	case "canceled", "cancelled", "expired":
		return OrderStatusCancelled
	case "rejected":
		return OrderStatusRejected
	case "new", "accepted", "pending_new":
		return OrderStatusPending
	case "partially_filled":
		return OrderStatusOpen
	default:
		return OrderStatusPending
	}
}
