// Razorpay REST client.
//
// Config:
//   - RAZORPAY_KEY_ID / RAZORPAY_KEY_SECRET: basic auth credentials
//   - RAZORPAY_BASE_URL (default: https://api.razorpay.com)
//
// Only the two calls the checkout flow needs are implemented: order
// creation and payment fetch.

package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/prepvault/storefront/internal/config"
	"github.com/prepvault/storefront/internal/model"
)

var (
	ErrGatewayNotConfigured = errors.New("payment gateway not configured")
	ErrGatewayNotFound      = errors.New("payment gateway resource not found")
)

type RazorpayClient struct {
	baseURL    string
	keyID      string
	keySecret  string
	httpClient *http.Client
}

type createOrderRequest struct {
	Amount   int64             `json:"amount"`
	Currency string            `json:"currency"`
	Receipt  string            `json:"receipt"`
	Notes    map[string]string `json:"notes,omitempty"`
}

type gatewayErrorBody struct {
	Error struct {
		Code        string `json:"code"`
		Description string `json:"description"`
	} `json:"error"`
}

func NewRazorpayClient(cfg config.RazorpayConfig) *RazorpayClient {
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://api.razorpay.com"
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}

	return &RazorpayClient{
		baseURL:   baseURL,
		keyID:     cfg.KeyID,
		keySecret: cfg.KeySecret,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

func (c *RazorpayClient) KeyID() string {
	return c.keyID
}

func (c *RazorpayClient) CreateOrder(ctx context.Context, amountMinor int64, currency, receipt string, notes map[string]string) (*model.GatewayOrder, error) {
	payload := createOrderRequest{
		Amount:   amountMinor,
		Currency: currency,
		Receipt:  receipt,
		Notes:    notes,
	}
	var order model.GatewayOrder
	if err := c.do(ctx, http.MethodPost, "/v1/orders", payload, &order); err != nil {
		return nil, fmt.Errorf("failed to create order: %w", err)
	}
	return &order, nil
}

func (c *RazorpayClient) FetchPayment(ctx context.Context, paymentID string) (*model.GatewayPayment, error) {
	var payment model.GatewayPayment
	if err := c.do(ctx, http.MethodGet, "/v1/payments/"+paymentID, nil, &payment); err != nil {
		return nil, fmt.Errorf("failed to fetch payment: %w", err)
	}
	return &payment, nil
}

func (c *RazorpayClient) do(ctx context.Context, method, path string, in, out any) error {
	if c.keyID == "" || c.keySecret == "" {
		return ErrGatewayNotConfigured
	}

	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.SetBasicAuth(c.keyID, c.keySecret)
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode == http.StatusNotFound {
		return ErrGatewayNotFound
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var gwErr gatewayErrorBody
		if json.Unmarshal(respBody, &gwErr) == nil && gwErr.Error.Code != "" {
			return fmt.Errorf("gateway returned %d: %s", resp.StatusCode, gwErr.Error.Code)
		}
		return fmt.Errorf("gateway returned %d", resp.StatusCode)
	}

	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("failed to unmarshal response: %w", err)
	}
	return nil
}
