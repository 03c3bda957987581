package external

import (
	"bytes"
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	apperrors "ticketshow/internal/errors"

	"github.com/zpmep/hmacutil"
)

// MinorUnitsPerMajor converts whole currency units to the gateway's
// smallest unit (paise for INR).
const MinorUnitsPerMajor = 100

type PaymentConfig struct {
	BaseURL   string
	KeyID     string
	KeySecret string
	Timeout   time.Duration
}

type PaymentClient struct {
	baseURL    string
	keyID      string
	keySecret  string
	httpClient *http.Client
}

// Payment gateway order models
type CreateOrderRequest struct {
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Receipt  string `json:"receipt"`
}

type Order struct {
	ID        string `json:"id"`
	Entity    string `json:"entity"`
	Amount    int64  `json:"amount"`
	Currency  string `json:"currency"`
	Receipt   string `json:"receipt"`
	Status    string `json:"status"`
	CreatedAt int64  `json:"created_at"`
}

type gatewayError struct {
	Error struct {
		Code        string `json:"code"`
		Description string `json:"description"`
	} `json:"error"`
}

func NewPaymentClient(cfg PaymentConfig) *PaymentClient {
	if cfg.Timeout == 0 {
		cfg.Timeout = 10 * time.Second
	}

	return &PaymentClient{
		baseURL:   cfg.BaseURL,
		keyID:     cfg.KeyID,
		keySecret: cfg.KeySecret,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
	}
}

// KeyID is the public key the client-side checkout needs
func (pc *PaymentClient) KeyID() string {
	return pc.keyID
}

// CreateOrder registers a payment order for amount (in minor units).
// receipt carries the booking id so the provider can correlate it.
func (pc *PaymentClient) CreateOrder(ctx context.Context, amount int64, currency, receipt string) (*Order, error) {
	body, err := json.Marshal(CreateOrderRequest{
		Amount:   amount,
		Currency: currency,
		Receipt:  receipt,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, pc.baseURL+"/v1/orders", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.SetBasicAuth(pc.keyID, pc.keySecret)

	resp, err := pc.httpClient.Do(req)
	if err != nil {
		if isTimeout(err) {
			return nil, fmt.Errorf("create order: %w", apperrors.ErrGatewayTimeout)
		}
		return nil, fmt.Errorf("failed to create order: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusGatewayTimeout || resp.StatusCode == http.StatusRequestTimeout {
		return nil, fmt.Errorf("create order: status %d: %w", resp.StatusCode, apperrors.ErrGatewayTimeout)
	}

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		var gwErr gatewayError
		if json.Unmarshal(raw, &gwErr) == nil && gwErr.Error.Description != "" {
			return nil, fmt.Errorf("create order rejected: %s: %s", gwErr.Error.Code, gwErr.Error.Description)
		}
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	var order Order
	if err := json.NewDecoder(resp.Body).Decode(&order); err != nil {
		if isTimeout(err) {
			return nil, fmt.Errorf("decode order: %w", apperrors.ErrGatewayTimeout)
		}
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	if order.ID == "" {
		return nil, fmt.Errorf("gateway returned an order without id")
	}

	return &order, nil
}

// VerifySignature checks the provider callback signature
// HMAC-SHA256(secret, orderID + "|" + paymentID) in constant time.
func (pc *PaymentClient) VerifySignature(orderID, paymentID, signature string) bool {
	if orderID == "" || paymentID == "" || signature == "" || pc.keySecret == "" {
		return false
	}
	expected := Sign(pc.keySecret, orderID, paymentID)
	return subtle.ConstantTimeCompare([]byte(expected), []byte(signature)) == 1
}

// Sign produces the hex signature the provider attaches to a payment
func Sign(secret, orderID, paymentID string) string {
	return hmacutil.HexStringEncode(hmacutil.SHA256, secret, orderID+"|"+paymentID)
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
