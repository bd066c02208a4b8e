package paytabs

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// DefaultTimeout bounds gateway calls when the config does not set one.
const DefaultTimeout = 30 * time.Second

// Regional API endpoints published by PayTabs.
var regionEndpoints = map[string]string{
	"ARE":    "https://secure.paytabs.com",
	"SAU":    "https://secure.paytabs.sa",
	"OMN":    "https://secure-oman.paytabs.com",
	"JOR":    "https://secure-jordan.paytabs.com",
	"EGY":    "https://secure-egypt.paytabs.com",
	"IRQ":    "https://secure-iraq.paytabs.com",
	"GLOBAL": "https://secure-global.paytabs.com",
}

var (
	// ErrDeclined indicates the gateway processed the request but did not approve it.
	ErrDeclined = errors.New("paytabs: transaction declined")
)

// Config carries the merchant profile credentials.
type Config struct {
	ProfileID int
	ServerKey string
	ClientKey string
	Region    string
	Currency  string
	Timeout   time.Duration

	// BaseURL overrides the regional endpoint, primarily for tests.
	BaseURL string
}

// Validate reports configuration problems before any request is attempted.
func (c Config) Validate() error {
	if c.ProfileID == 0 {
		return errors.New("paytabs: profile id is required")
	}
	if strings.TrimSpace(c.ServerKey) == "" {
		return errors.New("paytabs: server key is required")
	}
	if c.BaseURL == "" {
		if _, ok := regionEndpoints[strings.ToUpper(strings.TrimSpace(c.Region))]; !ok {
			return fmt.Errorf("paytabs: unknown region %q", c.Region)
		}
	}
	return nil
}

// Client is a thin wrapper over the PayTabs hosted payment REST API.
type Client struct {
	cfg     Config
	baseURL string
	http    *http.Client
}

// NewClient validates the config and builds a gateway client.
func NewClient(cfg Config) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	base := cfg.BaseURL
	if base == "" {
		base = regionEndpoints[strings.ToUpper(strings.TrimSpace(cfg.Region))]
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	return &Client{
		cfg:     cfg,
		baseURL: strings.TrimRight(base, "/"),
		http:    &http.Client{Timeout: timeout},
	}, nil
}

// ProfileID exposes the configured merchant profile.
func (c *Client) ProfileID() int { return c.cfg.ProfileID }

// Currency exposes the configured default currency.
func (c *Client) Currency() string { return c.cfg.Currency }

// VerifySignature reports whether a callback payload was signed with the
// merchant server key. PayTabs sends the hex HMAC-SHA256 digest of the raw
// request body in the Signature header; anything that fails the comparison
// did not come from the gateway.
func (c *Client) VerifySignature(body []byte, signature string) bool {
	signature = strings.ToLower(strings.TrimSpace(signature))
	if signature == "" {
		return false
	}

	mac := hmac.New(sha256.New, []byte(c.cfg.ServerKey))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signature))
}

// CreatePaymentPage requests a hosted payment page for the supplied cart.
func (c *Client) CreatePaymentPage(ctx context.Context, req PaymentPageRequest) (*PaymentPageResponse, error) {
	req.ProfileID = c.cfg.ProfileID
	if req.TranType == "" {
		req.TranType = "sale"
	}
	if req.TranClass == "" {
		req.TranClass = "ecom"
	}
	if req.CartCurrency == "" {
		req.CartCurrency = c.cfg.Currency
	}
	if strings.TrimSpace(req.CartID) == "" {
		return nil, errors.New("paytabs: cart id is required")
	}
	if req.CartAmount <= 0 {
		return nil, errors.New("paytabs: cart amount must be positive")
	}

	var resp PaymentPageResponse
	if err := c.post(ctx, "/payment/request", req, &resp); err != nil {
		return nil, err
	}
	if resp.RedirectURL == "" {
		return nil, fmt.Errorf("paytabs: gateway rejected request: %s", gatewayMessage(resp.Code, resp.Message))
	}
	return &resp, nil
}

// QueryTransaction fetches the current state of a transaction by reference.
func (c *Client) QueryTransaction(ctx context.Context, tranRef string) (*TransactionResponse, error) {
	tranRef = strings.TrimSpace(tranRef)
	if tranRef == "" {
		return nil, errors.New("paytabs: transaction reference is required")
	}

	req := QueryRequest{ProfileID: c.cfg.ProfileID, TranRef: tranRef}
	var resp TransactionResponse
	if err := c.post(ctx, "/payment/query", req, &resp); err != nil {
		return nil, err
	}
	if resp.TranRef == "" {
		return nil, fmt.Errorf("paytabs: query failed: %s", gatewayMessage(resp.Code, resp.Message))
	}
	return &resp, nil
}

// Refund reverses a captured transaction for the given amount.
func (c *Client) Refund(ctx context.Context, tranRef, cartID, reason, currency string, amount float64) (*TransactionResponse, error) {
	tranRef = strings.TrimSpace(tranRef)
	if tranRef == "" {
		return nil, errors.New("paytabs: transaction reference is required")
	}
	if amount <= 0 {
		return nil, errors.New("paytabs: refund amount must be positive")
	}
	if currency == "" {
		currency = c.cfg.Currency
	}
	if reason == "" {
		reason = "refund"
	}

	req := RefundRequest{
		ProfileID:       c.cfg.ProfileID,
		TranType:        "refund",
		TranClass:       "ecom",
		TranRef:         tranRef,
		CartID:          cartID,
		CartDescription: reason,
		CartCurrency:    currency,
		CartAmount:      amount,
	}

	var resp TransactionResponse
	if err := c.post(ctx, "/payment/request", req, &resp); err != nil {
		return nil, err
	}
	if !resp.PaymentResult.Authorised() {
		return &resp, fmt.Errorf("%w: %s", ErrDeclined, resp.PaymentResult.ResponseMessage)
	}
	return &resp, nil
}

func (c *Client) post(ctx context.Context, path string, payload, out any) error {
	if ctx == nil {
		ctx = context.Background()
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("paytabs: encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("paytabs: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", c.cfg.ServerKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("paytabs: %s: %w", path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("paytabs: read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("paytabs: %s returned status %d: %s", path, resp.StatusCode, strings.TrimSpace(string(data)))
	}

	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("paytabs: decode response: %w", err)
	}
	return nil
}

func gatewayMessage(code int, message string) string {
	if message == "" {
		message = "no message"
	}
	if code != 0 {
		return fmt.Sprintf("code %d: %s", code, message)
	}
	return message
}
