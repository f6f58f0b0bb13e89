package payments

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"giftgram/internal/metrics"
)

// ErrMissingAPIKey indicates the provider client has no credential configured.
var ErrMissingAPIKey = errors.New("payment api key not configured")

// Client provides typed access to the payment provider's checkout API.
type Client struct {
	logger     *slog.Logger
	baseURL    string
	apiKey     string
	successURL string
	cancelURL  string
	http       *http.Client
	metrics    *metrics.Metrics
}

// Config holds payment client configuration.
type Config struct {
	BaseURL    string
	APIKey     string
	SuccessURL string
	CancelURL  string
	Timeout    time.Duration
}

// CheckoutSession is the subset of the provider session the service needs.
type CheckoutSession struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

// New creates a new payment provider client.
func New(cfg Config, logger *slog.Logger, metricRegistry *metrics.Metrics) *Client {
	base := strings.TrimRight(cfg.BaseURL, "/")
	if base == "" {
		base = "https://api.stripe.com"
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		logger:     logger.With("component", "payments"),
		baseURL:    base,
		apiKey:     cfg.APIKey,
		successURL: cfg.SuccessURL,
		cancelURL:  cfg.CancelURL,
		http:       &http.Client{Timeout: timeout},
		metrics:    metricRegistry,
	}
}

// CreateCheckoutSession opens a hosted checkout for the given provider price
// reference. The purchasing account id travels in client_reference_id so the
// webhook can route the credit later.
func (c *Client) CreateCheckoutSession(ctx context.Context, priceID, accountID string) (*CheckoutSession, error) {
	if c.apiKey == "" {
		return nil, ErrMissingAPIKey
	}

	form := url.Values{}
	form.Set("mode", "payment")
	form.Set("payment_method_types[0]", "card")
	form.Set("line_items[0][price]", priceID)
	form.Set("line_items[0][quantity]", "1")
	form.Set("success_url", c.successURL)
	form.Set("cancel_url", c.cancelURL)
	form.Set("client_reference_id", accountID)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/checkout/sessions", strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("build checkout request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	started := time.Now()
	resp, err := c.http.Do(req)
	status := "error"
	if err == nil {
		status = fmt.Sprintf("%d", resp.StatusCode)
	}
	if c.metrics != nil {
		c.metrics.PaymentRequests.WithLabelValues("checkout_sessions", status).Inc()
		c.metrics.PaymentLatency.WithLabelValues("checkout_sessions", status).Observe(time.Since(started).Seconds())
	}
	if err != nil {
		return nil, fmt.Errorf("checkout request: %w", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("checkout session status %d body=%q", resp.StatusCode, string(body))
	}

	var session CheckoutSession
	if err := json.Unmarshal(body, &session); err != nil {
		return nil, fmt.Errorf("decode checkout session: %w", err)
	}
	if session.URL == "" {
		return nil, fmt.Errorf("checkout session missing url body=%q", string(body))
	}
	return &session, nil
}
