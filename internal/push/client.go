package push

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"giftgram/internal/metrics"
)

// ErrInvalidToken indicates the stored device token is not an Expo push token.
var ErrInvalidToken = errors.New("invalid push token")

const pushEndpoint = "/--/api/v2/push/send"

// Client sends notifications through the Expo push API.
type Client struct {
	logger  *slog.Logger
	baseURL string
	http    *http.Client
	metrics *metrics.Metrics
}

// Config holds push client configuration.
type Config struct {
	BaseURL string
	Timeout time.Duration
}

// Notification is a single push message for one device.
type Notification struct {
	Title string
	Body  string
	Sound string
	// Route hints the client which screen to open on tap.
	Route string
}

type pushRequest struct {
	To    string         `json:"to"`
	Title string         `json:"title"`
	Body  string         `json:"body"`
	Sound string         `json:"sound,omitempty"`
	Data  map[string]any `json:"data,omitempty"`
}

type pushReceipt struct {
	Data struct {
		Status  string `json:"status"`
		ID      string `json:"id"`
		Message string `json:"message"`
	} `json:"data"`
}

// New creates a new Expo push client.
func New(cfg Config, logger *slog.Logger, metricRegistry *metrics.Metrics) *Client {
	base := strings.TrimRight(cfg.BaseURL, "/")
	if base == "" {
		base = "https://exp.host"
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		logger:  logger.With("component", "push"),
		baseURL: base,
		http:    &http.Client{Timeout: timeout},
		metrics: metricRegistry,
	}
}

// ValidToken reports whether the token has the Expo push token shape.
func ValidToken(token string) bool {
	return (strings.HasPrefix(token, "ExponentPushToken[") || strings.HasPrefix(token, "ExpoPushToken[")) &&
		strings.HasSuffix(token, "]")
}

// Notify delivers a notification to a device token. Transport failures are
// retried once; the caller treats any remaining error as non-fatal.
func (c *Client) Notify(ctx context.Context, token string, n Notification) error {
	if !ValidToken(token) {
		return ErrInvalidToken
	}

	err := c.send(ctx, token, n)
	if err == nil {
		return nil
	}
	c.logger.Warn("push delivery failed, retrying once", "error", err)

	if err := c.send(ctx, token, n); err != nil {
		return fmt.Errorf("push delivery: %w", err)
	}
	return nil
}

func (c *Client) send(ctx context.Context, token string, n Notification) error {
	payload := pushRequest{
		To:    token,
		Title: n.Title,
		Body:  n.Body,
		Sound: n.Sound,
	}
	if n.Route != "" {
		payload.Data = map[string]any{"screen": n.Route}
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal push request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+pushEndpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build push request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	started := time.Now()
	resp, err := c.http.Do(req)
	status := "error"
	if err == nil {
		status = fmt.Sprintf("%d", resp.StatusCode)
	}
	if c.metrics != nil {
		c.metrics.PushRequests.WithLabelValues(status).Inc()
		c.metrics.PushLatency.WithLabelValues(status).Observe(time.Since(started).Seconds())
	}
	if err != nil {
		return fmt.Errorf("push request: %w", err)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("push provider status %d body=%q", resp.StatusCode, string(respBody))
	}

	var receipt pushReceipt
	if err := json.Unmarshal(respBody, &receipt); err != nil {
		return fmt.Errorf("decode push receipt: %w body=%q", err, string(respBody))
	}
	if receipt.Data.Status != "" && receipt.Data.Status != "ok" {
		return fmt.Errorf("push ticket status %q: %s", receipt.Data.Status, receipt.Data.Message)
	}

	c.logger.Debug("push delivered", "ticket", receipt.Data.ID)
	return nil
}
