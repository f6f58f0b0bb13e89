package payments

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"giftgram/internal/metrics"
)

// SignatureHeaderName carries the provider's signed-event signature.
const SignatureHeaderName = "Provider-Signature"

// Event is one verified payment-provider webhook event.
type Event struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	Data struct {
		Object struct {
			ID                string `json:"id"`
			AmountTotal       int64  `json:"amount_total"`
			ClientReferenceID string `json:"client_reference_id"`
			PaymentStatus     string `json:"payment_status"`
		} `json:"object"`
	} `json:"data"`
}

// Processor reconciles verified provider events into the ledger.
type Processor interface {
	ProcessEvent(ctx context.Context, event Event) (Outcome, error)
}

// WebhookHandler verifies payment webhook signatures and forwards events.
type WebhookHandler struct {
	logger    *slog.Logger
	metrics   *metrics.Metrics
	secret    string
	processor Processor
	now       func() time.Time
}

// NewWebhookHandler creates a new webhook handler.
func NewWebhookHandler(logger *slog.Logger, metricRegistry *metrics.Metrics, secret string, processor Processor) *WebhookHandler {
	return &WebhookHandler{
		logger:    logger.With("component", "payment_webhook"),
		metrics:   metricRegistry,
		secret:    secret,
		processor: processor,
		now:       time.Now,
	}
}

// ServeHTTP satisfies http.Handler.
func (h *WebhookHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		h.countEvent("read_error")
		http.Error(w, "failed to read body", http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	if err := VerifySignature(body, r.Header.Get(SignatureHeaderName), h.secret, h.now()); err != nil {
		h.logger.Warn("webhook signature rejected", "error", err)
		h.countEvent("bad_signature")
		http.Error(w, "invalid signature", http.StatusBadRequest)
		return
	}

	var event Event
	if err := json.Unmarshal(body, &event); err != nil {
		h.countEvent("malformed")
		http.Error(w, "malformed event", http.StatusBadRequest)
		return
	}

	outcome, err := h.processor.ProcessEvent(r.Context(), event)
	if err != nil {
		h.logger.Error("failed processing webhook event", "error", err, "event_id", event.ID, "type", event.Type)
		h.countEvent("process_error")
		status := http.StatusInternalServerError
		if errors.Is(err, ErrUnknownAmount) || errors.Is(err, ErrUnknownAccount) {
			status = http.StatusBadRequest
		}
		http.Error(w, "failed to process", status)
		return
	}

	h.countEvent(string(outcome))
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"` + string(outcome) + `"}`))
}

func (h *WebhookHandler) countEvent(result string) {
	if h.metrics != nil {
		h.metrics.WebhookEvents.WithLabelValues(result).Inc()
	}
}
