package payments

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"giftgram/internal/repo"
	"giftgram/migrations"
)

const webhookSecret = "whsec_test"

var webhookNow = time.Unix(1_700_000_000, 0)

func newTestWebhook(t *testing.T) (*WebhookHandler, repo.Repository) {
	t.Helper()
	ctx := context.Background()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	repository, err := repo.NewSQLite(ctx, filepath.Join(t.TempDir(), "payments.db"), logger)
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(repository.Close)
	if err := repository.RunMigrations(ctx, migrations.Files); err != nil {
		t.Fatalf("run migrations: %v", err)
	}

	bundles := map[int64]int64{199: 50, 499: 150, 999: 400}
	handler := NewWebhookHandler(logger, nil, webhookSecret, NewReconciler(repository, bundles, logger))
	handler.now = func() time.Time { return webhookNow }
	return handler, repository
}

func checkoutEvent(eventID, accountID string, amount int64) []byte {
	body, _ := json.Marshal(map[string]any{
		"id":   eventID,
		"type": "checkout.session.completed",
		"data": map[string]any{
			"object": map[string]any{
				"id":                  "cs_" + eventID,
				"amount_total":        amount,
				"client_reference_id": accountID,
				"payment_status":      "paid",
			},
		},
	})
	return body
}

func postWebhook(t *testing.T, handler http.Handler, body []byte, sign bool) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/webhook/payments", bytes.NewReader(body))
	if sign {
		req.Header.Set(SignatureHeaderName, SignatureHeader(body, webhookSecret, webhookNow.Unix()))
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestWebhookCreditsCompletedCheckout(t *testing.T) {
	handler, repository := newTestWebhook(t)
	ctx := context.Background()

	account, err := repository.UpsertAccount(ctx, "user_+441111111111", "+441111111111", 0)
	if err != nil {
		t.Fatalf("upsert account: %v", err)
	}

	rec := postWebhook(t, handler, checkoutEvent("evt_1", account.ID, 499), true)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if got := rec.Body.String(); got != `{"status":"applied"}` {
		t.Fatalf("unexpected body %q", got)
	}

	after, _ := repository.GetAccount(ctx, account.ID)
	if after.Balance != 150 {
		t.Fatalf("expected 150 coins credited, got %d", after.Balance)
	}
}

func TestWebhookSkipsRedeliveredEvent(t *testing.T) {
	handler, repository := newTestWebhook(t)
	ctx := context.Background()

	account, _ := repository.UpsertAccount(ctx, "user_+441111111111", "+441111111111", 0)
	body := checkoutEvent("evt_1", account.ID, 199)

	if rec := postWebhook(t, handler, body, true); rec.Code != http.StatusOK {
		t.Fatalf("first delivery: expected 200, got %d", rec.Code)
	}
	rec := postWebhook(t, handler, body, true)
	if rec.Code != http.StatusOK {
		t.Fatalf("redelivery: expected 200, got %d", rec.Code)
	}
	if got := rec.Body.String(); got != `{"status":"skipped"}` {
		t.Fatalf("unexpected redelivery body %q", got)
	}

	after, _ := repository.GetAccount(ctx, account.ID)
	if after.Balance != 50 {
		t.Fatalf("redelivery must not double-credit, got %d", after.Balance)
	}
}

func TestWebhookRejectsUnsignedRequests(t *testing.T) {
	handler, repository := newTestWebhook(t)
	ctx := context.Background()
	account, _ := repository.UpsertAccount(ctx, "user_+441111111111", "+441111111111", 0)

	rec := postWebhook(t, handler, checkoutEvent("evt_1", account.ID, 199), false)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unsigned request, got %d", rec.Code)
	}

	after, _ := repository.GetAccount(ctx, account.ID)
	if after.Balance != 0 {
		t.Fatalf("unsigned event must not credit, got %d", after.Balance)
	}
}

func TestWebhookRejectsUnknownAmount(t *testing.T) {
	handler, repository := newTestWebhook(t)
	ctx := context.Background()
	account, _ := repository.UpsertAccount(ctx, "user_+441111111111", "+441111111111", 0)

	rec := postWebhook(t, handler, checkoutEvent("evt_1", account.ID, 123), true)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown amount, got %d", rec.Code)
	}
}

func TestWebhookRejectsUnknownAccount(t *testing.T) {
	handler, _ := newTestWebhook(t)

	rec := postWebhook(t, handler, checkoutEvent("evt_1", "user_+440000000000", 199), true)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown account, got %d", rec.Code)
	}
}

func TestWebhookIgnoresUnpaidCheckout(t *testing.T) {
	handler, repository := newTestWebhook(t)
	ctx := context.Background()
	account, _ := repository.UpsertAccount(ctx, "user_+441111111111", "+441111111111", 0)

	// Async payment methods complete the session with payment_status still
	// pending; such events must not credit.
	body, _ := json.Marshal(map[string]any{
		"id":   "evt_1",
		"type": "checkout.session.completed",
		"data": map[string]any{
			"object": map[string]any{
				"id":                  "cs_evt_1",
				"amount_total":        199,
				"client_reference_id": account.ID,
				"payment_status":      "unpaid",
			},
		},
	})
	rec := postWebhook(t, handler, body, true)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if got := rec.Body.String(); got != `{"status":"ignored"}` {
		t.Fatalf("unexpected body %q", got)
	}

	after, _ := repository.GetAccount(ctx, account.ID)
	if after.Balance != 0 {
		t.Fatalf("unpaid session must not credit, got %d", after.Balance)
	}
}

func TestWebhookIgnoresOtherEventTypes(t *testing.T) {
	handler, _ := newTestWebhook(t)

	body, _ := json.Marshal(map[string]any{"id": "evt_1", "type": "invoice.paid"})
	rec := postWebhook(t, handler, body, true)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if got := rec.Body.String(); got != `{"status":"ignored"}` {
		t.Fatalf("unexpected body %q", got)
	}
}

func TestWebhookRejectsMalformedJSON(t *testing.T) {
	handler, _ := newTestWebhook(t)

	rec := postWebhook(t, handler, []byte("{not json"), true)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for malformed body, got %d", rec.Code)
	}
}
