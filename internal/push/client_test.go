package push

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
)

const testToken = "ExponentPushToken[xxxxxxxxxxxxxxxxxxxxxx]"

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestValidToken(t *testing.T) {
	if !ValidToken(testToken) {
		t.Fatal("expected token to validate")
	}
	if ValidToken("fcm:abc123") {
		t.Fatal("expected non-Expo token to be rejected")
	}
	if ValidToken("") {
		t.Fatal("expected empty token to be rejected")
	}
}

func TestNotifySendsExpectedPayload(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != pushEndpoint {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode request: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"data":{"status":"ok","id":"ticket-1"}}`))
	}))
	defer srv.Close()

	client := New(Config{BaseURL: srv.URL}, testLogger(), nil)
	err := client.Notify(context.Background(), testToken, Notification{
		Title: "Incoming gram!",
		Body:  "Someone sent you a gram",
		Sound: "ringtone.mp3",
		Route: "Received",
	})
	if err != nil {
		t.Fatalf("notify: %v", err)
	}

	if got["to"] != testToken {
		t.Fatalf("unexpected to field: %v", got["to"])
	}
	data, ok := got["data"].(map[string]any)
	if !ok || data["screen"] != "Received" {
		t.Fatalf("unexpected data field: %v", got["data"])
	}
}

func TestNotifyRejectsInvalidToken(t *testing.T) {
	client := New(Config{BaseURL: "http://127.0.0.1:0"}, testLogger(), nil)
	err := client.Notify(context.Background(), "not-a-token", Notification{Title: "x"})
	if err != ErrInvalidToken {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
}

func TestNotifyRetriesOnceOnFailure(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			http.Error(w, "gateway timeout", http.StatusGatewayTimeout)
			return
		}
		_, _ = w.Write([]byte(`{"data":{"status":"ok"}}`))
	}))
	defer srv.Close()

	client := New(Config{BaseURL: srv.URL}, testLogger(), nil)
	if err := client.Notify(context.Background(), testToken, Notification{Title: "x"}); err != nil {
		t.Fatalf("notify after retry: %v", err)
	}
	if calls != 2 {
		t.Fatalf("expected exactly 2 attempts, got %d", calls)
	}
}

func TestNotifyGivesUpAfterSecondFailure(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		http.Error(w, "unavailable", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	client := New(Config{BaseURL: srv.URL}, testLogger(), nil)
	if err := client.Notify(context.Background(), testToken, Notification{Title: "x"}); err == nil {
		t.Fatal("expected error after retries exhausted")
	}
	if calls != 2 {
		t.Fatalf("expected exactly 2 attempts, got %d", calls)
	}
}
