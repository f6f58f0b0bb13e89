package cache

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
)

type sample struct {
	Name  string `json:"name"`
	Coins int64  `json:"coins"`
}

func newTestRedis(t *testing.T) *Redis {
	t.Helper()
	srv := miniredis.RunT(t)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	r := New(Config{Addr: srv.Addr()}, logger)
	t.Cleanup(func() { _ = r.Close() })

	if err := r.Ping(context.Background()); err != nil {
		t.Fatalf("ping: %v", err)
	}
	return r
}

func TestSetAndGetJSON(t *testing.T) {
	r := newTestRedis(t)
	ctx := context.Background()

	in := sample{Name: "alice", Coins: 42}
	if err := r.SetJSON(ctx, "test:key", in, time.Minute); err != nil {
		t.Fatalf("set: %v", err)
	}

	var out sample
	ok, err := r.GetJSON(ctx, "test:key", &out)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !ok {
		t.Fatal("expected key to exist")
	}
	if out != in {
		t.Fatalf("round trip mismatch: %+v != %+v", out, in)
	}
}

func TestGetJSONMissingKey(t *testing.T) {
	r := newTestRedis(t)

	var out sample
	ok, err := r.GetJSON(context.Background(), "test:absent", &out)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if ok {
		t.Fatal("missing key must report not found, not an error")
	}
}

func TestDeleteInvalidatesKeys(t *testing.T) {
	r := newTestRedis(t)
	ctx := context.Background()

	_ = r.SetJSON(ctx, "test:a", sample{Name: "a"}, time.Minute)
	_ = r.SetJSON(ctx, "test:b", sample{Name: "b"}, time.Minute)

	if err := r.Delete(ctx, "test:a", "test:b"); err != nil {
		t.Fatalf("delete: %v", err)
	}

	var out sample
	ok, err := r.GetJSON(ctx, "test:a", &out)
	if err != nil {
		t.Fatalf("get after delete: %v", err)
	}
	if ok {
		t.Fatal("deleted key must be gone")
	}

	// Deleting nothing is a no-op.
	if err := r.Delete(ctx); err != nil {
		t.Fatalf("empty delete: %v", err)
	}
}
