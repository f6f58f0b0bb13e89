package httpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"giftgram/internal/ledger"
	"giftgram/internal/metrics"
	"giftgram/internal/payments"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Handlers groups optional HTTP handlers to mount.
type Handlers struct {
	PaymentWebhook http.Handler
}

// Dependencies exposes core dependencies to the API handlers.
type Dependencies struct {
	Ledger   *ledger.Service
	Payments *payments.Client
}

// Server wraps an http.Server with predefined routes.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
	metrics    *metrics.Metrics
	handlers   Handlers
	deps       Dependencies
	basePath   string
}

// New creates a new HTTP server listening on addr with health and metrics endpoints.
func New(addr string, logger *slog.Logger, metricRegistry *metrics.Metrics, handlers Handlers, deps Dependencies, basePath string) *Server {
	server := &Server{
		logger:   logger.With("component", "http"),
		metrics:  metricRegistry,
		handlers: handlers,
		deps:     deps,
		basePath: normaliseBasePath(basePath),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", healthHandler)
	mux.Handle("/metrics", promhttp.Handler())

	mux.HandleFunc("/register", server.handleRegister)
	mux.HandleFunc("/send", server.handleSend)
	mux.HandleFunc("/gift", server.handleGift)
	mux.HandleFunc("/mailbox/take", server.handleMailboxTake)
	mux.HandleFunc("/mailbox/flush", server.handleMailboxFlush)
	mux.HandleFunc("/mailbox/archive", server.handleMailboxArchive)
	mux.HandleFunc("/mailbox/memory", server.handleMemory)
	mux.HandleFunc("/push-token", server.handlePushToken)
	mux.HandleFunc("/redeem", server.handleRedeem)
	mux.HandleFunc("/balance", server.handleBalance)
	mux.HandleFunc("/checkout", server.handleCheckout)

	if handlers.PaymentWebhook != nil {
		mux.Handle("/webhook/payments", handlers.PaymentWebhook)
	}

	handler := mountWithBasePath(server.basePath, mux)

	server.httpServer = &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	if server.basePath != "" {
		server.logger.Info("http server configured with base path", "base_path", server.basePath)
	}

	return server
}

// Handler exposes the routing tree, used by tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Start begins listening for incoming HTTP requests.
func (s *Server) Start() error {
	s.logger.Info("http server listening", "addr", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("http server listen: %w", err)
	}
	return nil
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down http server")
	return s.httpServer.Shutdown(ctx)
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		http.Error(w, "failed to encode json", http.StatusInternalServerError)
	}
}

func mountWithBasePath(basePath string, handler http.Handler) http.Handler {
	if basePath == "" {
		return handler
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasPrefix(r.URL.Path, basePath) {
			http.NotFound(w, r)
			return
		}
		if len(r.URL.Path) > len(basePath) && r.URL.Path[len(basePath)] != '/' {
			http.NotFound(w, r)
			return
		}
		trimmed := strings.TrimPrefix(r.URL.Path, basePath)
		if trimmed == "" {
			trimmed = "/"
		}
		r.URL.Path = trimmed
		if r.URL.RawPath != "" {
			rawTrimmed := strings.TrimPrefix(r.URL.RawPath, basePath)
			if rawTrimmed == "" {
				rawTrimmed = "/"
			}
			r.URL.RawPath = rawTrimmed
		}
		handler.ServeHTTP(w, r)
	})
}

func normaliseBasePath(base string) string {
	base = strings.TrimSpace(base)
	if base == "" || base == "/" {
		return ""
	}
	if !strings.HasPrefix(base, "/") {
		base = "/" + base
	}
	return strings.TrimSuffix(base, "/")
}
