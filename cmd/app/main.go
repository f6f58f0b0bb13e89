package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"giftgram/internal/cache"
	"giftgram/internal/config"
	"giftgram/internal/httpserver"
	"giftgram/internal/ledger"
	"giftgram/internal/logging"
	"giftgram/internal/metrics"
	"giftgram/internal/payments"
	"giftgram/internal/pricing"
	"giftgram/internal/push"
	"giftgram/internal/repo"
	"giftgram/migrations"

	"github.com/joho/godotenv"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger := logging.NewLogger(cfg.LogLevel, cfg.LogFormat)
	logger.Info("starting giftgram", "env", cfg.AppEnv)

	if cfg.PublicBaseURL != "" {
		webhookURL := strings.TrimRight(cfg.PublicBaseURL, "/") + "/webhook/payments"
		logger.Info("public base url configured", "base_url", cfg.PublicBaseURL, "webhook_url", webhookURL)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	metricRegistry := metrics.Registry(cfg.MetricsNamespace)

	repository, err := openRepository(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("init repository: %w", err)
	}
	defer repository.Close()

	if err := repository.RunMigrations(ctx, migrations.Files); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}
	logger.Info("database migrated")

	var redisClient *cache.Redis
	if cfg.RedisAddr != "" {
		redisClient = cache.New(cache.Config{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
			UseTLS:   cfg.RedisTLS,
		}, logger)
		defer func() {
			if err := redisClient.Close(); err != nil {
				logger.Warn("failed closing redis", "error", err)
			}
		}()
		if err := redisClient.Ping(ctx); err != nil {
			logger.Warn("redis ping failed", "error", err)
		}
	}

	pushClient := push.New(push.Config{
		BaseURL: cfg.PushBaseURL,
		Timeout: cfg.PushTimeout,
	}, logger, metricRegistry)

	paymentClient := payments.New(payments.Config{
		BaseURL:    cfg.PaymentBaseURL,
		APIKey:     cfg.PaymentAPIKey,
		SuccessURL: cfg.CheckoutSuccessURL,
		CancelURL:  cfg.CheckoutCancelURL,
		Timeout:    cfg.PaymentTimeout,
	}, logger, metricRegistry)

	ledgerService := ledger.New(repository, pricing.NewTable(cfg.PricingTable), pushClient, redisClient, metricRegistry, logger, ledger.Config{
		StartingGrant:   cfg.StartingGrant,
		UnlockCode:      cfg.UnlockCode,
		AllowAutoVivify: cfg.AllowAutoVivify,
		BalanceCacheTTL: cfg.BalanceCacheTTL,
	})

	reconciler := payments.NewReconciler(ledgerService, cfg.CoinBundles, logger)
	webhookHandler := payments.NewWebhookHandler(logger, metricRegistry, cfg.PaymentWebhookSecret, reconciler)

	httpSrv := httpserver.New(cfg.HTTPListenAddr, logger, metricRegistry, httpserver.Handlers{
		PaymentWebhook: webhookHandler,
	}, httpserver.Dependencies{
		Ledger:   ledgerService,
		Payments: paymentClient,
	}, cfg.PublicBasePath)

	errCh := make(chan error, 1)
	go func() {
		if err := httpSrv.Start(); err != nil {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server error: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}

	return nil
}

// openRepository picks Postgres when DATABASE_URL is set, SQLite otherwise.
func openRepository(ctx context.Context, cfg *config.Config, logger *slog.Logger) (repo.Repository, error) {
	if cfg.DatabaseURL != "" {
		logger.Info("using postgres repository")
		return repo.NewPostgres(ctx, cfg.DatabaseURL, cfg.DatabaseSchema, logger)
	}
	logger.Info("using sqlite repository", "path", cfg.SQLitePath)
	return repo.NewSQLite(ctx, cfg.SQLitePath, logger)
}
