package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all runtime configuration, sourced from the environment.
type Config struct {
	AppEnv           string
	LogLevel         string
	LogFormat        string
	HTTPListenAddr   string
	PublicBaseURL    string
	PublicBasePath   string
	MetricsNamespace string

	// Storage: DatabaseURL (Postgres) takes precedence; otherwise SQLitePath.
	DatabaseURL    string
	DatabaseSchema string
	SQLitePath     string

	RedisAddr     string
	RedisPassword string
	RedisDB       int
	RedisTLS      bool

	StartingGrant   int64
	UnlockCode      string
	AllowAutoVivify bool
	BalanceCacheTTL time.Duration
	PricingTable    map[string]int64

	PushBaseURL string
	PushTimeout time.Duration

	PaymentBaseURL       string
	PaymentAPIKey        string
	PaymentWebhookSecret string
	PaymentTimeout       time.Duration
	CheckoutSuccessURL   string
	CheckoutCancelURL    string
	CoinBundles          map[int64]int64
}

// Load reads configuration from the environment, applying defaults.
func Load() (*Config, error) {
	cfg := &Config{
		AppEnv:           getEnv("APP_ENV", "development"),
		LogLevel:         getEnv("LOG_LEVEL", "info"),
		LogFormat:        getEnv("LOG_FORMAT", "text"),
		HTTPListenAddr:   getEnv("HTTP_LISTEN_ADDR", ":8080"),
		PublicBaseURL:    os.Getenv("PUBLIC_BASE_URL"),
		PublicBasePath:   os.Getenv("PUBLIC_BASE_PATH"),
		MetricsNamespace: getEnv("METRICS_NAMESPACE", "giftgram"),

		DatabaseURL:    os.Getenv("DATABASE_URL"),
		DatabaseSchema: os.Getenv("DATABASE_SCHEMA"),
		SQLitePath:     getEnv("SQLITE_PATH", "data/giftgram.db"),

		RedisAddr:     os.Getenv("REDIS_ADDR"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		RedisTLS:      getEnvBool("REDIS_TLS", false),

		UnlockCode:      getEnv("UNLOCK_CODE", "1093"),
		AllowAutoVivify: getEnvBool("ALLOW_AUTO_VIVIFY", false),

		PushBaseURL: getEnv("PUSH_BASE_URL", "https://exp.host"),

		PaymentBaseURL:       getEnv("PAYMENT_BASE_URL", "https://api.stripe.com"),
		PaymentAPIKey:        os.Getenv("PAYMENT_API_KEY"),
		PaymentWebhookSecret: os.Getenv("PAYMENT_WEBHOOK_SECRET"),
		CheckoutSuccessURL:   getEnv("CHECKOUT_SUCCESS_URL", "https://giftgram.app/success"),
		CheckoutCancelURL:    getEnv("CHECKOUT_CANCEL_URL", "https://giftgram.app/cancel"),
	}

	var err error
	if cfg.RedisDB, err = getEnvInt("REDIS_DB", 0); err != nil {
		return nil, err
	}

	grant, err := getEnvInt("STARTING_GRANT", 50)
	if err != nil {
		return nil, err
	}
	if grant < 0 {
		return nil, fmt.Errorf("STARTING_GRANT must not be negative")
	}
	cfg.StartingGrant = int64(grant)

	if cfg.BalanceCacheTTL, err = getEnvDuration("BALANCE_CACHE_TTL_SECONDS", 30*time.Second); err != nil {
		return nil, err
	}
	if cfg.PushTimeout, err = getEnvDuration("PUSH_TIMEOUT_SECONDS", 10*time.Second); err != nil {
		return nil, err
	}
	if cfg.PaymentTimeout, err = getEnvDuration("PAYMENT_TIMEOUT_SECONDS", 15*time.Second); err != nil {
		return nil, err
	}

	if cfg.PricingTable, err = parseIntPairs(os.Getenv("PRICING_TABLE")); err != nil {
		return nil, fmt.Errorf("parse PRICING_TABLE: %w", err)
	}

	bundles, err := parseIntPairs(getEnv("COIN_BUNDLES", "199=50,499=150,999=400"))
	if err != nil {
		return nil, fmt.Errorf("parse COIN_BUNDLES: %w", err)
	}
	cfg.CoinBundles = make(map[int64]int64, len(bundles))
	for amount, coins := range bundles {
		parsed, err := strconv.ParseInt(amount, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("parse COIN_BUNDLES amount %q: %w", amount, err)
		}
		cfg.CoinBundles[parsed] = coins
	}

	return cfg, nil
}

// parseIntPairs parses "key=value,key=value" lists with integer values.
func parseIntPairs(raw string) (map[string]int64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	out := map[string]int64{}
	for _, pair := range strings.Split(raw, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		key, val, found := strings.Cut(pair, "=")
		if !found {
			return nil, fmt.Errorf("malformed entry %q", pair)
		}
		parsed, err := strconv.ParseInt(strings.TrimSpace(val), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("entry %q: %w", pair, err)
		}
		if parsed < 0 {
			return nil, fmt.Errorf("entry %q: value must not be negative", pair)
		}
		out[strings.TrimSpace(key)] = parsed
	}
	return out, nil
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvInt(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid int for env %s: %q", key, v)
	}
	return i, nil
}

func getEnvBool(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	parsed, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return parsed
}

func getEnvDuration(key string, def time.Duration) (time.Duration, error) {
	secs, err := getEnvInt(key, int(def/time.Second))
	if err != nil {
		return 0, err
	}
	if secs <= 0 {
		return 0, fmt.Errorf("env %s must be > 0 seconds", key)
	}
	return time.Duration(secs) * time.Second, nil
}
