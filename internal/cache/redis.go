package cache

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// Redis wraps a go-redis client with JSON helpers. It caches account balance
// snapshots; the database stays authoritative.
type Redis struct {
	client *redis.Client
	logger *slog.Logger
}

// Config defines connection parameters for Redis.
type Config struct {
	Addr     string
	Password string
	DB       int
	UseTLS   bool
}

// New returns a Redis client based on provided configuration.
func New(cfg Config, logger *slog.Logger) *Redis {
	opts := &redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	}
	if cfg.UseTLS {
		opts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}

	return &Redis{
		client: redis.NewClient(opts),
		logger: logger.With("component", "redis"),
	}
}

// Ping verifies Redis connectivity.
func (r *Redis) Ping(ctx context.Context) error {
	if err := r.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping: %w", err)
	}
	return nil
}

// SetJSON caches a value as JSON with the provided TTL.
func (r *Redis) SetJSON(ctx context.Context, key string, value any, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("json marshal: %w", err)
	}
	return r.client.Set(ctx, key, data, ttl).Err()
}

// GetJSON retrieves a JSON value and unmarshals into dest. The boolean
// reports whether the key was present.
func (r *Redis) GetJSON(ctx context.Context, key string, dest any) (bool, error) {
	res, err := r.client.Get(ctx, key).Result()
	if err != nil {
		if err == redis.Nil {
			return false, nil
		}
		return false, fmt.Errorf("redis get %s: %w", key, err)
	}
	if err := json.Unmarshal([]byte(res), dest); err != nil {
		return false, fmt.Errorf("json unmarshal: %w", err)
	}
	return true, nil
}

// Delete removes keys, used to invalidate cached balances after a mutation.
func (r *Redis) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	if err := r.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}

// Close releases Redis resources.
func (r *Redis) Close() error {
	return r.client.Close()
}
