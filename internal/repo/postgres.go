package repo

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresRepository provides typed access to Postgres resources.
type PostgresRepository struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
	schema string
}

// NewPostgres opens a new connection pool to the database with the desired search_path.
func NewPostgres(ctx context.Context, databaseURL, schema string, logger *slog.Logger) (*PostgresRepository, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}

	if cfg.ConnConfig.RuntimeParams == nil {
		cfg.ConnConfig.RuntimeParams = map[string]string{}
	}
	if schema != "" {
		cfg.ConnConfig.RuntimeParams["search_path"] = schema
	}
	cfg.ConnConfig.DefaultQueryExecMode = pgx.QueryExecModeSimpleProtocol

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	r := &PostgresRepository{
		pool:   pool,
		logger: logger.With("component", "repo"),
		schema: schema,
	}

	if err := r.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	return r, nil
}

// Close releases the connection pool.
func (r *PostgresRepository) Close() {
	if r.pool != nil {
		r.pool.Close()
	}
}

// Ping ensures the database is reachable.
func (r *PostgresRepository) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}

// WithTx executes fn within a database transaction.
func (r *PostgresRepository) WithTx(ctx context.Context, fn func(pgx.Tx) error) error {
	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(tx)
	})
}

// RunMigrations applies schema migrations on the connected database.
func (r *PostgresRepository) RunMigrations(ctx context.Context, filesystem fs.FS) error {
	return ApplyMigrations(ctx, r.pool, filesystem)
}
