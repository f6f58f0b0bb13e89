package repo

import (
	"context"
	"database/sql"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	_ "modernc.org/sqlite"
)

// SQLiteRepository provides access to a local SQLite database.
type SQLiteRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewSQLite opens a new connection to the SQLite database.
func NewSQLite(ctx context.Context, databasePath string, logger *slog.Logger) (*SQLiteRepository, error) {
	path := strings.TrimSpace(databasePath)
	if path == "" {
		return nil, fmt.Errorf("sqlite database path is empty")
	}
	if err := ensureDir(filepath.Dir(path)); err != nil {
		return nil, fmt.Errorf("ensure database dir: %w", err)
	}
	// Busy timeout and WAL mode are recommended for SQLite concurrency.
	dsn := path
	if !strings.HasPrefix(dsn, "file:") {
		dsn = "file:" + dsn
	}
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	dsn = fmt.Sprintf("%s%s_pragma=busy_timeout=10000&_pragma=journal_mode=WAL&_pragma=foreign_keys=ON", dsn, sep)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	return &SQLiteRepository{
		db:     db,
		logger: logger.With("component", "repo_sqlite"),
	}, nil
}

// Close releases the database connection.
func (r *SQLiteRepository) Close() {
	if r.db != nil {
		r.db.Close()
	}
}

// Ping ensures the database is reachable.
func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// RunMigrations applies the sqlite/ migration files in lexicographical order.
func (r *SQLiteRepository) RunMigrations(ctx context.Context, filesystem fs.FS) error {
	entries, err := fs.ReadDir(filesystem, "sqlite")
	if err != nil {
		return fmt.Errorf("read sqlite migrations: %w", err)
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name() < entries[j].Name()
	})

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".sql") {
			continue
		}
		sqlBytes, err := fs.ReadFile(filesystem, "sqlite/"+entry.Name())
		if err != nil {
			return fmt.Errorf("read migration %s: %w", entry.Name(), err)
		}
		if len(sqlBytes) == 0 {
			continue
		}
		if _, err := r.db.ExecContext(ctx, string(sqlBytes)); err != nil {
			return fmt.Errorf("apply migration %s: %w", entry.Name(), err)
		}
	}
	return nil
}

func ensureDir(dir string) error {
	if dir == "." || dir == "" {
		return nil
	}
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return os.MkdirAll(dir, 0o755)
	}
	return nil
}

func (r *SQLiteRepository) withTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}
