// Package sqlite implements the engine's entity store and lease lock on a
// shared SQLite database. Every process of a deployment opens the same file;
// WAL mode and the busy timeout keep concurrent readers and the single
// resolution writer from starving each other.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/calder-games/nightfall/internal/platform/storage/sqlitemigrate"
	"github.com/calder-games/nightfall/internal/storage"
	"github.com/calder-games/nightfall/internal/storage/sqlite/migrations"
)

// Store provides a SQLite-backed implementation of storage.Store.
type Store struct {
	sqlDB *sql.DB
	now   func() time.Time
}

// Option configures store behavior.
type Option func(*Store)

// WithClock overrides the store's time source. Tests use it to exercise
// lease expiry without sleeping.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// Open opens the engine store at the provided path and applies embedded
// migrations before handing the store to higher layers.
func Open(path string, opts ...Option) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}

	cleanPath := filepath.Clean(path)
	dsn := cleanPath + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}

	if err := sqlitemigrate.ApplyMigrations(sqlDB, migrations.FS); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	store := &Store{sqlDB: sqlDB, now: time.Now}
	for _, opt := range opts {
		if opt != nil {
			opt(store)
		}
	}
	return store, nil
}

// Close closes the underlying SQLite database.
//
// Close is intentionally nil-safe so callers can defer it in all startup paths.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

func fromMillis(value int64) time.Time {
	return time.UnixMilli(value).UTC()
}

// putEntity upserts one keyed JSON record.
func (s *Store) putEntity(ctx context.Context, key string, value any) error {
	encoded, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	_, err = s.sqlDB.ExecContext(ctx, `
INSERT INTO entities (key, value, updated_at) VALUES (?, ?, ?)
ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
`, key, string(encoded), toMillis(s.now()))
	if err != nil {
		return fmt.Errorf("put %s: %w", key, err)
	}
	return nil
}

// getEntity reads one keyed JSON record into dst.
func (s *Store) getEntity(ctx context.Context, key string, dst any) error {
	var encoded string
	row := s.sqlDB.QueryRowContext(ctx, "SELECT value FROM entities WHERE key = ?", key)
	if err := row.Scan(&encoded); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return storage.ErrNotFound
		}
		return fmt.Errorf("get %s: %w", key, err)
	}
	if err := json.Unmarshal([]byte(encoded), dst); err != nil {
		return fmt.Errorf("decode %s: %w", key, err)
	}
	return nil
}

// deleteEntity removes one keyed record. Deleting an absent key is not an error.
func (s *Store) deleteEntity(ctx context.Context, key string) error {
	if _, err := s.sqlDB.ExecContext(ctx, "DELETE FROM entities WHERE key = ?", key); err != nil {
		return fmt.Errorf("delete %s: %w", key, err)
	}
	return nil
}

// listEntities returns the raw values of every key matching the GLOB pattern.
func (s *Store) listEntities(ctx context.Context, pattern string) ([][]byte, error) {
	rows, err := s.sqlDB.QueryContext(ctx, "SELECT value FROM entities WHERE key GLOB ? ORDER BY key", pattern)
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", pattern, err)
	}
	defer rows.Close()

	var values [][]byte
	for rows.Next() {
		var encoded string
		if err := rows.Scan(&encoded); err != nil {
			return nil, fmt.Errorf("scan %s row: %w", pattern, err)
		}
		values = append(values, []byte(encoded))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("scan %s rows: %w", pattern, err)
	}
	return values, nil
}
