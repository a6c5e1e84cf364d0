package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteCache is a SQLite implementation of Cache[V].
//
// It stores cached values in a single-file database. Designed for:
//   - Development and testing with zero setup
//   - Single-process workflows whose cache should survive restarts
//   - Prototyping before migrating to a shared backend
//
// Values are JSON-encoded, so V must be JSON-serializable. WAL mode is
// enabled for concurrent reads; expired entries are deleted lazily on read.
type SQLiteCache[V any] struct {
	db     *sql.DB
	mu     sync.RWMutex
	closed bool
}

// NewSQLiteCache creates a SQLite-backed cache.
//
// The path specifies the database file location; use ":memory:" for an
// in-memory database that is lost on close. The cache creates its table on
// first use and enables WAL mode plus a 5s busy timeout.
//
// Example:
//
//	cache, err := store.NewSQLiteCache[Report]("./cache.db")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer cache.Close()
func NewSQLiteCache[V any](path string) (*SQLiteCache[V], error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite connection: %w", err)
	}

	// SQLite supports one writer at a time.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	ctx := context.Background()
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
	} {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to apply %s: %w", pragma, err)
		}
	}

	cache := &SQLiteCache[V]{db: db}
	if err := cache.createTable(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create table: %w", err)
	}
	return cache, nil
}

func (s *SQLiteCache[V]) createTable(ctx context.Context) error {
	table := `
		CREATE TABLE IF NOT EXISTS step_cache (
			cache_key TEXT PRIMARY KEY,
			value TEXT NOT NULL,
			expires_at INTEGER,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)
	`
	if _, err := s.db.ExecContext(ctx, table); err != nil {
		return fmt.Errorf("failed to create step_cache table: %w", err)
	}
	return nil
}

// Get returns the live value stored under key. An expired entry is deleted
// and reported as a miss.
func (s *SQLiteCache[V]) Get(ctx context.Context, key string) (V, bool, error) {
	var zero V

	s.mu.RLock()
	closed := s.closed
	s.mu.RUnlock()
	if closed {
		return zero, false, ErrClosed
	}

	var (
		encoded   string
		expiresAt sql.NullInt64
	)
	row := s.db.QueryRowContext(ctx,
		"SELECT value, expires_at FROM step_cache WHERE cache_key = ?", key)
	if err := row.Scan(&encoded, &expiresAt); err != nil {
		if err == sql.ErrNoRows {
			return zero, false, nil
		}
		return zero, false, fmt.Errorf("failed to query cache: %w", err)
	}

	if expiresAt.Valid && time.Now().UnixNano() > expiresAt.Int64 {
		if _, err := s.db.ExecContext(ctx,
			"DELETE FROM step_cache WHERE cache_key = ?", key); err != nil {
			return zero, false, fmt.Errorf("failed to evict expired entry: %w", err)
		}
		return zero, false, nil
	}

	var value V
	if err := json.Unmarshal([]byte(encoded), &value); err != nil {
		return zero, false, fmt.Errorf("failed to decode cached value: %w", err)
	}
	return value, true, nil
}

// Set stores value under key, replacing any existing entry.
func (s *SQLiteCache[V]) Set(ctx context.Context, key string, value V, ttl time.Duration) error {
	s.mu.RLock()
	closed := s.closed
	s.mu.RUnlock()
	if closed {
		return ErrClosed
	}

	encoded, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to encode value: %w", err)
	}

	var expiresAt interface{}
	if ttl > 0 {
		expiresAt = time.Now().Add(ttl).UnixNano()
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO step_cache (cache_key, value, expires_at)
		VALUES (?, ?, ?)
		ON CONFLICT(cache_key) DO UPDATE SET
			value = excluded.value,
			expires_at = excluded.expires_at
	`, key, string(encoded), expiresAt)
	if err != nil {
		return fmt.Errorf("failed to store cache entry: %w", err)
	}
	return nil
}

// Close releases the database connection. Subsequent calls return ErrClosed.
func (s *SQLiteCache[V]) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	s.closed = true
	return s.db.Close()
}
