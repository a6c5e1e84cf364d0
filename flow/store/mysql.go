package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	_ "github.com/go-sql-driver/mysql"
)

// MySQLCache is a MySQL/MariaDB implementation of Cache[V].
//
// Designed for caches shared between workers or expected to survive process
// restarts. Values are JSON-encoded, so V must be JSON-serializable.
//
// Never hardcode credentials in the DSN; read it from the environment:
//
//	dsn := os.Getenv("MYSQL_DSN")
//	cache, err := store.NewMySQLCache[Report](dsn)
type MySQLCache[V any] struct {
	db     *sql.DB
	mu     sync.RWMutex
	closed bool
}

// NewMySQLCache creates a MySQL-backed cache.
//
// The DSN format is the go-sql-driver form:
//
//	[username[:password]@][protocol[(address)]]/dbname[?param=value&...]
//
// The cache configures connection pooling, verifies the connection, and
// creates its table if it does not exist.
func NewMySQLCache[V any](dsn string) (*MySQLCache[V], error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open MySQL connection: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)
	db.SetConnMaxIdleTime(10 * time.Minute)

	ctx := context.Background()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping MySQL: %w", err)
	}

	cache := &MySQLCache[V]{db: db}
	if err := cache.createTable(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create table: %w", err)
	}
	return cache, nil
}

func (m *MySQLCache[V]) createTable(ctx context.Context) error {
	table := `
		CREATE TABLE IF NOT EXISTS step_cache (
			cache_key VARCHAR(255) PRIMARY KEY,
			value JSON NOT NULL,
			expires_at BIGINT,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4 COLLATE=utf8mb4_unicode_ci
	`
	if _, err := m.db.ExecContext(ctx, table); err != nil {
		return fmt.Errorf("failed to create step_cache table: %w", err)
	}
	return nil
}

// Get returns the live value stored under key. An expired entry is deleted
// and reported as a miss.
func (m *MySQLCache[V]) Get(ctx context.Context, key string) (V, bool, error) {
	var zero V

	m.mu.RLock()
	closed := m.closed
	m.mu.RUnlock()
	if closed {
		return zero, false, ErrClosed
	}

	var (
		encoded   string
		expiresAt sql.NullInt64
	)
	row := m.db.QueryRowContext(ctx,
		"SELECT value, expires_at FROM step_cache WHERE cache_key = ?", key)
	if err := row.Scan(&encoded, &expiresAt); err != nil {
		if err == sql.ErrNoRows {
			return zero, false, nil
		}
		return zero, false, fmt.Errorf("failed to query cache: %w", err)
	}

	if expiresAt.Valid && time.Now().UnixNano() > expiresAt.Int64 {
		if _, err := m.db.ExecContext(ctx,
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
func (m *MySQLCache[V]) Set(ctx context.Context, key string, value V, ttl time.Duration) error {
	m.mu.RLock()
	closed := m.closed
	m.mu.RUnlock()
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

	_, err = m.db.ExecContext(ctx, `
		INSERT INTO step_cache (cache_key, value, expires_at)
		VALUES (?, ?, ?)
		ON DUPLICATE KEY UPDATE
			value = VALUES(value),
			expires_at = VALUES(expires_at)
	`, key, string(encoded), expiresAt)
	if err != nil {
		return fmt.Errorf("failed to store cache entry: %w", err)
	}
	return nil
}

// Close releases the connection pool. Subsequent calls return ErrClosed.
func (m *MySQLCache[V]) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	m.closed = true
	return m.db.Close()
}
