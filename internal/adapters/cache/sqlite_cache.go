package cache

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/mikey/mailtrust/internal/core"
)

// SQLiteCache is a SQLite implementation of the ResultCache interface
type SQLiteCache struct {
	sqlCache
}

// NewSQLiteCache creates a new SQLite cache
func NewSQLiteCache(dbPath string, ttl time.Duration, logger *zap.Logger) (*SQLiteCache, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite database: %w", err)
	}
	// A single connection keeps ":memory:" databases consistent and avoids lock contention
	db.SetMaxOpenConns(1)

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS verify_cache (
			address TEXT PRIMARY KEY,
			result TEXT NOT NULL,
			inserted_at INTEGER NOT NULL
		)
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create table: %w", err)
	}

	return &SQLiteCache{sqlCache{
		db: db,
		upsert: `
			INSERT OR REPLACE INTO verify_cache (address, result, inserted_at)
			VALUES (?, ?, ?)
		`,
		ttl:    ttl,
		now:    time.Now,
		logger: logger,
	}}, nil
}

// SetClock replaces the clock used for expiry
func (c *SQLiteCache) SetClock(now func() time.Time) {
	c.now = now
}

// Get retrieves a result younger than the TTL
func (c *SQLiteCache) Get(ctx context.Context, key string) (*core.VerifyResult, error) {
	return c.get(ctx, key)
}

// Set stores a result
func (c *SQLiteCache) Set(ctx context.Context, key string, result *core.VerifyResult) error {
	return c.set(ctx, key, result)
}

// Delete removes a cache entry
func (c *SQLiteCache) Delete(ctx context.Context, key string) error {
	return c.delete(ctx, key)
}

// Stop closes the database connection
func (c *SQLiteCache) Stop() {
	c.close("SQLite")
}
