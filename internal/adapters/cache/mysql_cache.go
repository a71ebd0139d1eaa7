package cache

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"go.uber.org/zap"

	"github.com/mikey/mailtrust/internal/core"
)

// MySQLCache is a MySQL implementation of the ResultCache interface
type MySQLCache struct {
	sqlCache
}

// NewMySQLCache creates a new MySQL cache
func NewMySQLCache(dsn string, ttl time.Duration, logger *zap.Logger) (*MySQLCache, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open MySQL database: %w", err)
	}

	// Test the connection
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to MySQL database: %w", err)
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS verify_cache (
			address VARCHAR(254) PRIMARY KEY,
			result MEDIUMTEXT NOT NULL,
			inserted_at BIGINT NOT NULL
		)
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create table: %w", err)
	}

	return &MySQLCache{sqlCache{
		db: db,
		upsert: `
			INSERT INTO verify_cache (address, result, inserted_at)
			VALUES (?, ?, ?)
			ON DUPLICATE KEY UPDATE
				result = VALUES(result),
				inserted_at = VALUES(inserted_at)
		`,
		ttl:    ttl,
		now:    time.Now,
		logger: logger,
	}}, nil
}

// Get retrieves a result younger than the TTL
func (c *MySQLCache) Get(ctx context.Context, key string) (*core.VerifyResult, error) {
	return c.get(ctx, key)
}

// Set stores a result
func (c *MySQLCache) Set(ctx context.Context, key string, result *core.VerifyResult) error {
	return c.set(ctx, key, result)
}

// Delete removes a cache entry
func (c *MySQLCache) Delete(ctx context.Context, key string) error {
	return c.delete(ctx, key)
}

// Stop closes the database connection
func (c *MySQLCache) Stop() {
	c.close("MySQL")
}
