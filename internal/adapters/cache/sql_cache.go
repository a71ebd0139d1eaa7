package cache

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/mikey/mailtrust/internal/core"
)

// sqlCache holds the storage logic shared by the SQLite and MySQL caches.
// Rows carry the result JSON and the insertion time in unix milliseconds;
// expiry is checked and enforced on read.
type sqlCache struct {
	db     *sql.DB
	upsert string
	ttl    time.Duration
	now    func() time.Time
	logger *zap.Logger
}

func (c *sqlCache) get(ctx context.Context, key string) (*core.VerifyResult, error) {
	var (
		data       string
		insertedAt int64
	)
	err := c.db.QueryRowContext(ctx, `
		SELECT result, inserted_at
		FROM verify_cache
		WHERE address = ?
	`, key).Scan(&data, &insertedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to query cache: %w", err)
	}

	if c.now().Sub(time.UnixMilli(insertedAt)) >= c.ttl {
		if _, err := c.db.ExecContext(ctx, `
			DELETE FROM verify_cache
			WHERE address = ? AND inserted_at = ?
		`, key, insertedAt); err != nil {
			c.logger.Warn("Failed to evict expired cache entry", zap.String("key", key), zap.Error(err))
		}
		return nil, ErrExpired
	}

	var result core.VerifyResult
	if err := json.Unmarshal([]byte(data), &result); err != nil {
		return nil, fmt.Errorf("failed to decode cache entry: %w", err)
	}
	return &result, nil
}

func (c *sqlCache) set(ctx context.Context, key string, result *core.VerifyResult) error {
	data, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("failed to encode cache entry: %w", err)
	}

	if _, err := c.db.ExecContext(ctx, c.upsert, key, string(data), c.now().UnixMilli()); err != nil {
		return fmt.Errorf("failed to insert cache entry: %w", err)
	}
	return nil
}

func (c *sqlCache) delete(ctx context.Context, key string) error {
	_, err := c.db.ExecContext(ctx, `
		DELETE FROM verify_cache
		WHERE address = ?
	`, key)
	if err != nil {
		return fmt.Errorf("failed to delete cache entry: %w", err)
	}
	return nil
}

func (c *sqlCache) close(name string) {
	if err := c.db.Close(); err != nil {
		c.logger.Error("Failed to close "+name+" database", zap.Error(err))
	}
}
