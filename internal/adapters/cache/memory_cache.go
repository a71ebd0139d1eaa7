package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/mikey/mailtrust/internal/core"
)

var (
	// ErrNotFound is returned when a cache entry is not found
	ErrNotFound = fmt.Errorf("cache entry not found: %w", core.ErrCacheMiss)
	// ErrExpired is returned when a cache entry has outlived the TTL
	ErrExpired = fmt.Errorf("cache entry expired: %w", core.ErrCacheMiss)
)

type memoryEntry struct {
	data       []byte
	insertedAt time.Time
}

// MemoryCache is an in-memory implementation of the ResultCache interface.
// Results are stored as JSON so callers never share mutable state.
type MemoryCache struct {
	entries map[string]memoryEntry
	mu      sync.RWMutex
	ttl     time.Duration
	now     func() time.Time
	logger  *zap.Logger
}

// NewMemoryCache creates a new in-memory cache
func NewMemoryCache(ttl time.Duration, logger *zap.Logger) *MemoryCache {
	return &MemoryCache{
		entries: make(map[string]memoryEntry),
		ttl:     ttl,
		now:     time.Now,
		logger:  logger,
	}
}

// SetClock replaces the clock used for expiry
func (c *MemoryCache) SetClock(now func() time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = now
}

// Get retrieves a result younger than the TTL. Expired entries are evicted.
func (c *MemoryCache) Get(ctx context.Context, key string) (*core.VerifyResult, error) {
	c.mu.RLock()
	entry, ok := c.entries[key]
	now := c.now()
	c.mu.RUnlock()

	if !ok {
		return nil, ErrNotFound
	}

	if now.Sub(entry.insertedAt) >= c.ttl {
		c.mu.Lock()
		// Only evict if no fresher entry was stored meanwhile
		if current, ok := c.entries[key]; ok && current.insertedAt.Equal(entry.insertedAt) {
			delete(c.entries, key)
		}
		c.mu.Unlock()

		c.logger.Debug("Evicted expired cache entry", zap.String("key", key))
		return nil, ErrExpired
	}

	var result core.VerifyResult
	if err := json.Unmarshal(entry.data, &result); err != nil {
		return nil, fmt.Errorf("failed to decode cache entry: %w", err)
	}
	return &result, nil
}

// Set stores a result
func (c *MemoryCache) Set(ctx context.Context, key string, result *core.VerifyResult) error {
	data, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("failed to encode cache entry: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[key] = memoryEntry{data: data, insertedAt: c.now()}
	return nil
}

// Delete removes a cache entry
func (c *MemoryCache) Delete(ctx context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.entries, key)
	return nil
}

// Len returns the number of stored entries, expired or not
func (c *MemoryCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Stop is a no-op; the memory cache holds no resources
func (c *MemoryCache) Stop() {}
