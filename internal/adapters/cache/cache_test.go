package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/mikey/mailtrust/internal/core"
)

func sampleResult() *core.VerifyResult {
	return &core.VerifyResult{
		Source:   "local",
		Input:    "bob@example.com",
		FormatOK: true,
		Domain:   "example.com",
		HasMX:    true,
		MX:       []core.MXRecord{{Host: "mx.example.com", Priority: 10}},
		Mailbox:  core.MailboxInfo{Status: core.MailboxUnknown},
		DBL:      core.BlocklistInfo{Zone: "dbl.spamhaus.org"},
		Verdict: core.AddressVerdict{
			List:       core.ListGrey,
			SafeToSend: true,
			Confidence: core.Confidence{Score: 4, Band: "medium"},
		},
		Notes: []string{"note"},
	}
}

// clockedCache is a ResultCache whose clock can be moved
type clockedCache interface {
	core.ResultCache
	SetClock(now func() time.Time)
}

func exerciseCache(t *testing.T, c clockedCache) {
	ctx := context.Background()
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	c.SetClock(func() time.Time { return now })

	_, err := c.Get(ctx, "bob@example.com")
	assert.True(t, errors.Is(err, core.ErrCacheMiss))

	require.NoError(t, c.Set(ctx, "bob@example.com", sampleResult()))

	now = now.Add(14 * time.Minute)
	got, err := c.Get(ctx, "bob@example.com")
	require.NoError(t, err)
	assert.Equal(t, sampleResult(), got)

	got.Notes[0] = "mutated"
	again, err := c.Get(ctx, "bob@example.com")
	require.NoError(t, err)
	assert.Equal(t, "note", again.Notes[0], "cached results are not shared")

	now = now.Add(time.Minute)
	_, err = c.Get(ctx, "bob@example.com")
	assert.ErrorIs(t, err, ErrExpired)
	_, err = c.Get(ctx, "bob@example.com")
	assert.ErrorIs(t, err, ErrNotFound, "expired entries are evicted on lookup")

	require.NoError(t, c.Set(ctx, "bob@example.com", sampleResult()))
	require.NoError(t, c.Delete(ctx, "bob@example.com"))
	_, err = c.Get(ctx, "bob@example.com")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryCache(t *testing.T) {
	c := NewMemoryCache(15*time.Minute, zap.NewNop())
	defer c.Stop()

	exerciseCache(t, c)
	assert.Equal(t, 0, c.Len())
}

func TestSQLiteCache(t *testing.T) {
	c, err := NewSQLiteCache(":memory:", 15*time.Minute, zap.NewNop())
	if err != nil {
		t.Skipf("sqlite unavailable: %v", err)
	}
	defer c.Stop()

	exerciseCache(t, c)
}
