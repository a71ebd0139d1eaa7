package utils

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRace_ReturnsResultBeforeDeadline(t *testing.T) {
	v, err := Race(context.Background(), time.Second, func(ctx context.Context) (string, error) {
		return "ok", nil
	})

	require.NoError(t, err)
	assert.Equal(t, "ok", v)
}

func TestRace_TimesOut(t *testing.T) {
	release := make(chan struct{})
	defer close(release)

	start := time.Now()
	v, err := Race(context.Background(), 20*time.Millisecond, func(ctx context.Context) (int, error) {
		<-release
		return 42, nil
	})

	assert.ErrorIs(t, err, ErrTimeout)
	assert.Zero(t, v)
	assert.Less(t, time.Since(start), time.Second, "Race should not wait for the operation")
}

func TestRace_CancelsOperationContext(t *testing.T) {
	cancelled := make(chan struct{})

	_, err := Race(context.Background(), 10*time.Millisecond, func(ctx context.Context) (int, error) {
		<-ctx.Done()
		close(cancelled)
		return 0, ctx.Err()
	})
	require.ErrorIs(t, err, ErrTimeout)

	select {
	case <-cancelled:
	case <-time.After(time.Second):
		t.Fatal("operation context was not cancelled after the deadline")
	}
}

func TestRace_PropagatesError(t *testing.T) {
	boom := errors.New("boom")

	_, err := Race(context.Background(), time.Second, func(ctx context.Context) (int, error) {
		return 0, boom
	})

	assert.ErrorIs(t, err, boom)
}

func TestRace_ParentContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Race(ctx, time.Second, func(ctx context.Context) (int, error) {
		time.Sleep(50 * time.Millisecond)
		return 1, nil
	})

	assert.ErrorIs(t, err, context.Canceled)
}

func TestWithTimeout_Fallbacks(t *testing.T) {
	tests := []struct {
		name string
		op   func(ctx context.Context) ([]string, error)
		want []string
	}{
		{
			name: "success",
			op: func(ctx context.Context) ([]string, error) {
				return []string{"a"}, nil
			},
			want: []string{"a"},
		},
		{
			name: "error becomes fallback",
			op: func(ctx context.Context) ([]string, error) {
				return []string{"partial"}, errors.New("failed")
			},
			want: []string{},
		},
		{
			name: "timeout becomes fallback",
			op: func(ctx context.Context) ([]string, error) {
				time.Sleep(200 * time.Millisecond)
				return []string{"late"}, nil
			},
			want: []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := WithTimeout(context.Background(), 30*time.Millisecond, []string{}, tt.op)
			assert.Equal(t, tt.want, got)
		})
	}
}
