package utils

import (
	"context"
	"errors"
	"time"
)

// ErrTimeout is returned by Race when the deadline fires before the operation completes
var ErrTimeout = errors.New("operation timed out")

type raceResult[T any] struct {
	value T
	err   error
}

// Race runs op against a deadline. If the deadline fires first, ErrTimeout is
// returned and the eventual result of op is discarded. The context passed to
// op is cancelled once Race returns.
func Race[T any](ctx context.Context, d time.Duration, op func(ctx context.Context) (T, error)) (T, error) {
	var zero T

	opCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var timer <-chan time.Time
	if d > 0 {
		t := time.NewTimer(d)
		defer t.Stop()
		timer = t.C
	}

	// Buffered so a late result never blocks the abandoned goroutine
	done := make(chan raceResult[T], 1)
	go func() {
		v, err := op(opCtx)
		done <- raceResult[T]{value: v, err: err}
	}()

	select {
	case r := <-done:
		return r.value, r.err
	case <-timer:
		return zero, ErrTimeout
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}

// WithTimeout runs op against a deadline and returns fallback if the deadline
// fires or op fails. It never returns an error.
func WithTimeout[T any](ctx context.Context, d time.Duration, fallback T, op func(ctx context.Context) (T, error)) T {
	v, err := Race(ctx, d, op)
	if err != nil {
		return fallback
	}
	return v
}
