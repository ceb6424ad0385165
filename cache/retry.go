package cache

import (
	"context"
	"log/slog"
	"time"
)

// RetryConfig bounds the retries of a failed source read.
type RetryConfig struct {
	MaxAttempts       int
	InitialDelay      time.Duration
	MaxDelay          time.Duration
	BackoffMultiplier float64
}

var DefaultRetryConfig = RetryConfig{
	MaxAttempts:       3,
	InitialDelay:      500 * time.Millisecond,
	MaxDelay:          10 * time.Second,
	BackoffMultiplier: 2.0,
}

// NoRetry fails on the first source error.
var NoRetry = RetryConfig{MaxAttempts: 1}

// Delay returns the wait before the given retry (1 for the first retry).
func (c RetryConfig) Delay(retry int) time.Duration {
	delay := float64(c.InitialDelay)
	for range retry - 1 {
		delay *= max(c.BackoffMultiplier, 1)
		if c.MaxDelay > 0 && delay >= float64(c.MaxDelay) {
			return c.MaxDelay
		}
	}
	return time.Duration(delay)
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// do calls fn until it succeeds, the attempts are exhausted or ctx is done.
func (c RetryConfig) do(ctx context.Context, logger *slog.Logger, what string, fn func() error) error {
	for attempt := 1; ; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if attempt >= c.MaxAttempts {
			return err
		}
		logger.Warn("compactcache: retrying source read", "op", what, "attempt", attempt, "error", err)
		if err := sleep(ctx, c.Delay(attempt)); err != nil {
			return err
		}
	}
}
