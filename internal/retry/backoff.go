package retry

import (
	"context"
	"time"
)

// MaxDelay caps a single backoff wait.
const MaxDelay = 10 * time.Second

// ExponentialBackoff returns base * 2^attempt, capped at MaxDelay.
func ExponentialBackoff(attempt int, base time.Duration) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	if attempt > 30 {
		return MaxDelay
	}
	d := base * (1 << attempt)
	if d > MaxDelay || d <= 0 {
		return MaxDelay
	}
	return d
}

// Do calls fn until it succeeds, attempts are exhausted, or ctx is done.
// The last error from fn is returned.
func Do(ctx context.Context, attempts int, base time.Duration, fn func(context.Context) error) error {
	if attempts <= 0 {
		attempts = 1
	}
	var err error
	for attempt := 0; attempt < attempts; attempt++ {
		if err = fn(ctx); err == nil {
			return nil
		}
		if attempt == attempts-1 {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(ExponentialBackoff(attempt, base)):
		}
	}
	return err
}
