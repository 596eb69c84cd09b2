package common

import (
	"context"
	"log"
	"time"
)

// RetryPolicy configures Retry
type RetryPolicy struct {
	// MaxAttempts is the total number of tries; values below 1 mean a single try
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	// Retryable decides whether err is worth another attempt; nil retries everything
	Retryable func(err error) bool
	// OnRetry is called before each backoff sleep with the failed attempt number
	OnRetry func(err error, attempt int)
	// Sleep waits for d; defaults to a context-aware timer
	Sleep func(ctx context.Context, d time.Duration) error
}

// Backoff returns min(base * 2^(attempt-1), max) for attempt >= 1
func Backoff(attempt int, base, max time.Duration) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	d := base
	for i := 1; i < attempt; i++ {
		d *= 2
		if max > 0 && d >= max {
			return max
		}
	}
	if max > 0 && d > max {
		return max
	}
	return d
}

// Retry runs fn until it succeeds, returns a non-retryable error, or attempts run out.
// The last error is returned as-is, never wrapped.
func Retry[T any](ctx context.Context, p RetryPolicy, fn func(ctx context.Context) (T, error)) (T, error) {
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	sleep := p.Sleep
	if sleep == nil {
		sleep = sleepContext
	}

	var (
		result T
		err    error
	)
	for attempt := 1; attempt <= attempts; attempt++ {
		result, err = fn(ctx)
		if err == nil {
			return result, nil
		}
		if p.Retryable != nil && !p.Retryable(err) {
			return result, err
		}
		if attempt == attempts {
			break
		}

		if p.OnRetry != nil {
			p.OnRetry(err, attempt)
		} else {
			log.Printf("⚠️  Attempt %d/%d failed: %v", attempt, attempts, err)
		}

		if serr := sleep(ctx, Backoff(attempt, p.BaseDelay, p.MaxDelay)); serr != nil {
			var zero T
			return zero, serr
		}
	}
	return result, err
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
