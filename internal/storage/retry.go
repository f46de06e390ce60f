package storage

import (
	"context"
	"time"
)

// RetryPolicy bounds how often a failed write is retried.
type RetryPolicy struct {
	MaxRetries int
	Backoff    time.Duration
}

// Retry runs fn until it succeeds, the policy is exhausted or ctx ends.
// The backoff doubles after every failed attempt.
func Retry(ctx context.Context, policy RetryPolicy, fn func(context.Context) error) error {
	maxRetries := policy.MaxRetries
	if maxRetries < 0 {
		maxRetries = 0
	}
	delay := policy.Backoff
	if delay <= 0 {
		delay = 100 * time.Millisecond
	}

	for attempt := 0; ; attempt++ {
		err := fn(ctx)
		if err == nil {
			return nil
		}
		if attempt >= maxRetries {
			return err
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
		delay *= 2
	}
}
