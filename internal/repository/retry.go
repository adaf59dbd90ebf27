package repository

import (
	"context"
	"time"

	"backend/internal/apperr"
)

// RetryPolicy is a bounded retry applied at the store-access boundary.
// Only errors apperr.IsRetryable reports as transient are retried; any
// other error aborts immediately. It exists so transient-failure
// handling lives in one place instead of ad-hoc loops per call site.
type RetryPolicy struct {
	MaxAttempts int
	Backoff     func(attempt int) time.Duration
}

// DefaultRetry is used for invoice numbering: 3 attempts with linear
// backoff. Reconcile commits are never retried through this (retrying a
// partially-applied multi-row commit could double-apply a return).
func DefaultRetry() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 3,
		Backoff: func(attempt int) time.Duration {
			return time.Duration(attempt) * 100 * time.Millisecond
		},
	}
}

// Do runs fn until it succeeds, returns a non-retryable error, the
// attempts run out, or ctx is cancelled.
func (p RetryPolicy) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		err = fn(ctx)
		if err == nil || !apperr.IsRetryable(err) {
			return err
		}
		if attempt == attempts {
			break
		}

		var wait time.Duration
		if p.Backoff != nil {
			wait = p.Backoff(attempt)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}
	return err
}
