package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"backend/internal/apperr"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastRetry(attempts int) RetryPolicy {
	return RetryPolicy{
		MaxAttempts: attempts,
		Backoff:     func(int) time.Duration { return 0 },
	}
}

func TestRetryRetriesStoreFailures(t *testing.T) {
	calls := 0
	err := fastRetry(3).Do(context.Background(), func(ctx context.Context) error {
		calls++
		if calls < 3 {
			return apperr.Store(errors.New("connection reset"))
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestRetryGivesUpAfterMaxAttempts(t *testing.T) {
	calls := 0
	err := fastRetry(3).Do(context.Background(), func(ctx context.Context) error {
		calls++
		return apperr.Store(errors.New("still down"))
	})
	require.ErrorIs(t, err, apperr.ErrStore)
	assert.Equal(t, 3, calls)
}

func TestRetryDoesNotRetryDomainErrors(t *testing.T) {
	cases := []struct {
		name string
		err  error
	}{
		{"validation", apperr.Validation(apperr.CodeEmptyReason, "bad input")},
		{"conflict", apperr.Conflict(apperr.CodeOverReturn, "over-return")},
		{"not found", apperr.NotFound("invoice", "x")},
		{"authorization", apperr.Authorization("wrong shop")},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			calls := 0
			err := fastRetry(3).Do(context.Background(), func(ctx context.Context) error {
				calls++
				return tc.err
			})
			require.ErrorIs(t, err, tc.err)
			assert.Equal(t, 1, calls)
		})
	}
}

func TestRetryHonorsContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	calls := 0
	policy := RetryPolicy{
		MaxAttempts: 5,
		Backoff:     func(int) time.Duration { return 10 * time.Millisecond },
	}
	err := policy.Do(ctx, func(ctx context.Context) error {
		calls++
		cancel()
		return apperr.Store(errors.New("down"))
	})
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}
