package resilience_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/c360studio/longform/resilience"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastRetryConfig(attempts int) resilience.RetryConfig {
	return resilience.RetryConfig{
		MaxAttempts:       attempts,
		BackoffBase:       time.Millisecond,
		BackoffMultiplier: 2.0,
		MaxBackoff:        5 * time.Millisecond,
	}
}

func TestRetry_SucceedsFirstAttempt(t *testing.T) {
	calls := 0
	value, attempts, err := resilience.Retry(context.Background(), fastRetryConfig(3),
		func(ctx context.Context) (string, error) {
			calls++
			return "done", nil
		})

	require.NoError(t, err)
	assert.Equal(t, "done", value)
	assert.Equal(t, 1, attempts)
	assert.Equal(t, 1, calls)
}

func TestRetry_RetriesTransientThenSucceeds(t *testing.T) {
	calls := 0
	value, attempts, err := resilience.Retry(context.Background(), fastRetryConfig(3),
		func(ctx context.Context) (int, error) {
			calls++
			if calls < 3 {
				return 0, resilience.NewTransientError(errors.New("flaky"))
			}
			return 7, nil
		})

	require.NoError(t, err)
	assert.Equal(t, 7, value)
	assert.Equal(t, 3, attempts)
}

func TestRetry_ExhaustsAttempts(t *testing.T) {
	calls := 0
	boom := errors.New("still broken")
	_, attempts, err := resilience.Retry(context.Background(), fastRetryConfig(3),
		func(ctx context.Context) (int, error) {
			calls++
			return 0, resilience.NewTransientError(boom)
		})

	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 3, attempts)
	assert.Equal(t, 3, calls)
}

func TestRetry_FatalBypassesRetry(t *testing.T) {
	calls := 0
	_, attempts, err := resilience.Retry(context.Background(), fastRetryConfig(5),
		func(ctx context.Context) (int, error) {
			calls++
			return 0, resilience.NewFatalError(errors.New("bad request"))
		})

	require.Error(t, err)
	assert.True(t, resilience.IsFatal(err))
	assert.Equal(t, 1, attempts)
	assert.Equal(t, 1, calls)
}

func TestRetry_ContextCancelledBetweenAttempts(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	cfg := fastRetryConfig(5)
	cfg.BackoffBase = 50 * time.Millisecond
	cfg.MaxBackoff = 50 * time.Millisecond

	calls := 0
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	_, _, err := resilience.Retry(ctx, cfg, func(ctx context.Context) (int, error) {
		calls++
		return 0, resilience.NewTransientError(errors.New("flaky"))
	})

	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}

func TestErrorClassification(t *testing.T) {
	base := errors.New("root cause")

	transient := resilience.NewTransientError(base)
	assert.True(t, resilience.IsTransient(transient))
	assert.False(t, resilience.IsFatal(transient))
	assert.ErrorIs(t, transient, base)

	fatal := resilience.NewFatalError(base)
	assert.True(t, resilience.IsFatal(fatal))
	assert.False(t, resilience.IsTransient(fatal))
	assert.ErrorIs(t, fatal, base)

	// Wrapping preserves classification.
	wrapped := resilience.NewTransientError(resilience.NewFatalError(base))
	assert.True(t, resilience.IsFatal(wrapped))
}
