package resilience_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/c360studio/longform/resilience"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBreaker_OpensAfterThreshold(t *testing.T) {
	b := resilience.NewBreaker(resilience.BreakerConfig{
		FailureThreshold: 3,
		RecoveryTimeout:  time.Minute,
	})

	assert.Equal(t, resilience.BreakerClosed, b.Status().State)

	b.MarkFailure()
	b.MarkFailure()
	assert.Equal(t, resilience.BreakerClosed, b.Status().State)

	b.MarkFailure()
	status := b.Status()
	assert.Equal(t, resilience.BreakerOpen, status.State)
	assert.Equal(t, 3, status.FailureCount)
	assert.False(t, status.LastFailureTime.IsZero())

	err := b.Allow()
	require.Error(t, err)
	assert.ErrorIs(t, err, resilience.ErrCircuitOpen)
}

func TestBreaker_OpenRejectsWithoutInvoking(t *testing.T) {
	b := resilience.NewBreaker(resilience.BreakerConfig{
		FailureThreshold: 1,
		RecoveryTimeout:  time.Minute,
	})
	b.MarkFailure()

	invoked := false
	_, err := resilience.WithBreaker(context.Background(), b, func(ctx context.Context) (string, error) {
		invoked = true
		return "ok", nil
	})

	require.Error(t, err)
	assert.ErrorIs(t, err, resilience.ErrCircuitOpen)
	assert.Contains(t, err.Error(), "circuit breaker is OPEN")
	assert.False(t, invoked)
}

func TestBreaker_HalfOpenAfterRecoveryTimeout(t *testing.T) {
	b := resilience.NewBreaker(resilience.BreakerConfig{
		FailureThreshold: 1,
		RecoveryTimeout:  20 * time.Millisecond,
	})
	b.MarkFailure()
	assert.Equal(t, resilience.BreakerOpen, b.Status().State)

	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, resilience.BreakerHalfOpen, b.Status().State)

	// Probe call is admitted.
	require.NoError(t, b.Allow())
}

func TestBreaker_HalfOpenSuccessCloses(t *testing.T) {
	b := resilience.NewBreaker(resilience.BreakerConfig{
		FailureThreshold: 1,
		RecoveryTimeout:  10 * time.Millisecond,
	})
	b.MarkFailure()
	time.Sleep(20 * time.Millisecond)

	value, err := resilience.WithBreaker(context.Background(), b, func(ctx context.Context) (int, error) {
		return 42, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 42, value)

	status := b.Status()
	assert.Equal(t, resilience.BreakerClosed, status.State)
	assert.Equal(t, 0, status.FailureCount)
}

func TestBreaker_HalfOpenFailureReopens(t *testing.T) {
	b := resilience.NewBreaker(resilience.BreakerConfig{
		FailureThreshold: 1,
		RecoveryTimeout:  10 * time.Millisecond,
	})
	b.MarkFailure()
	time.Sleep(20 * time.Millisecond)

	boom := errors.New("probe failed")
	_, err := resilience.WithBreaker(context.Background(), b, func(ctx context.Context) (int, error) {
		return 0, boom
	})
	require.ErrorIs(t, err, boom)

	assert.Equal(t, resilience.BreakerOpen, b.Status().State)
	assert.ErrorIs(t, b.Allow(), resilience.ErrCircuitOpen)
}

func TestBreaker_ConcurrentCallers(t *testing.T) {
	b := resilience.NewBreaker(resilience.BreakerConfig{
		FailureThreshold: 50,
		RecoveryTimeout:  time.Minute,
	})

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			if n%2 == 0 {
				b.MarkFailure()
			} else {
				_ = b.Allow()
				_ = b.Status()
			}
		}(i)
	}
	wg.Wait()

	// 50 failures recorded without a data race; the circuit opened.
	assert.Equal(t, resilience.BreakerOpen, b.Status().State)
}
