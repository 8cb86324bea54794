package resilience

import (
	"context"
	"log/slog"
	"math/rand/v2"
	"time"
)

// RetryConfig holds retry configuration for a fallible operation.
type RetryConfig struct {
	// MaxAttempts is the maximum number of attempts, including the first.
	MaxAttempts int

	// BackoffBase is the initial backoff duration.
	BackoffBase time.Duration

	// BackoffMultiplier is applied to backoff on each retry.
	BackoffMultiplier float64

	// MaxBackoff caps the maximum backoff duration.
	MaxBackoff time.Duration

	// Logger receives per-attempt debug logs. Nil means slog.Default().
	Logger *slog.Logger
}

// DefaultRetryConfig returns sensible retry defaults.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:       3,
		BackoffBase:       2 * time.Second,
		BackoffMultiplier: 2.0,
		MaxBackoff:        30 * time.Second,
	}
}

// Retry invokes op until it succeeds, returns a fatal error, the context is
// cancelled, or MaxAttempts is exhausted. It returns the number of attempts
// made alongside the final result.
func Retry[T any](ctx context.Context, cfg RetryConfig, op Operation[T]) (T, int, error) {
	var zero T

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		value, err := op(ctx)
		if err == nil {
			return value, attempt, nil
		}

		lastErr = err

		if IsFatal(err) {
			return zero, attempt, err
		}

		if attempt < cfg.MaxAttempts {
			backoff := cfg.backoff(attempt)
			logger.Debug("Operation failed, retrying",
				"attempt", attempt,
				"max_attempts", cfg.MaxAttempts,
				"backoff", backoff,
				"error", err)

			select {
			case <-ctx.Done():
				return zero, attempt, ctx.Err()
			case <-time.After(backoff):
			}
		}
	}

	return zero, cfg.MaxAttempts, lastErr
}

// backoff computes the exponential backoff for an attempt with jitter.
// Jitter prevents thundering herd when multiple callers retry simultaneously.
func (cfg RetryConfig) backoff(attempt int) time.Duration {
	multiplier := 1.0
	for i := 1; i < attempt; i++ {
		multiplier *= cfg.BackoffMultiplier
	}

	backoff := time.Duration(float64(cfg.BackoffBase) * multiplier)
	if backoff > cfg.MaxBackoff {
		backoff = cfg.MaxBackoff
	}

	// +/- 25% to avoid synchronized retries.
	jitter := float64(backoff) * 0.25 * (rand.Float64()*2 - 1)
	return backoff + time.Duration(jitter)
}
