package resilience

import (
	"context"
	"time"
)

// Operation is any fallible call that respects context cancellation.
type Operation[T any] func(ctx context.Context) (T, error)

// WithTimeout races op against a deadline. On expiry the caller gets a
// TimeoutError and the operation is abandoned: it keeps running on its own
// goroutine until it notices the cancelled context, but its result is
// discarded.
func WithTimeout[T any](ctx context.Context, d time.Duration, op Operation[T]) (T, error) {
	var zero T

	if d <= 0 {
		return op(ctx)
	}

	opCtx, cancel := context.WithTimeout(ctx, d)
	defer cancel()

	type outcome struct {
		value T
		err   error
	}

	// Buffered so the abandoned goroutine can exit after a timeout.
	done := make(chan outcome, 1)
	start := time.Now()

	go func() {
		value, err := op(opCtx)
		done <- outcome{value: value, err: err}
	}()

	select {
	case out := <-done:
		return out.value, out.err
	case <-opCtx.Done():
		if ctx.Err() != nil {
			// Parent cancelled, not our deadline.
			return zero, ctx.Err()
		}
		return zero, NewTransientError(&TimeoutError{Elapsed: time.Since(start)})
	}
}
