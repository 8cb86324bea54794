package resilience

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrCircuitOpen is returned when a call is rejected because the circuit
// breaker is open. It is classified as transient so that callers with a
// retry policy can probe again after the recovery timeout.
var ErrCircuitOpen = errors.New("circuit breaker is OPEN")

// BreakerState identifies the circuit breaker state.
type BreakerState string

const (
	// BreakerClosed allows calls through and counts failures.
	BreakerClosed BreakerState = "CLOSED"
	// BreakerOpen rejects calls without invoking the operation.
	BreakerOpen BreakerState = "OPEN"
	// BreakerHalfOpen allows a probe call after the recovery timeout.
	BreakerHalfOpen BreakerState = "HALF_OPEN"
)

// BreakerConfig configures circuit breaker behavior.
type BreakerConfig struct {
	// FailureThreshold is the number of consecutive failures before the
	// circuit opens.
	FailureThreshold int

	// RecoveryTimeout is how long the circuit stays open before a probe
	// call is allowed.
	RecoveryTimeout time.Duration
}

// DefaultBreakerConfig returns sensible defaults for a circuit breaker.
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		FailureThreshold: 3,
		RecoveryTimeout:  30 * time.Second,
	}
}

// BreakerStatus is a point-in-time snapshot of breaker state.
type BreakerStatus struct {
	State           BreakerState `json:"state"`
	FailureCount    int          `json:"failure_count"`
	LastFailureTime time.Time    `json:"last_failure_time,omitempty"`
}

// Breaker is a three-state circuit breaker. It is safe for concurrent use;
// all transitions are atomic with respect to concurrent callers.
//
// The zero value is not usable; construct with NewBreaker.
type Breaker struct {
	mu       sync.Mutex
	config   BreakerConfig
	state    BreakerState
	failures int
	lastFail time.Time
	openedAt time.Time

	// now is swappable for tests.
	now func() time.Time
}

// NewBreaker creates a circuit breaker in the CLOSED state.
func NewBreaker(cfg BreakerConfig) *Breaker {
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = DefaultBreakerConfig().FailureThreshold
	}
	if cfg.RecoveryTimeout <= 0 {
		cfg.RecoveryTimeout = DefaultBreakerConfig().RecoveryTimeout
	}
	return &Breaker{
		config: cfg,
		state:  BreakerClosed,
		now:    time.Now,
	}
}

// Allow reports whether a call may proceed. An open circuit whose recovery
// timeout has elapsed transitions to HALF_OPEN and admits one probe.
func (b *Breaker) Allow() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case BreakerClosed, BreakerHalfOpen:
		return nil
	case BreakerOpen:
		if b.now().Sub(b.openedAt) >= b.config.RecoveryTimeout {
			b.state = BreakerHalfOpen
			return nil
		}
		return ErrCircuitOpen
	}
	return nil
}

// MarkSuccess records a successful call. In HALF_OPEN a single success
// closes the circuit and resets the failure count.
func (b *Breaker) MarkSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.state = BreakerClosed
	b.failures = 0
}

// MarkFailure records a failed call. In CLOSED the circuit opens once the
// failure threshold is reached; in HALF_OPEN any failure reopens it.
func (b *Breaker) MarkFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.failures++
	b.lastFail = b.now()

	switch b.state {
	case BreakerHalfOpen:
		b.open()
	case BreakerClosed:
		if b.failures >= b.config.FailureThreshold {
			b.open()
		}
	}
}

// open transitions to OPEN. Callers must hold b.mu.
func (b *Breaker) open() {
	b.state = BreakerOpen
	b.openedAt = b.now()
}

// Status returns a snapshot of the breaker state. An open circuit whose
// recovery timeout has elapsed is reported as HALF_OPEN.
func (b *Breaker) Status() BreakerStatus {
	b.mu.Lock()
	defer b.mu.Unlock()

	state := b.state
	if state == BreakerOpen && b.now().Sub(b.openedAt) >= b.config.RecoveryTimeout {
		state = BreakerHalfOpen
	}

	return BreakerStatus{
		State:           state,
		FailureCount:    b.failures,
		LastFailureTime: b.lastFail,
	}
}

// WithBreaker guards op with the breaker: rejected immediately when the
// circuit is open, otherwise executed with the outcome recorded.
func WithBreaker[T any](ctx context.Context, b *Breaker, op Operation[T]) (T, error) {
	var zero T

	if err := b.Allow(); err != nil {
		return zero, NewTransientError(err)
	}

	value, err := op(ctx)
	if err != nil {
		b.MarkFailure()
		return zero, err
	}

	b.MarkSuccess()
	return value, nil
}
