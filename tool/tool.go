// Package tool provides the invocation layer for named, fallible units of
// work. Every invocation runs through parameter validation, an optional
// circuit breaker, a deadline, retry with backoff, and result validation,
// and terminates in a uniform Result envelope. Nothing a tool does — error
// or panic — escapes to the caller.
package tool

import (
	"context"
	"time"

	"github.com/c360studio/longform/resilience"
)

// Class groups tools by their latency profile. The class sets the default
// invocation timeout when a tool does not declare its own.
type Class string

const (
	// ClassMetadata is for fast lookups and transformations.
	ClassMetadata Class = "metadata"
	// ClassAnalysis is for single model calls with bounded output.
	ClassAnalysis Class = "analysis"
	// ClassGeneration is for long-form content generation.
	ClassGeneration Class = "generation"
)

// DefaultTimeout returns the invocation deadline for a tool class.
func (c Class) DefaultTimeout() time.Duration {
	switch c {
	case ClassMetadata:
		return 10 * time.Second
	case ClassAnalysis:
		return 2 * time.Minute
	case ClassGeneration:
		return 10 * time.Minute
	default:
		return 2 * time.Minute
	}
}

// RunFunc is the operation a tool performs.
type RunFunc func(ctx context.Context, params any) (any, error)

// ValidateFunc checks a parameter bag or result value. A non-nil error
// short-circuits the invocation.
type ValidateFunc func(value any) error

// Tool is a named, side-effecting operation with declared validation and
// resilience policy. Tools are registered once at composition time and
// invoked through a Registry.
type Tool struct {
	// Name uniquely identifies the tool within a registry.
	Name string

	// Description is a human-readable summary for listings.
	Description string

	// Class determines the default timeout.
	Class Class

	// Run performs the work. Required.
	Run RunFunc

	// ValidateParams checks the parameter bag before execution. Optional.
	ValidateParams ValidateFunc

	// ValidateResult checks a successful result. Optional. A validation
	// failure converts the outcome to an error envelope.
	ValidateResult ValidateFunc

	// Timeout overrides the class default when positive.
	Timeout time.Duration

	// Retry overrides the default retry policy when non-nil.
	Retry *resilience.RetryConfig

	// Breaker optionally guards execution. Shared across all invocations
	// of this tool; its transitions are atomic.
	Breaker *resilience.Breaker
}

// timeout returns the effective invocation deadline.
func (t *Tool) timeout() time.Duration {
	if t.Timeout > 0 {
		return t.Timeout
	}
	return t.Class.DefaultTimeout()
}

// retryConfig returns the effective retry policy.
func (t *Tool) retryConfig() resilience.RetryConfig {
	if t.Retry != nil {
		return *t.Retry
	}
	return resilience.DefaultRetryConfig()
}

// Result is the uniform envelope returned by every tool invocation.
// Exactly one of Data and Error is populated.
type Result struct {
	// Success reports whether the invocation produced a valid result.
	Success bool `json:"success"`

	// Data holds the tool's output. Present iff Success.
	Data any `json:"data,omitempty"`

	// Error describes the failure. Present iff not Success.
	Error string `json:"error,omitempty"`

	// ExecutionTimeMs is the wall-clock invocation duration.
	ExecutionTimeMs int64 `json:"execution_time_ms"`

	// Retries is the number of re-attempts made (0 = first attempt won).
	Retries int `json:"retries"`

	// err retains the classified error for callers that need to inspect
	// recoverability; Error carries the message for serialization.
	err error
}

// Err returns the classified error behind a failed result, nil on success.
func (r Result) Err() error {
	return r.err
}

// succeeded builds a success envelope.
func succeeded(data any, elapsed time.Duration, retries int) Result {
	return Result{
		Success:         true,
		Data:            data,
		ExecutionTimeMs: elapsed.Milliseconds(),
		Retries:         retries,
	}
}

// failed builds an error envelope.
func failed(err error, elapsed time.Duration, retries int) Result {
	return Result{
		Success:         false,
		Error:           err.Error(),
		ExecutionTimeMs: elapsed.Milliseconds(),
		Retries:         retries,
		err:             err,
	}
}
