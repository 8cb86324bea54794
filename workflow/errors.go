package workflow

import (
	"errors"
	"fmt"
)

// Error codes carried by NodeError. Codes survive the full propagation
// path so callers can react to the original classification.
const (
	// CodeValidation marks a precondition failure before work began.
	CodeValidation = "validation_failed"
	// CodeToolFailure marks a tool invocation that exhausted its own
	// resilience budget.
	CodeToolFailure = "tool_failure"
	// CodeMalformedOutput marks syntactically valid but semantically
	// unusable model output.
	CodeMalformedOutput = "malformed_output"
	// CodeMaxRetries marks a stage that exceeded its recovery ceiling.
	CodeMaxRetries = "max_retries_exceeded"
	// CodeCircularDependency marks a cycle in the chapter graph.
	CodeCircularDependency = "circular_dependency"
	// CodeInvalidDependency marks a dependency on a nonexistent chapter.
	CodeInvalidDependency = "invalid_dependency"
	// CodeForwardDependency marks a dependency on an equal or later
	// chapter number.
	CodeForwardDependency = "forward_dependency"
	// CodeBelowThreshold marks a fan-out that completed fewer units than
	// the configured minimum ratio.
	CodeBelowThreshold = "below_completion_threshold"
)

// NodeError is the classified failure produced by a node's Execute or
// Recover. Recoverable errors are eligible for stage-level recovery up to
// the stage's retry ceiling; everything else propagates to the
// orchestrator as fatal.
type NodeError struct {
	// Code identifies the failure class.
	Code string `json:"code"`

	// Message is the human-readable failure description. Fatal failures
	// surface this message verbatim to the caller.
	Message string `json:"message"`

	// Recoverable marks the error as eligible for Recover.
	Recoverable bool `json:"recoverable"`

	// Stage records where the failure occurred.
	Stage Stage `json:"stage,omitempty"`

	err error
}

// Error implements the error interface.
func (e *NodeError) Error() string {
	if e.Stage != "" {
		return fmt.Sprintf("%s [%s]: %s", e.Stage, e.Code, e.Message)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap exposes the underlying cause.
func (e *NodeError) Unwrap() error {
	return e.err
}

// NewRecoverable builds a NodeError eligible for stage recovery.
func NewRecoverable(stage Stage, code, message string, cause error) *NodeError {
	return &NodeError{
		Code:        code,
		Message:     message,
		Recoverable: true,
		Stage:       stage,
		err:         cause,
	}
}

// NewFatal builds a non-recoverable NodeError.
func NewFatal(stage Stage, code, message string, cause error) *NodeError {
	return &NodeError{
		Code:        code,
		Message:     message,
		Recoverable: false,
		Stage:       stage,
		err:         cause,
	}
}

// NewMaxRetriesExceeded builds the fatal error raised when a stage's
// recovery ceiling is exhausted.
func NewMaxRetriesExceeded(stage Stage, retries int) *NodeError {
	return &NodeError{
		Code:        CodeMaxRetries,
		Message:     fmt.Sprintf("maximum retries exceeded for stage %s (%d attempts)", stage, retries),
		Recoverable: false,
		Stage:       stage,
	}
}

// AsNodeError extracts a NodeError from an error chain. Errors without a
// NodeError in the chain are wrapped as non-recoverable with the given
// stage, preserving the original as the cause.
func AsNodeError(stage Stage, err error) *NodeError {
	var nodeErr *NodeError
	if errors.As(err, &nodeErr) {
		return nodeErr
	}
	return &NodeError{
		Code:        CodeToolFailure,
		Message:     err.Error(),
		Recoverable: false,
		Stage:       stage,
		err:         err,
	}
}
