package workflow

import "context"

// Node is the unit of business logic executing one stage. Each stage has
// exactly one node; the orchestrator dispatches on State.CurrentStage.
//
// Contract:
//   - Validate is a pure precondition check. It must not mutate state or
//     perform I/O. A non-nil error is always fatal for the run.
//   - Execute performs the stage's work and, on success, returns a state
//     advanced via TransitionTo. Failures are returned as *NodeError —
//     never raw errors — so classification survives propagation.
//   - Recover is invoked by the orchestrator for recoverable failures.
//     It increments RetryCount; past the stage's retry ceiling it must
//     return the fatal max-retries error instead of re-attempting.
//     Otherwise it may simplify the work and re-execute, or return a
//     degraded-but-valid state that still satisfies TransitionTo's
//     postconditions.
//
// Nodes performing long work report intermediate progress via
// UpdateProgress so observers see forward motion.
type Node interface {
	// Stage returns the stage this node owns.
	Stage() Stage

	// Validate checks preconditions against the incoming state.
	Validate(state *State) error

	// Execute performs the stage's work.
	Execute(ctx context.Context, state *State) (*State, error)

	// Recover attempts recovery from a recoverable Execute failure.
	Recover(ctx context.Context, state *State, nodeErr *NodeError) (*State, error)
}

// CheckRetryBudget applies the shared recovery-ceiling rule: it increments
// state.RetryCount and returns the fatal max-retries error once the
// stage's ceiling is exceeded. Nodes call this at the top of Recover.
func CheckRetryBudget(state *State, stage Stage) error {
	state.RetryCount++
	if state.RetryCount > stage.MaxRetries() {
		return NewMaxRetriesExceeded(stage, state.RetryCount-1)
	}
	return nil
}
