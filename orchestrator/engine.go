// Package orchestrator drives a workflow state through the stage pipeline:
// dispatch to the stage's node, recover from recoverable failures, persist
// a checkpoint at every stage boundary, and resume from the latest
// checkpoint after a crash or restart.
package orchestrator

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/c360studio/longform/checkpoint"
	"github.com/c360studio/longform/workflow"
)

// ProgressFunc observes state after each stage boundary and during
// recovery. It must not mutate the state.
type ProgressFunc func(state *workflow.State)

// Engine runs workflow states to completion.
type Engine struct {
	nodes      map[workflow.Stage]workflow.Node
	store      checkpoint.Store
	logger     *slog.Logger
	onProgress ProgressFunc
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithProgress registers a progress observer.
func WithProgress(fn ProgressFunc) Option {
	return func(e *Engine) {
		e.onProgress = fn
	}
}

// New creates an engine over a node table and a checkpoint store.
func New(nodes map[workflow.Stage]workflow.Node, store checkpoint.Store, opts ...Option) *Engine {
	e := &Engine{
		nodes:  nodes,
		store:  store,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Run advances state stage by stage until it reaches a terminal stage,
// parks awaiting external input, or fails fatally. A fatal failure marks
// the state failed, persists it, and returns the causing error unchanged.
//
// The returned state is always the latest, including on error.
func (e *Engine) Run(ctx context.Context, state *workflow.State) (*workflow.State, error) {
	for state.Status == workflow.StatusActive {
		if err := ctx.Err(); err != nil {
			return state, err
		}

		stage := state.CurrentStage
		node, ok := e.nodes[stage]
		if !ok {
			err := workflow.NewFatal(stage, workflow.CodeValidation,
				fmt.Sprintf("no node registered for stage %s", stage), nil)
			return e.fail(ctx, state, err), err
		}

		if err := node.Validate(state); err != nil {
			nodeErr := workflow.NewFatal(stage, workflow.CodeValidation, err.Error(), err)
			return e.fail(ctx, state, nodeErr), nodeErr
		}

		e.logger.Info("executing stage",
			"session_id", state.SessionID, "stage", stage)

		next, err := node.Execute(ctx, state)
		for err != nil {
			nodeErr := workflow.AsNodeError(stage, err)
			if !nodeErr.Recoverable {
				return e.fail(ctx, state, nodeErr), nodeErr
			}

			e.logger.Warn("stage failed, recovering",
				"session_id", state.SessionID,
				"stage", stage,
				"code", nodeErr.Code,
				"error", nodeErr.Message)
			e.notify(state)

			next, err = node.Recover(ctx, state, nodeErr)
		}
		state = next

		// Resume-safety boundary: the stage's outcome is durable before
		// the next node starts.
		e.checkpoint(ctx, state)
		e.notify(state)

		if state.CurrentStage == stage {
			// The node finished without advancing: the job is parked
			// (e.g. awaiting manual approval).
			e.logger.Info("run parked",
				"session_id", state.SessionID, "stage", stage)
			return state, nil
		}
	}

	return state, nil
}

// Resume loads the latest checkpoint for a session and continues the run.
func (e *Engine) Resume(ctx context.Context, sessionID string) (*workflow.State, error) {
	state, err := e.store.LoadLatest(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("load checkpoint for %s: %w", sessionID, err)
	}

	if state.Status != workflow.StatusActive {
		return state, fmt.Errorf("session %s is %s, not resumable", sessionID, state.Status)
	}

	e.logger.Info("resuming session",
		"session_id", sessionID,
		"stage", state.CurrentStage,
		"overall_progress", state.Progress.OverallProgress)

	return e.Run(ctx, state)
}

// fail marks the state failed, persists it, and returns it. The caller
// propagates the original error.
func (e *Engine) fail(ctx context.Context, state *workflow.State, nodeErr *workflow.NodeError) *workflow.State {
	e.logger.Error("stage failed fatally",
		"session_id", state.SessionID,
		"stage", state.CurrentStage,
		"code", nodeErr.Code,
		"error", nodeErr.Message)

	state.Error = nodeErr.Error()
	workflow.TransitionTo(state, workflow.StageFailed, workflow.KeepRetryState())

	e.checkpoint(ctx, state)
	e.notify(state)
	return state
}

// checkpoint persists the state for its current stage. Persistence
// failure is logged, not fatal: losing a checkpoint costs resume
// granularity, not the run.
func (e *Engine) checkpoint(ctx context.Context, state *workflow.State) {
	if err := e.store.Save(ctx, state.SessionID, state.CurrentStage, state); err != nil {
		e.logger.Error("checkpoint save failed",
			"session_id", state.SessionID,
			"stage", state.CurrentStage,
			"error", err)
	}
}

func (e *Engine) notify(state *workflow.State) {
	if e.onProgress != nil {
		e.onProgress(state)
	}
}
