package nodes

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/c360studio/longform/workflow"
)

// UserReviewNode is the approval gate before completion. With auto-approve
// on (the CLI default) the job completes immediately; otherwise the state
// parks in this stage and the run ends with the job still active, awaiting
// an explicit resume after the reader signs off.
type UserReviewNode struct {
	opts   Options
	logger *slog.Logger
}

func NewUserReviewNode(opts Options, logger *slog.Logger) *UserReviewNode {
	return &UserReviewNode{opts: opts, logger: logger}
}

func (n *UserReviewNode) Stage() workflow.Stage { return workflow.StageUserReview }

func (n *UserReviewNode) Validate(state *workflow.State) error {
	if state.Manuscript == "" {
		return fmt.Errorf("manuscript is missing")
	}
	return nil
}

func (n *UserReviewNode) Execute(ctx context.Context, state *workflow.State) (*workflow.State, error) {
	if !n.opts.AutoApprove {
		workflow.UpdateProgress(state, 50, "awaiting approval")
		n.logger.Info("manuscript ready for review",
			"session_id", state.SessionID)
		return state, nil
	}

	workflow.TransitionTo(state, workflow.StageCompleted)
	n.logger.Info("job completed",
		"session_id", state.SessionID)
	return state, nil
}

func (n *UserReviewNode) Recover(ctx context.Context, state *workflow.State, nodeErr *workflow.NodeError) (*workflow.State, error) {
	if err := workflow.CheckRetryBudget(state, workflow.StageUserReview); err != nil {
		return nil, err
	}
	return n.Execute(ctx, state)
}
