package nodes

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/c360studio/longform/tool"
	"github.com/c360studio/longform/tools"
	"github.com/c360studio/longform/workflow"
)

// QualityReviewNode runs one holistic quality pass over the full draft.
// A verdict below the configured threshold is a recoverable failure;
// once the retry budget is spent the draft is accepted as-is with the
// shortfall recorded in the review notes, because an imperfect finished
// book beats an abandoned one.
type QualityReviewNode struct {
	registry *tool.Registry
	opts     Options
	logger   *slog.Logger
}

func NewQualityReviewNode(registry *tool.Registry, opts Options, logger *slog.Logger) *QualityReviewNode {
	return &QualityReviewNode{registry: registry, opts: opts, logger: logger}
}

func (n *QualityReviewNode) Stage() workflow.Stage { return workflow.StageQualityReview }

func (n *QualityReviewNode) Validate(state *workflow.State) error {
	for _, ch := range state.Chapters {
		if ch.Status == workflow.ChapterCompleted && ch.Body != "" {
			return nil
		}
	}
	return fmt.Errorf("no completed chapters to review")
}

func (n *QualityReviewNode) Execute(ctx context.Context, state *workflow.State) (*workflow.State, error) {
	synopsis := ""
	if state.Outline != nil {
		synopsis = state.Outline.Synopsis
	}

	workflow.UpdateProgress(state, 20, "scoring draft quality")

	res := n.registry.Execute(ctx, tools.ToolQualityReview, tools.QualityReviewParams{
		Synopsis: synopsis,
		Chapters: state.Chapters,
	})
	if !res.Success {
		return nil, nodeErrFromResult(workflow.StageQualityReview, tools.ToolQualityReview, res)
	}

	verdict := res.Data.(tools.QualityReviewResult)
	for _, note := range verdict.Notes {
		state.ReviewNotes = append(state.ReviewNotes, workflow.ReviewNote{
			Stage: workflow.StageQualityReview,
			Note:  note,
		})
	}

	n.logger.Info("quality review complete",
		"session_id", state.SessionID,
		"score", verdict.Score,
		"threshold", n.opts.QualityThreshold)

	if verdict.Score < n.opts.QualityThreshold {
		state.NeedsRetry = true
		return nil, workflow.NewRecoverable(workflow.StageQualityReview,
			workflow.CodeBelowThreshold,
			fmt.Sprintf("quality score %d below threshold %d", verdict.Score, n.opts.QualityThreshold),
			nil)
	}

	workflow.TransitionTo(state, workflow.StageFormatting)
	return state, nil
}

// Recover re-reviews within the retry budget. Past the budget the draft
// is accepted with a note instead of failing the whole job on taste.
func (n *QualityReviewNode) Recover(ctx context.Context, state *workflow.State, nodeErr *workflow.NodeError) (*workflow.State, error) {
	if err := workflow.CheckRetryBudget(state, workflow.StageQualityReview); err != nil {
		if nodeErr.Code != workflow.CodeBelowThreshold {
			return nil, err
		}

		n.logger.Warn("accepting draft despite quality shortfall",
			"session_id", state.SessionID, "reviews", state.RetryCount)
		state.ReviewNotes = append(state.ReviewNotes, workflow.ReviewNote{
			Stage: workflow.StageQualityReview,
			Note:  fmt.Sprintf("accepted below quality threshold after %d reviews: %s", state.RetryCount, nodeErr.Message),
		})
		workflow.TransitionTo(state, workflow.StageFormatting)
		return state, nil
	}

	return n.Execute(ctx, state)
}
