package nodes

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/c360studio/longform/tool"
	"github.com/c360studio/longform/tools"
	"github.com/c360studio/longform/workflow"
)

// ConsistencyReviewNode fans out a continuity analysis per chapter and
// aggregates the findings. Individual analysis failures degrade to an
// unreviewed chapter rather than failing the stage; only a wholesale
// failure (every analysis lost) is reported as recoverable.
type ConsistencyReviewNode struct {
	registry *tool.Registry
	opts     Options
	logger   *slog.Logger
}

func NewConsistencyReviewNode(registry *tool.Registry, opts Options, logger *slog.Logger) *ConsistencyReviewNode {
	return &ConsistencyReviewNode{registry: registry, opts: opts, logger: logger}
}

func (n *ConsistencyReviewNode) Stage() workflow.Stage { return workflow.StageConsistencyReview }

func (n *ConsistencyReviewNode) Validate(state *workflow.State) error {
	for _, ch := range state.Chapters {
		if ch.Status == workflow.ChapterCompleted && ch.Body != "" {
			return nil
		}
	}
	return fmt.Errorf("no completed chapters to review")
}

func (n *ConsistencyReviewNode) Execute(ctx context.Context, state *workflow.State) (*workflow.State, error) {
	synopsis := ""
	if state.Outline != nil {
		synopsis = state.Outline.Synopsis
	}

	var reviewable []*workflow.Chapter
	for _, ch := range state.Chapters {
		if ch.Status == workflow.ChapterCompleted && ch.Body != "" {
			reviewable = append(reviewable, ch)
		}
	}

	type analysis struct {
		chapter int
		notes   []string
		failed  bool
	}
	results := make([]analysis, len(reviewable))

	fanOut(ctx, n.opts.Concurrency, reviewable, func(ctx context.Context, idx int, ch *workflow.Chapter) {
		res := n.registry.Execute(ctx, tools.ToolAnalyzeChapter, tools.AnalyzeChapterParams{
			Synopsis: synopsis,
			Chapter:  ch,
		})
		if !res.Success {
			n.logger.Warn("chapter analysis failed",
				"session_id", state.SessionID,
				"chapter", ch.Number,
				"error", res.Error)
			results[idx] = analysis{chapter: ch.Number, failed: true}
			return
		}
		r := res.Data.(tools.AnalyzeChapterResult)
		results[idx] = analysis{chapter: r.ChapterNumber, notes: r.Notes}
	})

	failures := 0
	for _, r := range results {
		if r.failed {
			failures++
		}
	}
	if len(results) > 0 && failures == len(results) {
		return nil, workflow.NewRecoverable(workflow.StageConsistencyReview,
			workflow.CodeToolFailure, "every chapter analysis failed", nil)
	}

	sort.Slice(results, func(i, j int) bool { return results[i].chapter < results[j].chapter })

	for _, r := range results {
		for _, note := range r.notes {
			state.ReviewNotes = append(state.ReviewNotes, workflow.ReviewNote{
				Stage:   workflow.StageConsistencyReview,
				Chapter: r.chapter,
				Note:    note,
			})
		}
	}

	n.logger.Info("consistency review complete",
		"session_id", state.SessionID,
		"chapters", len(reviewable),
		"findings", len(state.ReviewNotes))

	workflow.TransitionTo(state, workflow.StageQualityReview)
	return state, nil
}

func (n *ConsistencyReviewNode) Recover(ctx context.Context, state *workflow.State, nodeErr *workflow.NodeError) (*workflow.State, error) {
	if err := workflow.CheckRetryBudget(state, workflow.StageConsistencyReview); err != nil {
		return nil, err
	}
	return n.Execute(ctx, state)
}
