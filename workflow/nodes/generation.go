package nodes

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/c360studio/longform/tool"
	"github.com/c360studio/longform/tools"
	"github.com/c360studio/longform/workflow"
)

// targetWordsReduction is applied to a chapter's requested length on each
// recovery pass, trading ambition for completion.
const targetWordsReduction = 0.75

// ChapterGenerationNode drafts chapters with bounded parallelism. The
// dependency graph is honored by dispatching in waves of ready chapters;
// a wave's workers each own exactly one chapter. After all waves settle,
// the completion-ratio policy decides between proceeding (synthesizing
// fallback bodies for the failed subset) and a recoverable stage failure.
type ChapterGenerationNode struct {
	registry *tool.Registry
	opts     Options
	logger   *slog.Logger
}

func NewChapterGenerationNode(registry *tool.Registry, opts Options, logger *slog.Logger) *ChapterGenerationNode {
	return &ChapterGenerationNode{registry: registry, opts: opts, logger: logger}
}

func (n *ChapterGenerationNode) Stage() workflow.Stage { return workflow.StageChapterGeneration }

func (n *ChapterGenerationNode) Validate(state *workflow.State) error {
	if len(state.Chapters) == 0 {
		return fmt.Errorf("no chapters to generate")
	}
	return nil
}

func (n *ChapterGenerationNode) Execute(ctx context.Context, state *workflow.State) (*workflow.State, error) {
	total := len(state.Chapters)

	for {
		ready := workflow.ReadyChapters(state.Chapters)
		if len(ready) == 0 {
			break
		}

		fanOut(ctx, n.opts.Concurrency, ready, func(ctx context.Context, _ int, ch *workflow.Chapter) {
			n.draft(ctx, state, ch)
		})

		state.RefreshChapterCounts()
		done := state.Progress.CompletedChapters
		workflow.UpdateProgress(state, float64(done)/float64(total)*100,
			fmt.Sprintf("drafted %d/%d chapters", done, total))

		if waveCompleted(ready) == 0 {
			// Nothing completed this wave, so no blocked chapter can
			// become ready. Stop instead of spinning.
			break
		}
	}

	completed := 0
	for _, ch := range state.Chapters {
		if ch.Status == workflow.ChapterCompleted {
			completed++
		}
	}

	ratio := float64(completed) / float64(total)
	if ratio < n.opts.MinCompletionRatio {
		return nil, workflow.NewRecoverable(workflow.StageChapterGeneration,
			workflow.CodeBelowThreshold,
			fmt.Sprintf("only %d of %d chapters completed (%.0f%%, need %.0f%%)",
				completed, total, ratio*100, n.opts.MinCompletionRatio*100),
			nil)
	}

	if completed < total {
		n.synthesizeFallbacks(state)
	}

	state.RefreshChapterCounts()
	workflow.TransitionTo(state, workflow.StageConsistencyReview)
	return state, nil
}

// draft generates one chapter's body. It mutates only ch.
func (n *ChapterGenerationNode) draft(ctx context.Context, state *workflow.State, ch *workflow.Chapter) {
	ch.Status = workflow.ChapterInProgress

	summaries := make(map[int]string, len(ch.DependsOn))
	for _, dep := range ch.DependsOn {
		if d := state.ChapterByNumber(dep); d != nil {
			summaries[dep] = d.Summary
		}
	}

	res := n.registry.Execute(ctx, tools.ToolChapter, tools.ChapterParams{
		Premise:             state.Premise,
		Outline:             state.Outline,
		Chapter:             ch,
		DependencySummaries: summaries,
	})
	if !res.Success {
		n.logger.Warn("chapter draft failed",
			"session_id", state.SessionID,
			"chapter", ch.Number,
			"error", res.Error)
		ch.Status = workflow.ChapterFailed
		return
	}

	ch.Body = res.Data.(tools.ChapterResult).Body
	ch.Status = workflow.ChapterCompleted
}

// synthesizeFallbacks gives every non-completed chapter a minimal body
// derived from its outline summary so downstream stages see a full
// manuscript. Fallback chapters stay flagged for the review stages.
func (n *ChapterGenerationNode) synthesizeFallbacks(state *workflow.State) {
	for _, ch := range state.Chapters {
		if ch.Status == workflow.ChapterCompleted {
			continue
		}

		var b strings.Builder
		fmt.Fprintf(&b, "*This chapter could not be generated and stands in summary form.*\n\n")
		if ch.Summary != "" {
			b.WriteString(ch.Summary)
		} else {
			fmt.Fprintf(&b, "Chapter %d: %s.", ch.Number, ch.Title)
		}

		ch.Body = b.String()
		ch.Fallback = true
		ch.Status = workflow.ChapterCompleted

		state.ReviewNotes = append(state.ReviewNotes, workflow.ReviewNote{
			Stage:   workflow.StageChapterGeneration,
			Chapter: ch.Number,
			Note:    "chapter body is a fallback synthesized from the outline summary",
		})

		n.logger.Warn("synthesized fallback chapter",
			"session_id", state.SessionID, "chapter", ch.Number)
	}
}

// Recover shrinks the failed chapters' target length and re-runs the
// stage. Completed chapters keep their bodies; only the failed subset is
// re-dispatched.
func (n *ChapterGenerationNode) Recover(ctx context.Context, state *workflow.State, nodeErr *workflow.NodeError) (*workflow.State, error) {
	if err := workflow.CheckRetryBudget(state, workflow.StageChapterGeneration); err != nil {
		return nil, err
	}

	reset := 0
	for _, ch := range state.Chapters {
		if ch.Status == workflow.ChapterCompleted {
			continue
		}
		ch.Status = workflow.ChapterPending
		ch.TargetWords = int(float64(ch.TargetWords) * targetWordsReduction)
		if ch.TargetWords < 200 {
			ch.TargetWords = 200
		}
		reset++
	}

	n.logger.Info("retrying chapter generation with reduced targets",
		"session_id", state.SessionID,
		"attempt", state.RetryCount,
		"chapters", reset)

	return n.Execute(ctx, state)
}

// waveCompleted counts the chapters in a dispatched wave that completed.
func waveCompleted(wave []*workflow.Chapter) int {
	completed := 0
	for _, ch := range wave {
		if ch.Status == workflow.ChapterCompleted {
			completed++
		}
	}
	return completed
}
