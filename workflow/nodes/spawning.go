package nodes

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/c360studio/longform/workflow"
)

// ChapterSpawningNode materializes the outline into schedulable chapter
// records and validates their dependency graph. No model calls happen
// here; a bad graph is a fatal planning defect, not a transient fault.
type ChapterSpawningNode struct {
	logger *slog.Logger
}

func NewChapterSpawningNode(logger *slog.Logger) *ChapterSpawningNode {
	return &ChapterSpawningNode{logger: logger}
}

func (n *ChapterSpawningNode) Stage() workflow.Stage { return workflow.StageChapterSpawning }

func (n *ChapterSpawningNode) Validate(state *workflow.State) error {
	if state.Outline == nil || len(state.Outline.Chapters) == 0 {
		return fmt.Errorf("outline is missing or has no chapters")
	}
	return nil
}

func (n *ChapterSpawningNode) Execute(ctx context.Context, state *workflow.State) (*workflow.State, error) {
	chapters := make([]*workflow.Chapter, 0, len(state.Outline.Chapters))
	for _, entry := range state.Outline.Chapters {
		chapters = append(chapters, &workflow.Chapter{
			Number:      entry.Number,
			Title:       entry.Title,
			Summary:     entry.Summary,
			TargetWords: entry.TargetWords,
			DependsOn:   entry.DependsOn,
			Status:      workflow.ChapterPending,
		})
	}

	if err := workflow.ValidateChapterGraph(chapters); err != nil {
		return nil, workflow.AsNodeError(workflow.StageChapterSpawning, err)
	}

	state.Chapters = chapters
	state.RefreshChapterCounts()

	n.logger.Info("chapters spawned",
		"session_id", state.SessionID, "total", len(chapters))

	workflow.TransitionTo(state, workflow.StageChapterGeneration)
	return state, nil
}

func (n *ChapterSpawningNode) Recover(ctx context.Context, state *workflow.State, nodeErr *workflow.NodeError) (*workflow.State, error) {
	if err := workflow.CheckRetryBudget(state, workflow.StageChapterSpawning); err != nil {
		return nil, err
	}
	return n.Execute(ctx, state)
}
