package nodes

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/c360studio/longform/workflow"
)

// FormattingNode assembles the final manuscript markdown from the
// chapter bodies. Pure assembly, no model calls.
type FormattingNode struct {
	logger *slog.Logger
}

func NewFormattingNode(logger *slog.Logger) *FormattingNode {
	return &FormattingNode{logger: logger}
}

func (n *FormattingNode) Stage() workflow.Stage { return workflow.StageFormatting }

func (n *FormattingNode) Validate(state *workflow.State) error {
	if state.Outline == nil {
		return fmt.Errorf("outline is missing")
	}
	for _, ch := range state.Chapters {
		if ch.Status == workflow.ChapterCompleted && ch.Body != "" {
			return nil
		}
	}
	return fmt.Errorf("no completed chapters to format")
}

func (n *FormattingNode) Execute(ctx context.Context, state *workflow.State) (*workflow.State, error) {
	chapters := append([]*workflow.Chapter(nil), state.Chapters...)
	sort.Slice(chapters, func(i, j int) bool { return chapters[i].Number < chapters[j].Number })

	var b strings.Builder

	fmt.Fprintf(&b, "# %s\n\n", state.Outline.Title)
	if state.Outline.Synopsis != "" {
		fmt.Fprintf(&b, "%s\n\n", state.Outline.Synopsis)
	}

	b.WriteString("## Contents\n\n")
	for _, ch := range chapters {
		fmt.Fprintf(&b, "%d. %s\n", ch.Number, ch.Title)
	}
	b.WriteString("\n")

	for _, ch := range chapters {
		fmt.Fprintf(&b, "## Chapter %d: %s\n\n", ch.Number, ch.Title)
		b.WriteString(strings.TrimSpace(ch.Body))
		b.WriteString("\n\n")
	}

	state.Manuscript = strings.TrimSpace(b.String()) + "\n"

	n.logger.Info("manuscript assembled",
		"session_id", state.SessionID,
		"chapters", len(chapters),
		"bytes", len(state.Manuscript))

	workflow.TransitionTo(state, workflow.StageUserReview)
	return state, nil
}

func (n *FormattingNode) Recover(ctx context.Context, state *workflow.State, nodeErr *workflow.NodeError) (*workflow.State, error) {
	if err := workflow.CheckRetryBudget(state, workflow.StageFormatting); err != nil {
		return nil, err
	}
	return n.Execute(ctx, state)
}
