package nodes

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/c360studio/longform/tool"
	"github.com/c360studio/longform/tools"
	"github.com/c360studio/longform/workflow"
)

// OutlineNode turns the premise into a chaptered outline via the outline
// tool. Malformed model output is transient inside the tool; by the time
// a failed envelope reaches this node the tool has exhausted its own
// retries, so the node's Recover is a second, coarser retry ring.
type OutlineNode struct {
	registry *tool.Registry
	opts     Options
	logger   *slog.Logger
}

func NewOutlineNode(registry *tool.Registry, opts Options, logger *slog.Logger) *OutlineNode {
	return &OutlineNode{registry: registry, opts: opts, logger: logger}
}

func (n *OutlineNode) Stage() workflow.Stage { return workflow.StageOutline }

func (n *OutlineNode) Validate(state *workflow.State) error {
	if state.Premise == nil || state.Premise.Synopsis == "" {
		return fmt.Errorf("premise is missing")
	}
	return nil
}

func (n *OutlineNode) Execute(ctx context.Context, state *workflow.State) (*workflow.State, error) {
	workflow.UpdateProgress(state, 10, "outlining")

	res := n.registry.Execute(ctx, tools.ToolOutline, tools.OutlineParams{
		Premise:      state.Premise,
		ChapterCount: n.opts.ChapterCount,
	})
	if !res.Success {
		return nil, nodeErrFromResult(workflow.StageOutline, tools.ToolOutline, res)
	}

	outline := res.Data.(tools.OutlineResult).Outline
	if outline.Title == "" {
		outline.Title = state.Premise.Title
	}
	if outline.Synopsis == "" {
		outline.Synopsis = state.Premise.Synopsis
	}
	state.Outline = outline

	n.logger.Info("outline complete",
		"session_id", state.SessionID,
		"title", outline.Title,
		"chapters", len(outline.Chapters))

	workflow.TransitionTo(state, workflow.StageChapterSpawning)
	return state, nil
}

func (n *OutlineNode) Recover(ctx context.Context, state *workflow.State, nodeErr *workflow.NodeError) (*workflow.State, error) {
	if err := workflow.CheckRetryBudget(state, workflow.StageOutline); err != nil {
		return nil, err
	}
	n.logger.Info("retrying outline",
		"session_id", state.SessionID, "attempt", state.RetryCount)
	return n.Execute(ctx, state)
}
