// Package nodes implements one workflow.Node per pipeline stage. Nodes
// hold no cross-stage state: everything they need arrives in the workflow
// state, and everything they produce leaves in it.
package nodes

import (
	"fmt"
	"log/slog"

	"github.com/c360studio/longform/resilience"
	"github.com/c360studio/longform/tool"
	"github.com/c360studio/longform/tools"
	"github.com/c360studio/longform/workflow"
)

// Options tunes stage behavior. The zero value is usable; unset fields
// fall back to defaults.
type Options struct {
	// Concurrency bounds the chapter fan-out worker count. Default 3.
	Concurrency int

	// MinCompletionRatio is the fraction of chapters that must draft
	// successfully for the generation stage to proceed with fallbacks
	// for the rest. Default 0.6.
	MinCompletionRatio float64

	// QualityThreshold is the minimum acceptable quality score, 0-100.
	// Default 70.
	QualityThreshold int

	// AutoApprove skips the user review gate. CLI runs default to true.
	AutoApprove bool

	// ChapterCount requests a fixed chapter count from the outline
	// stage; 0 lets the model decide.
	ChapterCount int
}

func (o Options) withDefaults() Options {
	if o.Concurrency <= 0 {
		o.Concurrency = 3
	}
	if o.MinCompletionRatio <= 0 || o.MinCompletionRatio > 1 {
		o.MinCompletionRatio = 0.6
	}
	if o.QualityThreshold <= 0 {
		o.QualityThreshold = 70
	}
	return o
}

// All builds the full node table keyed by stage. The terminal stages have
// no nodes: reaching them ends the run.
func All(reg *tool.Registry, client tools.Completer, opts Options, logger *slog.Logger) map[workflow.Stage]workflow.Node {
	if logger == nil {
		logger = slog.Default()
	}
	opts = opts.withDefaults()

	table := map[workflow.Stage]workflow.Node{}
	for _, n := range []workflow.Node{
		NewConversationNode(reg, client, logger),
		NewOutlineNode(reg, opts, logger),
		NewChapterSpawningNode(logger),
		NewChapterGenerationNode(reg, opts, logger),
		NewConsistencyReviewNode(reg, opts, logger),
		NewQualityReviewNode(reg, opts, logger),
		NewFormattingNode(logger),
		NewUserReviewNode(opts, logger),
	} {
		table[n.Stage()] = n
	}
	return table
}

// nodeErrFromResult classifies a failed tool envelope for the node layer.
// Fatal tool errors stay fatal; everything else is recoverable because the
// node can retry or degrade the work.
func nodeErrFromResult(stage workflow.Stage, toolName string, res tool.Result) *workflow.NodeError {
	msg := fmt.Sprintf("tool %s failed: %s", toolName, res.Error)
	if err := res.Err(); err != nil && resilience.IsFatal(err) {
		return workflow.NewFatal(stage, workflow.CodeToolFailure, msg, err)
	}
	return workflow.NewRecoverable(stage, workflow.CodeToolFailure, msg, res.Err())
}
