// Package workflow defines the pipeline state machine for long-form
// generation jobs: the ordered stages, the workflow state threaded through
// them, the node lifecycle contract, and the chapter dependency graph.
package workflow

// Stage identifies one ordered step of the generation pipeline.
type Stage string

const (
	// StageConversation expands the user prompt into a structured premise.
	StageConversation Stage = "conversation"
	// StageOutline produces the book outline and chapter list.
	StageOutline Stage = "outline"
	// StageChapterSpawning builds chapter records and validates their
	// dependency graph.
	StageChapterSpawning Stage = "chapter_spawning"
	// StageChapterGeneration drafts chapter bodies, in parallel where the
	// graph allows.
	StageChapterGeneration Stage = "chapter_generation"
	// StageConsistencyReview analyzes cross-chapter continuity.
	StageConsistencyReview Stage = "consistency_review"
	// StageQualityReview performs a holistic quality pass.
	StageQualityReview Stage = "quality_review"
	// StageFormatting assembles the final manuscript.
	StageFormatting Stage = "formatting"
	// StageUserReview is the final approval gate.
	StageUserReview Stage = "user_review"
	// StageCompleted is the terminal success stage.
	StageCompleted Stage = "completed"
	// StageFailed is the terminal failure stage.
	StageFailed Stage = "failed"
)

// stageOrder lists the pipeline stages in execution order. StageFailed is
// terminal-only and never part of the forward path.
var stageOrder = []Stage{
	StageConversation,
	StageOutline,
	StageChapterSpawning,
	StageChapterGeneration,
	StageConsistencyReview,
	StageQualityReview,
	StageFormatting,
	StageUserReview,
	StageCompleted,
}

// stageWeights maps each stage to its fixed overall-progress value.
// Overall progress is a deterministic function of stage identity, not of
// elapsed work.
var stageWeights = map[Stage]int{
	StageConversation:      10,
	StageOutline:           20,
	StageChapterSpawning:   25,
	StageChapterGeneration: 60,
	StageConsistencyReview: 75,
	StageQualityReview:     85,
	StageFormatting:        95,
	StageUserReview:        98,
	StageCompleted:         100,
	StageFailed:            0,
}

// stageMaxRetries maps stages to their recovery ceiling. Stages absent
// from the map use DefaultMaxRetries.
var stageMaxRetries = map[Stage]int{
	StageChapterGeneration: 3,
}

// DefaultMaxRetries is the recovery ceiling for stages without an explicit
// entry in stageMaxRetries.
const DefaultMaxRetries = 2

// Stages returns the forward pipeline order.
func Stages() []Stage {
	out := make([]Stage, len(stageOrder))
	copy(out, stageOrder)
	return out
}

// Weight returns the fixed overall-progress value for the stage.
func (s Stage) Weight() int {
	return stageWeights[s]
}

// MaxRetries returns the recovery ceiling for the stage.
func (s Stage) MaxRetries() int {
	if n, ok := stageMaxRetries[s]; ok {
		return n
	}
	return DefaultMaxRetries
}

// IsValid reports whether s is a known stage.
func (s Stage) IsValid() bool {
	_, ok := stageWeights[s]
	return ok
}

// IsTerminal reports whether the pipeline stops at s.
func (s Stage) IsTerminal() bool {
	return s == StageCompleted || s == StageFailed
}

// Next returns the stage after s in the forward order. ok is false for
// terminal stages and for StageFailed.
func (s Stage) Next() (next Stage, ok bool) {
	for i, stage := range stageOrder {
		if stage == s && i+1 < len(stageOrder) {
			return stageOrder[i+1], true
		}
	}
	return "", false
}

// String returns the stage name.
func (s Stage) String() string {
	return string(s)
}

// TransitionOption adjusts TransitionTo behavior.
type TransitionOption func(*transitionOptions)

type transitionOptions struct {
	keepRetryState bool
}

// KeepRetryState preserves RetryCount, NeedsRetry and Error across the
// transition. The default clears them, which is what a successful stage
// completion wants.
func KeepRetryState() TransitionOption {
	return func(o *transitionOptions) {
		o.keepRetryState = true
	}
}

// TransitionTo advances state into target. It is the only sanctioned way
// to change stages: it pins overall progress to the target's fixed weight,
// marks the stage-local progress complete, and clears the retry bookkeeping
// unless KeepRetryState is given. Calling it twice with the same target is
// idempotent.
func TransitionTo(state *State, target Stage, opts ...TransitionOption) {
	var o transitionOptions
	for _, opt := range opts {
		opt(&o)
	}

	state.CurrentStage = target
	state.Progress.CurrentStageProgress = 100
	state.Progress.OverallProgress = target.Weight()

	if !o.keepRetryState {
		state.RetryCount = 0
		state.NeedsRetry = false
		state.Error = ""
	}

	switch target {
	case StageCompleted:
		state.Status = StatusCompleted
	case StageFailed:
		state.Status = StatusFailed
	}

	state.touch()
}

// UpdateProgress reports within-stage progress. pct is clamped to [0,100]
// and mapped onto the span between the current stage's weight and the next
// stage's weight, so an external observer sees forward motion during long
// operations without ever skipping a stage boundary.
func UpdateProgress(state *State, pct float64, message string) {
	pct = clampPct(pct)

	state.Progress.CurrentStageProgress = int(pct)
	state.Progress.Message = message

	base := state.CurrentStage.Weight()
	next, ok := state.CurrentStage.Next()
	if !ok {
		// Terminal stages hold their fixed weight.
		state.Progress.OverallProgress = base
		state.touch()
		return
	}

	span := float64(next.Weight() - base)
	state.Progress.OverallProgress = base + int(span*pct/100)
	state.touch()
}

// clampPct bounds a percentage to [0,100].
func clampPct(pct float64) float64 {
	if pct < 0 {
		return 0
	}
	if pct > 100 {
		return 100
	}
	return pct
}
