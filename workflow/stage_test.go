package workflow_test

import (
	"testing"

	"github.com/c360studio/longform/workflow"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStage_Weights(t *testing.T) {
	want := map[workflow.Stage]int{
		workflow.StageConversation:      10,
		workflow.StageOutline:           20,
		workflow.StageChapterSpawning:   25,
		workflow.StageChapterGeneration: 60,
		workflow.StageConsistencyReview: 75,
		workflow.StageQualityReview:     85,
		workflow.StageFormatting:        95,
		workflow.StageUserReview:        98,
		workflow.StageCompleted:         100,
		workflow.StageFailed:            0,
	}
	for stage, weight := range want {
		assert.Equal(t, weight, stage.Weight(), "stage %s", stage)
	}
}

func TestStage_Next(t *testing.T) {
	next, ok := workflow.StageConversation.Next()
	require.True(t, ok)
	assert.Equal(t, workflow.StageOutline, next)

	_, ok = workflow.StageCompleted.Next()
	assert.False(t, ok)

	_, ok = workflow.StageFailed.Next()
	assert.False(t, ok)
}

func TestTransitionTo_SetsWeightAndClearsRetryState(t *testing.T) {
	state := workflow.NewState("a book about tides")
	state.RetryCount = 2
	state.NeedsRetry = true
	state.Error = "transient failure"

	workflow.TransitionTo(state, workflow.StageOutline)

	assert.Equal(t, workflow.StageOutline, state.CurrentStage)
	assert.Equal(t, 20, state.Progress.OverallProgress)
	assert.Equal(t, 100, state.Progress.CurrentStageProgress)
	assert.Equal(t, 0, state.RetryCount)
	assert.False(t, state.NeedsRetry)
	assert.Empty(t, state.Error)
}

func TestTransitionTo_KeepRetryState(t *testing.T) {
	state := workflow.NewState("prompt")
	state.RetryCount = 1
	state.NeedsRetry = true
	state.Error = "still recovering"

	workflow.TransitionTo(state, workflow.StageOutline, workflow.KeepRetryState())

	assert.Equal(t, 1, state.RetryCount)
	assert.True(t, state.NeedsRetry)
	assert.Equal(t, "still recovering", state.Error)
}

func TestTransitionTo_Idempotent(t *testing.T) {
	state := workflow.NewState("prompt")

	workflow.TransitionTo(state, workflow.StageChapterSpawning)
	first := state.Progress

	workflow.TransitionTo(state, workflow.StageChapterSpawning)
	assert.Equal(t, first, state.Progress)
}

func TestTransitionTo_TerminalStagesSetStatus(t *testing.T) {
	state := workflow.NewState("prompt")

	workflow.TransitionTo(state, workflow.StageCompleted)
	assert.Equal(t, workflow.StatusCompleted, state.Status)
	assert.Equal(t, 100, state.Progress.OverallProgress)

	state = workflow.NewState("prompt")
	workflow.TransitionTo(state, workflow.StageFailed, workflow.KeepRetryState())
	assert.Equal(t, workflow.StatusFailed, state.Status)
	assert.Equal(t, 0, state.Progress.OverallProgress)
}

func TestUpdateProgress_Clamps(t *testing.T) {
	state := workflow.NewState("prompt")

	workflow.UpdateProgress(state, 150, "overshoot")
	assert.Equal(t, 100, state.Progress.CurrentStageProgress)

	workflow.UpdateProgress(state, -10, "undershoot")
	assert.Equal(t, 0, state.Progress.CurrentStageProgress)
	assert.GreaterOrEqual(t, state.Progress.OverallProgress, 0)
	assert.LessOrEqual(t, state.Progress.OverallProgress, 100)
}

func TestUpdateProgress_InterpolatesTowardNextStage(t *testing.T) {
	state := workflow.NewState("prompt")
	require.Equal(t, workflow.StageConversation, state.CurrentStage)

	// Conversation weight is 10, outline weight is 20: halfway is 15.
	workflow.UpdateProgress(state, 50, "halfway through conversation")
	assert.Equal(t, 15, state.Progress.OverallProgress)
	assert.Equal(t, 50, state.Progress.CurrentStageProgress)
	assert.Equal(t, "halfway through conversation", state.Progress.Message)

	workflow.UpdateProgress(state, 100, "done")
	assert.Equal(t, 20, state.Progress.OverallProgress)
}

func TestUpdateProgress_TerminalStageHoldsWeight(t *testing.T) {
	state := workflow.NewState("prompt")
	workflow.TransitionTo(state, workflow.StageCompleted)

	workflow.UpdateProgress(state, 10, "noop")
	assert.Equal(t, 100, state.Progress.OverallProgress)
}

func TestStageWalk_ProgressSequenceIsMonotone(t *testing.T) {
	state := workflow.NewState("prompt")
	state.RetryCount = 0

	want := []int{10, 20, 25, 60, 75, 85, 95, 98, 100}

	var got []int
	for _, stage := range workflow.Stages() {
		workflow.TransitionTo(state, stage)
		got = append(got, state.Progress.OverallProgress)
	}

	assert.Equal(t, want, got)

	prev := -1
	for _, p := range got {
		assert.GreaterOrEqual(t, p, prev)
		prev = p
	}
	assert.Equal(t, workflow.StatusCompleted, state.Status)
}

func TestStage_MaxRetries(t *testing.T) {
	assert.Equal(t, 3, workflow.StageChapterGeneration.MaxRetries())
	assert.Equal(t, workflow.DefaultMaxRetries, workflow.StageOutline.MaxRetries())
}

func TestCheckRetryBudget(t *testing.T) {
	state := workflow.NewState("prompt")
	state.RetryCount = workflow.StageOutline.MaxRetries()

	err := workflow.CheckRetryBudget(state, workflow.StageOutline)

	require.Error(t, err)
	nodeErr, ok := err.(*workflow.NodeError)
	require.True(t, ok)
	assert.Equal(t, workflow.CodeMaxRetries, nodeErr.Code)
	assert.False(t, nodeErr.Recoverable)
	assert.Contains(t, nodeErr.Message, "maximum retries exceeded")
}
