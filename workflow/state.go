package workflow

import (
	"time"

	"github.com/google/uuid"
)

// Status represents the overall job status.
type Status string

const (
	// StatusActive indicates the job is in progress or resumable.
	StatusActive Status = "active"
	// StatusCompleted indicates the job finished successfully.
	StatusCompleted Status = "completed"
	// StatusFailed indicates the job stopped on a fatal error.
	StatusFailed Status = "failed"
)

// Progress tracks stage-local and overall completion.
type Progress struct {
	// CurrentStageProgress is the stage-local percentage, 0-100.
	CurrentStageProgress int `json:"current_stage_progress"`

	// OverallProgress is the job-wide percentage, 0-100. Monotonically
	// non-decreasing across the job's lifetime except for the terminal
	// failed transition.
	OverallProgress int `json:"overall_progress"`

	// CompletedChapters counts chapters with status completed.
	CompletedChapters int `json:"completed_chapters"`

	// TotalChapters is the number of chapters spawned for this job.
	TotalChapters int `json:"total_chapters"`

	// Message is the most recent within-stage progress message.
	Message string `json:"message,omitempty"`
}

// State is the single mutable record threaded through the pipeline.
// It is never shared for concurrent mutation: the node owning CurrentStage
// has exclusive access for the duration of its Execute or Recover call.
// Stage payload fields are append-only; once a stage sets its field, later
// stages preserve it unchanged.
type State struct {
	// SessionID is the opaque identifier, stable for the job's lifetime.
	SessionID string `json:"session_id"`

	// CurrentStage is the stage whose node owns the state right now.
	CurrentStage Stage `json:"current_stage"`

	// Status is the job-level status.
	Status Status `json:"status"`

	// Progress tracks completion.
	Progress Progress `json:"progress"`

	// RetryCount is the number of recovery attempts within the current
	// stage. Reset on successful stage transition.
	RetryCount int `json:"retry_count"`

	// NeedsRetry marks a recoverable in-stage failure awaiting recovery.
	NeedsRetry bool `json:"needs_retry"`

	// Error is the last failure message, empty when healthy.
	Error string `json:"error,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Prompt is the user's original request. Set at creation.
	Prompt string `json:"prompt"`

	// Premise is the structured expansion of the prompt. Set by the
	// conversation stage.
	Premise *Premise `json:"premise,omitempty"`

	// Outline is the book structure. Set by the outline stage.
	Outline *Outline `json:"outline,omitempty"`

	// Chapters are the schedulable generation units. Spawned by the
	// chapter_spawning stage; bodies filled by chapter_generation.
	Chapters []*Chapter `json:"chapters,omitempty"`

	// ReviewNotes accumulates findings from the review stages.
	ReviewNotes []ReviewNote `json:"review_notes,omitempty"`

	// Manuscript is the assembled document. Set by the formatting stage.
	Manuscript string `json:"manuscript,omitempty"`
}

// Premise is the structured expansion of the user's prompt.
type Premise struct {
	Title       string   `json:"title"`
	Synopsis    string   `json:"synopsis"`
	Audience    string   `json:"audience,omitempty"`
	Themes      []string `json:"themes,omitempty"`
	References  []string `json:"references,omitempty"`
	ResearchCtx string   `json:"research_context,omitempty"`
}

// Outline is the planned book structure.
type Outline struct {
	Title    string         `json:"title"`
	Synopsis string         `json:"synopsis"`
	Chapters []OutlineEntry `json:"chapters"`
}

// OutlineEntry describes one planned chapter.
type OutlineEntry struct {
	Number      int    `json:"number"`
	Title       string `json:"title"`
	Summary     string `json:"summary"`
	TargetWords int    `json:"target_words"`
	DependsOn   []int  `json:"depends_on,omitempty"`
}

// ChapterStatus tracks a chapter through generation.
type ChapterStatus string

const (
	ChapterPending    ChapterStatus = "pending"
	ChapterInProgress ChapterStatus = "in_progress"
	ChapterCompleted  ChapterStatus = "completed"
	ChapterFailed     ChapterStatus = "failed"
)

// Chapter is an independently schedulable unit of generation work.
type Chapter struct {
	// Number is 1-based and unique within the job.
	Number int `json:"number"`

	Title string `json:"title"`

	// Summary is the outline-level description used for prompting.
	Summary string `json:"summary,omitempty"`

	// TargetWords is the requested length. Recovery may shrink it.
	TargetWords int `json:"target_words"`

	// DependsOn lists chapter numbers that must complete first.
	// Every entry is strictly less than Number.
	DependsOn []int `json:"depends_on,omitempty"`

	Status ChapterStatus `json:"status"`

	// Body is the generated prose.
	Body string `json:"body,omitempty"`

	// Fallback marks a body synthesized during partial-failure recovery
	// rather than generated normally.
	Fallback bool `json:"fallback,omitempty"`
}

// ReviewNote is one finding from a review stage.
type ReviewNote struct {
	Stage   Stage  `json:"stage"`
	Chapter int    `json:"chapter,omitempty"` // 0 = whole manuscript
	Note    string `json:"note"`
}

// NewState creates the workflow state for a fresh job. The state starts in
// the conversation stage with its fixed weight as overall progress.
func NewState(prompt string) *State {
	now := time.Now().UTC()
	return &State{
		SessionID:    uuid.New().String(),
		CurrentStage: StageConversation,
		Status:       StatusActive,
		Progress: Progress{
			CurrentStageProgress: 0,
			OverallProgress:      StageConversation.Weight(),
		},
		Prompt:    prompt,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// touch updates the modification timestamp.
func (s *State) touch() {
	s.UpdatedAt = time.Now().UTC()
}

// ChapterByNumber returns the chapter with the given number, or nil.
func (s *State) ChapterByNumber(n int) *Chapter {
	for _, ch := range s.Chapters {
		if ch.Number == n {
			return ch
		}
	}
	return nil
}

// RefreshChapterCounts recomputes the chapter progress counters.
func (s *State) RefreshChapterCounts() {
	completed := 0
	for _, ch := range s.Chapters {
		if ch.Status == ChapterCompleted {
			completed++
		}
	}
	s.Progress.CompletedChapters = completed
	s.Progress.TotalChapters = len(s.Chapters)
}
