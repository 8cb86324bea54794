// Package checkpoint persists workflow state snapshots so jobs can resume
// after interruption. A checkpoint is written after every completed stage;
// the most recent one is the resume point.
package checkpoint

import (
	"context"
	"errors"
	"time"

	"github.com/c360studio/longform/workflow"
)

// ErrNotFound is returned when no checkpoint exists for a session.
var ErrNotFound = errors.New("checkpoint not found")

// Entry describes one stored checkpoint for status listings.
type Entry struct {
	Stage     workflow.Stage  `json:"stage"`
	Status    workflow.Status `json:"status"`
	Overall   int             `json:"overall_progress"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// Store is the durable checkpoint contract consumed by the orchestrator.
// Save is an idempotent upsert keyed by (sessionID, stage); saving the
// same pair twice overwrites.
type Store interface {
	// Save persists a snapshot of state for the given stage.
	Save(ctx context.Context, sessionID string, stage workflow.Stage, state *workflow.State) error

	// LoadLatest returns the most recently saved checkpoint across all
	// stages of the session, or ErrNotFound.
	LoadLatest(ctx context.Context, sessionID string) (*workflow.State, error)

	// List returns the stored checkpoints for a session in save order.
	List(ctx context.Context, sessionID string) ([]Entry, error)
}
