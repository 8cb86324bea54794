package checkpoint

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/c360studio/longform/workflow"
)

// MemoryStore is an in-process Store for tests and single-run CLI usage
// without a NATS server. Snapshots are deep-copied through JSON so later
// state mutations cannot leak into stored checkpoints.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*sessionCheckpoints
}

type sessionCheckpoints struct {
	// byStage holds the latest snapshot per stage (idempotent upsert).
	byStage map[workflow.Stage][]byte
	// order records first-save order of stages for listings.
	order []workflow.Stage
	// latest is the most recent snapshot across all stages.
	latest []byte
}

// NewMemoryStore creates an empty in-memory checkpoint store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sessions: make(map[string]*sessionCheckpoints),
	}
}

// Save persists a snapshot of state keyed by (sessionID, stage).
func (m *MemoryStore) Save(_ context.Context, sessionID string, stage workflow.Stage, state *workflow.State) error {
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("encode checkpoint: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	sess, ok := m.sessions[sessionID]
	if !ok {
		sess = &sessionCheckpoints{byStage: make(map[workflow.Stage][]byte)}
		m.sessions[sessionID] = sess
	}

	if _, seen := sess.byStage[stage]; !seen {
		sess.order = append(sess.order, stage)
	}
	sess.byStage[stage] = data
	sess.latest = data
	return nil
}

// LoadLatest returns the most recent checkpoint for the session.
func (m *MemoryStore) LoadLatest(_ context.Context, sessionID string) (*workflow.State, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	sess, ok := m.sessions[sessionID]
	if !ok || sess.latest == nil {
		return nil, ErrNotFound
	}

	var state workflow.State
	if err := json.Unmarshal(sess.latest, &state); err != nil {
		return nil, fmt.Errorf("decode checkpoint: %w", err)
	}
	return &state, nil
}

// List returns the session's checkpoints in first-save order.
func (m *MemoryStore) List(_ context.Context, sessionID string) ([]Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	sess, ok := m.sessions[sessionID]
	if !ok {
		return nil, ErrNotFound
	}

	entries := make([]Entry, 0, len(sess.order))
	for _, stage := range sess.order {
		var state workflow.State
		if err := json.Unmarshal(sess.byStage[stage], &state); err != nil {
			return nil, fmt.Errorf("decode checkpoint for stage %s: %w", stage, err)
		}
		entries = append(entries, Entry{
			Stage:     stage,
			Status:    state.Status,
			Overall:   state.Progress.OverallProgress,
			UpdatedAt: state.UpdatedAt,
		})
	}
	return entries, nil
}
