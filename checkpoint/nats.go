package checkpoint

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/c360studio/longform/workflow"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

// DefaultBucket is the JetStream KV bucket used for checkpoints.
const DefaultBucket = "longform-checkpoints"

// latestKey marks the pointer entry holding a session's newest snapshot.
const latestKey = "latest"

// NATSStore persists checkpoints in a JetStream key-value bucket.
// Keys are "<sessionID>.<stage>" plus a "<sessionID>.latest" pointer, so
// Save is an idempotent upsert and LoadLatest is a single read.
type NATSStore struct {
	kv     jetstream.KeyValue
	logger *slog.Logger
}

// NATSStoreOption configures a NATSStore.
type NATSStoreOption func(*natsStoreOptions)

type natsStoreOptions struct {
	bucket string
	logger *slog.Logger
}

// WithBucket overrides the KV bucket name.
func WithBucket(name string) NATSStoreOption {
	return func(o *natsStoreOptions) {
		o.bucket = name
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) NATSStoreOption {
	return func(o *natsStoreOptions) {
		o.logger = logger
	}
}

// NewNATSStore creates a checkpoint store on the given NATS connection,
// creating the KV bucket if it does not exist.
func NewNATSStore(ctx context.Context, nc *nats.Conn, opts ...NATSStoreOption) (*NATSStore, error) {
	options := natsStoreOptions{
		bucket: DefaultBucket,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(&options)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		return nil, fmt.Errorf("create jetstream context: %w", err)
	}

	kv, err := js.CreateOrUpdateKeyValue(ctx, jetstream.KeyValueConfig{
		Bucket:      options.bucket,
		Description: "Workflow stage checkpoints",
		History:     1,
	})
	if err != nil {
		return nil, fmt.Errorf("ensure checkpoint bucket %s: %w", options.bucket, err)
	}

	return &NATSStore{kv: kv, logger: options.logger}, nil
}

// Save persists a snapshot under (sessionID, stage) and advances the
// session's latest pointer.
func (s *NATSStore) Save(ctx context.Context, sessionID string, stage workflow.Stage, state *workflow.State) error {
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("encode checkpoint: %w", err)
	}

	stageKey := key(sessionID, string(stage))
	if _, err := s.kv.Put(ctx, stageKey, data); err != nil {
		return fmt.Errorf("save checkpoint %s: %w", stageKey, err)
	}

	if _, err := s.kv.Put(ctx, key(sessionID, latestKey), data); err != nil {
		return fmt.Errorf("advance latest pointer for %s: %w", sessionID, err)
	}

	s.logger.Debug("Checkpoint saved",
		"session_id", sessionID,
		"stage", stage,
		"overall_progress", state.Progress.OverallProgress)
	return nil
}

// LoadLatest returns the most recent checkpoint for the session.
func (s *NATSStore) LoadLatest(ctx context.Context, sessionID string) (*workflow.State, error) {
	entry, err := s.kv.Get(ctx, key(sessionID, latestKey))
	if err != nil {
		if errors.Is(err, jetstream.ErrKeyNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("load latest checkpoint for %s: %w", sessionID, err)
	}

	var state workflow.State
	if err := json.Unmarshal(entry.Value(), &state); err != nil {
		return nil, fmt.Errorf("decode checkpoint: %w", err)
	}
	return &state, nil
}

// List returns the session's per-stage checkpoints ordered by pipeline
// position.
func (s *NATSStore) List(ctx context.Context, sessionID string) ([]Entry, error) {
	lister, err := s.kv.ListKeysFiltered(ctx, key(sessionID, "*"))
	if err != nil {
		return nil, fmt.Errorf("list checkpoints for %s: %w", sessionID, err)
	}

	var entries []Entry
	for k := range lister.Keys() {
		stageName := strings.TrimPrefix(k, sessionID+".")
		if stageName == latestKey {
			continue
		}

		entry, err := s.kv.Get(ctx, k)
		if err != nil {
			return nil, fmt.Errorf("read checkpoint %s: %w", k, err)
		}

		var state workflow.State
		if err := json.Unmarshal(entry.Value(), &state); err != nil {
			return nil, fmt.Errorf("decode checkpoint %s: %w", k, err)
		}

		entries = append(entries, Entry{
			Stage:     workflow.Stage(stageName),
			Status:    state.Status,
			Overall:   state.Progress.OverallProgress,
			UpdatedAt: state.UpdatedAt,
		})
	}

	if len(entries) == 0 {
		return nil, ErrNotFound
	}

	sort.Slice(entries, func(i, j int) bool {
		return stageIndex(entries[i].Stage) < stageIndex(entries[j].Stage)
	})
	return entries, nil
}

// key joins a session id and suffix into a KV key.
func key(sessionID, suffix string) string {
	return sessionID + "." + suffix
}

// stageIndex returns the pipeline position of a stage for sorting.
func stageIndex(stage workflow.Stage) int {
	for i, s := range workflow.Stages() {
		if s == stage {
			return i
		}
	}
	return len(workflow.Stages())
}
