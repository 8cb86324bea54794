package tool

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/c360studio/longform/resilience"
)

// UsageStats accumulates per-tool invocation statistics across the process
// lifetime. Counts survive re-registration of the same name.
type UsageStats struct {
	UsageCount int64     `json:"usage_count"`
	LastUsedAt time.Time `json:"last_used_at,omitempty"`
}

// Registry holds named tools and drives their invocation pipeline.
// It is injected into the orchestrator at construction, not accessed as
// ambient global state.
type Registry struct {
	mu      sync.RWMutex
	tools   map[string]*Tool
	stats   map[string]*UsageStats
	logger  *slog.Logger
	metrics *Metrics
}

// RegistryOption configures a Registry.
type RegistryOption func(*Registry)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) RegistryOption {
	return func(r *Registry) {
		r.logger = logger
	}
}

// WithMetrics attaches prometheus metrics to the registry.
func WithMetrics(m *Metrics) RegistryOption {
	return func(r *Registry) {
		r.metrics = m
	}
}

// NewRegistry creates an empty tool registry.
func NewRegistry(opts ...RegistryOption) *Registry {
	r := &Registry{
		tools:  make(map[string]*Tool),
		stats:  make(map[string]*UsageStats),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register adds a tool. Registering a name that already exists overwrites
// the prior registration (last-write-wins) with a warning.
func (r *Registry) Register(t *Tool) error {
	if t == nil || t.Name == "" {
		return fmt.Errorf("tool requires a name")
	}
	if t.Run == nil {
		return fmt.Errorf("tool %q requires a Run function", t.Name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.tools[t.Name]; exists {
		r.logger.Warn("Overwriting existing tool registration", "tool", t.Name)
	}
	r.tools[t.Name] = t
	if _, ok := r.stats[t.Name]; !ok {
		r.stats[t.Name] = &UsageStats{}
	}
	return nil
}

// Get returns the tool registered under name, or nil.
func (r *Registry) Get(name string) *Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.tools[name]
}

// Unregister removes a tool, reporting whether it existed.
func (r *Registry) Unregister(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.tools[name]; !ok {
		return false
	}
	delete(r.tools, name)
	return true
}

// List returns all registered tool names, sorted.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Stats returns a copy of the usage statistics for a tool name.
func (r *Registry) Stats(name string) UsageStats {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if s, ok := r.stats[name]; ok {
		return *s
	}
	return UsageStats{}
}

// markUsed records an invocation of name.
func (r *Registry) markUsed(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.stats[name]
	if !ok {
		s = &UsageStats{}
		r.stats[name] = s
	}
	s.UsageCount++
	s.LastUsedAt = time.Now()
}

// Execute runs the full invocation pipeline for a named tool:
// parameter validation, circuit breaker, deadline, retry with backoff,
// result validation. Every path terminates in a Result; no error or panic
// escapes.
func (r *Registry) Execute(ctx context.Context, name string, params any) Result {
	start := time.Now()

	t := r.Get(name)
	if t == nil {
		return failed(resilience.NewFatalError(fmt.Errorf("tool not found: %s", name)), time.Since(start), 0)
	}

	r.markUsed(name)

	if t.ValidateParams != nil {
		if err := t.ValidateParams(params); err != nil {
			// Validation failures are never retried and never executed.
			res := failed(resilience.NewFatalError(fmt.Errorf("invalid parameters for %s: %w", name, err)), time.Since(start), 0)
			r.observe(t, res)
			return res
		}
	}

	attempt := func(ctx context.Context) (any, error) {
		if t.Breaker != nil {
			return resilience.WithBreaker(ctx, t.Breaker, func(ctx context.Context) (any, error) {
				return resilience.WithTimeout(ctx, t.timeout(), r.safeRun(t, params))
			})
		}
		return resilience.WithTimeout(ctx, t.timeout(), r.safeRun(t, params))
	}

	data, attempts, err := resilience.Retry(ctx, t.retryConfig(), attempt)
	retries := attempts - 1

	if err != nil {
		res := failed(err, time.Since(start), retries)
		r.observe(t, res)
		return res
	}

	if t.ValidateResult != nil {
		if verr := t.ValidateResult(data); verr != nil {
			res := failed(resilience.NewTransientError(fmt.Errorf("invalid result from %s: %w", name, verr)), time.Since(start), retries)
			r.observe(t, res)
			return res
		}
	}

	res := succeeded(data, time.Since(start), retries)
	r.observe(t, res)
	return res
}

// ExecuteRaw runs the tool once with its deadline but without the envelope:
// no parameter or result validation, no retry, and the underlying error is
// returned directly. Intended for low-level callers that want native error
// semantics.
func (r *Registry) ExecuteRaw(ctx context.Context, name string, params any) (any, error) {
	t := r.Get(name)
	if t == nil {
		return nil, fmt.Errorf("tool not found: %s", name)
	}

	r.markUsed(name)
	return resilience.WithTimeout(ctx, t.timeout(), func(ctx context.Context) (any, error) {
		return t.Run(ctx, params)
	})
}

// safeRun wraps a tool's Run with panic recovery so a panicking tool
// surfaces as an error envelope, not a crashed worker.
func (r *Registry) safeRun(t *Tool, params any) resilience.Operation[any] {
	return func(ctx context.Context) (result any, err error) {
		defer func() {
			if rec := recover(); rec != nil {
				r.logger.Error("Tool panicked", "tool", t.Name, "panic", rec)
				err = resilience.NewFatalError(fmt.Errorf("tool %s panicked: %v", t.Name, rec))
			}
		}()
		return t.Run(ctx, params)
	}
}

// observe updates prometheus metrics for a completed invocation.
func (r *Registry) observe(t *Tool, res Result) {
	if r.metrics == nil {
		return
	}
	r.metrics.observe(t, res)
}
