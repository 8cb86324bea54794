package tool_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/c360studio/longform/resilience"
	"github.com/c360studio/longform/tool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastRetry(attempts int) *resilience.RetryConfig {
	return &resilience.RetryConfig{
		MaxAttempts:       attempts,
		BackoffBase:       time.Millisecond,
		BackoffMultiplier: 1.0,
		MaxBackoff:        time.Millisecond,
	}
}

func TestRegistry_RegisterGetUnregisterList(t *testing.T) {
	reg := tool.NewRegistry()

	require.NoError(t, reg.Register(&tool.Tool{
		Name: "echo",
		Run:  func(ctx context.Context, params any) (any, error) { return params, nil },
	}))
	require.NoError(t, reg.Register(&tool.Tool{
		Name: "answer",
		Run:  func(ctx context.Context, params any) (any, error) { return 42, nil },
	}))

	assert.NotNil(t, reg.Get("echo"))
	assert.Nil(t, reg.Get("missing"))
	assert.Equal(t, []string{"answer", "echo"}, reg.List())

	assert.True(t, reg.Unregister("echo"))
	assert.False(t, reg.Unregister("echo"))
	assert.Equal(t, []string{"answer"}, reg.List())
}

func TestRegistry_RegisterRejectsInvalid(t *testing.T) {
	reg := tool.NewRegistry()

	assert.Error(t, reg.Register(nil))
	assert.Error(t, reg.Register(&tool.Tool{Name: ""}))
	assert.Error(t, reg.Register(&tool.Tool{Name: "no-run"}))
}

func TestRegistry_LastWriteWins(t *testing.T) {
	reg := tool.NewRegistry()

	require.NoError(t, reg.Register(&tool.Tool{
		Name: "tool",
		Run:  func(ctx context.Context, params any) (any, error) { return "first", nil },
	}))
	require.NoError(t, reg.Register(&tool.Tool{
		Name: "tool",
		Run:  func(ctx context.Context, params any) (any, error) { return "second", nil },
	}))

	res := reg.Execute(context.Background(), "tool", nil)
	require.True(t, res.Success)
	assert.Equal(t, "second", res.Data)
}

func TestExecute_SuccessEnvelope(t *testing.T) {
	reg := tool.NewRegistry()
	require.NoError(t, reg.Register(&tool.Tool{
		Name: "greet",
		Run: func(ctx context.Context, params any) (any, error) {
			return fmt.Sprintf("hello %v", params), nil
		},
	}))

	res := reg.Execute(context.Background(), "greet", "world")

	assert.True(t, res.Success)
	assert.Equal(t, "hello world", res.Data)
	assert.Empty(t, res.Error)
	assert.NoError(t, res.Err())
	assert.GreaterOrEqual(t, res.ExecutionTimeMs, int64(0))
	assert.Equal(t, 0, res.Retries)
}

func TestExecute_ErrorEnvelope(t *testing.T) {
	reg := tool.NewRegistry()
	boom := errors.New("underlying failure")
	require.NoError(t, reg.Register(&tool.Tool{
		Name:  "broken",
		Retry: fastRetry(1),
		Run: func(ctx context.Context, params any) (any, error) {
			return nil, resilience.NewFatalError(boom)
		},
	}))

	res := reg.Execute(context.Background(), "broken", nil)

	assert.False(t, res.Success)
	assert.Nil(t, res.Data)
	assert.NotEmpty(t, res.Error)
	assert.ErrorIs(t, res.Err(), boom)
}

func TestExecute_PanicBecomesEnvelope(t *testing.T) {
	reg := tool.NewRegistry()
	require.NoError(t, reg.Register(&tool.Tool{
		Name:  "panicky",
		Retry: fastRetry(1),
		Run: func(ctx context.Context, params any) (any, error) {
			panic("unexpected state")
		},
	}))

	res := reg.Execute(context.Background(), "panicky", nil)

	assert.False(t, res.Success)
	assert.Contains(t, res.Error, "panicked")
	assert.Nil(t, res.Data)
}

func TestExecute_ParamValidationShortCircuits(t *testing.T) {
	reg := tool.NewRegistry()
	invoked := false
	require.NoError(t, reg.Register(&tool.Tool{
		Name: "strict",
		ValidateParams: func(params any) error {
			if params == nil {
				return errors.New("params required")
			}
			return nil
		},
		Run: func(ctx context.Context, params any) (any, error) {
			invoked = true
			return "ok", nil
		},
	}))

	res := reg.Execute(context.Background(), "strict", nil)

	assert.False(t, res.Success)
	assert.Contains(t, res.Error, "invalid parameters")
	assert.False(t, invoked, "validation failure must not execute the tool")
	assert.Equal(t, 0, res.Retries)
}

func TestExecute_ResultValidationConvertsToFailure(t *testing.T) {
	reg := tool.NewRegistry()
	require.NoError(t, reg.Register(&tool.Tool{
		Name:  "malformed",
		Retry: fastRetry(1),
		Run: func(ctx context.Context, params any) (any, error) {
			return "not json", nil
		},
		ValidateResult: func(result any) error {
			return errors.New("expected structured output")
		},
	}))

	res := reg.Execute(context.Background(), "malformed", nil)

	assert.False(t, res.Success)
	assert.Contains(t, res.Error, "invalid result")
}

func TestExecute_RetriesTransientFailures(t *testing.T) {
	reg := tool.NewRegistry()
	calls := 0
	require.NoError(t, reg.Register(&tool.Tool{
		Name:  "flaky",
		Retry: fastRetry(3),
		Run: func(ctx context.Context, params any) (any, error) {
			calls++
			if calls < 3 {
				return nil, resilience.NewTransientError(errors.New("rate limited"))
			}
			return "finally", nil
		},
	}))

	res := reg.Execute(context.Background(), "flaky", nil)

	require.True(t, res.Success)
	assert.Equal(t, "finally", res.Data)
	assert.Equal(t, 2, res.Retries)
}

func TestExecute_TimeoutProducesTransientFailure(t *testing.T) {
	reg := tool.NewRegistry()
	require.NoError(t, reg.Register(&tool.Tool{
		Name:    "slow",
		Timeout: 10 * time.Millisecond,
		Retry:   fastRetry(1),
		Run: func(ctx context.Context, params any) (any, error) {
			select {
			case <-time.After(time.Second):
				return "too late", nil
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		},
	}))

	res := reg.Execute(context.Background(), "slow", nil)

	assert.False(t, res.Success)
	assert.True(t, resilience.IsTimeout(res.Err()))
}

func TestExecute_BreakerRejectsWhenOpen(t *testing.T) {
	breaker := resilience.NewBreaker(resilience.BreakerConfig{
		FailureThreshold: 2,
		RecoveryTimeout:  time.Minute,
	})

	reg := tool.NewRegistry()
	calls := 0
	require.NoError(t, reg.Register(&tool.Tool{
		Name:    "guarded",
		Breaker: breaker,
		Retry:   fastRetry(1),
		Run: func(ctx context.Context, params any) (any, error) {
			calls++
			return nil, resilience.NewTransientError(errors.New("backend down"))
		},
	}))

	// Two failing invocations open the circuit.
	reg.Execute(context.Background(), "guarded", nil)
	reg.Execute(context.Background(), "guarded", nil)
	assert.Equal(t, resilience.BreakerOpen, breaker.Status().State)

	res := reg.Execute(context.Background(), "guarded", nil)

	assert.False(t, res.Success)
	assert.Contains(t, res.Error, "circuit breaker is OPEN")
	assert.Equal(t, 2, calls, "open circuit must not invoke the tool")
}

func TestExecute_UnknownTool(t *testing.T) {
	reg := tool.NewRegistry()

	res := reg.Execute(context.Background(), "nope", nil)

	assert.False(t, res.Success)
	assert.Contains(t, res.Error, "tool not found")
}

func TestExecuteRaw_ReturnsUnderlyingError(t *testing.T) {
	reg := tool.NewRegistry()
	boom := errors.New("native error")
	require.NoError(t, reg.Register(&tool.Tool{
		Name: "raw",
		ValidateParams: func(params any) error {
			return errors.New("should not run in raw mode")
		},
		Run: func(ctx context.Context, params any) (any, error) {
			return nil, boom
		},
	}))

	_, err := reg.ExecuteRaw(context.Background(), "raw", nil)

	assert.ErrorIs(t, err, boom)
}

func TestExecuteRaw_AppliesToolDeadline(t *testing.T) {
	reg := tool.NewRegistry()
	require.NoError(t, reg.Register(&tool.Tool{
		Name:    "slow-raw",
		Timeout: 10 * time.Millisecond,
		Run: func(ctx context.Context, params any) (any, error) {
			select {
			case <-time.After(time.Second):
				return "too late", nil
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		},
	}))

	_, err := reg.ExecuteRaw(context.Background(), "slow-raw", nil)

	require.Error(t, err)
	assert.True(t, resilience.IsTimeout(err))
}

func TestRegistry_UsageStats(t *testing.T) {
	reg := tool.NewRegistry()
	require.NoError(t, reg.Register(&tool.Tool{
		Name: "tracked",
		Run:  func(ctx context.Context, params any) (any, error) { return nil, nil },
	}))

	assert.Equal(t, int64(0), reg.Stats("tracked").UsageCount)

	reg.Execute(context.Background(), "tracked", nil)
	reg.Execute(context.Background(), "tracked", nil)
	_, _ = reg.ExecuteRaw(context.Background(), "tracked", nil)

	stats := reg.Stats("tracked")
	assert.Equal(t, int64(3), stats.UsageCount)
	assert.False(t, stats.LastUsedAt.IsZero())

	// Re-registration preserves accumulated stats.
	require.NoError(t, reg.Register(&tool.Tool{
		Name: "tracked",
		Run:  func(ctx context.Context, params any) (any, error) { return nil, nil },
	}))
	assert.Equal(t, int64(3), reg.Stats("tracked").UsageCount)
}

func TestRegistry_WithMetrics(t *testing.T) {
	promReg := prometheus.NewRegistry()
	reg := tool.NewRegistry(tool.WithMetrics(tool.NewMetrics(promReg)))

	require.NoError(t, reg.Register(&tool.Tool{
		Name: "observed",
		Run:  func(ctx context.Context, params any) (any, error) { return "ok", nil },
	}))
	res := reg.Execute(context.Background(), "observed", nil)
	require.True(t, res.Success)

	families, err := promReg.Gather()
	require.NoError(t, err)

	names := make([]string, 0, len(families))
	for _, f := range families {
		names = append(names, f.GetName())
	}
	assert.Contains(t, names, "longform_tool_invocations_total")
	assert.Contains(t, names, "longform_tool_invocation_duration_seconds")
}
