package commands

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/nats-io/nats.go"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/c360studio/longform/checkpoint"
	"github.com/c360studio/longform/config"
	"github.com/c360studio/longform/llm"
	"github.com/c360studio/longform/orchestrator"
	"github.com/c360studio/longform/tool"
	"github.com/c360studio/longform/tools"
	"github.com/c360studio/longform/workflow"
	"github.com/c360studio/longform/workflow/nodes"
)

// stack is the assembled runtime: tool registry, node table, checkpoint
// store, and engine, plus the connections they hold.
type stack struct {
	engine *orchestrator.Engine
	store  checkpoint.Store
	tools  *tool.Registry
	nc     *nats.Conn
}

func (s *stack) Close() {
	if s.nc != nil {
		s.nc.Close()
	}
}

// buildStack wires the full pipeline from configuration. With no NATS URL
// configured, checkpoints live in memory and survive only the process.
func buildStack(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*stack, error) {
	registry := cfg.BuildRegistry()

	clientOpts := []llm.ClientOption{llm.WithLogger(logger)}
	if cfg.Models.Timeout > 0 {
		clientOpts = append(clientOpts, llm.WithHTTPClient(&http.Client{Timeout: cfg.Models.Timeout}))
	}
	if cfg.Models.Temperature > 0 {
		clientOpts = append(clientOpts, llm.WithTemperature(cfg.Models.Temperature))
	}
	client := llm.NewClient(registry, clientOpts...)

	toolRegistry := tool.NewRegistry(
		tool.WithLogger(logger),
		tool.WithMetrics(tool.NewMetrics(prometheus.NewRegistry())))
	if err := tools.Register(toolRegistry, client); err != nil {
		return nil, fmt.Errorf("register tools: %w", err)
	}

	var (
		store checkpoint.Store
		nc    *nats.Conn
	)
	if cfg.NATS.URL != "" {
		var err error
		nc, err = nats.Connect(cfg.NATS.URL, nats.Name("longform"))
		if err != nil {
			return nil, fmt.Errorf("connect to NATS at %s: %w", cfg.NATS.URL, err)
		}
		store, err = checkpoint.NewNATSStore(ctx, nc,
			checkpoint.WithBucket(cfg.NATS.Bucket),
			checkpoint.WithLogger(logger))
		if err != nil {
			nc.Close()
			return nil, fmt.Errorf("open checkpoint bucket: %w", err)
		}
	} else {
		logger.Warn("no NATS URL configured, checkpoints are in-memory only")
		store = checkpoint.NewMemoryStore()
	}

	table := nodes.All(toolRegistry, client, nodes.Options{
		Concurrency:        cfg.Generation.Concurrency,
		MinCompletionRatio: cfg.Generation.MinCompletionRatio,
		QualityThreshold:   cfg.Generation.QualityThreshold,
		ChapterCount:       cfg.Generation.ChapterCount,
		AutoApprove:        !cfg.Generation.RequireApproval,
	}, logger)

	engine := orchestrator.New(table, store,
		orchestrator.WithLogger(logger),
		orchestrator.WithProgress(printProgress))

	return &stack{
		engine: engine,
		store:  store,
		tools:  toolRegistry,
		nc:     nc,
	}, nil
}

// printProgress renders one progress line per stage boundary.
func printProgress(state *workflow.State) {
	msg := state.Progress.Message
	if msg == "" {
		msg = string(state.CurrentStage)
	}
	fmt.Printf("[%3d%%] %-20s %s\n", state.Progress.OverallProgress, state.CurrentStage, msg)
}
