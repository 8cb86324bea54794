// Package commands implements the longform CLI: starting generation
// jobs, resuming interrupted ones, and inspecting their progress.
package commands

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/c360studio/longform/config"
)

// NewRootCommand builds the longform command tree.
func NewRootCommand() *cobra.Command {
	var (
		configPath string
		logLevel   string
	)

	cmd := &cobra.Command{
		Use:   "longform",
		Short: "Long-form book generation pipeline",
		Long: `Longform runs multi-stage book generation jobs: premise, outline,
parallel chapter drafting, consistency and quality review, and final
manuscript assembly.

Every stage boundary is checkpointed, so an interrupted job resumes from
where it stopped.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Config file path (YAML)")
	cmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")

	load := func() (*config.Config, *slog.Logger, error) {
		logger := newLogger(logLevel)
		cfg, err := loadConfig(configPath, logger)
		if err != nil {
			return nil, nil, err
		}
		return cfg, logger, nil
	}

	cmd.AddCommand(newStartCommand(load))
	cmd.AddCommand(newResumeCommand(load))
	cmd.AddCommand(newStatusCommand(load))
	cmd.AddCommand(newToolsCommand(load))

	return cmd
}

// loadFunc defers config and logger construction until a subcommand runs,
// after flag parsing.
type loadFunc func() (*config.Config, *slog.Logger, error)

func newLogger(level string) *slog.Logger {
	lvl := slog.LevelInfo
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
	slog.SetDefault(logger)
	return logger
}

func loadConfig(path string, logger *slog.Logger) (*config.Config, error) {
	if path != "" {
		cfg, err := config.LoadFromFile(path)
		if err != nil {
			return nil, err
		}
		if err := cfg.Validate(); err != nil {
			return nil, fmt.Errorf("invalid configuration: %w", err)
		}
		return cfg, nil
	}
	return config.NewLoader(logger).Load()
}
