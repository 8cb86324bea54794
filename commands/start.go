package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/c360studio/longform/workflow"
)

func newStartCommand(load loadFunc) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "start [prompt...]",
		Short: "Start a new book generation job",
		Long: `Start a new generation job from a prompt. The prompt describes the
book to write; URLs in the prompt are fetched and used as reference
material.

The session ID is printed at startup; use it with resume and status.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := load()
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			s, err := buildStack(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer s.Close()

			state := workflow.NewState(strings.Join(args, " "))
			fmt.Printf("session %s\n", state.SessionID)

			out, err := s.engine.Run(ctx, state)
			if err != nil {
				return fmt.Errorf("job %s failed: %w", state.SessionID, err)
			}

			switch out.Status {
			case workflow.StatusCompleted:
				path, werr := writeManuscript(cfg.Output.Dir, out)
				if werr != nil {
					return werr
				}
				fmt.Printf("completed: %s\n", path)
			case workflow.StatusActive:
				fmt.Printf("awaiting review; resume with: longform resume %s\n", out.SessionID)
			}
			return nil
		},
	}
	return cmd
}

// writeManuscript writes the finished manuscript to the output directory.
func writeManuscript(dir string, state *workflow.State) (string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("create output directory: %w", err)
	}

	name := state.SessionID + ".md"
	if state.Outline != nil && state.Outline.Title != "" {
		name = slugify(state.Outline.Title) + ".md"
	}

	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(state.Manuscript), 0644); err != nil {
		return "", fmt.Errorf("write manuscript: %w", err)
	}
	return path, nil
}

// slugify turns a title into a safe filename stem.
func slugify(title string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(title) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == ' ' || r == '-' || r == '_':
			b.WriteRune('-')
		}
	}
	slug := strings.Trim(b.String(), "-")
	if slug == "" {
		return "manuscript"
	}
	return slug
}
