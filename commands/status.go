package commands

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

func newStatusCommand(load loadFunc) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status <session-id>",
		Short: "Show a job's progress and checkpoint history",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := load()
			if err != nil {
				return err
			}

			ctx := context.Background()
			s, err := buildStack(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer s.Close()

			state, err := s.store.LoadLatest(ctx, args[0])
			if err != nil {
				return err
			}

			fmt.Printf("session:  %s\n", state.SessionID)
			fmt.Printf("status:   %s\n", state.Status)
			fmt.Printf("stage:    %s\n", state.CurrentStage)
			fmt.Printf("progress: %d%%\n", state.Progress.OverallProgress)
			if state.Progress.TotalChapters > 0 {
				fmt.Printf("chapters: %d/%d\n", state.Progress.CompletedChapters, state.Progress.TotalChapters)
			}
			if state.Error != "" {
				fmt.Printf("error:    %s\n", state.Error)
			}

			entries, err := s.store.List(ctx, state.SessionID)
			if err != nil {
				return err
			}

			fmt.Printf("\ncheckpoints:\n")
			for _, e := range entries {
				fmt.Printf("  %-20s %3d%%  %s\n", e.Stage, e.Overall, e.UpdatedAt.Format("2006-01-02 15:04:05"))
			}

			if len(state.ReviewNotes) > 0 {
				fmt.Printf("\nreview notes:\n")
				for _, note := range state.ReviewNotes {
					where := "manuscript"
					if note.Chapter > 0 {
						where = fmt.Sprintf("chapter %d", note.Chapter)
					}
					fmt.Printf("  [%s] %s: %s\n", note.Stage, where, strings.TrimSpace(note.Note))
				}
			}
			return nil
		},
	}
	return cmd
}
