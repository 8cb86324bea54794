package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/c360studio/longform/workflow"
)

func newResumeCommand(load loadFunc) *cobra.Command {
	var approve bool

	cmd := &cobra.Command{
		Use:   "resume <session-id>",
		Short: "Resume an interrupted job from its latest checkpoint",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := load()
			if err != nil {
				return err
			}
			if approve {
				cfg.Generation.RequireApproval = false
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			s, err := buildStack(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer s.Close()

			out, err := s.engine.Resume(ctx, args[0])
			if err != nil {
				return err
			}

			switch out.Status {
			case workflow.StatusCompleted:
				path, werr := writeManuscript(cfg.Output.Dir, out)
				if werr != nil {
					return werr
				}
				fmt.Printf("completed: %s\n", path)
			case workflow.StatusActive:
				fmt.Printf("awaiting review; approve with: longform resume --approve %s\n", out.SessionID)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&approve, "approve", false, "Approve a job parked at user review")
	return cmd
}
