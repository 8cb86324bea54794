package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

func newToolsCommand(load loadFunc) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tools",
		Short: "Inspect the registered tools",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List registered tools and their usage counts",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := load()
			if err != nil {
				return err
			}

			s, err := buildStack(context.Background(), cfg, logger)
			if err != nil {
				return err
			}
			defer s.Close()

			fmt.Printf("%-20s %-10s %s\n", "NAME", "USES", "DESCRIPTION")
			for _, name := range s.tools.List() {
				t := s.tools.Get(name)
				stats := s.tools.Stats(name)
				fmt.Printf("%-20s %-10d %s\n", name, stats.UsageCount, t.Description)
			}
			return nil
		},
	})

	return cmd
}
