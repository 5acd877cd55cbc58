package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/concertron/concertron/internal/lifecycle"
)

func cleanupCmd() *cobra.Command {
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "cleanup",
		Short: "Remove events whose date has passed",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := newLogger()
			ctx := cmd.Context()

			st, err := newStore(logger)
			if err != nil {
				return fmt.Errorf("cleanup: opening store: %w", err)
			}
			defer func() { _ = st.Close() }()

			lm := lifecycle.NewManager(st, logger)
			report, err := lm.Run(ctx, dryRun)
			if err != nil {
				return fmt.Errorf("cleanup: %w", err)
			}

			fmt.Printf("Cleanup report:\n")
			fmt.Printf("  Expired events: %d\n", report.Expired)
			if dryRun {
				fmt.Println("  (dry run, no changes applied)")
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "preview changes without applying")
	return cmd
}
