package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func statsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show event collection statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := newLogger()
			ctx := cmd.Context()

			st, err := newStore(logger)
			if err != nil {
				return fmt.Errorf("stats: opening store: %w", err)
			}
			defer func() { _ = st.Close() }()

			stats, err := st.Stats(ctx)
			if err != nil {
				return fmt.Errorf("stats: fetching statistics: %w", err)
			}

			fmt.Printf("Total events:      %d\n", stats.TotalEvents)
			fmt.Printf("Total subscribers: %d\n\n", stats.TotalSubscribers)

			fmt.Println("By category:")
			for c, n := range stats.ByCategory {
				fmt.Printf("  %-14s %d\n", c, n)
			}

			fmt.Println("\nBy status:")
			for s, n := range stats.ByStatus {
				fmt.Printf("  %-14s %d\n", s, n)
			}

			fmt.Println("\nBy venue:")
			for v, n := range stats.ByVenue {
				fmt.Printf("  %-14s %d\n", v, n)
			}
			return nil
		},
	}
}
