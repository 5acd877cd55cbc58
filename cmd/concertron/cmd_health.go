package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func healthCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check that the event store is reachable",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := newLogger()
			ctx := cmd.Context()

			st, err := newStore(logger)
			if err != nil {
				fmt.Println("store: UNREACHABLE")
				return fmt.Errorf("health: opening store: %w", err)
			}
			defer func() { _ = st.Close() }()

			if _, err := st.Stats(ctx); err != nil {
				fmt.Println("store: ERROR")
				return fmt.Errorf("health: querying store: %w", err)
			}

			fmt.Println("store: OK")
			return nil
		},
	}
}
