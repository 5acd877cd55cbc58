package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/concertron/concertron/internal/models"
	"github.com/concertron/concertron/internal/store"
)

func eventsCmd() *cobra.Command {
	var (
		category string
		status   string
		venueID  string
		upcoming bool
	)

	cmd := &cobra.Command{
		Use:   "events",
		Short: "List tracked events",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := newLogger()
			ctx := cmd.Context()

			st, err := newStore(logger)
			if err != nil {
				return fmt.Errorf("events: opening store: %w", err)
			}
			defer func() { _ = st.Close() }()

			filter := &store.EventFilter{
				Category: category,
				Status:   models.EventStatus(status),
				VenueID:  venueID,
			}
			if upcoming {
				filter.After = time.Now()
			}

			events, err := st.ListEvents(ctx, filter)
			if err != nil {
				return fmt.Errorf("events: listing: %w", err)
			}

			if len(events) == 0 {
				fmt.Println("No events found")
				return nil
			}
			for _, ev := range events {
				line := fmt.Sprintf("%s  %-10s  %s", ev.Date.Format("2006-01-02 15:04"), ev.Status, ev.Title)
				if len(ev.Lineup) > 0 {
					line += "  [" + strings.Join(ev.Lineup, ", ") + "]"
				}
				fmt.Println(line)
			}
			fmt.Printf("\n%d events\n", len(events))
			return nil
		},
	}

	cmd.Flags().StringVar(&category, "category", "", "filter by category")
	cmd.Flags().StringVar(&status, "status", "", "filter by ticket status")
	cmd.Flags().StringVar(&venueID, "venue", "", "filter by venue id")
	cmd.Flags().BoolVar(&upcoming, "upcoming", false, "only events scheduled after now")
	return cmd
}

func getCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get [event-id]",
		Short: "Show one event as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := newLogger()
			ctx := cmd.Context()

			st, err := newStore(logger)
			if err != nil {
				return fmt.Errorf("get: opening store: %w", err)
			}
			defer func() { _ = st.Close() }()

			ev, err := st.GetEvent(ctx, args[0])
			if err != nil {
				return fmt.Errorf("get: %w", err)
			}

			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(ev)
		},
	}
}
