package main

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/concertron/concertron/internal/models"
	"github.com/concertron/concertron/internal/store"
)

func subscribersCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "subscribers",
		Short: "Inspect and extend the interest registry",
	}
	cmd.AddCommand(subscribersListCmd(), subscribersShowCmd(), subscribersFollowCmd())
	return cmd
}

func subscribersListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all subscribers",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := newLogger()
			ctx := cmd.Context()

			st, err := newStore(logger)
			if err != nil {
				return fmt.Errorf("subscribers: opening store: %w", err)
			}
			defer func() { _ = st.Close() }()

			subs, err := st.ListSubscribers(ctx)
			if err != nil {
				return fmt.Errorf("subscribers: listing: %w", err)
			}
			for _, sub := range subs {
				fmt.Printf("%s  artists=%d tags=%d events=%d\n",
					sub.ID, len(sub.Artists), len(sub.Tags), len(sub.Events))
			}
			fmt.Printf("\n%d subscribers\n", len(subs))
			return nil
		},
	}
}

func subscribersShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show [subscriber-id]",
		Short: "Show one subscriber's watchlist",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := newLogger()
			ctx := cmd.Context()

			st, err := newStore(logger)
			if err != nil {
				return fmt.Errorf("subscribers: opening store: %w", err)
			}
			defer func() { _ = st.Close() }()

			sub, err := st.GetSubscriber(ctx, args[0])
			if err != nil {
				return fmt.Errorf("subscribers: %w", err)
			}

			fmt.Printf("Subscriber %s (since %s)\n", sub.ID, sub.Created.Format("2006-01-02"))
			fmt.Printf("  Artists: %s\n", strings.Join(sub.Artists, ", "))
			fmt.Printf("  Tags:    %s\n", strings.Join(sub.Tags, ", "))
			fmt.Printf("  Events:  %s\n", strings.Join(sub.Events, ", "))
			return nil
		},
	}
}

// subscribersFollowCmd mirrors the opt-in flow: following an event also
// follows its lineup and tags.
func subscribersFollowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "follow [subscriber-id] [event-id]",
		Short: "Add an event (and its lineup and tags) to a subscriber's watchlist",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := newLogger()
			ctx := cmd.Context()
			subID, eventID := args[0], args[1]

			st, err := newStore(logger)
			if err != nil {
				return fmt.Errorf("subscribers: opening store: %w", err)
			}
			defer func() { _ = st.Close() }()

			ev, err := st.GetEvent(ctx, eventID)
			if err != nil {
				return fmt.Errorf("subscribers: %w", err)
			}

			if _, err := st.GetSubscriber(ctx, subID); errors.Is(err, store.ErrNotFound) {
				if err := st.PutSubscriber(ctx, models.Subscriber{ID: subID, Created: time.Now().UTC()}); err != nil {
					return fmt.Errorf("subscribers: creating %s: %w", subID, err)
				}
			} else if err != nil {
				return fmt.Errorf("subscribers: %w", err)
			}

			if err := st.AddInterests(ctx, subID, ev.Lineup, ev.Tags, []string{ev.ID}); err != nil {
				return fmt.Errorf("subscribers: extending interests: %w", err)
			}

			fmt.Printf("%s now follows %q\n", subID, ev.Title)
			return nil
		},
	}
}
