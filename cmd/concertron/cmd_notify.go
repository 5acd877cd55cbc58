package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/concertron/concertron/internal/feed"
	"github.com/concertron/concertron/internal/notify"
)

func notifyCmd() *cobra.Command {
	var interval time.Duration

	cmd := &cobra.Command{
		Use:   "notify",
		Short: "Dispatch pending changes to subscribers",
		Long: "Drains the change feed for the configured consumer, matches changes against\n" +
			"subscriber interests and posts notifications to the delivery webhook. With\n" +
			"--interval it keeps dispatching on a timer until interrupted.",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := newLogger()
			ctx := cmd.Context()

			if cfg.Notify.WebhookURL == "" {
				return fmt.Errorf("notify: notify.webhook_url is not configured")
			}

			st, err := newStore(logger)
			if err != nil {
				return fmt.Errorf("notify: opening store: %w", err)
			}
			defer func() { _ = st.Close() }()

			sender := notify.NewWebhookSender(cfg.Notify.WebhookURL, logger)
			dispatcher := notify.NewDispatcher(
				feed.New(st, logger), st, sender,
				cfg.Notify.Consumer, cfg.Notify.Home, logger)

			runOnce := func() {
				report, err := dispatcher.Run(ctx)
				if err != nil {
					logger.Error("dispatch cycle failed", "error", err)
					return
				}
				if report.Events > 0 {
					fmt.Printf("Dispatched %d notifications for %d changed events (%d skipped)\n",
						report.Notifications, report.Events, report.Skipped)
				}
			}

			runOnce()
			if interval <= 0 {
				return nil
			}

			ticker := time.NewTicker(interval)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					logger.Info("notify loop stopping")
					return nil
				case <-ticker.C:
					runOnce()
				}
			}
		},
	}

	cmd.Flags().DurationVar(&interval, "interval", 0, "keep dispatching on this interval (0 = once)")
	return cmd
}
