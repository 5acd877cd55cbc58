package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/concertron/concertron/internal/config"
	"github.com/concertron/concertron/internal/labels"
	"github.com/concertron/concertron/internal/store"
)

var cfg *config.Config

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)

	rootCmd := &cobra.Command{
		Use:   "concertron",
		Short: "Concert listing tracker and change-feed dispatcher",
		Long:  "Concertron tracks event listings across venues, merges re-observations into canonical records and fans out changes to subscribed consumers.",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			var err error
			cfg, err = config.Load()
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			return nil
		},
	}

	rootCmd.AddCommand(
		crawlCmd(),
		notifyCmd(),
		serveCmd(),
		eventsCmd(),
		getCmd(),
		subscribersCmd(),
		cleanupCmd(),
		statsCmd(),
		healthCmd(),
	)

	rootCmd.SetContext(ctx)

	err := rootCmd.Execute()
	stop()
	if err != nil {
		os.Exit(1)
	}
}

func newLogger() *slog.Logger {
	level := slog.LevelInfo
	if cfg != nil && cfg.Logging.Level == "debug" {
		level = slog.LevelDebug
	}
	opts := &slog.HandlerOptions{Level: level}
	if cfg != nil && cfg.Logging.Format == "json" {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}

func newStore(logger *slog.Logger) (store.Store, error) {
	if cfg.Store.Backend == "memory" {
		return store.NewMemStore(), nil
	}
	if err := os.MkdirAll(filepath.Dir(cfg.Store.Path), 0o755); err != nil {
		return nil, fmt.Errorf("creating store directory: %w", err)
	}
	return store.NewSQLiteStore(cfg.Store.Path, logger)
}

// loadRules reads the external rule table; a missing file is not fatal, it
// just leaves every event uncategorized.
func loadRules(logger *slog.Logger) labels.RuleTable {
	rules, err := labels.LoadRules(cfg.Labels.RulesFile)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			logger.Warn("no label rules file, categories disabled", "path", cfg.Labels.RulesFile)
			return nil
		}
		logger.Error("loading label rules", "path", cfg.Labels.RulesFile, "error", err)
		return nil
	}
	return rules
}
