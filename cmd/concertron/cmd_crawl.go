package main

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/concertron/concertron/internal/crawl"
	"github.com/concertron/concertron/internal/labels"
	"github.com/concertron/concertron/internal/pipeline"
)

func crawlCmd() *cobra.Command {
	var venue string

	cmd := &cobra.Command{
		Use:   "crawl [observations.jsonl...]",
		Short: "Run one crawl pass over observation streams",
		Long: "Ingests one or more JSON-lines observation streams (one observation per line,\n" +
			"as produced by the out-of-process extractors) through the freshness/merge/label\n" +
			"pipeline. The venue id defaults to the stream's file name.",
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := newLogger()
			ctx := cmd.Context()

			st, err := newStore(logger)
			if err != nil {
				return fmt.Errorf("crawl: opening store: %w", err)
			}
			defer func() { _ = st.Close() }()

			classifier := pipeline.NewFreshnessClassifier(st, cfg.Crawl.StalenessWindow(), logger)
			merger := pipeline.NewMerger(st, logger)
			labeler := labels.NewClassifier(st, loadRules(logger), logger)
			pipe := pipeline.New(classifier, merger, labeler, logger)

			producers := make([]crawl.Producer, 0, len(args))
			for _, path := range args {
				v := venue
				if v == "" {
					v = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
				}
				producers = append(producers, crawl.NewJSONLProducer(v, path))
			}

			runner := crawl.NewRunner(producers, pipe, st, cfg.Crawl.Concurrency, logger)
			report, err := runner.Run(ctx)
			if err != nil {
				return fmt.Errorf("crawl: %w", err)
			}

			fmt.Printf("Crawl report:\n")
			fmt.Printf("  Observed:   %d\n", report.Observed)
			fmt.Printf("  Inserted:   %d\n", report.Inserted)
			fmt.Printf("  Updated:    %d\n", report.Updated)
			fmt.Printf("  Touched:    %d\n", report.Touched)
			fmt.Printf("  Unchanged:  %d\n", report.Unchanged)
			fmt.Printf("  Labeled:    %d\n", report.Labeled)
			fmt.Printf("  Failed:     %d\n", report.Failed)
			return nil
		},
	}

	cmd.Flags().StringVar(&venue, "venue", "", "venue id for all streams (default: file name)")
	return cmd
}
