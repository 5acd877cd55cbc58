// Package crawl drives registered producers through the observation pipeline.
package crawl

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/concertron/concertron/internal/metrics"
	"github.com/concertron/concertron/internal/models"
	"github.com/concertron/concertron/internal/pipeline"
	"github.com/concertron/concertron/internal/store"
)

// lastRunConsumer is the bookkeeping watermark recording when a crawl pass
// completed. It shares the consumer table but no feed consumer reads it.
const lastRunConsumer = "crawl:last_run"

// Report aggregates what one crawl pass did.
type Report struct {
	Observed  int `json:"observed"`
	Inserted  int `json:"inserted"`
	Updated   int `json:"updated"`
	Touched   int `json:"touched"`
	Unchanged int `json:"unchanged"`
	Labeled   int `json:"labeled"`
	Failed    int `json:"failed"`
}

// Runner fans a set of producers out over the pipeline. Producers run
// concurrently; observations within one producer run in listing order.
type Runner struct {
	producers []Producer
	pipe      *pipeline.Pipeline
	store     store.Store
	logger    *slog.Logger
	limit     int
	now       func() time.Time
}

// NewRunner creates a runner. limit caps how many producers crawl at once;
// non-positive means unbounded.
func NewRunner(producers []Producer, pipe *pipeline.Pipeline, st store.Store, limit int, logger *slog.Logger) *Runner {
	return &Runner{
		producers: producers,
		pipe:      pipe,
		store:     st,
		logger:    logger,
		limit:     limit,
		now:       time.Now,
	}
}

// Run executes one crawl pass across all producers. A failing producer or
// observation is logged and counted, never fatal to the pass; the only error
// returned is a cancelled context.
func (r *Runner) Run(ctx context.Context) (*Report, error) {
	var (
		mu    sync.Mutex
		total Report
	)

	g, gctx := errgroup.WithContext(ctx)
	if r.limit > 0 {
		g.SetLimit(r.limit)
	}

	for _, p := range r.producers {
		g.Go(func() error {
			rep := r.runProducer(gctx, p)
			mu.Lock()
			addReport(&total, rep)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return &total, err
	}
	if err := ctx.Err(); err != nil {
		return &total, err
	}

	if err := r.store.AdvanceWatermark(ctx, lastRunConsumer, r.now()); err != nil {
		r.logger.Warn("recording crawl watermark", "error", err)
	}
	r.logger.Info("crawl pass complete",
		"observed", total.Observed, "inserted", total.Inserted, "updated", total.Updated,
		"touched", total.Touched, "unchanged", total.Unchanged, "labeled", total.Labeled,
		"failed", total.Failed)
	return &total, nil
}

func (r *Runner) runProducer(ctx context.Context, p Producer) Report {
	var rep Report
	logger := r.logger.With("venue", p.Venue())

	observations, err := p.Discover(ctx)
	if err != nil {
		logger.Error("discover failed", "error", err)
		rep.Failed++
		return rep
	}
	logger.Debug("discovered listings", "count", len(observations))

	for _, obs := range observations {
		if ctx.Err() != nil {
			return rep
		}
		rep.Observed++
		metrics.Inc(metrics.ObservationsTotal)
		if err := r.processObservation(ctx, p, obs, &rep); err != nil {
			logger.Error("observation failed", "id", obs.ID, "error", err)
			rep.Failed++
			metrics.Inc(metrics.ObservationsFailed)
		}
	}
	return rep
}

// processObservation routes one shallow listing observation: classify the id,
// deep-fetch when the verdict demands it, then merge and fold in labels.
func (r *Runner) processObservation(ctx context.Context, p Producer, obs models.Observation, rep *Report) error {
	// Label observations skip freshness entirely; they target events that
	// are already stored.
	if obs.Kind == models.KindLabel {
		out, err := r.pipe.Dispatch(ctx, obs)
		if err != nil {
			return err
		}
		if out == pipeline.OutcomeLabeled {
			rep.Labeled++
			metrics.Inc(metrics.LabelsApplied)
		}
		return nil
	}

	verdict, err := r.pipe.Classifier.Classify(ctx, obs.ID)
	if err != nil {
		return err
	}

	switch verdict {
	case pipeline.VerdictFresh:
		if err := r.pipe.Merger.Touch(ctx, obs.ID); err != nil {
			return err
		}
		rep.Touched++
		metrics.Inc(metrics.EventsTouched)
		return nil

	case pipeline.VerdictNew:
		full, err := p.Inspect(ctx, obs)
		if err != nil {
			return err
		}
		full.Kind = models.KindNew
		outcome, err := r.pipe.Dispatch(ctx, full)
		if err != nil {
			return err
		}
		if outcome == pipeline.OutcomeInserted {
			rep.Inserted++
			metrics.Inc(metrics.EventsInserted)
		}
		return nil

	case pipeline.VerdictStale:
		full, err := p.Inspect(ctx, obs)
		if err != nil {
			return err
		}
		full.Kind = models.KindRefresh
		outcome, err := r.pipe.Dispatch(ctx, full)
		if err != nil {
			return err
		}
		switch outcome {
		case pipeline.OutcomeUpdated:
			rep.Updated++
			metrics.Inc(metrics.EventsUpdated)
		case pipeline.OutcomeUnchanged:
			rep.Unchanged++
		}
		// Labels ride along on the detail page but merge separately, one
		// label observation each.
		for _, tag := range full.Tags {
			out, err := r.pipe.Dispatch(ctx, models.Observation{
				Kind:  models.KindLabel,
				ID:    full.ID,
				Label: tag,
			})
			if err != nil {
				return err
			}
			if out == pipeline.OutcomeLabeled {
				rep.Labeled++
				metrics.Inc(metrics.LabelsApplied)
			}
		}
		return nil
	}
	return nil
}

func addReport(total *Report, r Report) {
	total.Observed += r.Observed
	total.Inserted += r.Inserted
	total.Updated += r.Updated
	total.Touched += r.Touched
	total.Unchanged += r.Unchanged
	total.Labeled += r.Labeled
	total.Failed += r.Failed
}
