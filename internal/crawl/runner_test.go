package crawl

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/concertron/concertron/internal/labels"
	"github.com/concertron/concertron/internal/models"
	"github.com/concertron/concertron/internal/pipeline"
	"github.com/concertron/concertron/internal/store"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestPipeline(st store.Store) *pipeline.Pipeline {
	logger := discardLogger()
	rules := labels.RuleTable{{Labels: []string{"club"}, Category: "Club"}}
	return pipeline.New(
		pipeline.NewFreshnessClassifier(st, 0, logger),
		pipeline.NewMerger(st, logger),
		labels.NewClassifier(st, rules, logger),
		logger,
	)
}

// fakeProducer serves scripted observations and records Inspect calls.
type fakeProducer struct {
	venue       string
	listings    []models.Observation
	discoverErr error
	inspectErr  error
	inspected   []string
}

func (p *fakeProducer) Venue() string { return p.venue }

func (p *fakeProducer) Discover(context.Context) ([]models.Observation, error) {
	if p.discoverErr != nil {
		return nil, p.discoverErr
	}
	return p.listings, nil
}

func (p *fakeProducer) Inspect(_ context.Context, obs models.Observation) (models.Observation, error) {
	p.inspected = append(p.inspected, obs.ID)
	if p.inspectErr != nil {
		return models.Observation{}, p.inspectErr
	}
	return obs, nil
}

func fullObs(id, venue string) models.Observation {
	return models.Observation{
		ID:      id,
		VenueID: venue,
		Title:   models.StringPtr("Act " + id),
		Date:    models.TimePtr(time.Date(2026, 11, 1, 20, 0, 0, 0, time.UTC)),
		Status:  models.StatusPtr(models.StatusSaleLive),
		URL:     models.StringPtr("https://venue.example/" + id),
	}
}

func TestRunner_InsertsNewListings(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemStore()
	p := &fakeProducer{
		venue:    "paradiso",
		listings: []models.Observation{fullObs("ev-1", "paradiso"), fullObs("ev-2", "paradiso")},
	}

	r := NewRunner([]Producer{p}, newTestPipeline(st), st, 0, discardLogger())
	rep, err := r.Run(ctx)
	require.NoError(t, err)

	assert.Equal(t, 2, rep.Observed)
	assert.Equal(t, 2, rep.Inserted)
	assert.Equal(t, 0, rep.Failed)
	assert.Equal(t, []string{"ev-1", "ev-2"}, p.inspected, "new listings are deep-fetched")

	events, err := st.ListEvents(ctx, nil)
	require.NoError(t, err)
	assert.Len(t, events, 2)
}

func TestRunner_FreshListingsAreTouchedNotInspected(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemStore()
	now := time.Now()
	require.NoError(t, st.InsertEvent(ctx, models.Event{
		ID:        "ev-1",
		Title:     "Act",
		Date:      now.AddDate(0, 1, 0),
		LastCheck: now.Add(-time.Hour),
	}))

	p := &fakeProducer{venue: "paradiso", listings: []models.Observation{{ID: "ev-1", VenueID: "paradiso"}}}
	r := NewRunner([]Producer{p}, newTestPipeline(st), st, 0, discardLogger())
	rep, err := r.Run(ctx)
	require.NoError(t, err)

	assert.Equal(t, 1, rep.Touched)
	assert.Empty(t, p.inspected, "fresh events skip the detail fetch")
}

func TestRunner_StaleListingsAreRefreshedAndLabeled(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemStore()
	now := time.Now()
	require.NoError(t, st.InsertEvent(ctx, models.Event{
		ID:        "ev-1",
		Title:     "Act ev-1",
		Date:      now.AddDate(0, 1, 0),
		Status:    models.StatusSaleLive,
		LastCheck: now.Add(-96 * time.Hour),
	}))

	obs := fullObs("ev-1", "paradiso")
	obs.Status = models.StatusPtr(models.StatusSoldOut)
	obs.Tags = []string{"club"}

	p := &fakeProducer{venue: "paradiso", listings: []models.Observation{obs}}
	r := NewRunner([]Producer{p}, newTestPipeline(st), st, 0, discardLogger())
	rep, err := r.Run(ctx)
	require.NoError(t, err)

	assert.Equal(t, 1, rep.Updated)
	assert.Equal(t, 1, rep.Labeled)

	ev, err := st.GetEvent(ctx, "ev-1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusSoldOut, ev.Status)
	assert.Equal(t, []string{"club"}, ev.Tags)
	assert.Equal(t, "Club", ev.Category)
}

func TestRunner_FailingProducerDoesNotSinkThePass(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemStore()

	bad := &fakeProducer{venue: "broken", discoverErr: errors.New("timeout")}
	good := &fakeProducer{venue: "paradiso", listings: []models.Observation{fullObs("ev-1", "paradiso")}}

	r := NewRunner([]Producer{bad, good}, newTestPipeline(st), st, 2, discardLogger())
	rep, err := r.Run(ctx)
	require.NoError(t, err)

	assert.Equal(t, 1, rep.Failed)
	assert.Equal(t, 1, rep.Inserted)
}

func TestRunner_FailingObservationIsCountedAndSkipped(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemStore()

	// Inspect fails for every listing; both count as failed, nothing stored.
	p := &fakeProducer{
		venue:      "paradiso",
		listings:   []models.Observation{fullObs("ev-1", "paradiso"), fullObs("ev-2", "paradiso")},
		inspectErr: errors.New("detail page 500"),
	}
	r := NewRunner([]Producer{p}, newTestPipeline(st), st, 0, discardLogger())
	rep, err := r.Run(ctx)
	require.NoError(t, err)

	assert.Equal(t, 2, rep.Failed)
	events, err := st.ListEvents(ctx, nil)
	require.NoError(t, err)
	assert.Empty(t, events)
}

func TestRunner_RecordsLastRunWatermark(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemStore()

	r := NewRunner(nil, newTestPipeline(st), st, 0, discardLogger())
	fixed := time.Date(2026, 9, 1, 6, 0, 0, 0, time.UTC)
	r.now = func() time.Time { return fixed }

	_, err := r.Run(ctx)
	require.NoError(t, err)

	mark, err := st.Watermark(ctx, lastRunConsumer)
	require.NoError(t, err)
	assert.True(t, mark.Equal(fixed))
}

func TestRunner_CancelledContext(t *testing.T) {
	st := store.NewMemStore()
	p := &fakeProducer{venue: "paradiso", listings: []models.Observation{fullObs("ev-1", "paradiso")}}
	r := NewRunner([]Producer{p}, newTestPipeline(st), st, 0, discardLogger())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := r.Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}
