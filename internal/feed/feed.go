// Package feed exposes "what changed since this consumer last looked" over
// the store's last_modified index, with one watermark per named consumer.
package feed

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/concertron/concertron/internal/models"
	"github.com/concertron/concertron/internal/store"
)

// Feed is a restartable change feed. It never advances a watermark on its
// own: a consumer that crashes mid-batch re-reads the same batch on restart,
// so consumers must tolerate redelivery.
type Feed struct {
	store  store.Store
	logger *slog.Logger
}

// New creates a change feed over the given store.
func New(st store.Store, logger *slog.Logger) *Feed {
	return &Feed{store: st, logger: logger}
}

// Changes returns every event with last_modified after the consumer's
// watermark, ordered by event date ascending. A consumer that has never
// advanced a watermark gets everything.
func (f *Feed) Changes(ctx context.Context, consumer string) ([]models.Event, error) {
	mark, err := f.store.Watermark(ctx, consumer)
	if err != nil {
		return nil, fmt.Errorf("reading watermark for %s: %w", consumer, err)
	}
	events, err := f.store.ModifiedSince(ctx, mark)
	if err != nil {
		return nil, fmt.Errorf("reading changes for %s: %w", consumer, err)
	}
	f.logger.Debug("drained change feed", "consumer", consumer, "watermark", mark, "events", len(events))
	return events, nil
}

// Advance records that the consumer has processed everything modified up to
// and including mark. Marks that do not move the watermark forward are
// ignored by the store, so the watermark is monotonic.
func (f *Feed) Advance(ctx context.Context, consumer string, mark time.Time) error {
	if mark.IsZero() {
		return nil
	}
	if err := f.store.AdvanceWatermark(ctx, consumer, mark); err != nil {
		return fmt.Errorf("advancing watermark for %s: %w", consumer, err)
	}
	return nil
}

// HighWater returns the largest last_modified in the batch, which is the
// mark a consumer should advance to after processing it successfully.
func HighWater(events []models.Event) time.Time {
	var mark time.Time
	for i := range events {
		if events[i].LastModified.After(mark) {
			mark = events[i].LastModified
		}
	}
	return mark
}
