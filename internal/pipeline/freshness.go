package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/concertron/concertron/internal/store"
)

// Verdict is the freshness classification of an observed event id.
type Verdict string

const (
	// VerdictNew means no stored event exists for the id.
	VerdictNew Verdict = "new"
	// VerdictFresh means the stored event was checked recently enough.
	VerdictFresh Verdict = "fresh"
	// VerdictStale means the stored event is due for re-observation.
	VerdictStale Verdict = "stale"
)

// DefaultStalenessWindow is how long a stored event stays fresh after a check.
const DefaultStalenessWindow = 72 * time.Hour

// FreshnessClassifier decides whether an observed id is new, fresh or stale.
// It is a pure read against the store and never writes.
type FreshnessClassifier struct {
	store  store.Store
	window time.Duration
	logger *slog.Logger
	now    func() time.Time
}

// NewFreshnessClassifier creates a classifier with the given staleness window;
// a non-positive window falls back to the default.
func NewFreshnessClassifier(st store.Store, window time.Duration, logger *slog.Logger) *FreshnessClassifier {
	if window <= 0 {
		window = DefaultStalenessWindow
	}
	return &FreshnessClassifier{
		store:  st,
		window: window,
		logger: logger,
		now:    time.Now,
	}
}

// Classify returns the verdict for id. A store failure is surfaced to the
// caller, never treated as VerdictNew: a transient read error must not turn
// into a duplicate-insert attempt.
func (c *FreshnessClassifier) Classify(ctx context.Context, id string) (Verdict, error) {
	ev, err := c.store.GetEvent(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return VerdictNew, nil
	}
	if err != nil {
		return "", fmt.Errorf("classifying %s: %w", id, err)
	}
	if c.now().Sub(ev.LastCheck) > c.window {
		return VerdictStale, nil
	}
	return VerdictFresh, nil
}
