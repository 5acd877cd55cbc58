// Package lifecycle handles retention housekeeping over the event store.
package lifecycle

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/concertron/concertron/internal/metrics"
	"github.com/concertron/concertron/internal/store"
)

// Report summarizes the results of a housekeeping run.
type Report struct {
	Expired int `json:"expired"`
}

// Manager removes events whose date has passed. Retention is deliberately
// outside the merge core: producers never retract listings, so expiry is the
// only way records leave the store.
type Manager struct {
	store  store.Store
	logger *slog.Logger
	now    func() time.Time
}

// NewManager creates a housekeeping manager.
func NewManager(st store.Store, logger *slog.Logger) *Manager {
	return &Manager{
		store:  st,
		logger: logger,
		now:    time.Now,
	}
}

// Run deletes events scheduled before the start of today. With dryRun set it
// only counts what would go.
func (m *Manager) Run(ctx context.Context, dryRun bool) (*Report, error) {
	cutoff := startOfDay(m.now())

	if dryRun {
		events, err := m.store.ListEvents(ctx, nil)
		if err != nil {
			return nil, fmt.Errorf("listing events: %w", err)
		}
		report := &Report{}
		for i := range events {
			if events[i].Date.Before(cutoff) {
				report.Expired++
			}
		}
		return report, nil
	}

	deleted, err := m.store.DeleteEventsBefore(ctx, cutoff)
	if err != nil {
		return nil, fmt.Errorf("deleting expired events: %w", err)
	}
	for i := 0; i < deleted; i++ {
		metrics.Inc(metrics.CleanupDeleted)
	}
	m.logger.Info("expired past events", "deleted", deleted, "cutoff", cutoff)
	return &Report{Expired: deleted}, nil
}

func startOfDay(t time.Time) time.Time {
	year, month, day := t.Date()
	return time.Date(year, month, day, 0, 0, 0, 0, t.Location())
}
