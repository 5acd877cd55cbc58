package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sort"
	"time"

	"github.com/concertron/concertron/internal/models"
	"github.com/concertron/concertron/internal/store"
)

// Merger applies observations to stored events, recording exactly which
// fields changed. Each entry point issues at most one write per call.
type Merger struct {
	store  store.Store
	logger *slog.Logger
	now    func() time.Time
}

// NewMerger creates a merge engine over the given store.
func NewMerger(st store.Store, logger *slog.Logger) *Merger {
	return &Merger{
		store:  st,
		logger: logger,
		now:    time.Now,
	}
}

// Insert stores a brand-new event from a full observation. The producer
// contract guarantees new-event observations were deep-fetched and carry
// every field. A store.ErrDuplicateID is returned as-is; callers treat it as
// a benign race with a concurrent crawl.
func (m *Merger) Insert(ctx context.Context, obs models.Observation) error {
	if obs.Kind != models.KindNew {
		return fmt.Errorf("insert requires a %s observation, got %s", models.KindNew, obs.Kind)
	}
	if obs.ID == "" || obs.Title == nil || obs.Date == nil {
		return fmt.Errorf("insert %s: observation is missing required fields", obs.ID)
	}

	now := m.now()
	ev := models.Event{
		ID:             obs.ID,
		Title:          *obs.Title,
		Date:           *obs.Date,
		VenueID:        obs.VenueID,
		Category:       obs.CategoryHint,
		Support:        append([]string(nil), obs.Support...),
		Lineup:         append([]string(nil), obs.Lineup...),
		Tags:           append([]string(nil), obs.Tags...),
		Status:         models.StatusUnknown,
		LastCheck:      now,
		LastModified:   now,
		PendingChanges: []string{models.ChangeNew},
	}
	if obs.Subtitle != nil {
		ev.Subtitle = *obs.Subtitle
	}
	if obs.Location != nil {
		ev.Location = *obs.Location
	}
	if obs.Status != nil {
		ev.Status = *obs.Status
	}
	if obs.URL != nil {
		ev.URL = *obs.URL
	}
	if obs.ImageURL != nil {
		ev.ImageURL = *obs.ImageURL
	}

	if err := m.store.InsertEvent(ctx, ev); err != nil {
		return err
	}
	m.logger.Info("inserted event", "id", ev.ID, "title", ev.Title, "venue", ev.VenueID)
	return nil
}

// Update diffs the observation against the stored event and writes the
// changed fields plus both watermarks in one partial update. When nothing
// changed, only last_check advances and the pending change list is cleared.
// The returned slice names the changed fields, nil for a no-op.
func (m *Merger) Update(ctx context.Context, obs models.Observation) ([]string, error) {
	stored, err := m.store.GetEvent(ctx, obs.ID)
	if err != nil {
		return nil, fmt.Errorf("updating %s: %w", obs.ID, err)
	}

	changed := diff(stored, obs)
	now := m.now()

	if len(changed) == 0 {
		fields := map[string]any{
			store.FieldLastCheck:      now,
			store.FieldPendingChanges: []string{},
		}
		if err := m.store.UpdateEventFields(ctx, obs.ID, fields); err != nil {
			return nil, fmt.Errorf("updating %s: %w", obs.ID, err)
		}
		return nil, nil
	}

	names := make([]string, 0, len(changed))
	for name := range changed {
		names = append(names, name)
	}
	sort.Strings(names)

	changed[store.FieldLastCheck] = now
	changed[store.FieldLastModified] = now
	changed[store.FieldPendingChanges] = names

	if err := m.store.UpdateEventFields(ctx, obs.ID, changed); err != nil {
		return nil, fmt.Errorf("updating %s: %w", obs.ID, err)
	}
	m.logger.Info("updated event", "id", obs.ID, "changed", names)
	return names, nil
}

// Touch bumps last_check on a fresh event that was re-listed in the current
// crawl pass. It never moves last_modified.
func (m *Merger) Touch(ctx context.Context, id string) error {
	if err := m.store.UpdateEventFields(ctx, id, map[string]any{
		store.FieldLastCheck: m.now(),
	}); err != nil {
		return fmt.Errorf("touching %s: %w", id, err)
	}
	return nil
}

// diff computes the partial update an observation implies. Only fields the
// observation actually carries participate: a nil field is "no opinion",
// never "set to empty". List comparisons are order-sensitive. Labels are
// excluded; they flow through the label classifier, not the merge.
func diff(stored *models.Event, obs models.Observation) map[string]any {
	changed := make(map[string]any)

	if obs.Title != nil && *obs.Title != stored.Title {
		changed[store.FieldTitle] = *obs.Title
	}
	if obs.Subtitle != nil && *obs.Subtitle != stored.Subtitle {
		changed[store.FieldSubtitle] = *obs.Subtitle
	}
	if obs.Support != nil && !slices.Equal(obs.Support, stored.Support) {
		changed[store.FieldSupport] = append([]string(nil), obs.Support...)
	}
	if obs.Lineup != nil && !slices.Equal(obs.Lineup, stored.Lineup) {
		changed[store.FieldLineup] = append([]string(nil), obs.Lineup...)
	}
	if obs.Date != nil && !obs.Date.Equal(stored.Date) {
		changed[store.FieldDate] = *obs.Date
	}
	if obs.Location != nil && *obs.Location != stored.Location {
		changed[store.FieldLocation] = *obs.Location
	}
	if obs.Status != nil && *obs.Status != stored.Status {
		changed[store.FieldStatus] = *obs.Status
	}
	if obs.URL != nil && *obs.URL != stored.URL {
		changed[store.FieldURL] = *obs.URL
	}
	if obs.ImageURL != nil && *obs.ImageURL != stored.ImageURL {
		changed[store.FieldImageURL] = *obs.ImageURL
	}

	return changed
}
