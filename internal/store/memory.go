package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/concertron/concertron/internal/models"
)

// MemStore is an in-memory implementation of Store. It backs the test suite
// and serves as a throwaway backend for local runs.
type MemStore struct {
	mu          sync.RWMutex
	events      map[string]*models.Event
	watermarks  map[string]time.Time
	subscribers map[string]*models.Subscriber
}

// NewMemStore creates a new empty in-memory store.
func NewMemStore() *MemStore {
	return &MemStore{
		events:      make(map[string]*models.Event),
		watermarks:  make(map[string]time.Time),
		subscribers: make(map[string]*models.Subscriber),
	}
}

// GetEvent retrieves a single event by id.
func (m *MemStore) GetEvent(_ context.Context, id string) (*models.Event, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ev, ok := m.events[id]
	if !ok {
		return nil, fmt.Errorf("%w: event %s", ErrNotFound, id)
	}
	out := ev.Clone()
	return &out, nil
}

// InsertEvent stores a new event, failing with ErrDuplicateID on collision.
func (m *MemStore) InsertEvent(_ context.Context, ev models.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.events[ev.ID]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateID, ev.ID)
	}
	stored := ev.Clone()
	m.events[ev.ID] = &stored
	return nil
}

// UpdateEventFields applies a partial update under the write lock, which is
// the in-memory stand-in for a single-document atomic update.
func (m *MemStore) UpdateEventFields(_ context.Context, id string, fields map[string]any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	ev, ok := m.events[id]
	if !ok {
		return fmt.Errorf("%w: event %s", ErrNotFound, id)
	}
	// Validate every name before touching the record so a bad field cannot
	// leave a half-applied update behind.
	for name := range fields {
		if !ValidField(name) {
			return fmt.Errorf("unknown event field %q", name)
		}
	}
	for name, value := range fields {
		applyField(ev, name, value)
	}
	return nil
}

// ModifiedSince returns events with last_modified after the given instant,
// ordered by event date ascending.
func (m *MemStore) ModifiedSince(_ context.Context, since time.Time) ([]models.Event, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []models.Event
	for _, ev := range m.events {
		if ev.LastModified.After(since) {
			out = append(out, ev.Clone())
		}
	}
	sortByDate(out)
	return out, nil
}

// ListEvents returns events matching the filter, ordered by event date ascending.
func (m *MemStore) ListEvents(_ context.Context, f *EventFilter) ([]models.Event, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []models.Event
	for _, ev := range m.events {
		if !matchesFilter(ev, f) {
			continue
		}
		out = append(out, ev.Clone())
	}
	sortByDate(out)
	return out, nil
}

// DeleteEventsBefore removes events scheduled before the cutoff.
func (m *MemStore) DeleteEventsBefore(_ context.Context, cutoff time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	deleted := 0
	for id, ev := range m.events {
		if ev.Date.Before(cutoff) {
			delete(m.events, id)
			deleted++
		}
	}
	return deleted, nil
}

// Watermark returns the consumer's watermark, or the zero time if unset.
func (m *MemStore) Watermark(_ context.Context, consumer string) (time.Time, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.watermarks[consumer], nil
}

// AdvanceWatermark moves the consumer's watermark forward, ignoring regressions.
func (m *MemStore) AdvanceWatermark(_ context.Context, consumer string, mark time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if mark.After(m.watermarks[consumer]) {
		m.watermarks[consumer] = mark
	}
	return nil
}

// GetSubscriber retrieves a subscriber by id.
func (m *MemStore) GetSubscriber(_ context.Context, id string) (*models.Subscriber, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	sub, ok := m.subscribers[id]
	if !ok {
		return nil, fmt.Errorf("%w: subscriber %s", ErrNotFound, id)
	}
	out := sub.Clone()
	return &out, nil
}

// PutSubscriber inserts or replaces a subscriber record.
func (m *MemStore) PutSubscriber(_ context.Context, sub models.Subscriber) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored := sub.Clone()
	m.subscribers[sub.ID] = &stored
	return nil
}

// AddInterests extends a subscriber's followed sets, deduplicated.
func (m *MemStore) AddInterests(_ context.Context, id string, artists, tags, events []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	sub, ok := m.subscribers[id]
	if !ok {
		return fmt.Errorf("%w: subscriber %s", ErrNotFound, id)
	}
	sub.Artists = addToSet(sub.Artists, artists)
	sub.Tags = addToSet(sub.Tags, tags)
	sub.Events = addToSet(sub.Events, events)
	return nil
}

// ListSubscribers returns the whole interest registry.
func (m *MemStore) ListSubscribers(_ context.Context) ([]models.Subscriber, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]models.Subscriber, 0, len(m.subscribers))
	for _, sub := range m.subscribers {
		out = append(out, sub.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// Stats returns collection statistics computed from the in-memory maps.
func (m *MemStore) Stats(_ context.Context) (*models.StoreStats, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	stats := &models.StoreStats{
		TotalEvents:      int64(len(m.events)),
		TotalSubscribers: int64(len(m.subscribers)),
		ByCategory:       make(map[string]int64),
		ByStatus:         make(map[string]int64),
		ByVenue:          make(map[string]int64),
	}
	for _, ev := range m.events {
		if ev.Category != "" {
			stats.ByCategory[ev.Category]++
		}
		stats.ByStatus[string(ev.Status)]++
		stats.ByVenue[ev.VenueID]++
	}
	return stats, nil
}

// Close is a no-op for the in-memory store.
func (m *MemStore) Close() error {
	return nil
}

// --- helpers ---

// applyField assumes name passed ValidField.
func applyField(ev *models.Event, name string, value any) {
	switch name {
	case FieldTitle:
		ev.Title = value.(string)
	case FieldSubtitle:
		ev.Subtitle = value.(string)
	case FieldSupport:
		ev.Support = append([]string(nil), value.([]string)...)
	case FieldLineup:
		ev.Lineup = append([]string(nil), value.([]string)...)
	case FieldDate:
		ev.Date = value.(time.Time)
	case FieldLocation:
		ev.Location = value.(string)
	case FieldStatus:
		ev.Status = value.(models.EventStatus)
	case FieldURL:
		ev.URL = value.(string)
	case FieldCategory:
		ev.Category = value.(string)
	case FieldTags:
		ev.Tags = append([]string(nil), value.([]string)...)
	case FieldImageURL:
		ev.ImageURL = value.(string)
	case FieldLastCheck:
		ev.LastCheck = value.(time.Time)
	case FieldLastModified:
		ev.LastModified = value.(time.Time)
	case FieldPendingChanges:
		ev.PendingChanges = append([]string(nil), value.([]string)...)
	}
}

func matchesFilter(ev *models.Event, f *EventFilter) bool {
	if f == nil {
		return true
	}
	if f.Category != "" && ev.Category != f.Category {
		return false
	}
	if f.Status != "" && ev.Status != f.Status {
		return false
	}
	if f.VenueID != "" && ev.VenueID != f.VenueID {
		return false
	}
	if !f.After.IsZero() && !ev.Date.After(f.After) {
		return false
	}
	return true
}

func sortByDate(events []models.Event) {
	sort.Slice(events, func(i, j int) bool {
		if events[i].Date.Equal(events[j].Date) {
			return events[i].ID < events[j].ID
		}
		return events[i].Date.Before(events[j].Date)
	})
}

func addToSet(existing, add []string) []string {
	seen := make(map[string]bool, len(existing))
	for _, v := range existing {
		seen[v] = true
	}
	for _, v := range add {
		if v == "" || seen[v] {
			continue
		}
		existing = append(existing, v)
		seen[v] = true
	}
	return existing
}
