package store

import (
	"context"
	"errors"
	"time"

	"github.com/concertron/concertron/internal/models"
)

// ErrNotFound is returned when the requested event or subscriber does not exist.
var ErrNotFound = errors.New("not found")

// ErrDuplicateID is returned by InsertEvent when an event with the same id
// already exists. Concurrent crawls of the same listing race benignly on
// insert; callers treat this as success.
var ErrDuplicateID = errors.New("duplicate event id")

// Field names accepted by UpdateEventFields. Partial updates are built from
// this allowlist only; unknown field names are rejected.
const (
	FieldTitle          = "title"
	FieldSubtitle       = "subtitle"
	FieldSupport        = "support"
	FieldLineup         = "lineup"
	FieldDate           = "date"
	FieldLocation       = "location"
	FieldStatus         = "status"
	FieldURL            = "url"
	FieldCategory       = "category"
	FieldTags           = "tags"
	FieldImageURL       = "image_url"
	FieldLastCheck      = "last_check"
	FieldLastModified   = "last_modified"
	FieldPendingChanges = "pending_changes"
)

// EventFilter narrows ListEvents results. Zero values mean "no filter".
type EventFilter struct {
	Category string
	Status   models.EventStatus
	VenueID  string
	After    time.Time // only events scheduled after this instant
}

// Store defines the persistence contract for events, consumer watermarks and
// the subscriber interest registry. Implementations guarantee that each write
// method is a single atomic operation on one record; that is the only
// synchronization primitive the pipeline relies on.
type Store interface {
	// GetEvent retrieves a single event by id.
	GetEvent(ctx context.Context, id string) (*models.Event, error)

	// InsertEvent stores a new event, failing with ErrDuplicateID if the id
	// is already taken.
	InsertEvent(ctx context.Context, ev models.Event) error

	// UpdateEventFields applies a partial update atomically. Only field
	// names from the allowlist above are accepted. Returns ErrNotFound if
	// the event vanished.
	UpdateEventFields(ctx context.Context, id string, fields map[string]any) error

	// ModifiedSince returns events with last_modified strictly after the
	// given instant, ordered by event date ascending.
	ModifiedSince(ctx context.Context, since time.Time) ([]models.Event, error)

	// ListEvents returns events matching the filter, ordered by event date
	// ascending.
	ListEvents(ctx context.Context, f *EventFilter) ([]models.Event, error)

	// DeleteEventsBefore removes events scheduled before the cutoff and
	// returns how many were deleted.
	DeleteEventsBefore(ctx context.Context, cutoff time.Time) (int, error)

	// Watermark returns the consumer's delivery watermark, or the zero time
	// if the consumer has never advanced one.
	Watermark(ctx context.Context, consumer string) (time.Time, error)

	// AdvanceWatermark moves the consumer's watermark forward. Marks that do
	// not advance the stored value are ignored; watermarks never regress.
	AdvanceWatermark(ctx context.Context, consumer string, mark time.Time) error

	// GetSubscriber retrieves a subscriber by id.
	GetSubscriber(ctx context.Context, id string) (*models.Subscriber, error)

	// PutSubscriber inserts or replaces a subscriber record.
	PutSubscriber(ctx context.Context, sub models.Subscriber) error

	// AddInterests extends a subscriber's followed artists, tags and event
	// ids, deduplicating against what is already followed.
	AddInterests(ctx context.Context, id string, artists, tags, events []string) error

	// ListSubscribers returns the whole interest registry.
	ListSubscribers(ctx context.Context) ([]models.Subscriber, error)

	// Stats returns collection statistics.
	Stats(ctx context.Context) (*models.StoreStats, error)

	// Close cleans up resources.
	Close() error
}

// ValidField reports whether name is an allowlisted event field.
func ValidField(name string) bool {
	switch name {
	case FieldTitle, FieldSubtitle, FieldSupport, FieldLineup, FieldDate,
		FieldLocation, FieldStatus, FieldURL, FieldCategory, FieldTags,
		FieldImageURL, FieldLastCheck, FieldLastModified, FieldPendingChanges:
		return true
	}
	return false
}
