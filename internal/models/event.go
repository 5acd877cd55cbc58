package models

import (
	"time"
)

// EventStatus describes the ticket sale state of an event.
type EventStatus string

const (
	StatusSaleLive    EventStatus = "SALE_LIVE"
	StatusSaleNotLive EventStatus = "SALE_NOT_LIVE"
	StatusFewTickets  EventStatus = "FEW_TICKETS"
	StatusSoldOut     EventStatus = "SOLD_OUT"
	StatusCancelled   EventStatus = "CANCELLED"
	StatusFree        EventStatus = "FREE"
	StatusUnknown     EventStatus = "UNKNOWN"
)

// ValidEventStatuses is the set of all recognized ticket statuses.
var ValidEventStatuses = []EventStatus{
	StatusSaleLive,
	StatusSaleNotLive,
	StatusFewTickets,
	StatusSoldOut,
	StatusCancelled,
	StatusFree,
	StatusUnknown,
}

// IsValid returns true if the status is recognized.
func (s EventStatus) IsValid() bool {
	for _, v := range ValidEventStatuses {
		if s == v {
			return true
		}
	}
	return false
}

// ChangeNew is the sentinel value stored in PendingChanges when an event
// was freshly inserted rather than updated field by field.
const ChangeNew = "*new*"

// Event is the canonical stored record for one tracked occurrence.
// IDs are producer-assigned (venue id + URL slug) and stable across
// re-observations of the same listing.
type Event struct {
	ID       string      `json:"id"`
	Title    string      `json:"title"`
	Subtitle string      `json:"subtitle,omitempty"`
	Support  []string    `json:"support,omitempty"`
	Lineup   []string    `json:"lineup,omitempty"`
	Date     time.Time   `json:"date"`
	Location string      `json:"location,omitempty"`
	Status   EventStatus `json:"status"`
	URL      string      `json:"url"`
	VenueID  string      `json:"venue_id"`
	Category string      `json:"category,omitempty"`
	Tags     []string    `json:"tags,omitempty"`
	ImageURL string      `json:"image_url,omitempty"`

	// LastCheck advances on every observation, successful or not.
	// LastModified advances only when a tracked field actually changed,
	// so LastModified <= LastCheck always holds.
	LastCheck    time.Time `json:"last_check"`
	LastModified time.Time `json:"last_modified"`

	// PendingChanges lists the field names touched by the most recent
	// merge (or ChangeNew for an insert). Consumed by the change feed to
	// build "Update: ..." summaries; cleared by the next no-op merge.
	PendingChanges []string `json:"pending_changes,omitempty"`
}

// HasTag reports whether the event's label set already contains tag.
func (e *Event) HasTag(tag string) bool {
	for _, t := range e.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// Clone returns a deep copy of the event so callers can mutate it freely.
func (e Event) Clone() Event {
	out := e
	out.Support = append([]string(nil), e.Support...)
	out.Lineup = append([]string(nil), e.Lineup...)
	out.Tags = append([]string(nil), e.Tags...)
	out.PendingChanges = append([]string(nil), e.PendingChanges...)
	return out
}

// StoreStats holds summary statistics about the event collection.
type StoreStats struct {
	TotalEvents      int64            `json:"total_events"`
	TotalSubscribers int64            `json:"total_subscribers"`
	ByCategory       map[string]int64 `json:"by_category"`
	ByStatus         map[string]int64 `json:"by_status"`
	ByVenue          map[string]int64 `json:"by_venue"`
}
