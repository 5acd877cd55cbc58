package models

import (
	"time"
)

// ObservationKind discriminates what a producer is reporting. The pipeline
// dispatches on this tag instead of inspecting which fields happen to be set.
type ObservationKind string

const (
	// KindNew is a full snapshot of a listing the producer believes is new.
	// New observations must carry every field (the producer re-fetches the
	// detail view before emitting one).
	KindNew ObservationKind = "new"

	// KindRefresh is a partial snapshot: only fields the producer re-read
	// are set, absent fields mean "no opinion".
	KindRefresh ObservationKind = "refresh"

	// KindLabel carries a single free-text label for an existing event.
	KindLabel ObservationKind = "label"
)

// Observation is one producer's snapshot of an event at a point in time.
// Pointer fields distinguish "not observed" (nil) from "observed as empty";
// a nil field never overwrites stored data.
type Observation struct {
	Kind ObservationKind `json:"kind"`
	ID   string          `json:"id"`

	Title    *string      `json:"title,omitempty"`
	Subtitle *string      `json:"subtitle,omitempty"`
	Support  []string     `json:"support,omitempty"`
	Lineup   []string     `json:"lineup,omitempty"`
	Date     *time.Time   `json:"date,omitempty"`
	Location *string      `json:"location,omitempty"`
	Status   *EventStatus `json:"status,omitempty"`
	URL      *string      `json:"url,omitempty"`
	VenueID  string       `json:"venue_id,omitempty"`
	ImageURL *string      `json:"image_url,omitempty"`
	Tags     []string     `json:"tags,omitempty"`

	// CategoryHint seeds the category on insert only. Once stored, the
	// category is owned by the label classifier and never merged.
	CategoryHint string `json:"category_hint,omitempty"`

	// Label is the single label carried by a KindLabel observation.
	Label string `json:"label,omitempty"`
}

// String helpers for building observations in producers and tests.

// StringPtr returns a pointer to s.
func StringPtr(s string) *string { return &s }

// TimePtr returns a pointer to t.
func TimePtr(t time.Time) *time.Time { return &t }

// StatusPtr returns a pointer to st.
func StatusPtr(st EventStatus) *EventStatus { return &st }
