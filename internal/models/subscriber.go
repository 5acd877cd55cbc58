package models

import (
	"time"
)

// Subscriber is one downstream recipient's interest registry entry.
// An event is interesting when its lineup intersects Artists, its tag set
// intersects Tags, or its id appears in Events.
type Subscriber struct {
	ID      string    `json:"id"`
	Created time.Time `json:"created"`
	Artists []string  `json:"artists,omitempty"`
	Tags    []string  `json:"tags,omitempty"`
	Events  []string  `json:"events,omitempty"`

	// NotifyAll subscribers receive every change regardless of interest.
	NotifyAll bool `json:"notify_all,omitempty"`
}

// Clone returns a deep copy of the subscriber.
func (s Subscriber) Clone() Subscriber {
	out := s
	out.Artists = append([]string(nil), s.Artists...)
	out.Tags = append([]string(nil), s.Tags...)
	out.Events = append([]string(nil), s.Events...)
	return out
}
