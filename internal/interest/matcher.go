// Package interest matches changed events against subscriber interest sets.
package interest

import (
	"github.com/concertron/concertron/internal/models"
)

// Match returns the subscribers interested in the event: everyone whose
// followed artists intersect the lineup, whose followed labels intersect the
// tag set, or who follows the event id itself. An event with no lineup or
// tags simply matches nobody through those criteria.
func Match(ev *models.Event, subscribers []models.Subscriber) []models.Subscriber {
	var out []models.Subscriber
	for i := range subscribers {
		if Interested(ev, &subscribers[i]) {
			out = append(out, subscribers[i])
		}
	}
	return out
}

// Interested reports whether one subscriber's interest intersects the event.
func Interested(ev *models.Event, sub *models.Subscriber) bool {
	if sub.NotifyAll {
		return true
	}
	if contains(sub.Events, ev.ID) {
		return true
	}
	if intersects(sub.Artists, ev.Lineup) {
		return true
	}
	return intersects(sub.Tags, ev.Tags)
}

func contains(set []string, v string) bool {
	for _, s := range set {
		if s == v {
			return true
		}
	}
	return false
}

func intersects(a, b []string) bool {
	if len(a) == 0 || len(b) == 0 {
		return false
	}
	seen := make(map[string]bool, len(a))
	for _, v := range a {
		seen[v] = true
	}
	for _, v := range b {
		if seen[v] {
			return true
		}
	}
	return false
}
