// Package metrics provides application-level counters using stdlib expvar.
// Counters are exported on the /debug/vars endpoint of the default mux.
package metrics

import "expvar"

// Operation counters.
var (
	ObservationsTotal  = expvar.NewInt("concertron_observations_total")
	ObservationsFailed = expvar.NewInt("concertron_observations_failed_total")
	EventsInserted     = expvar.NewInt("concertron_events_inserted_total")
	EventsUpdated      = expvar.NewInt("concertron_events_updated_total")
	EventsTouched      = expvar.NewInt("concertron_events_touched_total")
	LabelsApplied      = expvar.NewInt("concertron_labels_applied_total")
	NotificationsSent  = expvar.NewInt("concertron_notifications_sent_total")
	CleanupDeleted     = expvar.NewInt("concertron_cleanup_deleted_total")
)

// Inc increments the given counter by 1.
func Inc(counter *expvar.Int) { counter.Add(1) }
