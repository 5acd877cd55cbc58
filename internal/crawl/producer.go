package crawl

import (
	"context"

	"github.com/concertron/concertron/internal/models"
)

// Producer is a site-specific crawler collaborator. The extraction logic that
// turns pages into observations lives behind this interface and is not part
// of the core.
type Producer interface {
	// Venue returns the producer's stable venue id (e.g. "nl_013").
	Venue() string

	// Discover performs the cheap listing pass and returns one shallow
	// refresh observation per listed event. Discover must not fetch detail
	// pages.
	Discover(ctx context.Context) ([]models.Observation, error)

	// Inspect performs the deep detail fetch for one discovered listing and
	// returns a full observation. For new events the result must carry every
	// field; the insert path relies on that.
	Inspect(ctx context.Context, obs models.Observation) (models.Observation, error)
}
