package crawl

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/concertron/concertron/internal/models"
)

// JSONLProducer replays an observation stream from a JSON-lines file, one
// observation per line. Out-of-process extractors dump their results in this
// format; the observations are already deep-fetched, so Inspect is identity.
type JSONLProducer struct {
	venue string
	path  string
}

// NewJSONLProducer creates a producer reading from path under the given venue id.
func NewJSONLProducer(venue, path string) *JSONLProducer {
	return &JSONLProducer{venue: venue, path: path}
}

// Venue returns the producer's venue id.
func (p *JSONLProducer) Venue() string { return p.venue }

// Discover parses every line of the stream into an observation.
func (p *JSONLProducer) Discover(_ context.Context) ([]models.Observation, error) {
	f, err := os.Open(p.path)
	if err != nil {
		return nil, fmt.Errorf("opening observation stream: %w", err)
	}
	defer f.Close()

	var out []models.Observation
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
	line := 0
	for scanner.Scan() {
		line++
		raw := scanner.Bytes()
		if len(raw) == 0 {
			continue
		}
		var obs models.Observation
		if err := json.Unmarshal(raw, &obs); err != nil {
			return nil, fmt.Errorf("%s line %d: %w", p.path, line, err)
		}
		if obs.ID == "" {
			return nil, fmt.Errorf("%s line %d: observation has no id", p.path, line)
		}
		if obs.VenueID == "" {
			obs.VenueID = p.venue
		}
		if obs.Kind == "" {
			obs.Kind = models.KindRefresh
		}
		out = append(out, obs)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading observation stream: %w", err)
	}
	return out, nil
}

// Inspect returns the observation unchanged; the stream carries full snapshots.
func (p *JSONLProducer) Inspect(_ context.Context, obs models.Observation) (models.Observation, error) {
	return obs, nil
}
