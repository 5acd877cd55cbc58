// Package pipeline implements the observation-processing core: freshness
// classification, diff-based merge and dispatch of producer observations.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/concertron/concertron/internal/labels"
	"github.com/concertron/concertron/internal/models"
	"github.com/concertron/concertron/internal/store"
)

// Outcome describes what processing one observation did to the store.
type Outcome string

const (
	OutcomeInserted  Outcome = "inserted"
	OutcomeDuplicate Outcome = "duplicate" // lost a benign insert race
	OutcomeUpdated   Outcome = "updated"
	OutcomeUnchanged Outcome = "unchanged"
	OutcomeLabeled   Outcome = "labeled"
	OutcomeVanished  Outcome = "vanished" // event disappeared between read and write
)

// Pipeline routes observations to the merge engine or the label classifier
// based on their kind tag.
type Pipeline struct {
	Classifier *FreshnessClassifier
	Merger     *Merger
	Labels     *labels.Classifier
	logger     *slog.Logger
}

// New assembles a pipeline from its three stages.
func New(cls *FreshnessClassifier, merger *Merger, lab *labels.Classifier, logger *slog.Logger) *Pipeline {
	return &Pipeline{
		Classifier: cls,
		Merger:     merger,
		Labels:     lab,
		logger:     logger,
	}
}

// Dispatch processes one observation. Benign conditions (insert races, events
// that vanished mid-cycle) come back as outcomes, not errors, so batch
// callers only see errors worth surfacing.
func (p *Pipeline) Dispatch(ctx context.Context, obs models.Observation) (Outcome, error) {
	switch obs.Kind {
	case models.KindNew:
		err := p.Merger.Insert(ctx, obs)
		if errors.Is(err, store.ErrDuplicateID) {
			p.logger.Debug("lost insert race", "id", obs.ID)
			return OutcomeDuplicate, nil
		}
		if err != nil {
			return "", err
		}
		return OutcomeInserted, nil

	case models.KindRefresh:
		changed, err := p.Merger.Update(ctx, obs)
		if errors.Is(err, store.ErrNotFound) {
			p.logger.Warn("event vanished before update", "id", obs.ID)
			return OutcomeVanished, nil
		}
		if err != nil {
			return "", err
		}
		if len(changed) == 0 {
			return OutcomeUnchanged, nil
		}
		return OutcomeUpdated, nil

	case models.KindLabel:
		applied, err := p.Labels.Apply(ctx, obs.ID, obs.Label)
		if errors.Is(err, store.ErrNotFound) {
			p.logger.Warn("event vanished before labeling", "id", obs.ID)
			return OutcomeVanished, nil
		}
		if err != nil {
			return "", err
		}
		if !applied {
			return OutcomeUnchanged, nil
		}
		return OutcomeLabeled, nil

	default:
		return "", fmt.Errorf("unknown observation kind %q for %s", obs.Kind, obs.ID)
	}
}
