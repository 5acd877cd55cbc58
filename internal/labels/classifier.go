// Package labels folds free-text venue labels into an event's label set and
// derives a coarse category from an externally authored rule table.
package labels

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/concertron/concertron/internal/models"
	"github.com/concertron/concertron/internal/store"
)

// Classifier applies labels to stored events. Labels only accumulate; this
// path never retracts one.
type Classifier struct {
	store  store.Store
	rules  RuleTable
	logger *slog.Logger
	now    func() time.Time
}

// NewClassifier creates a classifier over the given rule table.
func NewClassifier(st store.Store, rules RuleTable, logger *slog.Logger) *Classifier {
	return &Classifier{
		store:  st,
		rules:  rules,
		logger: logger,
		now:    time.Now,
	}
}

// Apply folds label into the event's label set. It returns false without
// writing when the label is already present (the dominant case once an event
// is fully tagged). When the label is new it is appended, the rule table is
// consulted for a category, and last_modified advances.
func (c *Classifier) Apply(ctx context.Context, id, label string) (bool, error) {
	if label == "" {
		return false, nil
	}

	ev, err := c.store.GetEvent(ctx, id)
	if err != nil {
		return false, fmt.Errorf("applying label to %s: %w", id, err)
	}
	if ev.HasTag(label) {
		return false, nil
	}

	// A label observation is still an observation: both watermarks move in
	// the same write so last_modified never outruns last_check.
	now := c.now()
	tags := append(append([]string(nil), ev.Tags...), label)
	fields := map[string]any{
		store.FieldTags:         tags,
		store.FieldLastCheck:    now,
		store.FieldLastModified: now,
	}

	// The category is derived from the whole label set, so the rule table's
	// order decides and label arrival order does not.
	if cat, ok := c.rules.CategoryFor(tags); ok && cat != ev.Category {
		fields[store.FieldCategory] = cat
		c.logger.Debug("label reclassified event", "id", id, "label", label, "category", cat)
	}

	// Surface the label change to the feed unless the event is still an
	// unbroadcast insert, which already covers its tags.
	if !hasPending(ev.PendingChanges, models.ChangeNew) && !hasPending(ev.PendingChanges, store.FieldTags) {
		fields[store.FieldPendingChanges] = append(append([]string(nil), ev.PendingChanges...), store.FieldTags)
	}

	if err := c.store.UpdateEventFields(ctx, id, fields); err != nil {
		return false, fmt.Errorf("applying label to %s: %w", id, err)
	}
	c.logger.Debug("applied label", "id", id, "label", label)
	return true, nil
}

func hasPending(pending []string, name string) bool {
	for _, p := range pending {
		if p == name {
			return true
		}
	}
	return false
}
