package pipeline

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/concertron/concertron/internal/models"
	"github.com/concertron/concertron/internal/store"
)

func newObs(id string) models.Observation {
	date := time.Date(2026, 10, 1, 20, 0, 0, 0, time.UTC)
	return models.Observation{
		Kind:    models.KindNew,
		ID:      id,
		Title:   models.StringPtr("Headliner"),
		Date:    models.TimePtr(date),
		Status:  models.StatusPtr(models.StatusSaleLive),
		URL:     models.StringPtr("https://venue.example/ev/" + id),
		VenueID: "paradiso",
	}
}

func TestInsert_NewEvent(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemStore()
	m := NewMerger(st, discardLogger())
	now := time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return now }

	require.NoError(t, m.Insert(ctx, newObs("ev-1")))

	ev, err := st.GetEvent(ctx, "ev-1")
	require.NoError(t, err)
	assert.Equal(t, "Headliner", ev.Title)
	assert.Equal(t, models.StatusSaleLive, ev.Status)
	assert.Equal(t, []string{models.ChangeNew}, ev.PendingChanges)
	assert.True(t, ev.LastCheck.Equal(now))
	assert.True(t, ev.LastModified.Equal(now))
}

func TestInsert_DuplicatePassesThrough(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemStore()
	m := NewMerger(st, discardLogger())

	require.NoError(t, m.Insert(ctx, newObs("ev-1")))
	err := m.Insert(ctx, newObs("ev-1"))
	assert.ErrorIs(t, err, store.ErrDuplicateID)
}

func TestInsert_RejectsIncompleteObservation(t *testing.T) {
	m := NewMerger(store.NewMemStore(), discardLogger())

	obs := newObs("ev-1")
	obs.Title = nil
	assert.Error(t, m.Insert(context.Background(), obs))

	obs = newObs("ev-2")
	obs.Kind = models.KindRefresh
	assert.Error(t, m.Insert(context.Background(), obs))
}

func TestUpdate_ChangesOnlyObservedFields(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemStore()
	m := NewMerger(st, discardLogger())
	t0 := time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return t0 }

	require.NoError(t, m.Insert(ctx, newObs("ev-1")))

	// Observation carries only a status; the stored title must survive.
	t1 := t0.Add(time.Hour)
	m.now = func() time.Time { return t1 }
	changed, err := m.Update(ctx, models.Observation{
		Kind:   models.KindRefresh,
		ID:     "ev-1",
		Status: models.StatusPtr(models.StatusSoldOut),
	})
	require.NoError(t, err)
	assert.Equal(t, []string{store.FieldStatus}, changed)

	ev, err := st.GetEvent(ctx, "ev-1")
	require.NoError(t, err)
	assert.Equal(t, "Headliner", ev.Title)
	assert.Equal(t, models.StatusSoldOut, ev.Status)
	assert.Equal(t, []string{store.FieldStatus}, ev.PendingChanges)
	assert.True(t, ev.LastModified.Equal(t1))
}

func TestUpdate_IdenticalObservationIsNoOp(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemStore()
	m := NewMerger(st, discardLogger())
	t0 := time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return t0 }

	require.NoError(t, m.Insert(ctx, newObs("ev-1")))

	obs := newObs("ev-1")
	obs.Kind = models.KindRefresh

	t1 := t0.Add(time.Hour)
	m.now = func() time.Time { return t1 }
	changed, err := m.Update(ctx, obs)
	require.NoError(t, err)
	assert.Empty(t, changed)

	ev, err := st.GetEvent(ctx, "ev-1")
	require.NoError(t, err)
	assert.True(t, ev.LastCheck.Equal(t1), "last_check advances on every merge")
	assert.True(t, ev.LastModified.Equal(t0), "last_modified stays put when nothing changed")
	assert.Empty(t, ev.PendingChanges, "no-op merge clears the pending change list")
}

func TestUpdate_SecondIdenticalUpdateChangesNothing(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemStore()
	m := NewMerger(st, discardLogger())

	require.NoError(t, m.Insert(ctx, newObs("ev-1")))

	obs := models.Observation{
		Kind:     models.KindRefresh,
		ID:       "ev-1",
		Location: models.StringPtr("Grote Zaal"),
	}
	changed, err := m.Update(ctx, obs)
	require.NoError(t, err)
	assert.Equal(t, []string{store.FieldLocation}, changed)

	changed, err = m.Update(ctx, obs)
	require.NoError(t, err)
	assert.Empty(t, changed, "re-applying the same observation is a no-op")
}

func TestUpdate_NilFieldNeverClears(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemStore()
	m := NewMerger(st, discardLogger())

	obs := newObs("ev-1")
	obs.Subtitle = models.StringPtr("with guests")
	require.NoError(t, m.Insert(ctx, obs))

	// Refresh carries no subtitle field at all.
	changed, err := m.Update(ctx, models.Observation{
		Kind:  models.KindRefresh,
		ID:    "ev-1",
		Title: models.StringPtr("Headliner"),
	})
	require.NoError(t, err)
	assert.Empty(t, changed)

	ev, err := st.GetEvent(ctx, "ev-1")
	require.NoError(t, err)
	assert.Equal(t, "with guests", ev.Subtitle)
}

func TestUpdate_EmptyStringClearsWhenObserved(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemStore()
	m := NewMerger(st, discardLogger())

	obs := newObs("ev-1")
	obs.Subtitle = models.StringPtr("with guests")
	require.NoError(t, m.Insert(ctx, obs))

	changed, err := m.Update(ctx, models.Observation{
		Kind:     models.KindRefresh,
		ID:       "ev-1",
		Subtitle: models.StringPtr(""),
	})
	require.NoError(t, err)
	assert.Equal(t, []string{store.FieldSubtitle}, changed)

	ev, err := st.GetEvent(ctx, "ev-1")
	require.NoError(t, err)
	assert.Empty(t, ev.Subtitle)
}

func TestUpdate_LineupOrderMatters(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemStore()
	m := NewMerger(st, discardLogger())

	obs := newObs("ev-1")
	obs.Lineup = []string{"A", "B"}
	require.NoError(t, m.Insert(ctx, obs))

	changed, err := m.Update(ctx, models.Observation{
		Kind:   models.KindRefresh,
		ID:     "ev-1",
		Lineup: []string{"B", "A"},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{store.FieldLineup}, changed)
}

func TestUpdate_MissingEvent(t *testing.T) {
	m := NewMerger(store.NewMemStore(), discardLogger())
	_, err := m.Update(context.Background(), models.Observation{
		Kind: models.KindRefresh,
		ID:   "nope",
	})
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestTouch_MovesOnlyLastCheck(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemStore()
	m := NewMerger(st, discardLogger())
	t0 := time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return t0 }

	require.NoError(t, m.Insert(ctx, newObs("ev-1")))

	t1 := t0.Add(2 * time.Hour)
	m.now = func() time.Time { return t1 }
	require.NoError(t, m.Touch(ctx, "ev-1"))

	ev, err := st.GetEvent(ctx, "ev-1")
	require.NoError(t, err)
	assert.True(t, ev.LastCheck.Equal(t1))
	assert.True(t, ev.LastModified.Equal(t0))
	assert.False(t, ev.LastModified.After(ev.LastCheck), "last_modified never outruns last_check")
}
