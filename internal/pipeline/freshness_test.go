package pipeline

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/concertron/concertron/internal/models"
	"github.com/concertron/concertron/internal/store"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestClassify_UnknownIDIsNew(t *testing.T) {
	cls := NewFreshnessClassifier(store.NewMemStore(), 0, discardLogger())

	verdict, err := cls.Classify(context.Background(), "never-seen")
	require.NoError(t, err)
	assert.Equal(t, VerdictNew, verdict)
}

func TestClassify_RecentCheckIsFresh(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemStore()
	now := time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, st.InsertEvent(ctx, models.Event{
		ID:        "ev-1",
		Title:     "Act",
		Date:      now.AddDate(0, 1, 0),
		LastCheck: now.Add(-24 * time.Hour),
	}))

	cls := NewFreshnessClassifier(st, 72*time.Hour, discardLogger())
	cls.now = func() time.Time { return now }

	verdict, err := cls.Classify(ctx, "ev-1")
	require.NoError(t, err)
	assert.Equal(t, VerdictFresh, verdict)
}

func TestClassify_OldCheckIsStale(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemStore()
	now := time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, st.InsertEvent(ctx, models.Event{
		ID:        "ev-1",
		Title:     "Act",
		Date:      now.AddDate(0, 1, 0),
		LastCheck: now.Add(-73 * time.Hour),
	}))

	cls := NewFreshnessClassifier(st, 72*time.Hour, discardLogger())
	cls.now = func() time.Time { return now }

	verdict, err := cls.Classify(ctx, "ev-1")
	require.NoError(t, err)
	assert.Equal(t, VerdictStale, verdict)
}

func TestClassify_CheckAtWindowBoundaryIsFresh(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemStore()
	now := time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, st.InsertEvent(ctx, models.Event{
		ID:        "ev-1",
		Title:     "Act",
		Date:      now.AddDate(0, 1, 0),
		LastCheck: now.Add(-72 * time.Hour),
	}))

	cls := NewFreshnessClassifier(st, 72*time.Hour, discardLogger())
	cls.now = func() time.Time { return now }

	verdict, err := cls.Classify(ctx, "ev-1")
	require.NoError(t, err)
	assert.Equal(t, VerdictFresh, verdict, "staleness requires strictly exceeding the window")
}

// failingStore returns an injected error from reads.
type failingStore struct {
	store.Store
	err error
}

func (f *failingStore) GetEvent(context.Context, string) (*models.Event, error) {
	return nil, f.err
}

func TestClassify_StoreErrorIsSurfaced(t *testing.T) {
	boom := errors.New("connection reset")
	cls := NewFreshnessClassifier(&failingStore{err: boom}, 0, discardLogger())

	verdict, err := cls.Classify(context.Background(), "ev-1")
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.NotEqual(t, VerdictNew, verdict, "a transient read failure must never look like a new event")
}
