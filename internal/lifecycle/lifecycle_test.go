package lifecycle

import (
	"context"
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

func TestRun_ExpiresPastEvents(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemStore()
	now := time.Date(2026, 9, 1, 15, 30, 0, 0, time.UTC)

	require.NoError(t, st.InsertEvent(ctx, models.Event{
		ID: "yesterday", Title: "x", Date: now.AddDate(0, 0, -1),
	}))
	require.NoError(t, st.InsertEvent(ctx, models.Event{
		ID: "this-morning", Title: "y", Date: now.Add(-6 * time.Hour),
	}))
	require.NoError(t, st.InsertEvent(ctx, models.Event{
		ID: "next-week", Title: "z", Date: now.AddDate(0, 0, 7),
	}))

	m := NewManager(st, discardLogger())
	m.now = func() time.Time { return now }

	report, err := m.Run(ctx, false)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Expired)

	_, err = st.GetEvent(ctx, "yesterday")
	assert.ErrorIs(t, err, store.ErrNotFound)
	_, err = st.GetEvent(ctx, "this-morning")
	assert.NoError(t, err, "events earlier today are kept until midnight")
	_, err = st.GetEvent(ctx, "next-week")
	assert.NoError(t, err)
}

func TestRun_DryRunCountsWithoutDeleting(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemStore()
	now := time.Date(2026, 9, 1, 15, 30, 0, 0, time.UTC)

	require.NoError(t, st.InsertEvent(ctx, models.Event{
		ID: "yesterday", Title: "x", Date: now.AddDate(0, 0, -1),
	}))

	m := NewManager(st, discardLogger())
	m.now = func() time.Time { return now }

	report, err := m.Run(ctx, true)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Expired)

	_, err = st.GetEvent(ctx, "yesterday")
	assert.NoError(t, err, "dry run must not delete")
}
