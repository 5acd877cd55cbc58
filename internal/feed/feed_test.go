package feed

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

func seed(t *testing.T, st store.Store, id string, date, modified time.Time) {
	t.Helper()
	require.NoError(t, st.InsertEvent(context.Background(), models.Event{
		ID:           id,
		Title:        "Act " + id,
		Date:         date,
		LastCheck:    modified,
		LastModified: modified,
	}))
}

func TestFeed_DeliversExactlyTheChanges(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemStore()
	f := New(st, discardLogger())
	base := time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)
	date := time.Date(2026, 11, 1, 20, 0, 0, 0, time.UTC)

	seed(t, st, "ev-a", date, base.Add(10*time.Minute))
	seed(t, st, "ev-b", date.AddDate(0, 0, 1), base.Add(20*time.Minute))

	// First drain sees both events.
	events, err := f.Changes(ctx, "discord")
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, "ev-a", events[0].ID)
	assert.Equal(t, "ev-b", events[1].ID)

	// Advance past everything; the feed runs dry.
	require.NoError(t, f.Advance(ctx, "discord", HighWater(events)))
	events, err = f.Changes(ctx, "discord")
	require.NoError(t, err)
	assert.Empty(t, events)

	// One event changes again; only it reappears.
	require.NoError(t, st.UpdateEventFields(ctx, "ev-a", map[string]any{
		store.FieldLastModified: base.Add(30 * time.Minute),
	}))
	events, err = f.Changes(ctx, "discord")
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "ev-a", events[0].ID)
}

func TestFeed_RedeliversUntilAdvanced(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemStore()
	f := New(st, discardLogger())
	base := time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)

	seed(t, st, "ev-a", base.AddDate(0, 1, 0), base.Add(time.Minute))

	first, err := f.Changes(ctx, "discord")
	require.NoError(t, err)
	second, err := f.Changes(ctx, "discord")
	require.NoError(t, err)
	assert.Equal(t, first, second, "a crashed consumer re-reads the same batch")
}

func TestFeed_ConsumersAreIndependent(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemStore()
	f := New(st, discardLogger())
	base := time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)

	seed(t, st, "ev-a", base.AddDate(0, 1, 0), base.Add(time.Minute))

	events, err := f.Changes(ctx, "discord")
	require.NoError(t, err)
	require.NoError(t, f.Advance(ctx, "discord", HighWater(events)))

	others, err := f.Changes(ctx, "digest")
	require.NoError(t, err)
	assert.Len(t, others, 1, "one consumer advancing does not drain another")
}

func TestFeed_AdvanceZeroMarkIsNoOp(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemStore()
	f := New(st, discardLogger())

	require.NoError(t, f.Advance(ctx, "discord", time.Time{}))

	mark, err := st.Watermark(ctx, "discord")
	require.NoError(t, err)
	assert.True(t, mark.IsZero())
}

func TestHighWater(t *testing.T) {
	base := time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)
	events := []models.Event{
		{ID: "a", LastModified: base.Add(10 * time.Minute)},
		{ID: "b", LastModified: base.Add(30 * time.Minute)},
		{ID: "c", LastModified: base.Add(20 * time.Minute)},
	}
	assert.True(t, HighWater(events).Equal(base.Add(30*time.Minute)))
	assert.True(t, HighWater(nil).IsZero())
}
