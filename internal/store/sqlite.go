package store

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/concertron/concertron/internal/models"
)

//go:embed schema.sql
var schemaSQL string

const eventColumns = `id, title, subtitle, support, lineup, date, location, status,
	url, venue_id, category, tags, image_url, last_check, last_modified, pending_changes`

// SQLiteStore implements Store on a local sqlite database using the pure-Go
// modernc driver. Every write is a single statement, so sqlite's per-statement
// atomicity gives the single-record guarantee the pipeline needs.
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewSQLiteStore opens (or creates) the database at path and bootstraps the schema.
func NewSQLiteStore(path string, logger *slog.Logger) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database %s: %w", path, err)
	}
	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}
	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	logger.Debug("opened sqlite store", "path", path)
	return &SQLiteStore{db: db, logger: logger}, nil
}

// GetEvent retrieves a single event by id.
func (s *SQLiteStore) GetEvent(ctx context.Context, id string) (*models.Event, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+eventColumns+" FROM events WHERE id = ?", id)
	ev, err := scanEvent(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: event %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("querying event %s: %w", id, err)
	}
	return ev, nil
}

// InsertEvent stores a new event, mapping the primary-key violation from a
// concurrent insert to ErrDuplicateID.
func (s *SQLiteStore) InsertEvent(ctx context.Context, ev models.Event) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO events (`+eventColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		ev.ID, ev.Title, ev.Subtitle, encodeList(ev.Support), encodeList(ev.Lineup),
		encodeTime(ev.Date), ev.Location, string(ev.Status), ev.URL, ev.VenueID,
		ev.Category, encodeList(ev.Tags), ev.ImageURL,
		encodeTime(ev.LastCheck), encodeTime(ev.LastModified), encodeList(ev.PendingChanges))
	if err != nil {
		if isDuplicateKey(err) {
			return fmt.Errorf("%w: %s", ErrDuplicateID, ev.ID)
		}
		return fmt.Errorf("inserting event %s: %w", ev.ID, err)
	}
	return nil
}

// isDuplicateKey reports whether err is a primary-key or unique constraint
// failure from the driver.
func isDuplicateKey(err error) bool {
	var serr *sqlite.Error
	if !errors.As(err, &serr) {
		return false
	}
	switch serr.Code() {
	case sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY, sqlite3.SQLITE_CONSTRAINT_UNIQUE:
		return true
	}
	return false
}

// UpdateEventFields applies a partial update as one UPDATE statement built
// from the allowlisted field names.
func (s *SQLiteStore) UpdateEventFields(ctx context.Context, id string, fields map[string]any) error {
	if len(fields) == 0 {
		return nil
	}

	// Deterministic column order keeps queries stable for logging and tests.
	names := make([]string, 0, len(fields))
	for name := range fields {
		if !ValidField(name) {
			return fmt.Errorf("unknown event field %q", name)
		}
		names = append(names, name)
	}
	sort.Strings(names)

	set := make([]string, 0, len(names))
	args := make([]any, 0, len(names)+1)
	for _, name := range names {
		v, err := encodeValue(fields[name])
		if err != nil {
			return fmt.Errorf("field %s: %w", name, err)
		}
		set = append(set, name+" = ?")
		args = append(args, v)
	}
	args = append(args, id)

	res, err := s.db.ExecContext(ctx,
		"UPDATE events SET "+strings.Join(set, ", ")+" WHERE id = ?", args...)
	if err != nil {
		return fmt.Errorf("updating event %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("updating event %s: %w", id, err)
	}
	if n == 0 {
		return fmt.Errorf("%w: event %s", ErrNotFound, id)
	}
	return nil
}

// ModifiedSince returns events modified after the given instant, date ascending.
func (s *SQLiteStore) ModifiedSince(ctx context.Context, since time.Time) ([]models.Event, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+eventColumns+" FROM events WHERE last_modified > ? ORDER BY date ASC, id ASC",
		encodeTime(since))
	if err != nil {
		return nil, fmt.Errorf("querying modified events: %w", err)
	}
	defer rows.Close()
	return scanEvents(rows)
}

// ListEvents returns events matching the filter, date ascending.
func (s *SQLiteStore) ListEvents(ctx context.Context, f *EventFilter) ([]models.Event, error) {
	where := []string{"1 = 1"}
	var args []any
	if f != nil {
		if f.Category != "" {
			where = append(where, "category = ?")
			args = append(args, f.Category)
		}
		if f.Status != "" {
			where = append(where, "status = ?")
			args = append(args, string(f.Status))
		}
		if f.VenueID != "" {
			where = append(where, "venue_id = ?")
			args = append(args, f.VenueID)
		}
		if !f.After.IsZero() {
			where = append(where, "date > ?")
			args = append(args, encodeTime(f.After))
		}
	}

	rows, err := s.db.QueryContext(ctx,
		"SELECT "+eventColumns+" FROM events WHERE "+strings.Join(where, " AND ")+
			" ORDER BY date ASC, id ASC", args...)
	if err != nil {
		return nil, fmt.Errorf("listing events: %w", err)
	}
	defer rows.Close()
	return scanEvents(rows)
}

// DeleteEventsBefore removes events scheduled before the cutoff.
func (s *SQLiteStore) DeleteEventsBefore(ctx context.Context, cutoff time.Time) (int, error) {
	res, err := s.db.ExecContext(ctx, "DELETE FROM events WHERE date < ?", encodeTime(cutoff))
	if err != nil {
		return 0, fmt.Errorf("deleting expired events: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("deleting expired events: %w", err)
	}
	return int(n), nil
}

// Watermark returns the consumer's watermark, or the zero time if unset.
func (s *SQLiteStore) Watermark(ctx context.Context, consumer string) (time.Time, error) {
	var mark int64
	err := s.db.QueryRowContext(ctx,
		"SELECT watermark FROM consumers WHERE name = ?", consumer).Scan(&mark)
	if errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("querying watermark for %s: %w", consumer, err)
	}
	return decodeTime(mark), nil
}

// AdvanceWatermark moves the consumer's watermark forward in one upsert; the
// conditional update makes regressions a no-op at the database level.
func (s *SQLiteStore) AdvanceWatermark(ctx context.Context, consumer string, mark time.Time) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO consumers (name, watermark) VALUES (?, ?)
		ON CONFLICT(name) DO UPDATE SET watermark = excluded.watermark
		WHERE excluded.watermark > consumers.watermark`,
		consumer, encodeTime(mark))
	if err != nil {
		return fmt.Errorf("advancing watermark for %s: %w", consumer, err)
	}
	return nil
}

// GetSubscriber retrieves a subscriber by id.
func (s *SQLiteStore) GetSubscriber(ctx context.Context, id string) (*models.Subscriber, error) {
	var (
		sub               models.Subscriber
		created           int64
		artists, tags, ev string
		notifyAll         int
	)
	err := s.db.QueryRowContext(ctx,
		"SELECT id, created, artists, tags, events, notify_all FROM subscribers WHERE id = ?", id).
		Scan(&sub.ID, &created, &artists, &tags, &ev, &notifyAll)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: subscriber %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("querying subscriber %s: %w", id, err)
	}
	sub.Created = decodeTime(created)
	sub.Artists = decodeList(artists)
	sub.Tags = decodeList(tags)
	sub.Events = decodeList(ev)
	sub.NotifyAll = notifyAll != 0
	return &sub, nil
}

// PutSubscriber inserts or replaces a subscriber record.
func (s *SQLiteStore) PutSubscriber(ctx context.Context, sub models.Subscriber) error {
	notifyAll := 0
	if sub.NotifyAll {
		notifyAll = 1
	}
	_, err := s.db.ExecContext(ctx, `INSERT INTO subscribers (id, created, artists, tags, events, notify_all)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			artists = excluded.artists, tags = excluded.tags,
			events = excluded.events, notify_all = excluded.notify_all`,
		sub.ID, encodeTime(sub.Created), encodeList(sub.Artists),
		encodeList(sub.Tags), encodeList(sub.Events), notifyAll)
	if err != nil {
		return fmt.Errorf("storing subscriber %s: %w", sub.ID, err)
	}
	return nil
}

// AddInterests extends a subscriber's followed sets. Read-merge-write; the
// final write is a single statement, concurrent extensions of the same
// subscriber are last-writer-wins like every other record here.
func (s *SQLiteStore) AddInterests(ctx context.Context, id string, artists, tags, events []string) error {
	sub, err := s.GetSubscriber(ctx, id)
	if err != nil {
		return err
	}
	sub.Artists = addToSet(sub.Artists, artists)
	sub.Tags = addToSet(sub.Tags, tags)
	sub.Events = addToSet(sub.Events, events)
	return s.PutSubscriber(ctx, *sub)
}

// ListSubscribers returns the whole interest registry.
func (s *SQLiteStore) ListSubscribers(ctx context.Context) ([]models.Subscriber, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, created, artists, tags, events, notify_all FROM subscribers ORDER BY id ASC")
	if err != nil {
		return nil, fmt.Errorf("listing subscribers: %w", err)
	}
	defer rows.Close()

	var out []models.Subscriber
	for rows.Next() {
		var (
			sub               models.Subscriber
			created           int64
			artists, tags, ev string
			notifyAll         int
		)
		if err := rows.Scan(&sub.ID, &created, &artists, &tags, &ev, &notifyAll); err != nil {
			return nil, fmt.Errorf("scanning subscriber: %w", err)
		}
		sub.Created = decodeTime(created)
		sub.Artists = decodeList(artists)
		sub.Tags = decodeList(tags)
		sub.Events = decodeList(ev)
		sub.NotifyAll = notifyAll != 0
		out = append(out, sub)
	}
	return out, rows.Err()
}

// Stats returns collection statistics.
func (s *SQLiteStore) Stats(ctx context.Context) (*models.StoreStats, error) {
	stats := &models.StoreStats{
		ByCategory: make(map[string]int64),
		ByStatus:   make(map[string]int64),
		ByVenue:    make(map[string]int64),
	}

	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM events").Scan(&stats.TotalEvents); err != nil {
		return nil, fmt.Errorf("counting events: %w", err)
	}
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM subscribers").Scan(&stats.TotalSubscribers); err != nil {
		return nil, fmt.Errorf("counting subscribers: %w", err)
	}

	for col, dest := range map[string]map[string]int64{
		"category": stats.ByCategory,
		"status":   stats.ByStatus,
		"venue_id": stats.ByVenue,
	} {
		rows, err := s.db.QueryContext(ctx,
			"SELECT "+col+", COUNT(*) FROM events WHERE "+col+" != '' GROUP BY "+col)
		if err != nil {
			return nil, fmt.Errorf("grouping by %s: %w", col, err)
		}
		for rows.Next() {
			var key string
			var n int64
			if err := rows.Scan(&key, &n); err != nil {
				rows.Close()
				return nil, fmt.Errorf("scanning %s stats: %w", col, err)
			}
			dest[key] = n
		}
		if err := rows.Err(); err != nil {
			rows.Close()
			return nil, fmt.Errorf("reading %s stats: %w", col, err)
		}
		rows.Close()
	}
	return stats, nil
}

// Close closes the underlying database handle.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// --- row scanning and encoding helpers ---

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEvent(row rowScanner) (*models.Event, error) {
	var (
		ev                             models.Event
		support, lineup, tags, pending string
		date, lastCheck, lastModified  int64
		status                         string
	)
	err := row.Scan(&ev.ID, &ev.Title, &ev.Subtitle, &support, &lineup, &date,
		&ev.Location, &status, &ev.URL, &ev.VenueID, &ev.Category, &tags,
		&ev.ImageURL, &lastCheck, &lastModified, &pending)
	if err != nil {
		return nil, err
	}
	ev.Support = decodeList(support)
	ev.Lineup = decodeList(lineup)
	ev.Tags = decodeList(tags)
	ev.PendingChanges = decodeList(pending)
	ev.Date = decodeTime(date)
	ev.Status = models.EventStatus(status)
	ev.LastCheck = decodeTime(lastCheck)
	ev.LastModified = decodeTime(lastModified)
	return &ev, nil
}

func scanEvents(rows *sql.Rows) ([]models.Event, error) {
	var out []models.Event
	for rows.Next() {
		ev, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning event: %w", err)
		}
		out = append(out, *ev)
	}
	return out, rows.Err()
}

func encodeValue(v any) (any, error) {
	switch val := v.(type) {
	case string:
		return val, nil
	case models.EventStatus:
		return string(val), nil
	case []string:
		return encodeList(val), nil
	case time.Time:
		return encodeTime(val), nil
	default:
		return nil, fmt.Errorf("unsupported value type %T", v)
	}
}

// encodeTime stores instants as unix nanoseconds; zero times map to 0 so
// watermark comparisons stay trivially ordered.
func encodeTime(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixNano()
}

func decodeTime(n int64) time.Time {
	if n == 0 {
		return time.Time{}
	}
	return time.Unix(0, n).UTC()
}

func encodeList(list []string) string {
	if len(list) == 0 {
		return "[]"
	}
	b, err := json.Marshal(list)
	if err != nil {
		return "[]"
	}
	return string(b)
}

func decodeList(raw string) []string {
	if raw == "" || raw == "[]" {
		return nil
	}
	var out []string
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return nil
	}
	return out
}
