package notify

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/concertron/concertron/internal/feed"
	"github.com/concertron/concertron/internal/interest"
	"github.com/concertron/concertron/internal/metrics"
	"github.com/concertron/concertron/internal/models"
	"github.com/concertron/concertron/internal/store"
)

// Report summarizes one dispatch cycle.
type Report struct {
	Events        int `json:"events"`
	Notifications int `json:"notifications"`
	Skipped       int `json:"skipped"`
}

// Dispatcher is the notification consumer: it drains the change feed under
// its consumer name, matches each change against the interest registry and
// sends messages. The watermark only advances after the whole batch went
// out, so a crash re-delivers rather than drops (recipients must tolerate
// the occasional repeat).
type Dispatcher struct {
	feed     *feed.Feed
	store    store.Store
	sender   Sender
	consumer string
	home     string // broadcast recipient for every change, empty = none
	logger   *slog.Logger
}

// NewDispatcher creates a dispatcher draining the feed as consumer.
func NewDispatcher(f *feed.Feed, st store.Store, sender Sender, consumer, home string, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{
		feed:     f,
		store:    st,
		sender:   sender,
		consumer: consumer,
		home:     home,
		logger:   logger,
	}
}

// Run performs one dispatch cycle.
func (d *Dispatcher) Run(ctx context.Context) (*Report, error) {
	report := &Report{}

	events, err := d.feed.Changes(ctx, d.consumer)
	if err != nil {
		return report, err
	}
	if len(events) == 0 {
		return report, nil
	}

	subscribers, err := d.store.ListSubscribers(ctx)
	if err != nil {
		return report, fmt.Errorf("loading interest registry: %w", err)
	}

	for i := range events {
		ev := &events[i]
		report.Events++

		// last_modified can move without a user-visible change (a cleared
		// pending list from a no-op cycle); nothing to announce then.
		if len(ev.PendingChanges) == 0 {
			report.Skipped++
			continue
		}

		msg := FormatMessage(ev)
		recipients := recipientSet(ev, subscribers, d.home)
		for _, r := range recipients {
			if err := d.sender.Send(ctx, r, msg); err != nil {
				// Hold the watermark back; the whole batch is re-read next
				// cycle.
				return report, fmt.Errorf("sending to %s: %w", r, err)
			}
			report.Notifications++
			metrics.Inc(metrics.NotificationsSent)
		}
	}

	if err := d.feed.Advance(ctx, d.consumer, feed.HighWater(events)); err != nil {
		return report, err
	}
	d.logger.Info("dispatched changes", "consumer", d.consumer,
		"events", report.Events, "notifications", report.Notifications, "skipped", report.Skipped)
	return report, nil
}

// FormatMessage renders one event change as a notification.
func FormatMessage(ev *models.Event) Message {
	var b strings.Builder
	if ev.Subtitle != "" {
		fmt.Fprintf(&b, "%s\n", ev.Subtitle)
	}
	fmt.Fprintf(&b, "Date: %s\n", ev.Date.Format("Mon 02 Jan 2006 15:04"))
	if ev.Location != "" {
		fmt.Fprintf(&b, "Location: %s\n", ev.Location)
	}
	if len(ev.Support) > 0 {
		fmt.Fprintf(&b, "Support: %s\n", strings.Join(ev.Support, ", "))
	}
	fmt.Fprintf(&b, "Status: %s", statusText(ev.Status))

	title := ev.Title
	if isNew(ev) {
		title = "New event: " + title
	} else {
		title = fmt.Sprintf("Update (%s): %s", strings.Join(ev.PendingChanges, ", "), title)
	}

	return Message{
		Title: title,
		Body:  b.String(),
		URL:   ev.URL,
	}
}

// recipientSet matches the interest registry and appends the home recipient,
// deduplicated, preserving registry order.
func recipientSet(ev *models.Event, subscribers []models.Subscriber, home string) []string {
	var out []string
	seen := make(map[string]bool)
	for _, sub := range interest.Match(ev, subscribers) {
		if !seen[sub.ID] {
			out = append(out, sub.ID)
			seen[sub.ID] = true
		}
	}
	if home != "" && !seen[home] {
		out = append(out, home)
	}
	return out
}

func isNew(ev *models.Event) bool {
	for _, c := range ev.PendingChanges {
		if c == models.ChangeNew {
			return true
		}
	}
	return false
}

// statusText turns SOLD_OUT into "Sold out" for message bodies.
func statusText(s models.EventStatus) string {
	if s == "" {
		return string(models.StatusUnknown)
	}
	words := strings.Split(strings.ToLower(string(s)), "_")
	words[0] = strings.ToUpper(words[0][:1]) + words[0][1:]
	return strings.Join(words, " ")
}
