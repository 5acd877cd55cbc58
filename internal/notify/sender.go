// Package notify drains the change feed, matches changes against the
// interest registry and hands messages to a delivery collaborator.
package notify

import (
	"context"
)

// Message is one outgoing notification. Attachment is optional binary
// content (typically the event poster); the core never fetches or transcodes
// it, producers supply a URL and delivery layers decide what to do with it.
type Message struct {
	Title      string
	Body       string
	URL        string
	Attachment []byte
}

// Sender is the delivery collaborator. The core decides who receives what;
// transport (Discord, webhook, anything addressable) lives behind this
// interface.
type Sender interface {
	Send(ctx context.Context, recipient string, msg Message) error
}
