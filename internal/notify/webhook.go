package notify

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"
)

const webhookTimeout = 10 * time.Second

// WebhookSender posts notifications as JSON to a configured endpoint. The
// receiving bridge (a Discord bot, a chat gateway) resolves recipients to
// actual addresses.
type WebhookSender struct {
	url    string
	client *http.Client
	logger *slog.Logger
}

// NewWebhookSender creates a sender posting to url.
func NewWebhookSender(url string, logger *slog.Logger) *WebhookSender {
	return &WebhookSender{
		url:    url,
		client: &http.Client{Timeout: webhookTimeout},
		logger: logger,
	}
}

type webhookPayload struct {
	Recipient  string `json:"recipient"`
	Title      string `json:"title"`
	Body       string `json:"body"`
	URL        string `json:"url,omitempty"`
	Attachment string `json:"attachment,omitempty"` // base64
}

// Send posts one message. Non-2xx responses are errors so the dispatcher can
// hold the watermark back and retry the batch later.
func (w *WebhookSender) Send(ctx context.Context, recipient string, msg Message) error {
	payload := webhookPayload{
		Recipient: recipient,
		Title:     msg.Title,
		Body:      msg.Body,
		URL:       msg.URL,
	}
	if len(msg.Attachment) > 0 {
		payload.Attachment = base64.StdEncoding.EncodeToString(msg.Attachment)
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshalling notification: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("posting notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		return fmt.Errorf("webhook returned %d for %s", resp.StatusCode, recipient)
	}
	w.logger.Debug("sent notification", "recipient", recipient, "title", msg.Title)
	return nil
}
