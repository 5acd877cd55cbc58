package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWebhookSender_PostsPayload(t *testing.T) {
	var got webhookPayload
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	sender := NewWebhookSender(srv.URL, discardLogger())
	err := sender.Send(context.Background(), "fan", Message{
		Title:      "New event: Headliner",
		Body:       "Date: Sun 01 Nov 2026 20:00",
		URL:        "https://venue.example/ev-1",
		Attachment: []byte{0x89, 0x50},
	})
	require.NoError(t, err)

	assert.Equal(t, "fan", got.Recipient)
	assert.Equal(t, "New event: Headliner", got.Title)
	assert.Equal(t, "https://venue.example/ev-1", got.URL)
	assert.Equal(t, "iVA=", got.Attachment)
}

func TestWebhookSender_NonSuccessIsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	sender := NewWebhookSender(srv.URL, discardLogger())
	err := sender.Send(context.Background(), "fan", Message{Title: "x"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "429")
}

func TestWebhookSender_UnreachableEndpoint(t *testing.T) {
	sender := NewWebhookSender("http://127.0.0.1:0", discardLogger())
	err := sender.Send(context.Background(), "fan", Message{Title: "x"})
	assert.Error(t, err)
}
