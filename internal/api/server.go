package api

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/concertron/concertron/internal/feed"
	"github.com/concertron/concertron/internal/models"
	"github.com/concertron/concertron/internal/store"
)

// Server exposes the event catalogue, the change feed and the subscriber
// registry over HTTP. It is the read side the web UI consumes.
type Server struct {
	store     store.Store
	feed      *feed.Feed
	logger    *slog.Logger
	authToken string // empty = no auth required
}

// NewServer creates a new Server with the given dependencies.
func NewServer(st store.Store, f *feed.Feed, logger *slog.Logger, authToken string) *Server {
	return &Server{
		store:     st,
		feed:      f,
		logger:    logger,
		authToken: authToken,
	}
}

// Handler returns an http.Handler with all routes registered.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	// Health check needs no auth.
	mux.HandleFunc("GET /healthz", s.handleHealthz)

	mux.HandleFunc("GET /v1/events", s.auth(s.handleListEvents))
	mux.HandleFunc("GET /v1/events/{id}", s.auth(s.handleGetEvent))
	mux.HandleFunc("GET /v1/changes", s.auth(s.handleChanges))
	mux.HandleFunc("POST /v1/consumers/{name}/advance", s.auth(s.handleAdvance))
	mux.HandleFunc("POST /v1/subscribers", s.auth(s.handleCreateSubscriber))
	mux.HandleFunc("GET /v1/subscribers/{id}", s.auth(s.handleGetSubscriber))
	mux.HandleFunc("POST /v1/subscribers/{id}/follow", s.auth(s.handleFollow))
	mux.HandleFunc("GET /v1/stats", s.auth(s.handleStats))

	return mux
}

// --- middleware ---

// auth wraps a handler with Bearer token authentication when authToken is set.
func (s *Server) auth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.authToken == "" {
			next(w, r)
			return
		}
		header := r.Header.Get("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || subtle.ConstantTimeCompare([]byte(token), []byte(s.authToken)) != 1 {
			s.writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		next(w, r)
	}
}

// --- handlers ---

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleListEvents(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := &store.EventFilter{
		Category: q.Get("category"),
		Status:   models.EventStatus(q.Get("status")),
		VenueID:  q.Get("venue"),
	}
	if filter.Status != "" && !filter.Status.IsValid() {
		s.writeError(w, http.StatusBadRequest, "invalid status")
		return
	}
	if after := q.Get("after"); after != "" {
		t, err := time.Parse(time.RFC3339, after)
		if err != nil {
			s.writeError(w, http.StatusBadRequest, "after must be RFC 3339")
			return
		}
		filter.After = t
	}

	events, err := s.store.ListEvents(r.Context(), filter)
	if err != nil {
		s.logger.Error("failed to list events", "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to list events")
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"events": events})
}

func (s *Server) handleGetEvent(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	ev, err := s.store.GetEvent(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			s.writeError(w, http.StatusNotFound, "event not found")
			return
		}
		s.logger.Error("failed to get event", "id", id, "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to get event")
		return
	}
	s.writeJSON(w, http.StatusOK, ev)
}

func (s *Server) handleChanges(w http.ResponseWriter, r *http.Request) {
	consumer := r.URL.Query().Get("consumer")
	if consumer == "" {
		s.writeError(w, http.StatusBadRequest, "consumer is required")
		return
	}
	events, err := s.feed.Changes(r.Context(), consumer)
	if err != nil {
		s.logger.Error("failed to read change feed", "consumer", consumer, "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to read change feed")
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"events":     events,
		"high_water": feed.HighWater(events),
	})
}

// advanceRequest is the body accepted by POST /v1/consumers/{name}/advance.
type advanceRequest struct {
	Watermark time.Time `json:"watermark"`
}

func (s *Server) handleAdvance(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20) // 1 MB limit
	var req advanceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Watermark.IsZero() {
		s.writeError(w, http.StatusBadRequest, "watermark is required")
		return
	}
	if err := s.feed.Advance(r.Context(), name, req.Watermark); err != nil {
		s.logger.Error("failed to advance watermark", "consumer", name, "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to advance watermark")
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]bool{"advanced": true})
}

// subscriberRequest is the body accepted by POST /v1/subscribers.
type subscriberRequest struct {
	ID        string   `json:"id"`
	Artists   []string `json:"artists"`
	Tags      []string `json:"tags"`
	Events    []string `json:"events"`
	NotifyAll bool     `json:"notify_all"`
}

func (s *Server) handleCreateSubscriber(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20) // 1 MB limit
	var req subscriberRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.ID == "" {
		req.ID = uuid.NewString()
	}

	sub := models.Subscriber{
		ID:        req.ID,
		Created:   time.Now().UTC(),
		Artists:   req.Artists,
		Tags:      req.Tags,
		Events:    req.Events,
		NotifyAll: req.NotifyAll,
	}
	if err := s.store.PutSubscriber(r.Context(), sub); err != nil {
		s.logger.Error("failed to store subscriber", "id", sub.ID, "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to store subscriber")
		return
	}
	s.writeJSON(w, http.StatusOK, sub)
}

func (s *Server) handleGetSubscriber(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	sub, err := s.store.GetSubscriber(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			s.writeError(w, http.StatusNotFound, "subscriber not found")
			return
		}
		s.logger.Error("failed to get subscriber", "id", id, "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to get subscriber")
		return
	}
	s.writeJSON(w, http.StatusOK, sub)
}

// followRequest is the body accepted by POST /v1/subscribers/{id}/follow.
type followRequest struct {
	EventID string `json:"event_id"`
}

// handleFollow implements the opt-in flow: following an event also follows
// its whole lineup and its tags, so later changes to similar events reach
// the subscriber.
func (s *Server) handleFollow(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20) // 1 MB limit
	var req followRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.EventID == "" {
		s.writeError(w, http.StatusBadRequest, "event_id is required")
		return
	}

	ev, err := s.store.GetEvent(r.Context(), req.EventID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			s.writeError(w, http.StatusNotFound, "event not found")
			return
		}
		s.logger.Error("failed to get event", "id", req.EventID, "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to get event")
		return
	}

	// First follow creates the profile.
	if _, err := s.store.GetSubscriber(r.Context(), id); errors.Is(err, store.ErrNotFound) {
		if err := s.store.PutSubscriber(r.Context(), models.Subscriber{
			ID:      id,
			Created: time.Now().UTC(),
		}); err != nil {
			s.logger.Error("failed to create subscriber", "id", id, "error", err)
			s.writeError(w, http.StatusInternalServerError, "failed to create subscriber")
			return
		}
	} else if err != nil {
		s.logger.Error("failed to get subscriber", "id", id, "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to get subscriber")
		return
	}

	if err := s.store.AddInterests(r.Context(), id, ev.Lineup, ev.Tags, []string{ev.ID}); err != nil {
		s.logger.Error("failed to extend interests", "id", id, "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to extend interests")
		return
	}

	sub, err := s.store.GetSubscriber(r.Context(), id)
	if err != nil {
		s.logger.Error("failed to reload subscriber", "id", id, "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to reload subscriber")
		return
	}
	s.writeJSON(w, http.StatusOK, sub)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.store.Stats(r.Context())
	if err != nil {
		s.logger.Error("failed to get stats", "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to get stats")
		return
	}
	s.writeJSON(w, http.StatusOK, stats)
}

// --- helpers ---

// writeJSON encodes v as JSON and writes it to w with the given status code.
func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if encErr := json.NewEncoder(w).Encode(v); encErr != nil {
		s.logger.Error("failed to encode response", "error", encErr)
	}
}

// writeError writes a JSON error response.
func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, map[string]string{"error": msg})
}

// Shutdown gracefully shuts down an http.Server with the given timeout.
// This is a convenience helper used by the serve command.
func Shutdown(srv *http.Server, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	return srv.Shutdown(ctx)
}
