package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/elonfeng/paperdigest/internal/deliver"
	"github.com/elonfeng/paperdigest/internal/scheduler"
	"github.com/elonfeng/paperdigest/internal/store"
)

// Server provides the HTTP API: read-only listings, manual stage triggers,
// and the transport callbacks that flip read/interested flags.
type Server struct {
	store  store.Store
	sched  *scheduler.Scheduler
	states *deliver.States
	port   int
}

// New creates a new HTTP server.
func New(s store.Store, sched *scheduler.Scheduler, states *deliver.States, port int) *Server {
	if port == 0 {
		port = 8080
	}
	return &Server{store: s, sched: sched, states: states, port: port}
}

// Handler returns the routed API handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /api/v1/items", s.handleItems)
	mux.HandleFunc("GET /api/v1/summaries", s.handleSummaries)
	mux.HandleFunc("GET /api/v1/subscribers", s.handleSubscribers)
	mux.HandleFunc("POST /api/v1/run", s.handleRun)
	mux.HandleFunc("POST /api/v1/deliveries/{id}/read", s.handleMarkRead)
	mux.HandleFunc("POST /api/v1/deliveries/{id}/interested", s.handleMarkInterested)
	return mux
}

// ListenAndServe starts the HTTP server.
func (s *Server) ListenAndServe() error {
	addr := fmt.Sprintf(":%d", s.port)
	fmt.Printf("paperdigest server listening on %s\n", addr)
	return http.ListenAndServe(addr, s.Handler())
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleItems(w http.ResponseWriter, r *http.Request) {
	since := parseSince(r, 7)
	limit := parseLimit(r, 100)

	items, err := s.store.ListItemsSince(r.Context(), since, limit)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": items, "count": len(items)})
}

func (s *Server) handleSummaries(w http.ResponseWriter, r *http.Request) {
	since := parseSince(r, 7)
	limit := parseLimit(r, 100)

	summaries, err := s.store.ListSummaries(r.Context(), since, limit)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}

	type entry struct {
		Summary store.Summary `json:"summary"`
		Item    store.Item    `json:"item"`
	}
	out := make([]entry, len(summaries))
	for i, si := range summaries {
		out[i] = entry{Summary: si.Summary, Item: si.Item}
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": out, "count": len(out)})
}

func (s *Server) handleSubscribers(w http.ResponseWriter, r *http.Request) {
	subs, err := s.store.ListActiveSubscribers(r.Context())
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": subs, "count": len(subs)})
}

// handleRun triggers a stage manually. Every stage is idempotent, so a
// repeated trigger is safe.
func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	stage := r.URL.Query().Get("stage")
	if stage == "" {
		stage = "all"
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	var err error
	switch stage {
	case "ingest":
		err = s.sched.Ingest(ctx)
	case "summarize":
		err = s.sched.Summarize(ctx)
	case "deliver":
		err = s.sched.Deliver(ctx)
	case "all":
		s.sched.Cycle(ctx)
	default:
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "unknown stage: " + stage})
		return
	}
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "stage": stage})
}

func (s *Server) handleMarkRead(w http.ResponseWriter, r *http.Request) {
	s.markFlag(w, r, s.states.MarkRead)
}

func (s *Server) handleMarkInterested(w http.ResponseWriter, r *http.Request) {
	s.markFlag(w, r, s.states.MarkInterested)
}

func (s *Server) markFlag(w http.ResponseWriter, r *http.Request, mark func(context.Context, int64) error) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid delivery id"})
		return
	}

	switch err := mark(r.Context(), id); {
	case errors.Is(err, store.ErrNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "delivery not found"})
	case errors.Is(err, store.ErrNotSent):
		writeJSON(w, http.StatusConflict, map[string]string{"error": "delivery not sent yet"})
	case err != nil:
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
	default:
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}

func parseSince(r *http.Request, defaultDays int) time.Time {
	days := defaultDays
	if v := r.URL.Query().Get("days"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			days = n
		}
	}
	return time.Now().UTC().AddDate(0, 0, -days)
}

func parseLimit(r *http.Request, fallback int) int {
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return fallback
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
