// Package web provides an HTTP status server for the vehicle-safety daemon.
package web

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"strconv"

	"github.com/htbalar/vehicle-safety/internal/journal"
	"github.com/htbalar/vehicle-safety/internal/logger"
	"github.com/htbalar/vehicle-safety/internal/status"
)

// maxEvents caps the n query parameter of /events.json.
const maxEvents = 500

// EventSource reads the event journal: recent messages newest first, and
// per-kind totals over the whole journal.
type EventSource interface {
	Recent(ctx context.Context, n int) ([]journal.Entry, error)
	Counts(ctx context.Context) (map[string]int, error)
}

// Server serves the status page over HTTP.
type Server struct {
	httpServer *http.Server
	tracker    *status.Tracker
	events     EventSource
}

// New creates a Server that reads state from the given tracker.
// events may be nil when the journal is disabled.
func New(addr string, tracker *status.Tracker, events EventSource) *Server {
	s := &Server{tracker: tracker, events: events}

	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleIndex)
	mux.HandleFunc("/index.html", s.handleIndex)
	mux.HandleFunc("/index.json", s.handleJSON)
	mux.HandleFunc("/events.json", s.handleEvents)

	s.httpServer = &http.Server{
		Addr:    addr,
		Handler: mux,
	}
	return s
}

// Handler returns the request router.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// ListenAndServe starts listening. It blocks until the server is shut down.
func (s *Server) ListenAndServe() error {
	return s.httpServer.ListenAndServe()
}

// Serve accepts connections on the given listener. Useful for tests.
func (s *Server) Serve(ln net.Listener) error {
	return s.httpServer.Serve(ln)
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" && r.URL.Path != "/index.html" {
		http.NotFound(w, r)
		return
	}
	snap := s.tracker.Snapshot()
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := renderHTML(w, snap); err != nil {
		logger.Warnf(r.Context(), "render status page: %v", err)
	}
}

func (s *Server) handleJSON(w http.ResponseWriter, _ *http.Request) {
	snap := s.tracker.Snapshot()
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(status.FormatJSON(snap))
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	if s.events == nil {
		http.Error(w, "event journal disabled", http.StatusNotFound)
		return
	}

	n := journal.DefaultRecent
	if q := r.URL.Query().Get("n"); q != "" {
		v, err := strconv.Atoi(q)
		if err != nil || v <= 0 {
			http.Error(w, "n must be a positive integer", http.StatusBadRequest)
			return
		}
		n = min(v, maxEvents)
	}

	entries, err := s.events.Recent(r.Context(), n)
	if err != nil {
		logger.Errorf(r.Context(), "read journal: %v", err)
		http.Error(w, "journal unavailable", http.StatusInternalServerError)
		return
	}

	counts, err := s.events.Counts(r.Context())
	if err != nil {
		logger.Errorf(r.Context(), "count journal: %v", err)
		http.Error(w, "journal unavailable", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	data, _ := json.MarshalIndent(map[string]any{"events": entries, "counts": counts}, "", "  ")
	_, _ = w.Write(data)
}
