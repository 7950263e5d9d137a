package daemon

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"git.home.luguber.info/inful/docsmoke/internal/logfields"
	"git.home.luguber.info/inful/docsmoke/internal/store"
)

// Status is the JSON document served at /status.
type Status struct {
	State      string           `json:"state"` // idle|running
	StartedAt  time.Time        `json:"started_at"`
	RunsTotal  int              `json:"runs_total"`
	LastRun    *store.RunRecord `json:"last_run,omitempty"`
	LastError  string           `json:"last_error,omitempty"`
	NextReason string           `json:"next_reason,omitempty"` // pending trigger, if any
}

// StatusProvider exposes the daemon's current state to the HTTP server.
type StatusProvider interface {
	Status() Status
}

// Server serves health, status and metrics endpoints for the daemon.
type Server struct {
	srv *http.Server
}

// NewServer builds the HTTP server. metricsHandler may be nil to disable the
// /metrics endpoint.
func NewServer(listen string, provider StatusProvider, metricsHandler http.Handler) *Server {
	mux := http.NewServeMux()

	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	mux.HandleFunc("/status", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(provider.Status()); err != nil {
			slog.Error("Failed to encode status", logfields.Error(err))
		}
	})

	if metricsHandler != nil {
		mux.Handle("/metrics", metricsHandler)
	}

	return &Server{srv: &http.Server{
		Addr:              listen,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}}
}

// Start serves until the listener fails or Shutdown is called.
func (s *Server) Start() {
	slog.Info("HTTP server listening", slog.String("addr", s.srv.Addr))
	if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("HTTP server failed", logfields.Error(err))
	}
}

// Shutdown stops the server gracefully.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
