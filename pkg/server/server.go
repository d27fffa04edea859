package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/DimasIb47/google-trend-notification/internal/store"
)

// Server exposes the health and stats surface plus a small read-only API
// over stored trend events.
type Server struct {
	store   store.Store
	tracker *Tracker
	regions []string
	pollMin time.Duration
	pollMax time.Duration
	port    int
	log     *slog.Logger
}

// New creates the HTTP server. Port defaults to 8080.
func New(st store.Store, tracker *Tracker, regions []string, pollMin, pollMax time.Duration, port int) *Server {
	if port == 0 {
		port = 8080
	}
	return &Server{
		store:   st,
		tracker: tracker,
		regions: regions,
		pollMin: pollMin,
		pollMax: pollMax,
		port:    port,
		log:     slog.Default(),
	}
}

// Handler returns the route table. Split out so tests can drive it without
// binding a port.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleRoot)
	mux.HandleFunc("/healthz", s.handleHealthz)
	mux.HandleFunc("/ready", s.handleReady)
	mux.HandleFunc("/stats", s.handleStats)
	mux.HandleFunc("/api/v1/trends", s.handleTrends)
	return mux
}

// ListenAndServe runs the server until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", s.port),
		Handler: s.Handler(),
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("health server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"name":    "google-trend-notification",
		"version": "1.0.0",
		"status":  "running",
	})
}

// handleHealthz reports overall liveness: the database must answer and at
// least one monitored region must be polling without errors.
func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	dbHealthy := true
	if _, err := s.store.Stats(r.Context()); err != nil {
		dbHealthy = false
		s.log.Error("database health check failed", "error", err)
	}

	lastPolls := make(map[string]string)
	pollErrors := make(map[string]string)
	for region, outcome := range s.tracker.Snapshot() {
		lastPolls[region] = outcome.CompletedAt.Format(time.RFC3339)
		if outcome.Error != "" {
			pollErrors[region] = outcome.Error
		}
	}

	healthy := dbHealthy && s.tracker.ErrorCount() < len(s.regions)

	database := "connected"
	if !dbHealthy {
		database = "disconnected"
	}
	resp := map[string]any{
		"status":            "healthy",
		"uptime_seconds":    int(s.tracker.Uptime().Seconds()),
		"database":          database,
		"last_polls":        lastPolls,
		"regions_monitored": s.regions,
	}
	if len(pollErrors) > 0 {
		resp["errors"] = pollErrors
	}

	status := http.StatusOK
	if !healthy {
		resp["status"] = "unhealthy"
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, resp)
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if _, err := s.store.Stats(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{"ready": false})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ready": true})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	resp := map[string]any{
		"uptime_seconds": int(s.tracker.Uptime().Seconds()),
		"regions":        s.regions,
		"poll_interval":  fmt.Sprintf("%s-%s", s.pollMin, s.pollMax),
		"last_polls":     s.tracker.Snapshot(),
	}

	if stats, err := s.store.Stats(r.Context()); err != nil {
		resp["database"] = map[string]string{"error": err.Error()}
	} else {
		resp["database"] = stats
	}

	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleTrends(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	region := r.URL.Query().Get("region")
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}

	events, err := s.store.RecentEvents(r.Context(), region, limit)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"data":  events,
		"count": len(events),
	})
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
