// Package server exposes the latest trail snapshot to the globe renderer over
// HTTP/JSON, plus health and metrics endpoints.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/signalsfoundry/orbit-tracker/internal/logging"
	"github.com/signalsfoundry/orbit-tracker/internal/track"
)

// Snapshot is the renderer contract: two ordered point sequences plus the
// observation they were derived from.
type Snapshot struct {
	Past     []track.Vec3   `json:"past"`
	Future   []track.Vec3   `json:"future"`
	Position track.Position `json:"position"`
}

// Store holds the most recent snapshot. Written by the tracker's update
// handler, read by HTTP handlers.
type Store struct {
	mu       sync.RWMutex
	snapshot Snapshot
	updated  time.Time
	has      bool
}

// NewStore constructs an empty store.
func NewStore() *Store { return &Store{} }

// Set replaces the current snapshot.
func (s *Store) Set(snap Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snapshot = snap
	s.updated = time.Now()
	s.has = true
}

// Get returns the current snapshot and whether one has been set.
func (s *Store) Get() (Snapshot, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshot, s.has
}

// Fresh reports whether a snapshot exists and was written within maxAge.
func (s *Store) Fresh(maxAge time.Duration) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.has && time.Since(s.updated) < maxAge
}

// Server serves the snapshot API.
type Server struct {
	store   *Store
	log     logging.Logger
	maxAge  time.Duration
	metrics http.Handler

	httpServer *http.Server
}

// New constructs a server. maxAge bounds how stale a snapshot may be before
// /healthz reports 503; metrics may be nil to omit the /metrics route.
func New(store *Store, maxAge time.Duration, metrics http.Handler, log logging.Logger) *Server {
	if log == nil {
		log = logging.Noop()
	}
	return &Server{
		store:   store,
		log:     log,
		maxAge:  maxAge,
		metrics: metrics,
	}
}

// Handler builds the route table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/trail", s.handleTrail)
	mux.HandleFunc("GET /api/position", s.handlePosition)
	mux.HandleFunc("GET /healthz", s.handleHealth)
	if s.metrics != nil {
		mux.Handle("GET /metrics", s.metrics)
	}
	return mux
}

// ListenAndServe runs the HTTP listener until ctx is cancelled, then shuts
// down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, port int) error {
	s.httpServer = &http.Server{
		Addr:    net.JoinHostPort("", fmt.Sprintf("%d", port)),
		Handler: s.Handler(),
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info(ctx, "http server listening", logging.Int("port", port))
		errCh <- s.httpServer.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.httpServer.Shutdown(shutdownCtx)
	case err := <-errCh:
		if err == http.ErrServerClosed {
			return nil
		}
		return err
	}
}

func (s *Server) handleTrail(w http.ResponseWriter, r *http.Request) {
	snap, ok := s.store.Get()
	if !ok {
		writeError(w, http.StatusServiceUnavailable, "no position received yet")
		return
	}
	writeJSON(w, snap)
}

func (s *Server) handlePosition(w http.ResponseWriter, r *http.Request) {
	snap, ok := s.store.Get()
	if !ok {
		writeError(w, http.StatusServiceUnavailable, "no position received yet")
		return
	}
	writeJSON(w, snap.Position)
}

type healthResponse struct {
	Status      string `json:"status"`
	LatestEpoch int64  `json:"latest_position_epoch"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	snap, ok := s.store.Get()
	resp := healthResponse{Status: "ok"}
	if ok {
		resp.LatestEpoch = snap.Position.Timestamp.Unix()
	}
	if !s.store.Fresh(s.maxAge) {
		resp.Status = "stale"
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusServiceUnavailable)
		_ = json.NewEncoder(w).Encode(resp)
		return
	}
	writeJSON(w, resp)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
