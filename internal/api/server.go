// Package api exposes a small operator-facing HTTP+WebSocket surface:
// health, a read-only snapshot, a live event stream, and the prometheus
// metrics endpoint. Adapted from the teacher's internal/api dashboard.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/xervantex/scalpl/internal/metrics"
)

// SnapshotProvider is implemented by whatever owns the running actors
// (cmd/marketmaker's main wiring) and can produce a point-in-time view for
// the dashboard.
type SnapshotProvider interface {
	Snapshot(ctx context.Context) (Snapshot, error)
}

// Snapshot is the read-only view served at /api/snapshot and broadcast over
// /ws.
type Snapshot struct {
	Pair      string              `json:"pair"`
	BestBid   float64             `json:"best_bid"`
	BestAsk   float64             `json:"best_ask"`
	Balances  map[string]float64  `json:"balances"`
	LiveOrdersCount int           `json:"live_orders_count"`
	RiskActive bool               `json:"risk_active"`
	UpdatedAt time.Time           `json:"updated_at"`
}

// Controller is implemented by the Maker to accept operator pause/resume
// commands POSTed to /api/control.
type Controller interface {
	Pause()
	Resume()
}

// Server wires the mux and owns the WebSocket hub.
type Server struct {
	provider SnapshotProvider
	ctrl     Controller
	hub      *Hub
	server   *http.Server
	logger   *slog.Logger
}

// NewServer builds the HTTP server; it does not start listening until
// Start is called.
func NewServer(port int, provider SnapshotProvider, ctrl Controller, logger *slog.Logger) *Server {
	log := logger.With("component", "api")
	hub := NewHub(log)

	mux := http.NewServeMux()
	s := &Server{provider: provider, ctrl: ctrl, hub: hub, logger: log}

	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/api/snapshot", s.handleSnapshot)
	mux.HandleFunc("/api/control", s.handleControl)
	mux.Handle("/metrics", promhttp.HandlerFor(metrics.Registry(), promhttp.HandlerOpts{}))
	mux.HandleFunc("/ws", hub.ServeWS)

	s.server = &http.Server{
		Addr:    formatAddr(port),
		Handler: mux,
	}
	return s
}

func formatAddr(port int) string {
	if port <= 0 {
		port = 8787
	}
	return fmt.Sprintf(":%d", port)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	snap, err := s.provider.Snapshot(r.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(snap)
}

func (s *Server) handleControl(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var body struct {
		Command string `json:"command"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	switch body.Command {
	case "pause":
		s.ctrl.Pause()
	case "resume":
		s.ctrl.Resume()
	default:
		http.Error(w, "unknown command", http.StatusBadRequest)
		return
	}
	w.WriteHeader(http.StatusOK)
}

// Start runs the hub and the HTTP server until Stop is called. Start
// blocks; call it in its own goroutine.
func (s *Server) Start() error {
	go s.hub.Run()
	s.logger.Info("dashboard listening", "addr", s.server.Addr)
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Stop gracefully shuts the server down.
func (s *Server) Stop(ctx context.Context) error {
	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	s.hub.Close()
	return s.server.Shutdown(shutdownCtx)
}

// BroadcastSnapshot pushes a snapshot to all connected WebSocket clients.
func (s *Server) BroadcastSnapshot(snap Snapshot) {
	b, err := json.Marshal(snap)
	if err != nil {
		s.logger.Warn("snapshot marshal failed", "error", err)
		return
	}
	s.hub.Broadcast(b)
}
