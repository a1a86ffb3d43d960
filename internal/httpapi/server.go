// Package httpapi is the probe node's own small operational surface: a
// liveness probe, an operational-state snapshot, and an internal ring
// debug endpoint. It is deliberately not a CRUD API for checks — that
// lives behind internal/facade, called by an external HTTP server out of
// this module's scope.
package httpapi

import (
	"encoding/json"
	"expvar"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/hamed0406/uptimechecker/internal/cluster"
	"github.com/hamed0406/uptimechecker/internal/httpapi/middleware"
)

type Server struct {
	Logger      *zap.Logger
	Heartbeater *cluster.Heartbeater
	NodeID      string
	Region      string

	DroppedWrites *expvar.Int
	SkippedChecks *expvar.Int
}

func NewServer(l *zap.Logger, hb *cluster.Heartbeater, nodeID, region string, droppedWrites, skippedChecks *expvar.Int) *Server {
	return &Server{
		Logger:        l,
		Heartbeater:   hb,
		NodeID:        nodeID,
		Region:        region,
		DroppedWrites: droppedWrites,
		SkippedChecks: skippedChecks,
	}
}

// Router wires the three-endpoint surface. adminKeys guards /debug/ring to
// admin keys only and /metrics to any configured key (public or admin);
// pass a zero-value middleware.Keys to disable both checks for local dev.
func (s *Server) Router(adminKeys middleware.Keys) http.Handler {
	r := chi.NewRouter()
	r.Use(cors.AllowAll().Handler)

	r.Get("/healthz", s.handleHealthz)

	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireAny(adminKeys))
		r.Get("/metrics", s.handleMetrics)
	})

	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireAdmin(adminKeys))
		r.Use(middleware.RateLimit(120, 30))
		r.Get("/debug/ring", s.handleDebugRing)
	})

	return r
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	if s.Heartbeater != nil && s.Heartbeater.SelfFenced() {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("fenced"))
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// handleMetrics reports this node's own operational state -- not check
// uptime metrics, which live behind internal/facade.GetMetrics.
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	state := "unknown"
	if s.Heartbeater != nil {
		state = s.Heartbeater.State().String()
	}

	resp := map[string]any{
		"node_id": s.NodeID,
		"region":  s.Region,
		"state":   state,
	}
	if s.DroppedWrites != nil {
		resp["dropped_result_writes"] = s.DroppedWrites.Value()
	}
	if s.SkippedChecks != nil {
		resp["skipped_checks"] = s.SkippedChecks.Value()
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}

// handleDebugRing reports the last ring view this node computed, for
// operator debugging -- never consumed by another service.
func (s *Server) handleDebugRing(w http.ResponseWriter, r *http.Request) {
	if s.Heartbeater == nil {
		http.Error(w, "heartbeater not wired", http.StatusServiceUnavailable)
		return
	}
	view := s.Heartbeater.LastView()
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(view)
}
