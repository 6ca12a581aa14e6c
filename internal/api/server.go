// Package api provides the HTTP API for observing a running simulation.
// GET endpoints are public (read-only observation).
// POST endpoints require a bearer token (admin control plane).
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/talgya/civil-violence/internal/agents"
	"github.com/talgya/civil-violence/internal/engine"
	"github.com/talgya/civil-violence/internal/outbreak"
	"github.com/talgya/civil-violence/internal/persistence"
)

// Server serves simulation state over HTTP.
type Server struct {
	Eng      *engine.Engine
	Hub      *Hub            // tick stream; nil disables /api/v1/stream
	DB       *persistence.DB // optional run store for /api/v1/runs
	RunID    string          // ID of the live run in DB, if any
	Port     int
	AdminKey string // Bearer token for POST endpoints. Empty = POST disabled.

	streamConns atomic.Int32
}

// Handler builds the route table.
func (s *Server) Handler() http.Handler {
	streamLimiter := NewRateLimiter(30, time.Minute)

	mux := http.NewServeMux()

	// Public endpoints.
	mux.HandleFunc("/api/v1/status", s.handleStatus)
	mux.HandleFunc("/api/v1/series", s.handleSeries)
	mux.HandleFunc("/api/v1/agents", s.handleAgents)
	mux.HandleFunc("/api/v1/graph", s.handleGraph)
	mux.HandleFunc("/api/v1/events", s.handleEvents)
	mux.HandleFunc("/api/v1/outbreaks", s.handleOutbreaks)
	mux.HandleFunc("/api/v1/runs", s.handleRuns)
	mux.HandleFunc("GET /api/v1/runs/{id}", s.handleRun)
	mux.HandleFunc("GET /api/v1/runs/{id}/agents", s.handleRunAgents)
	mux.HandleFunc("/api/v1/stream", RateLimitMiddleware(streamLimiter, s.handleStream))

	// Admin endpoints (POST, require bearer token).
	mux.HandleFunc("/api/v1/speed", s.adminOnly(s.handleSpeed))
	mux.HandleFunc("/api/v1/stop", s.adminOnly(s.handleStop))

	return corsMiddleware(mux)
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	addr := fmt.Sprintf(":%d", s.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	slog.Info("HTTP API starting", "addr", addr, "admin_auth", s.AdminKey != "", "stream", s.Hub != nil)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// corsMiddleware adds CORS headers for allowed frontend origins.
// CVSIM_CORS_ORIGINS adds a comma-separated list of origins; localhost dev
// servers are always allowed.
func corsMiddleware(next http.Handler) http.Handler {
	allowedOrigins := map[string]bool{
		"http://localhost:5173": true,
		"http://localhost:3000": true,
	}
	if env := os.Getenv("CVSIM_CORS_ORIGINS"); env != "" {
		for _, origin := range strings.Split(env, ",") {
			if origin = strings.TrimSpace(origin); origin != "" {
				allowedOrigins[origin] = true
			}
		}
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if allowedOrigins[origin] {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		}
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// checkBearerToken returns true if the request has a valid admin bearer token.
func (s *Server) checkBearerToken(r *http.Request) bool {
	auth := r.Header.Get("Authorization")
	return strings.HasPrefix(auth, "Bearer ") && strings.TrimPrefix(auth, "Bearer ") == s.AdminKey
}

// adminOnly wraps a handler to require bearer token auth on POST requests.
// GET requests pass through.
func (s *Server) adminOnly(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			if s.AdminKey == "" {
				http.Error(w, "admin endpoints disabled (no CVSIM_ADMIN_KEY set)", http.StatusForbidden)
				return
			}
			if !s.checkBearerToken(r) {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
		}
		next(w, r)
	}
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	var status map[string]any
	s.Eng.View(func(sim *engine.Simulation) {
		counts := sim.Counts()
		status = map[string]any{
			"tick":           sim.CurrentTick(),
			"running":        sim.Running,
			"max_iterations": sim.Config.MaxIterations,
			"seed":           sim.Config.Seed,
			"grid":           map[string]int{"width": sim.Config.Width, "height": sim.Config.Height},
			"citizens":       len(sim.Citizens),
			"cops":           len(sim.Cops),
			"counts":         counts,
			"legitimacy":     sim.Legitimacy,
			"graph": map[string]any{
				"topology":    sim.Config.Graph.Topology,
				"nodes":       sim.Graph.Len(),
				"edges":       sim.Graph.EdgeCount(),
				"influencers": len(sim.Graph.Influencers(sim.Config.InfluencerThreshold)),
			},
		}
	})
	status["speed"] = s.Eng.Speed()
	if s.RunID != "" {
		status["run_id"] = s.RunID
	}
	writeJSON(w, status)
}

// handleSeries returns tick records without agent snapshots. ?since=N keeps
// records after tick N.
func (s *Server) handleSeries(w http.ResponseWriter, r *http.Request) {
	since, hasSince, err := uintParam(r, "since")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	var out []engine.TickRecord
	s.Eng.View(func(sim *engine.Simulation) {
		recs := sim.Recorder.Records()
		if hasSince {
			recs = sim.Recorder.Since(since)
		}
		out = make([]engine.TickRecord, len(recs))
		for i, rec := range recs {
			rec.Agents = nil
			out[i] = rec
		}
	})
	writeJSON(w, out)
}

// handleAgents returns the current citizen snapshots, optionally filtered
// by ?state=QUIESCENT|ACTIVE|JAILED.
func (s *Server) handleAgents(w http.ResponseWriter, r *http.Request) {
	var filter *agents.State
	if v := r.URL.Query().Get("state"); v != "" {
		var st agents.State
		if err := st.UnmarshalText([]byte(strings.ToUpper(v))); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		filter = &st
	}

	type copEntry struct {
		ID agents.AgentID `json:"id"`
		X  int            `json:"x"`
		Y  int            `json:"y"`
	}

	citizens := []engine.AgentSnapshot{}
	cops := []copEntry{}
	s.Eng.View(func(sim *engine.Simulation) {
		for _, snap := range engine.Snapshot(sim) {
			if filter == nil || snap.State == *filter {
				citizens = append(citizens, snap)
			}
		}
		for _, c := range sim.Cops {
			pos, _ := sim.Field.Position(c.ID)
			cops = append(cops, copEntry{ID: c.ID, X: pos.X, Y: pos.Y})
		}
	})

	result := map[string]any{"citizens": citizens}
	if filter == nil {
		result["cops"] = cops
	}
	writeJSON(w, result)
}

func (s *Server) handleGraph(w http.ResponseWriter, r *http.Request) {
	var result map[string]any
	s.Eng.View(func(sim *engine.Simulation) {
		result = map[string]any{
			"topology":    sim.Config.Graph.Topology,
			"nodes":       sim.Graph.Nodes(),
			"edges":       sim.Graph.Edges(),
			"influencers": sim.Graph.Influencers(sim.Config.InfluencerThreshold),
		}
	})
	writeJSON(w, result)
}

// handleEvents returns recent events. ?since=SEQ returns everything newer
// than SEQ instead of the last ?limit (default 50, max 500).
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if l := r.URL.Query().Get("limit"); l != "" {
		if n, err := strconv.Atoi(l); err == nil && n > 0 && n <= 500 {
			limit = n
		}
	}
	since, hasSince, err := uintParam(r, "since")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	category := r.URL.Query().Get("category")

	var events []engine.Event
	s.Eng.View(func(sim *engine.Simulation) {
		if hasSince {
			events = sim.EventsSince(since)
		} else {
			events = sim.RecentEvents(len(sim.Events))
		}
	})

	if category != "" {
		filtered := events[:0]
		for _, e := range events {
			if e.Category == category {
				filtered = append(filtered, e)
			}
		}
		events = filtered
	}
	if !hasSince && len(events) > limit {
		events = events[len(events)-limit:]
	}
	writeJSON(w, events)
}

// handleOutbreaks runs the outbreak detector over the ACTIVE series so far.
func (s *Server) handleOutbreaks(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("threshold")
	if raw == "" {
		http.Error(w, "threshold required", http.StatusBadRequest)
		return
	}
	threshold, err := strconv.Atoi(raw)
	if err != nil || threshold < 0 {
		http.Error(w, "threshold must be a non-negative integer", http.StatusBadRequest)
		return
	}

	var series []int
	s.Eng.View(func(sim *engine.Simulation) {
		series = sim.Recorder.ActiveSeries()
	})
	peaks, widths := outbreak.Detect(series, threshold)

	writeJSON(w, map[string]any{
		"threshold": threshold,
		"ticks":     len(series),
		"peaks":     peaks,
		"widths":    widths,
		"summary":   outbreak.Summarize(peaks, widths, 1),
	})
}

func (s *Server) handleRuns(w http.ResponseWriter, r *http.Request) {
	if s.DB == nil {
		http.Error(w, "no run store configured", http.StatusNotFound)
		return
	}
	runs, err := s.DB.ListRuns()
	if err != nil {
		slog.Error("list runs failed", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, runs)
}

// handleRun returns a stored run with its most recent events and the
// outbreaks saved for it at ?threshold (default 50).
func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	if s.DB == nil {
		http.Error(w, "no run store configured", http.StatusNotFound)
		return
	}
	threshold := 50
	if v, ok, err := uintParam(r, "threshold"); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	} else if ok {
		threshold = int(v)
	}

	run, err := s.DB.GetRun(r.PathValue("id"))
	if errors.Is(err, persistence.ErrRunNotFound) {
		http.Error(w, "run not found", http.StatusNotFound)
		return
	}
	if err != nil {
		slog.Error("get run failed", "run", r.PathValue("id"), "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	events, err := s.DB.RecentEvents(run.ID, 20)
	if err != nil {
		slog.Error("load run events failed", "run", run.ID, "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	outbreaks, err := s.DB.LoadOutbreaks(run.ID, threshold)
	if err != nil {
		slog.Error("load run outbreaks failed", "run", run.ID, "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	if outbreaks == nil {
		outbreaks = []persistence.Outbreak{}
	}

	writeJSON(w, map[string]any{
		"run":       run,
		"events":    events,
		"threshold": threshold,
		"outbreaks": outbreaks,
	})
}

// handleRunAgents returns the stored agent snapshots of a run at ?tick.
func (s *Server) handleRunAgents(w http.ResponseWriter, r *http.Request) {
	if s.DB == nil {
		http.Error(w, "no run store configured", http.StatusNotFound)
		return
	}
	tick, ok, err := uintParam(r, "tick")
	if err != nil || !ok {
		http.Error(w, "tick is required and must be a non-negative integer", http.StatusBadRequest)
		return
	}

	run, err := s.DB.GetRun(r.PathValue("id"))
	if errors.Is(err, persistence.ErrRunNotFound) {
		http.Error(w, "run not found", http.StatusNotFound)
		return
	}
	if err != nil {
		slog.Error("get run failed", "run", r.PathValue("id"), "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	snaps, err := s.DB.LoadSnapshots(run.ID, tick)
	if err != nil {
		slog.Error("load snapshots failed", "run", run.ID, "tick", tick, "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	writeJSON(w, map[string]any{"run": run.ID, "tick": tick, "agents": snaps})
}

func (s *Server) handleSpeed(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodPost {
		var req struct {
			Speed float64 `json:"speed"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}
		if req.Speed < 0 || req.Speed > 1000 {
			http.Error(w, "speed must be 0-1000", http.StatusBadRequest)
			return
		}
		s.Eng.SetSpeed(req.Speed)
		slog.Info("speed changed", "speed", req.Speed)
	}

	writeJSON(w, map[string]float64{"speed": s.Eng.Speed()})
}

func (s *Server) handleStop(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	s.Eng.Stop()
	var tick uint64
	s.Eng.View(func(sim *engine.Simulation) { tick = sim.CurrentTick() })
	slog.Info("stop requested via API", "tick", tick)
	writeJSON(w, map[string]any{"tick": tick, "message": "stopping"})
}

func uintParam(r *http.Request, name string) (uint64, bool, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return 0, false, nil
	}
	n, err := strconv.ParseUint(v, 10, 64)
	if err != nil {
		return 0, false, fmt.Errorf("%s must be a non-negative integer", name)
	}
	return n, true, nil
}

func writeJSON(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.Encode(data)
}
