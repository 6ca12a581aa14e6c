package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/talgya/civil-violence/internal/config"
	"github.com/talgya/civil-violence/internal/engine"
	"github.com/talgya/civil-violence/internal/persistence"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	cfg := config.Default()
	cfg.Width, cfg.Height = 12, 12
	cfg.MaxIterations = 20
	cfg.Seed = 5
	cfg.InitialLegitimacy = 0.5
	sim, err := engine.New(cfg)
	if err != nil {
		t.Fatalf("engine.New: %v", err)
	}
	eng := engine.NewEngine(sim)
	if err := eng.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	return &Server{Eng: eng, Hub: NewHub(), AdminKey: "secret"}
}

func get(t *testing.T, h http.Handler, path string, out any) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	if out != nil && rec.Code == http.StatusOK {
		if err := json.Unmarshal(rec.Body.Bytes(), out); err != nil {
			t.Fatalf("%s: decode: %v\n%s", path, err, rec.Body.String())
		}
	}
	return rec
}

func TestStatus(t *testing.T) {
	s := newTestServer(t)
	var status struct {
		Tick     uint64 `json:"tick"`
		Running  bool   `json:"running"`
		Citizens int    `json:"citizens"`
		Counts   struct {
			Quiescent int `json:"quiescent"`
			Active    int `json:"active"`
			Jailed    int `json:"jailed"`
		} `json:"counts"`
		Speed float64 `json:"speed"`
	}
	rec := get(t, s.Handler(), "/api/v1/status", &status)
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d", rec.Code)
	}
	if status.Tick != 21 || status.Running {
		t.Fatalf("expected finished run at tick 21, got %+v", status)
	}
	if status.Counts.Quiescent+status.Counts.Active+status.Counts.Jailed != status.Citizens {
		t.Fatalf("counts do not add up: %+v", status)
	}
	if status.Speed != 1 {
		t.Fatalf("speed %f, want 1", status.Speed)
	}
}

func TestSeries(t *testing.T) {
	s := newTestServer(t)
	h := s.Handler()

	var all []engine.TickRecord
	get(t, h, "/api/v1/series", &all)
	if len(all) != 22 {
		t.Fatalf("expected 22 records, got %d", len(all))
	}
	for _, rec := range all {
		if rec.Agents != nil {
			t.Fatal("series must not carry agent snapshots")
		}
	}

	var tail []engine.TickRecord
	get(t, h, "/api/v1/series?since=18", &tail)
	if len(tail) != 3 || tail[0].Tick != 19 {
		t.Fatalf("unexpected tail %+v", tail)
	}

	if rec := get(t, h, "/api/v1/series?since=-1", nil); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for a bad since, got %d", rec.Code)
	}
}

func TestAgents(t *testing.T) {
	s := newTestServer(t)
	h := s.Handler()

	var all struct {
		Citizens []engine.AgentSnapshot `json:"citizens"`
		Cops     []json.RawMessage      `json:"cops"`
	}
	get(t, h, "/api/v1/agents", &all)
	if len(all.Citizens) != len(s.Eng.Sim.Citizens) || len(all.Cops) != len(s.Eng.Sim.Cops) {
		t.Fatalf("got %d citizens %d cops", len(all.Citizens), len(all.Cops))
	}

	var jailed struct {
		Citizens []engine.AgentSnapshot `json:"citizens"`
	}
	get(t, h, "/api/v1/agents?state=jailed", &jailed)
	for _, c := range jailed.Citizens {
		if c.X != -1 || c.Y != -1 {
			t.Fatalf("jailed citizen %d reported on grid", c.ID)
		}
	}

	if rec := get(t, h, "/api/v1/agents?state=rioting", nil); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown state, got %d", rec.Code)
	}
}

func TestGraph(t *testing.T) {
	s := newTestServer(t)
	var g struct {
		Nodes []uint64          `json:"nodes"`
		Edges []json.RawMessage `json:"edges"`
	}
	get(t, s.Handler(), "/api/v1/graph", &g)
	if len(g.Nodes) != s.Eng.Sim.Graph.Len() || len(g.Edges) != s.Eng.Sim.Graph.EdgeCount() {
		t.Fatalf("graph payload %d nodes %d edges", len(g.Nodes), len(g.Edges))
	}
}

func TestEvents(t *testing.T) {
	s := newTestServer(t)
	h := s.Handler()

	var events []engine.Event
	get(t, h, "/api/v1/events?limit=5", &events)
	if len(events) > 5 {
		t.Fatalf("limit ignored: %d events", len(events))
	}

	var arrests []engine.Event
	get(t, h, "/api/v1/events?since=0&category=arrest", &arrests)
	for _, e := range arrests {
		if e.Category != engine.EventArrest {
			t.Fatalf("category filter leaked %q", e.Category)
		}
	}
}

func TestOutbreaks(t *testing.T) {
	s := newTestServer(t)
	h := s.Handler()

	var out struct {
		Peaks  []int `json:"peaks"`
		Widths []int `json:"widths"`
		Ticks  int   `json:"ticks"`
	}
	if rec := get(t, h, "/api/v1/outbreaks?threshold=2", &out); rec.Code != http.StatusOK {
		t.Fatalf("status %d", rec.Code)
	}
	if out.Peaks == nil || out.Widths == nil || len(out.Peaks) != len(out.Widths) {
		t.Fatalf("peaks and widths must be aligned arrays: %+v", out)
	}
	if out.Ticks != 22 {
		t.Fatalf("expected 22 ticks of series, got %d", out.Ticks)
	}

	for _, q := range []string{"", "?threshold=x", "?threshold=-2"} {
		if rec := get(t, h, "/api/v1/outbreaks"+q, nil); rec.Code != http.StatusBadRequest {
			t.Fatalf("%q: expected 400, got %d", q, rec.Code)
		}
	}
}

func TestRuns_NoStore(t *testing.T) {
	s := newTestServer(t)
	if rec := get(t, s.Handler(), "/api/v1/runs", nil); rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 without a store, got %d", rec.Code)
	}
}

func TestRunDetail(t *testing.T) {
	s := newTestServer(t)
	db, err := persistence.Open(filepath.Join(t.TempDir(), "runs.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer db.Close()

	var records []engine.TickRecord
	var events []engine.Event
	var cfg config.Config
	s.Eng.View(func(sim *engine.Simulation) {
		records = sim.Recorder.Records()
		events = sim.RecentEvents(len(sim.Events))
		cfg = sim.Config
	})
	id, err := db.CreateRun(cfg)
	if err != nil {
		t.Fatalf("CreateRun: %v", err)
	}
	if err := db.SaveTicks(id, records); err != nil {
		t.Fatalf("SaveTicks: %v", err)
	}
	if err := db.SaveEvents(id, events); err != nil {
		t.Fatalf("SaveEvents: %v", err)
	}
	if err := db.SaveOutbreaks(id, 3, []int{8}, []int{4}); err != nil {
		t.Fatalf("SaveOutbreaks: %v", err)
	}
	s.DB = db
	h := s.Handler()

	var detail struct {
		Run       persistence.Run        `json:"run"`
		Events    []engine.Event         `json:"events"`
		Threshold int                    `json:"threshold"`
		Outbreaks []persistence.Outbreak `json:"outbreaks"`
	}
	if rec := get(t, h, "/api/v1/runs/"+id+"?threshold=3", &detail); rec.Code != http.StatusOK {
		t.Fatalf("run detail: %d %s", rec.Code, rec.Body.String())
	}
	if detail.Run.ID != id || detail.Run.Seed != cfg.Seed {
		t.Fatalf("unexpected run %+v", detail.Run)
	}
	if len(detail.Outbreaks) != 1 || detail.Outbreaks[0].Peak != 8 {
		t.Fatalf("unexpected outbreaks %+v", detail.Outbreaks)
	}
	if len(detail.Events) > 20 {
		t.Fatalf("expected at most 20 events, got %d", len(detail.Events))
	}

	var snaps struct {
		Tick   uint64                 `json:"tick"`
		Agents []engine.AgentSnapshot `json:"agents"`
	}
	if rec := get(t, h, "/api/v1/runs/"+id+"/agents?tick=0", &snaps); rec.Code != http.StatusOK {
		t.Fatalf("run agents: %d %s", rec.Code, rec.Body.String())
	}
	if len(snaps.Agents) != len(records[0].Agents) {
		t.Fatalf("expected %d snapshots at tick 0, got %d", len(records[0].Agents), len(snaps.Agents))
	}

	if rec := get(t, h, "/api/v1/runs/"+id+"/agents", nil); rec.Code != http.StatusBadRequest {
		t.Fatalf("missing tick: expected 400, got %d", rec.Code)
	}
	if rec := get(t, h, "/api/v1/runs/no-such-run", nil); rec.Code != http.StatusNotFound {
		t.Fatalf("unknown run: expected 404, got %d", rec.Code)
	}
}

func TestAdminAuth(t *testing.T) {
	s := newTestServer(t)
	h := s.Handler()

	post := func(path, token, body string) int {
		req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec.Code
	}

	if code := post("/api/v1/speed", "", `{"speed":2}`); code != http.StatusUnauthorized {
		t.Fatalf("missing token: expected 401, got %d", code)
	}
	if code := post("/api/v1/speed", "wrong", `{"speed":2}`); code != http.StatusUnauthorized {
		t.Fatalf("wrong token: expected 401, got %d", code)
	}
	if code := post("/api/v1/speed", "secret", `{"speed":2}`); code != http.StatusOK {
		t.Fatalf("valid token: expected 200, got %d", code)
	}
	if s.Eng.Speed() != 2 {
		t.Fatalf("speed not applied: %f", s.Eng.Speed())
	}
	if code := post("/api/v1/speed", "secret", `{"speed":-1}`); code != http.StatusBadRequest {
		t.Fatalf("negative speed: expected 400, got %d", code)
	}
	if code := post("/api/v1/stop", "secret", ""); code != http.StatusOK {
		t.Fatalf("stop: expected 200, got %d", code)
	}

	s.AdminKey = ""
	if code := post("/api/v1/stop", "secret", ""); code != http.StatusForbidden {
		t.Fatalf("no admin key: expected 403, got %d", code)
	}
}

func TestCORS(t *testing.T) {
	s := newTestServer(t)
	req := httptest.NewRequest(http.MethodOptions, "/api/v1/status", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("preflight: expected 204, got %d", rec.Code)
	}
	if rec.Header().Get("Access-Control-Allow-Origin") != "http://localhost:5173" {
		t.Fatal("allowed origin not echoed")
	}
}
