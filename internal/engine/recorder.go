package engine

import (
	"github.com/talgya/civil-violence/internal/agents"
)

// TickRecord is the aggregate state after one tick (tick 0 is the initial
// population).
type TickRecord struct {
	Tick        uint64          `json:"tick"`
	Quiescent   int             `json:"quiescent"`
	Active      int             `json:"active"`
	Jailed      int             `json:"jailed"`
	Legitimacy  float64         `json:"legitimacy"`
	Influencers int             `json:"influencers"`
	GraphNodes  int             `json:"graph_nodes"`
	Agents      []AgentSnapshot `json:"agents,omitempty"`
}

// AgentSnapshot is one citizen's state at the end of a tick. Jailed
// citizens are off the grid and report -1 for both coordinates.
type AgentSnapshot struct {
	ID       agents.AgentID `json:"id"`
	State    agents.State   `json:"state"`
	X        int            `json:"x"`
	Y        int            `json:"y"`
	JailTerm int            `json:"jail_term_remaining"`
}

// Recorder accumulates one TickRecord per completed tick.
type Recorder struct {
	recordAgents bool
	records      []TickRecord
}

// NewRecorder creates a recorder; recordAgents adds per-citizen snapshots.
func NewRecorder(recordAgents bool) *Recorder {
	return &Recorder{recordAgents: recordAgents}
}

// Record appends the current state of s.
func (r *Recorder) Record(s *Simulation) {
	counts := s.Counts()
	rec := TickRecord{
		Tick:        s.Iteration,
		Quiescent:   counts.Quiescent,
		Active:      counts.Active,
		Jailed:      counts.Jailed,
		Legitimacy:  s.Legitimacy,
		Influencers: len(s.Graph.Influencers(s.Config.InfluencerThreshold)),
		GraphNodes:  s.Graph.Len(),
	}
	if r.recordAgents {
		rec.Agents = Snapshot(s)
	}
	r.records = append(r.records, rec)
}

// Snapshot captures every citizen in creation order.
func Snapshot(s *Simulation) []AgentSnapshot {
	out := make([]AgentSnapshot, 0, len(s.Citizens))
	for _, c := range s.Citizens {
		snap := AgentSnapshot{ID: c.ID, State: c.State, X: -1, Y: -1}
		if c.State == agents.Jailed {
			snap.JailTerm = c.JailTerm
		} else if pos, ok := s.Field.Position(c.ID); ok {
			snap.X, snap.Y = pos.X, pos.Y
		}
		out = append(out, snap)
	}
	return out
}

// Records returns every record, oldest first. The slice is shared.
func (r *Recorder) Records() []TickRecord {
	return r.records
}

// Len returns the number of records.
func (r *Recorder) Len() int {
	return len(r.records)
}

// Latest returns the most recent record.
func (r *Recorder) Latest() (TickRecord, bool) {
	if len(r.records) == 0 {
		return TickRecord{}, false
	}
	return r.records[len(r.records)-1], true
}

// Since returns records with Tick > tick.
func (r *Recorder) Since(tick uint64) []TickRecord {
	for i, rec := range r.records {
		if rec.Tick > tick {
			return r.records[i:]
		}
	}
	return nil
}

// Series extracts one integer column, e.g. ActiveSeries for outbreak
// detection.
func (r *Recorder) Series(field func(TickRecord) int) []int {
	out := make([]int, len(r.records))
	for i, rec := range r.records {
		out[i] = field(rec)
	}
	return out
}

// ActiveSeries is the ACTIVE count per tick.
func (r *Recorder) ActiveSeries() []int {
	return r.Series(func(rec TickRecord) int { return rec.Active })
}
