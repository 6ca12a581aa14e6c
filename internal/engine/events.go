package engine

import "github.com/talgya/civil-violence/internal/agents"

// Event categories.
const (
	EventArrest     = "arrest"
	EventRelease    = "release"
	EventInfluencer = "influencer"
)

// Event is a notable occurrence during a run.
type Event struct {
	Seq         uint64         `json:"seq"`
	Tick        uint64         `json:"tick"`
	Category    string         `json:"category"`
	AgentID     agents.AgentID `json:"agent_id"`
	Description string         `json:"description"`
}

func (s *Simulation) emit(category string, id agents.AgentID, desc string) {
	s.eventSeq++
	s.Events = append(s.Events, Event{
		Seq:         s.eventSeq,
		Tick:        s.tick,
		Category:    category,
		AgentID:     id,
		Description: desc,
	})
	// Trim old events to prevent unbounded growth.
	if len(s.Events) > 2*maxEvents {
		s.Events = append([]Event(nil), s.Events[len(s.Events)-maxEvents:]...)
	}
}

// EventsSince returns retained events with Seq greater than seq, oldest
// first. Events trimmed from the window are not returned.
func (s *Simulation) EventsSince(seq uint64) []Event {
	i := len(s.Events)
	for i > 0 && s.Events[i-1].Seq > seq {
		i--
	}
	out := make([]Event, len(s.Events)-i)
	copy(out, s.Events[i:])
	return out
}

// RecentEvents returns up to n of the newest events, oldest first.
func (s *Simulation) RecentEvents(n int) []Event {
	if n <= 0 || n > len(s.Events) {
		n = len(s.Events)
	}
	out := make([]Event, n)
	copy(out, s.Events[len(s.Events)-n:])
	return out
}
