// Law enforcement: cops arrest one visible active citizen per tick.

package engine

import (
	"fmt"
	"log/slog"

	"github.com/talgya/civil-violence/internal/agents"
)

// copTurn arrests a uniformly chosen active citizen within vision, if any,
// then patrols to a free cell in view.
func (s *Simulation) copTurn(cop *agents.Cop) {
	pos := s.mustPosition(cop.ID)
	cells := s.Field.Neighborhood(pos, cop.Vision)

	var suspects []*agents.Citizen
	for _, cell := range cells {
		for _, id := range s.Field.Occupants(cell) {
			if c, ok := s.CitizenIndex[id]; ok && c.State == agents.Active {
				suspects = append(suspects, c)
			}
		}
	}
	if len(suspects) > 0 {
		s.arrest(cop, suspects[s.rng.Intn(len(suspects))])
	}

	if s.Config.Movement {
		s.wander(cop.ID, cells)
	}
}

// arrest takes the citizen off the grid and sentences it.
func (s *Simulation) arrest(cop *agents.Cop, c *agents.Citizen) {
	c.LastPos = s.mustPosition(c.ID)
	s.Field.Remove(c.ID)
	c.State = agents.Jailed
	c.JailTerm = agents.DrawJailTerm(s.rng, s.Config.MaxJailTerm, s.Config.DeterministicJailTerm)
	c.JailedAt = s.tick

	s.emit(EventArrest, c.ID, fmt.Sprintf("cop %d jailed citizen %d for %d ticks", cop.ID, c.ID, c.JailTerm))
	slog.Debug("arrest",
		"tick", s.tick,
		"cop", cop.ID,
		"citizen", c.ID,
		"term", c.JailTerm,
		"x", c.LastPos.X,
		"y", c.LastPos.Y,
	)
}
