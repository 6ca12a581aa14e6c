// Citizen turns: perceive the neighborhood, decide, act. Jailed citizens
// only serve time.

package engine

import (
	"fmt"
	"log/slog"

	"github.com/talgya/civil-violence/internal/agents"
	"github.com/talgya/civil-violence/internal/logging"
	"github.com/talgya/civil-violence/internal/world"
)

func (s *Simulation) citizenTurn(c *agents.Citizen) {
	if c.State == agents.Jailed {
		s.serveJail(c)
		return
	}

	pos := s.mustPosition(c.ID)
	cells := s.Field.Neighborhood(pos, c.Vision)
	cops, actives := s.visibleForces(cells)

	grievance := agents.Grievance(c.Hardship, s.Legitimacy)
	if s.Config.NetworkInfluence > 0 {
		grievance += s.socialPressure(c.ID)
	}
	prob := agents.ArrestProbability(cops, actives, s.Config.K, s.Config.P)
	risk := agents.NetRisk(c.RiskAversion, prob, s.Config.MaxJailTerm)
	c.State = agents.Decide(grievance, risk, c.Threshold)

	if logging.TraceEnabled() {
		logging.Trace("citizen decided",
			"tick", s.tick, "citizen", c.ID, "cops", cops, "actives", actives,
			"grievance", grievance, "net_risk", risk, "state", c.State)
	}

	if s.Config.Movement {
		s.wander(c.ID, cells)
	}
}

// visibleForces counts cops and active citizens in cells. An active
// citizen counts itself, since its own cell is always in view. Unlike
// Epstein's original, a quiescent citizen does not count itself, so with no
// actives in view it gets the floor p however many cops surround it.
func (s *Simulation) visibleForces(cells []world.Coord) (cops, actives int) {
	for _, cell := range cells {
		for _, id := range s.Field.Occupants(cell) {
			if c, ok := s.CitizenIndex[id]; ok {
				if c.State == agents.Active {
					actives++
				}
				continue
			}
			if _, ok := s.CopIndex[id]; ok {
				cops++
			}
		}
	}
	return cops, actives
}

// socialPressure weighs the share of a citizen's social neighbors that are
// currently active. Citizens removed from the graph feel none.
func (s *Simulation) socialPressure(id agents.AgentID) float64 {
	neighbors := s.Graph.Neighbors(id)
	active := 0
	for _, n := range neighbors {
		if c, ok := s.CitizenIndex[n]; ok && c.State == agents.Active {
			active++
		}
	}
	return agents.SocialPressure(active, len(neighbors), s.Config.NetworkInfluence)
}

// wander moves id to a uniformly chosen free cell among cells, its own cell
// included, so staying put is one of the outcomes.
func (s *Simulation) wander(id agents.AgentID, cells []world.Coord) {
	free := s.Field.FreeFor(id, cells)
	if len(free) == 0 {
		return
	}
	dest := free[s.rng.Intn(len(free))]
	if err := s.Field.Move(id, dest); err != nil {
		panic(fmt.Sprintf("engine: agent %d move: %v", id, err))
	}
}

// serveJail decrements the term, except on the tick of the arrest itself,
// and releases the citizen once it reaches zero.
func (s *Simulation) serveJail(c *agents.Citizen) {
	if c.JailedAt == s.tick {
		return
	}
	if !agents.ServeJail(c) {
		return
	}
	s.release(c)
}

// release returns a citizen to the grid as quiescent: a vacant cell near
// where it was arrested, else any vacant cell, else its old cell.
func (s *Simulation) release(c *agents.Citizen) {
	c.State = agents.Quiescent
	c.JailTerm = 0

	dest := c.LastPos
	if near := s.Field.EmptyCells(s.Field.Neighborhood(c.LastPos, c.Vision)); len(near) > 0 {
		dest = near[s.rng.Intn(len(near))]
	} else if vacant := s.Field.VacantCells(); len(vacant) > 0 {
		dest = vacant[s.rng.Intn(len(vacant))]
	}
	if err := s.Field.Place(c.ID, dest); err != nil {
		panic(fmt.Sprintf("engine: release citizen %d: %v", c.ID, err))
	}

	s.emit(EventRelease, c.ID, fmt.Sprintf("citizen %d released at (%d,%d)", c.ID, dest.X, dest.Y))
	slog.Debug("citizen released", "tick", s.tick, "citizen", c.ID, "x", dest.X, "y", dest.Y)
}

func (s *Simulation) mustPosition(id agents.AgentID) world.Coord {
	pos, ok := s.Field.Position(id)
	if !ok {
		panic(fmt.Sprintf("engine: agent %d is free but not on the field", id))
	}
	return pos
}
