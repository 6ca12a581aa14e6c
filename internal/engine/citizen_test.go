package engine

import (
	"math/rand"
	"testing"

	"github.com/talgya/civil-violence/internal/agents"
	"github.com/talgya/civil-violence/internal/world"
)

// emptySim returns a 5x5 world with no agents, so tests can place their own.
func emptySim(t *testing.T) *Simulation {
	t.Helper()
	cfg := testConfig()
	cfg.Width, cfg.Height = 5, 5
	cfg.CitizenDensity = 0
	cfg.CopDensity = 0
	cfg.ActiveDensity = 0
	cfg.InitialLegitimacy = 0
	cfg.Movement = false
	return newSim(t, cfg)
}

func addCitizen(t *testing.T, s *Simulation, c *agents.Citizen, pos world.Coord) {
	t.Helper()
	if err := s.Field.Place(c.ID, pos); err != nil {
		t.Fatalf("place citizen %d: %v", c.ID, err)
	}
	s.Citizens = append(s.Citizens, c)
	s.CitizenIndex[c.ID] = c
	s.Scheduler.Add(c)
}

func addCop(t *testing.T, s *Simulation, cop *agents.Cop, pos world.Coord) {
	t.Helper()
	if err := s.Field.Place(cop.ID, pos); err != nil {
		t.Fatalf("place cop %d: %v", cop.ID, err)
	}
	s.Cops = append(s.Cops, cop)
	s.CopIndex[cop.ID] = cop
	s.Scheduler.Add(cop)
}

// seedActingFirst finds a seed whose first shuffle activates id first.
func seedActingFirst(t *testing.T, sc *Scheduler, id agents.AgentID) int64 {
	t.Helper()
	for seed := int64(1); seed < 1000; seed++ {
		order := sc.Shuffle(rand.New(rand.NewSource(seed)))
		if sc.agents[order[0]].AgentID() == id {
			return seed
		}
	}
	t.Fatalf("no seed activates agent %d first", id)
	return 0
}

// aggrieved always turns active: full hardship, no risk aversion.
func aggrieved(id agents.AgentID) *agents.Citizen {
	return &agents.Citizen{ID: id, Hardship: 1, RiskAversion: 0, Threshold: 0, Vision: 1}
}

func TestTick_CopSeesActivationEarlierInSameTick(t *testing.T) {
	s := emptySim(t)
	c := aggrieved(1)
	addCitizen(t, s, c, world.Coord{X: 1, Y: 1})
	addCop(t, s, &agents.Cop{ID: 2, Vision: 1}, world.Coord{X: 2, Y: 1})

	s.rng = rand.New(rand.NewSource(seedActingFirst(t, s.Scheduler, c.ID)))
	s.Step()

	if c.State != agents.Jailed {
		t.Fatalf("cop acting after the citizen should arrest it in the same tick, state %s", c.State)
	}
	if c.JailedAt != 1 {
		t.Fatalf("expected arrest at tick 1, got %d", c.JailedAt)
	}
	if s.Field.Contains(c.ID) {
		t.Fatal("arrested citizen must leave the field")
	}
}

func TestTick_CopActingFirstSeesQuiescentCitizen(t *testing.T) {
	s := emptySim(t)
	c := aggrieved(1)
	addCitizen(t, s, c, world.Coord{X: 1, Y: 1})
	cop := &agents.Cop{ID: 2, Vision: 1}
	addCop(t, s, cop, world.Coord{X: 2, Y: 1})

	s.rng = rand.New(rand.NewSource(seedActingFirst(t, s.Scheduler, cop.ID)))
	s.Step()

	if c.State != agents.Active {
		t.Fatalf("citizen should be active after its turn, got %s", c.State)
	}
	for _, ev := range s.Events {
		if ev.Category == EventArrest {
			t.Fatalf("no arrest expected when the cop acts first: %+v", ev)
		}
	}
}

func freePositions(s *Simulation) map[agents.AgentID]world.Coord {
	out := make(map[agents.AgentID]world.Coord)
	for _, c := range s.Citizens {
		if c.State != agents.Jailed {
			out[c.ID], _ = s.Field.Position(c.ID)
		}
	}
	for _, cop := range s.Cops {
		out[cop.ID], _ = s.Field.Position(cop.ID)
	}
	return out
}

func torusDistance(a, b world.Coord, width, height int) int {
	axis := func(p, q, size int) int {
		d := p - q
		if d < 0 {
			d = -d
		}
		if size-d < d {
			d = size - d
		}
		return d
	}
	return max(axis(a.X, b.X, width), axis(a.Y, b.Y, height))
}

func TestMovement_StaysWithinVisionOnEmptyCells(t *testing.T) {
	cfg := testConfig()
	cfg.CitizenVision = 1
	cfg.CopVision = 1
	cfg.CopDensity = 0.08
	cfg.InitialLegitimacy = 0.5
	s := newSim(t, cfg)

	moves := 0
	for s.Running {
		before := freePositions(s)
		s.Step()
		after := freePositions(s)

		occupied := make(map[world.Coord]agents.AgentID)
		for id, pos := range after {
			if other, ok := occupied[pos]; ok {
				t.Fatalf("tick %d: agents %d and %d share cell %v", s.Iteration, id, other, pos)
			}
			occupied[pos] = id

			prev, ok := before[id]
			if !ok || prev == pos {
				continue
			}
			moves++
			vision := cfg.CitizenVision
			if _, isCop := s.CopIndex[id]; isCop {
				vision = cfg.CopVision
			}
			if d := torusDistance(prev, pos, cfg.Width, cfg.Height); d > vision {
				t.Fatalf("tick %d: agent %d moved %d cells from %v to %v, vision %d", s.Iteration, id, d, prev, pos, vision)
			}
		}
	}
	if moves == 0 {
		t.Fatal("expected agents to move")
	}
}

func TestMovement_DisabledKeepsPositions(t *testing.T) {
	cfg := testConfig()
	cfg.Movement = false
	cfg.CopDensity = 0.08
	cfg.InitialLegitimacy = 0.5
	s := newSim(t, cfg)

	for s.Running {
		before := freePositions(s)
		s.Step()
		for id, pos := range freePositions(s) {
			if prev, ok := before[id]; ok && prev != pos {
				t.Fatalf("tick %d: agent %d moved from %v to %v with movement off", s.Iteration, id, prev, pos)
			}
		}
	}
}

func TestVisibleForces_CountsSelfOnlyWhenActive(t *testing.T) {
	s := emptySim(t)
	c := &agents.Citizen{ID: 1, Vision: 1}
	pos := world.Coord{X: 1, Y: 1}
	addCitizen(t, s, c, pos)
	addCop(t, s, &agents.Cop{ID: 2, Vision: 1}, world.Coord{X: 2, Y: 1})
	addCop(t, s, &agents.Cop{ID: 3, Vision: 1}, world.Coord{X: 0, Y: 1})
	cells := s.Field.Neighborhood(pos, c.Vision)

	cops, actives := s.visibleForces(cells)
	if cops != 2 || actives != 0 {
		t.Fatalf("quiescent citizen sees %d cops, %d actives; want 2, 0", cops, actives)
	}
	if p := agents.ArrestProbability(cops, actives, s.Config.K, s.Config.P); p != s.Config.P {
		t.Fatalf("with no actives in view the arrest probability should be the floor %g, got %g", s.Config.P, p)
	}

	c.State = agents.Active
	if _, actives := s.visibleForces(cells); actives != 1 {
		t.Fatalf("an active citizen should count itself, got %d actives", actives)
	}
}
