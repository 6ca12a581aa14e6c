// Agent spawning: one pass over the grid decides, cell by cell, whether a
// cop, a citizen or nobody starts there, and draws each citizen's traits.
package agents

import (
	"math/rand"

	"github.com/talgya/civil-violence/internal/world"
)

// SpawnConfig controls initial population generation.
type SpawnConfig struct {
	Width, Height  int
	CitizenDensity float64 // Share of cells starting with a citizen
	CopDensity     float64 // Share of cells starting with a cop
	ActiveDensity  float64 // Share of citizens that start active
	CitizenVision  int
	CopVision      int
	Threshold      float64   // Active threshold, common to all citizens
	HardshipField  []float64 // Optional row-major hardship surface; nil = uniform draw
}

// Placement pairs a freshly spawned agent with its starting cell.
type Placement struct {
	Agent Agent
	Pos   world.Coord
}

// Spawner creates agents for the simulation from the model's random stream.
type Spawner struct {
	rng    *rand.Rand
	nextID AgentID
}

// NewSpawner creates a spawner drawing from rng. IDs start at 0.
func NewSpawner(rng *rand.Rand) *Spawner {
	return &Spawner{rng: rng}
}

// Populate scans cells column by column (x outer, y inner). Per cell one draw
// r decides: r < cop density → cop; r < cop + citizen density → citizen.
// IDs are issued in scan order, so citizens and cops share one ID space.
func (s *Spawner) Populate(cfg SpawnConfig) []Placement {
	var out []Placement
	for x := 0; x < cfg.Width; x++ {
		for y := 0; y < cfg.Height; y++ {
			pos := world.Coord{X: x, Y: y}
			r := s.rng.Float64()
			switch {
			case r < cfg.CopDensity:
				out = append(out, Placement{Agent: s.spawnCop(cfg), Pos: pos})
			case r < cfg.CopDensity+cfg.CitizenDensity:
				out = append(out, Placement{Agent: s.spawnCitizen(cfg, pos), Pos: pos})
			}
		}
	}
	return out
}

func (s *Spawner) spawnCop(cfg SpawnConfig) *Cop {
	id := s.nextID
	s.nextID++
	return &Cop{ID: id, Vision: cfg.CopVision}
}

func (s *Spawner) spawnCitizen(cfg SpawnConfig, pos world.Coord) *Citizen {
	id := s.nextID
	s.nextID++

	// Draw order is fixed: hardship, risk aversion, initial state.
	hardship := s.rng.Float64()
	if cfg.HardshipField != nil {
		hardship = cfg.HardshipField[pos.Y*cfg.Width+pos.X]
	}
	risk := s.rng.Float64()

	state := Quiescent
	if s.rng.Float64() < cfg.ActiveDensity {
		state = Active
	}

	return &Citizen{
		ID:           id,
		Hardship:     hardship,
		RiskAversion: risk,
		Threshold:    cfg.Threshold,
		Vision:       cfg.CitizenVision,
		State:        state,
		LastPos:      pos,
	}
}
