// Simulation ties the field, the social graph, the population, the
// scheduler and the recorder together and advances them one tick at a time.

package engine

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"

	"github.com/talgya/civil-violence/internal/agents"
	"github.com/talgya/civil-violence/internal/config"
	"github.com/talgya/civil-violence/internal/entropy"
	"github.com/talgya/civil-violence/internal/social"
	"github.com/talgya/civil-violence/internal/world"
)

// Seed offsets keep subsystems on separate streams derived from one seed.
const (
	graphSeedOffset    = 200
	hardshipSeedOffset = 100
)

// maxEvents bounds the in-memory event window.
const maxEvents = 1000

// Simulation holds the complete model state for one run. It is driven from a
// single goroutine; nothing in it is safe for concurrent use.
type Simulation struct {
	Config config.Config // Seed is resolved (never 0) after New

	Field *world.Field[agents.AgentID]
	Graph *social.Graph[agents.AgentID]

	Citizens     []*agents.Citizen
	Cops         []*agents.Cop
	CitizenIndex map[agents.AgentID]*agents.Citizen
	CopIndex     map[agents.AgentID]*agents.Cop

	Scheduler *Scheduler
	Recorder  *Recorder

	Legitimacy float64 // model-global, read by every citizen decision
	Iteration  uint64  // completed ticks
	Running    bool

	Events   []Event // most recent events, oldest first
	eventSeq uint64

	rng             *rand.Rand
	tick            uint64 // tick in progress during Step
	influencerFired bool
}

// Counts is the citizen population by state.
type Counts struct {
	Quiescent int `json:"quiescent"`
	Active    int `json:"active"`
	Jailed    int `json:"jailed"`
}

// Total returns the number of citizens counted.
func (c Counts) Total() int {
	return c.Quiescent + c.Active + c.Jailed
}

// New validates cfg, spawns the population onto a fresh field, builds the
// social graph and records the initial snapshot as tick 0.
func New(cfg config.Config) (*Simulation, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	graphCfg, err := cfg.GraphSettings()
	if err != nil {
		return nil, err
	}
	cfg.Seed = entropy.Resolve(cfg.Seed)

	s := &Simulation{
		Config:       cfg,
		Field:        world.NewField[agents.AgentID](cfg.Width, cfg.Height),
		CitizenIndex: make(map[agents.AgentID]*agents.Citizen),
		CopIndex:     make(map[agents.AgentID]*agents.Cop),
		Scheduler:    NewScheduler(),
		Recorder:     NewRecorder(cfg.RecordAgents),
		Legitimacy:   cfg.InitialLegitimacy,
		rng:          rand.New(rand.NewSource(cfg.Seed)),
	}

	var hardship []float64
	if cfg.HardshipModel == config.HardshipSimplex {
		hardship = world.HardshipField(cfg.Width, cfg.Height, world.DefaultHardshipConfig(cfg.Seed+hardshipSeedOffset))
	}

	spawner := agents.NewSpawner(s.rng)
	placements := spawner.Populate(agents.SpawnConfig{
		Width:          cfg.Width,
		Height:         cfg.Height,
		CitizenDensity: cfg.CitizenDensity,
		CopDensity:     cfg.CopDensity,
		ActiveDensity:  cfg.ActiveDensity,
		CitizenVision:  cfg.CitizenVision,
		CopVision:      cfg.CopVision,
		Threshold:      cfg.ActiveThreshold,
		HardshipField:  hardship,
	})

	var citizenIDs []agents.AgentID
	for _, p := range placements {
		if err := s.Field.Place(p.Agent.AgentID(), p.Pos); err != nil {
			return nil, fmt.Errorf("place agent %d: %w", p.Agent.AgentID(), err)
		}
		s.Scheduler.Add(p.Agent)

		switch a := p.Agent.(type) {
		case *agents.Citizen:
			s.Citizens = append(s.Citizens, a)
			s.CitizenIndex[a.ID] = a
			citizenIDs = append(citizenIDs, a.ID)
		case *agents.Cop:
			s.Cops = append(s.Cops, a)
			s.CopIndex[a.ID] = a
		}
	}

	s.Graph, err = social.Build(citizenIDs, graphCfg, cfg.Seed+graphSeedOffset)
	if err != nil {
		return nil, fmt.Errorf("build social graph: %w", err)
	}

	s.Running = true
	s.Recorder.Record(s)

	slog.Info("simulation initialized",
		"seed", cfg.Seed,
		"grid", fmt.Sprintf("%dx%d", cfg.Width, cfg.Height),
		"citizens", len(s.Citizens),
		"cops", len(s.Cops),
		"topology", graphCfg.Topology,
		"edges", s.Graph.EdgeCount(),
	)
	return s, nil
}

// Step runs one tick: the influencer perturbation when due, then every agent
// once in a fresh random order, then a recorder snapshot. Agents acting
// later in the tick see what earlier agents did. No-op once stopped.
func (s *Simulation) Step() {
	if !s.Running {
		return
	}
	s.tick = s.Iteration + 1

	s.maybeRemoveInfluencer()
	s.Scheduler.Step(s.rng, s.act)

	s.Iteration = s.tick
	s.Recorder.Record(s)

	if s.Iteration > uint64(s.Config.MaxIterations) {
		s.Running = false
		latest, _ := s.Recorder.Latest()
		slog.Info("simulation finished",
			"iterations", s.Iteration,
			"active", latest.Active,
			"jailed", latest.Jailed,
			"legitimacy", fmt.Sprintf("%.3f", s.Legitimacy),
		)
	}
}

// Run steps until the simulation stops or ctx is cancelled. A tick in
// progress always completes.
func (s *Simulation) Run(ctx context.Context) error {
	for s.Running {
		if err := ctx.Err(); err != nil {
			return err
		}
		s.Step()
	}
	return nil
}

// Stop halts the run before the next tick.
func (s *Simulation) Stop() {
	s.Running = false
}

// CurrentTick returns the number of completed ticks.
func (s *Simulation) CurrentTick() uint64 {
	return s.Iteration
}

// Counts tallies citizens by state.
func (s *Simulation) Counts() Counts {
	var c Counts
	for _, cit := range s.Citizens {
		switch cit.State {
		case agents.Quiescent:
			c.Quiescent++
		case agents.Active:
			c.Active++
		case agents.Jailed:
			c.Jailed++
		}
	}
	return c
}

// act dispatches one agent's turn on its concrete type.
func (s *Simulation) act(a agents.Agent) {
	switch a := a.(type) {
	case *agents.Citizen:
		s.citizenTurn(a)
	case *agents.Cop:
		s.copTurn(a)
	default:
		panic(fmt.Sprintf("engine: unknown agent type %T", a))
	}
}

// maybeRemoveInfluencer fires once, at the start of the configured tick:
// the best-connected citizen leaves the social graph (it stays on the grid)
// and legitimacy takes the configured shock.
func (s *Simulation) maybeRemoveInfluencer() {
	at := s.Config.RemovalIteration
	if at <= 0 || s.influencerFired || s.tick != uint64(at) {
		return
	}
	s.influencerFired = true

	id, ok := s.Graph.RemoveHighestDegree()
	if !ok {
		slog.Warn("influencer removal skipped: empty social graph", "tick", s.tick)
		return
	}
	before := s.Legitimacy
	s.Legitimacy -= s.Config.LegitimacyShock
	if s.Legitimacy < 0 {
		s.Legitimacy = 0
	}

	s.emit(EventInfluencer, id, fmt.Sprintf("influencer %d removed from the social graph", id))
	slog.Info("influencer removed",
		"tick", s.tick,
		"citizen", id,
		"graph_nodes", s.Graph.Len(),
		"legitimacy_before", fmt.Sprintf("%.3f", before),
		"legitimacy_after", fmt.Sprintf("%.3f", s.Legitimacy),
	)
}
