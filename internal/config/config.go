// Package config loads and validates simulation parameters.
// Parameters come from a YAML file, are checked against an embedded JSON
// Schema for shape, then by Validate for ranges. Nothing is clamped: a bad
// value is an error.
package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/talgya/civil-violence/internal/social"
)

// Config holds every recognized simulation option.
type Config struct {
	Height int `yaml:"height" json:"height"`
	Width  int `yaml:"width" json:"width"`

	CitizenDensity float64 `yaml:"citizen_density" json:"citizen_density"`
	CopDensity     float64 `yaml:"cop_density" json:"cop_density"`
	ActiveDensity  float64 `yaml:"active_density" json:"active_density"` // initial share of active citizens

	CitizenVision int `yaml:"citizen_vision" json:"citizen_vision"`
	CopVision     int `yaml:"cop_vision" json:"cop_vision"`

	InitialLegitimacy     float64 `yaml:"initial_legitimacy" json:"initial_legitimacy"`
	MaxIterations         int     `yaml:"max_iterations" json:"max_iterations"`
	MaxJailTerm           int     `yaml:"max_jail_term" json:"max_jail_term"`
	DeterministicJailTerm bool    `yaml:"deterministic_jail_term" json:"deterministic_jail_term"`
	ActiveThreshold       float64 `yaml:"active_threshold" json:"active_threshold"`
	K                     float64 `yaml:"k" json:"k"` // arrest-probability steepness
	P                     float64 `yaml:"p" json:"p"` // arrest-probability floor when no actives are visible
	Movement              bool    `yaml:"movement" json:"movement"`

	Graph GraphConfig `yaml:"graph" json:"graph"`

	InfluencerThreshold int     `yaml:"influencer_threshold" json:"influencer_threshold"`
	RemovalIteration    int     `yaml:"removal_iteration" json:"removal_iteration"` // 0 = disabled
	LegitimacyShock     float64 `yaml:"legitimacy_shock" json:"legitimacy_shock"`   // subtracted when an influencer is removed
	NetworkInfluence    float64 `yaml:"network_influence" json:"network_influence"` // weight of active social neighbors on grievance

	HardshipModel string `yaml:"hardship_model" json:"hardship_model"` // "uniform" or "simplex"
	RecordAgents  bool   `yaml:"record_agents" json:"record_agents"`

	Seed int64 `yaml:"seed" json:"seed"` // 0 = draw one from system entropy
}

// GraphConfig selects and parameterizes the social network generator.
type GraphConfig struct {
	Topology          string  `yaml:"topology" json:"topology"`
	EdgeProbability   float64 `yaml:"edge_probability" json:"edge_probability"`
	AttachmentEdges   int     `yaml:"attachment_edges" json:"attachment_edges"`
	RingDegree        int     `yaml:"ring_degree" json:"ring_degree"`
	RewireProbability float64 `yaml:"rewire_probability" json:"rewire_probability"`
}

// Hardship models.
const (
	HardshipUniform = "uniform"
	HardshipSimplex = "simplex"
)

// Default returns the baseline parameter set (Epstein run with a seeded
// fraction of initial actives).
func Default() Config {
	g := social.DefaultGraphConfig()
	return Config{
		Height:                40,
		Width:                 40,
		CitizenDensity:        0.7,
		CopDensity:            0.04,
		ActiveDensity:         0.1,
		CitizenVision:         7,
		CopVision:             7,
		InitialLegitimacy:     0.8,
		MaxIterations:         200,
		MaxJailTerm:           30,
		DeterministicJailTerm: false,
		ActiveThreshold:       0.1,
		K:                     2.3,
		P:                     0.01,
		Movement:              true,
		Graph: GraphConfig{
			Topology:          string(g.Topology),
			EdgeProbability:   g.EdgeProbability,
			AttachmentEdges:   g.AttachmentEdges,
			RingDegree:        g.RingDegree,
			RewireProbability: g.RewireProbability,
		},
		InfluencerThreshold: 10,
		RemovalIteration:    0,
		LegitimacyShock:     0,
		NetworkInfluence:    0,
		HardshipModel:       HardshipUniform,
		RecordAgents:        true,
		Seed:                0,
	}
}

// Load reads a YAML file on top of Default, checks it against the schema
// and validates the result.
func Load(path string) (Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	cfg, err := Parse(raw)
	if err != nil {
		return Config{}, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes YAML on top of Default and validates it.
func Parse(raw []byte) (Config, error) {
	if err := ValidateDocument(raw); err != nil {
		return Config{}, err
	}
	cfg := Default()
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return Config{}, fmt.Errorf("decode yaml: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// GraphSettings converts the graph block to generator parameters.
func (c Config) GraphSettings() (social.GraphConfig, error) {
	topo, err := social.ParseTopology(c.Graph.Topology)
	if err != nil {
		return social.GraphConfig{}, err
	}
	return social.GraphConfig{
		Topology:          topo,
		EdgeProbability:   c.Graph.EdgeProbability,
		AttachmentEdges:   c.Graph.AttachmentEdges,
		RingDegree:        c.Graph.RingDegree,
		RewireProbability: c.Graph.RewireProbability,
	}, nil
}

// Error is a configuration error listing every rejected field.
type Error struct {
	Problems []string
}

func (e *Error) Error() string {
	return "invalid configuration: " + strings.Join(e.Problems, "; ")
}

// Validate checks ranges. All problems are reported together.
func (c Config) Validate() error {
	var p []string
	add := func(format string, args ...any) {
		p = append(p, fmt.Sprintf(format, args...))
	}
	unit := func(name string, v float64) {
		if v < 0 || v > 1 {
			add("%s must be in [0,1], got %g", name, v)
		}
	}

	if c.Height <= 0 || c.Width <= 0 {
		add("grid must be at least 1x1, got %dx%d", c.Width, c.Height)
	}
	unit("citizen_density", c.CitizenDensity)
	unit("cop_density", c.CopDensity)
	unit("active_density", c.ActiveDensity)
	if c.CitizenDensity+c.CopDensity > 1 {
		add("citizen_density + cop_density must not exceed 1, got %g", c.CitizenDensity+c.CopDensity)
	}
	if c.CitizenVision < 0 {
		add("citizen_vision must be >= 0, got %d", c.CitizenVision)
	}
	if c.CopVision < 0 {
		add("cop_vision must be >= 0, got %d", c.CopVision)
	}
	unit("initial_legitimacy", c.InitialLegitimacy)
	if c.MaxIterations <= 0 {
		add("max_iterations must be > 0, got %d", c.MaxIterations)
	}
	if c.MaxJailTerm < 0 {
		add("max_jail_term must be >= 0, got %d", c.MaxJailTerm)
	}
	unit("active_threshold", c.ActiveThreshold)
	if c.K < 0 {
		add("k must be >= 0, got %g", c.K)
	}
	unit("p", c.P)

	if _, err := social.ParseTopology(c.Graph.Topology); err != nil {
		add("graph.topology: %v", err)
	}
	unit("graph.edge_probability", c.Graph.EdgeProbability)
	if c.Graph.AttachmentEdges < 1 {
		add("graph.attachment_edges must be >= 1, got %d", c.Graph.AttachmentEdges)
	}
	if c.Graph.RingDegree < 2 || c.Graph.RingDegree%2 != 0 {
		add("graph.ring_degree must be even and >= 2, got %d", c.Graph.RingDegree)
	}
	unit("graph.rewire_probability", c.Graph.RewireProbability)

	if c.InfluencerThreshold < 0 {
		add("influencer_threshold must be >= 0, got %d", c.InfluencerThreshold)
	}
	if c.RemovalIteration < 0 {
		add("removal_iteration must be >= 0, got %d", c.RemovalIteration)
	}
	unit("legitimacy_shock", c.LegitimacyShock)
	if c.NetworkInfluence < 0 {
		add("network_influence must be >= 0, got %g", c.NetworkInfluence)
	}
	if c.HardshipModel != HardshipUniform && c.HardshipModel != HardshipSimplex {
		add("hardship_model must be %q or %q, got %q", HardshipUniform, HardshipSimplex, c.HardshipModel)
	}

	if len(p) > 0 {
		return &Error{Problems: p}
	}
	return nil
}
