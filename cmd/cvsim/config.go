package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/talgya/civil-violence/internal/config"
)

// addConfigFlags registers the config file flag and the most used
// parameter overrides.
func addConfigFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.StringP("config", "c", "", "YAML configuration file (defaults apply when empty)")
	f.Int64("seed", 0, "Random seed (0 = draw from system entropy)")
	f.Int("width", 0, "Grid width")
	f.Int("height", 0, "Grid height")
	f.Int("max-iterations", 0, "Number of ticks to run")
	f.Float64("legitimacy", 0, "Initial legitimacy")
	f.Float64("cop-density", 0, "Cop density")
	f.Float64("citizen-density", 0, "Citizen density")
	f.String("topology", "", "Social graph: uniform-random, preferential-attachment, small-world")
	f.Int("removal-iteration", 0, "Tick at which the best-connected citizen is removed (0 = never)")
	f.Bool("no-movement", false, "Disable agent movement")
}

// loadConfig reads --config, then applies every flag the user set.
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	f := cmd.Flags()
	cfg := config.Default()
	if path, _ := f.GetString("config"); path != "" {
		loaded, err := config.Load(path)
		if err != nil {
			return config.Config{}, err
		}
		cfg = loaded
	}

	if f.Changed("seed") {
		cfg.Seed, _ = f.GetInt64("seed")
	}
	if f.Changed("width") {
		cfg.Width, _ = f.GetInt("width")
	}
	if f.Changed("height") {
		cfg.Height, _ = f.GetInt("height")
	}
	if f.Changed("max-iterations") {
		cfg.MaxIterations, _ = f.GetInt("max-iterations")
	}
	if f.Changed("legitimacy") {
		cfg.InitialLegitimacy, _ = f.GetFloat64("legitimacy")
	}
	if f.Changed("cop-density") {
		cfg.CopDensity, _ = f.GetFloat64("cop-density")
	}
	if f.Changed("citizen-density") {
		cfg.CitizenDensity, _ = f.GetFloat64("citizen-density")
	}
	if f.Changed("topology") {
		cfg.Graph.Topology, _ = f.GetString("topology")
	}
	if f.Changed("removal-iteration") {
		cfg.RemovalIteration, _ = f.GetInt("removal-iteration")
	}
	if noMove, _ := f.GetBool("no-movement"); noMove {
		cfg.Movement = false
	}

	if err := cfg.Validate(); err != nil {
		return config.Config{}, fmt.Errorf("flags: %w", err)
	}
	return cfg, nil
}
