package world

import (
	opensimplex "github.com/ojrac/opensimplex-go"
)

// HardshipConfig controls the spatially correlated hardship surface.
type HardshipConfig struct {
	Seed        int64
	Frequency   float64 // Base noise frequency per cell (default 0.08)
	Octaves     int     // Noise octaves summed (default 3)
	Persistence float64 // Amplitude falloff per octave (default 0.5)
}

// DefaultHardshipConfig returns sensible defaults for a ~40x40 grid.
func DefaultHardshipConfig(seed int64) HardshipConfig {
	return HardshipConfig{
		Seed:        seed,
		Frequency:   0.08,
		Octaves:     3,
		Persistence: 0.5,
	}
}

// HardshipField samples a hardship value in [0, 1] for every cell of a
// width × height grid, row-major. Neighboring cells get similar values, so
// deprived districts form instead of uniform noise.
func HardshipField(width, height int, cfg HardshipConfig) []float64 {
	noise := opensimplex.NewNormalized(cfg.Seed)
	octaves := cfg.Octaves
	if octaves < 1 {
		octaves = 1
	}

	out := make([]float64, width*height)
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			v := octaveNoise(noise, float64(x), float64(y), octaves, cfg.Frequency, cfg.Persistence)
			out[y*width+x] = clamp01(v)
		}
	}
	return out
}

// octaveNoise sums octaves of normalized noise and rescales to [0, 1].
func octaveNoise(noise opensimplex.Noise, x, y float64, octaves int, frequency, persistence float64) float64 {
	total := 0.0
	amplitude := 1.0
	maxVal := 0.0

	for i := 0; i < octaves; i++ {
		total += noise.Eval2(x*frequency, y*frequency) * amplitude
		maxVal += amplitude
		amplitude *= persistence
		frequency *= 2
	}
	if maxVal == 0 {
		return 0
	}
	return total / maxVal
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
