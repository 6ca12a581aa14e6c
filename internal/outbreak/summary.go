package outbreak

import (
	"fmt"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Summary aggregates outbreaks over the replicates of one parameter setting,
// in the shape the sensitivity analysis reports: how many outbreaks a run
// has on average, and how tall and long they get.
type Summary struct {
	Replicates     int     `json:"replicates"`
	Outbreaks      int     `json:"outbreaks"`
	MeanCount      float64 `json:"mean_n"`
	MeanPeakHeight float64 `json:"mean_peak_height"`
	MeanWidth      float64 `json:"mean_peak_width"`
	MaxPeakHeight  float64 `json:"max_peak_height"`
	MaxWidth       int     `json:"max_peak_width"`
}

// Accumulator collects Detect results run by run. The zero value is ready.
type Accumulator struct {
	runs   int
	peaks  []float64
	widths []float64
}

// Add records one run's outbreaks. peaks and widths must pair up one to one,
// as Detect returns them; a length mismatch panics.
func Add[T Number](a *Accumulator, peaks []T, widths []int) {
	if len(peaks) != len(widths) {
		panic(fmt.Sprintf("outbreak: %d peaks but %d widths", len(peaks), len(widths)))
	}
	a.runs++
	for i, p := range peaks {
		a.peaks = append(a.peaks, float64(p))
		a.widths = append(a.widths, float64(widths[i]))
	}
}

// Runs returns the number of runs recorded.
func (a *Accumulator) Runs() int { return a.runs }

// Summary computes the aggregate. Means over zero outbreaks are 0.
func (a *Accumulator) Summary() Summary {
	s := Summary{Replicates: a.runs, Outbreaks: len(a.peaks)}
	if a.runs > 0 {
		s.MeanCount = float64(len(a.peaks)) / float64(a.runs)
	}
	if len(a.peaks) == 0 {
		return s
	}

	s.MeanPeakHeight = stat.Mean(a.peaks, nil)
	s.MaxPeakHeight = floats.Max(a.peaks)
	s.MeanWidth = stat.Mean(a.widths, nil)
	s.MaxWidth = int(floats.Max(a.widths))
	return s
}

// Summarize is a one-shot helper over already concatenated results.
func Summarize[T Number](peaks []T, widths []int, replicates int) Summary {
	var a Accumulator
	Add(&a, peaks, widths)
	a.runs = replicates
	return a.Summary()
}
