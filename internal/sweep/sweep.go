// Package sweep runs replicated simulations across a range of one parameter
// and summarizes their outbreaks, the way the sensitivity analysis does.
package sweep

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"math"
	"strconv"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/talgya/civil-violence/internal/config"
	"github.com/talgya/civil-violence/internal/engine"
	"github.com/talgya/civil-violence/internal/entropy"
	"github.com/talgya/civil-violence/internal/outbreak"
)

// Params lists the parameters a sweep can vary.
var Params = []string{
	"active_threshold",
	"initial_legitimacy",
	"max_jail_term",
	"p",
	"citizen_vision",
	"cop_vision",
}

// Plan describes one sweep.
type Plan struct {
	Param      string  `json:"param"`
	From       float64 `json:"from"`
	To         float64 `json:"to"`
	Steps      int     `json:"steps"`      // number of values, From and To included
	Replicates int     `json:"replicates"` // runs per value
	Threshold  int     `json:"threshold"`  // outbreak detector threshold on the ACTIVE series
	Workers    int     `json:"workers"`    // concurrent runs; <= 0 means 1
}

// Row is the aggregate for one parameter value.
type Row struct {
	Param string  `json:"param"`
	Value float64 `json:"value"`
	outbreak.Summary
}

// Progress is called after each finished run with the number done so far.
// Calls are serialized.
type Progress func(done, total int)

// Validate checks the plan against the parameter list.
func (p Plan) Validate() error {
	if !knownParam(p.Param) {
		return fmt.Errorf("sweep: unknown parameter %q (want one of %v)", p.Param, Params)
	}
	if p.Steps < 1 {
		return fmt.Errorf("sweep: steps must be >= 1, got %d", p.Steps)
	}
	if p.Replicates < 1 {
		return fmt.Errorf("sweep: replicates must be >= 1, got %d", p.Replicates)
	}
	return nil
}

// Values returns Steps evenly spaced values from From to To.
func (p Plan) Values() []float64 {
	if p.Steps <= 1 {
		return []float64{p.From}
	}
	out := make([]float64, p.Steps)
	step := (p.To - p.From) / float64(p.Steps-1)
	for i := range out {
		out[i] = p.From + float64(i)*step
	}
	out[len(out)-1] = p.To
	return out
}

// Apply sets param on cfg. Integer parameters are rounded.
func Apply(cfg *config.Config, param string, v float64) error {
	switch param {
	case "active_threshold":
		cfg.ActiveThreshold = v
	case "initial_legitimacy":
		cfg.InitialLegitimacy = v
	case "max_jail_term":
		cfg.MaxJailTerm = int(math.Round(v))
	case "p":
		cfg.P = v
	case "citizen_vision":
		cfg.CitizenVision = int(math.Round(v))
	case "cop_vision":
		cfg.CopVision = int(math.Round(v))
	default:
		return fmt.Errorf("sweep: unknown parameter %q", param)
	}
	return nil
}

// Run executes every (value, replicate) pair of plan on top of base and
// returns one Row per value. Run i (value-major) is seeded base.Seed+i, so
// results do not depend on worker count or scheduling. Cancelling ctx stops
// scheduling new runs and returns ctx's error.
func Run(ctx context.Context, base config.Config, plan Plan, progress Progress) ([]Row, error) {
	if err := plan.Validate(); err != nil {
		return nil, err
	}
	values := plan.Values()
	for _, v := range values {
		cfg := base
		if err := Apply(&cfg, plan.Param, v); err != nil {
			return nil, err
		}
		if err := cfg.Validate(); err != nil {
			return nil, fmt.Errorf("sweep: %s=%g: %w", plan.Param, v, err)
		}
	}

	seed := entropy.Resolve(base.Seed)
	total := len(values) * plan.Replicates
	type result struct {
		peaks  []int
		widths []int
	}
	results := make([]result, total)

	workers := plan.Workers
	if workers <= 0 {
		workers = 1
	}
	slog.Info("sweep started", "param", plan.Param, "values", len(values), "replicates", plan.Replicates, "workers", workers, "seed", seed)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	var (
		mu   sync.Mutex
		done int
	)

	for i := 0; i < total; i++ {
		if gctx.Err() != nil {
			break
		}
		i := i
		g.Go(func() error {
			cfg := base
			_ = Apply(&cfg, plan.Param, values[i/plan.Replicates])
			cfg.Seed = seed + int64(i)
			cfg.RecordAgents = false

			sim, err := engine.New(cfg)
			if err != nil {
				return err
			}
			if err := sim.Run(gctx); err != nil {
				return err
			}
			peaks, widths := outbreak.Detect(sim.Recorder.ActiveSeries(), plan.Threshold)
			results[i] = result{peaks: peaks, widths: widths}

			slog.Debug("sweep run finished", "run", i, "seed", cfg.Seed, "outbreaks", len(peaks))

			mu.Lock()
			defer mu.Unlock()
			done++
			if progress != nil {
				progress(done, total)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	rows := make([]Row, len(values))
	for vi, v := range values {
		var acc outbreak.Accumulator
		for r := 0; r < plan.Replicates; r++ {
			res := results[vi*plan.Replicates+r]
			outbreak.Add(&acc, res.peaks, res.widths)
		}
		rows[vi] = Row{Param: plan.Param, Value: v, Summary: acc.Summary()}
	}
	slog.Info("sweep finished", "param", plan.Param, "runs", total)
	return rows, nil
}

// WriteCSV writes rows with a header line.
func WriteCSV(w io.Writer, rows []Row) error {
	cw := csv.NewWriter(w)
	header := []string{"param", "value", "replicates", "outbreaks", "mean_n",
		"mean_peak_height", "mean_peak_width", "max_peak_height", "max_peak_width"}
	if err := cw.Write(header); err != nil {
		return err
	}
	f := func(v float64) string { return strconv.FormatFloat(v, 'g', -1, 64) }
	for _, r := range rows {
		rec := []string{
			r.Param, f(r.Value),
			strconv.Itoa(r.Replicates), strconv.Itoa(r.Outbreaks),
			f(r.MeanCount), f(r.MeanPeakHeight), f(r.MeanWidth),
			f(r.MaxPeakHeight), strconv.Itoa(r.MaxWidth),
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func knownParam(name string) bool {
	for _, p := range Params {
		if p == name {
			return true
		}
	}
	return false
}
