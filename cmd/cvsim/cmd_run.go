package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/talgya/civil-violence/internal/api"
	"github.com/talgya/civil-violence/internal/engine"
	"github.com/talgya/civil-violence/internal/outbreak"
	"github.com/talgya/civil-violence/internal/persistence"
)

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run one simulation",
		Long: `Run one simulation to completion. Each tick can be stored in a SQLite run
store (--db), appended to a compressed JSONL archive (--archive) and
streamed over HTTP (--serve). Ctrl+C stops after the tick in progress.`,
		RunE: runSimulation,
	}
	addConfigFlags(cmd)
	cmd.Flags().String("db", "", "SQLite run store path")
	cmd.Flags().String("archive", "", "Write tick records to this .jsonl.zst file")
	cmd.Flags().Int("serve", 0, "Serve the observation API on this port (0 = off)")
	cmd.Flags().Duration("interval", 0, "Wall-clock time per tick (0 = as fast as possible)")
	cmd.Flags().Int("threshold", 50, "Outbreak threshold for the end-of-run summary")
	return cmd
}

// runSummary is printed when a run ends.
type runSummary struct {
	RunID      string           `json:"run_id,omitempty"`
	Seed       int64            `json:"seed"`
	Ticks      uint64           `json:"ticks"`
	Citizens   int              `json:"citizens"`
	Cops       int              `json:"cops"`
	Final      engine.Counts    `json:"final"`
	PeakActive int              `json:"peak_active"`
	Arrests    int              `json:"arrests"`
	Threshold  int              `json:"threshold"`
	Outbreaks  outbreak.Summary `json:"outbreaks"`
}

func runSimulation(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	dbPath, _ := cmd.Flags().GetString("db")
	archivePath, _ := cmd.Flags().GetString("archive")
	port, _ := cmd.Flags().GetInt("serve")
	interval, _ := cmd.Flags().GetDuration("interval")
	threshold, _ := cmd.Flags().GetInt("threshold")
	jsonOut, _ := cmd.Flags().GetBool("json")

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sim, err := engine.New(cfg)
	if err != nil {
		return err
	}
	eng := engine.NewEngine(sim)
	eng.Interval = interval

	var sinks []func(engine.TickRecord)
	arrests := 0
	var lastSeq uint64
	countArrests := func() {
		for _, e := range sim.EventsSince(lastSeq) {
			if e.Category == engine.EventArrest {
				arrests++
			}
			lastSeq = e.Seq
		}
	}

	// ── Run store ────────────────────────────────────────────────────
	var db *persistence.DB
	var runID string
	if dbPath != "" {
		db, err = persistence.Open(dbPath)
		if err != nil {
			return err
		}
		defer db.Close()
		runID, err = db.CreateRun(sim.Config)
		if err != nil {
			return err
		}
		if err := db.SaveTicks(runID, sim.Recorder.Records()); err != nil {
			return fmt.Errorf("save initial tick: %w", err)
		}
		var savedSeq uint64
		sinks = append(sinks, func(rec engine.TickRecord) {
			if err := db.SaveTick(runID, rec); err != nil {
				slog.Error("save tick failed", "tick", rec.Tick, "error", err)
			}
			events := sim.EventsSince(savedSeq)
			if len(events) == 0 {
				return
			}
			if err := db.SaveEvents(runID, events); err != nil {
				slog.Error("save events failed", "tick", rec.Tick, "error", err)
			}
			savedSeq = events[len(events)-1].Seq
		})
		slog.Info("run store opened", "path", dbPath, "run", runID)
	}

	// ── Archive ──────────────────────────────────────────────────────
	if archivePath != "" {
		archive, err := persistence.CreateArchive(archivePath)
		if err != nil {
			return fmt.Errorf("create archive: %w", err)
		}
		defer func() {
			if err := archive.Close(); err != nil {
				slog.Error("close archive failed", "error", err)
			}
		}()
		for _, rec := range sim.Recorder.Records() {
			if err := archive.WriteRecord(rec); err != nil {
				return fmt.Errorf("write archive: %w", err)
			}
		}
		sinks = append(sinks, func(rec engine.TickRecord) {
			if err := archive.WriteRecord(rec); err != nil {
				slog.Error("archive write failed", "tick", rec.Tick, "error", err)
			}
		})
	}

	// ── HTTP API ─────────────────────────────────────────────────────
	serveErr := make(chan error, 1)
	if port > 0 {
		hub := api.NewHub()
		sinks = append(sinks, hub.Broadcast)
		srv := &api.Server{
			Eng:      eng,
			Hub:      hub,
			DB:       db,
			RunID:    runID,
			Port:     port,
			AdminKey: os.Getenv("CVSIM_ADMIN_KEY"),
		}
		go func() { serveErr <- srv.ListenAndServe(ctx) }()
		fmt.Fprintf(cmd.ErrOrStderr(), "API: http://localhost:%d/api/v1/status\n", port)
	}

	// Sinks run on the engine goroutine between ticks.
	eng.OnTick = func(rec engine.TickRecord) {
		countArrests()
		for _, sink := range sinks {
			sink(rec)
		}
	}

	start := time.Now()
	runErr := eng.Run(ctx)
	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		return runErr
	}
	if runErr != nil {
		slog.Info("run interrupted", "tick", sim.CurrentTick())
	}
	if db != nil {
		if err := db.FinishRun(runID, sim.CurrentTick()); err != nil {
			slog.Error("finish run failed", "error", err)
		}
	}

	summary := summarize(sim, runID, threshold, arrests)
	slog.Info("run complete", "ticks", summary.Ticks, "elapsed", time.Since(start).Round(time.Millisecond))
	if err := printSummary(cmd, summary, jsonOut); err != nil {
		return err
	}

	if port > 0 && runErr == nil {
		fmt.Fprintln(cmd.ErrOrStderr(), "Run finished; API still serving (Ctrl+C to exit).")
		<-ctx.Done()
	}
	if port > 0 {
		if err := <-serveErr; err != nil {
			return err
		}
	}
	return nil
}

func summarize(sim *engine.Simulation, runID string, threshold, arrests int) runSummary {
	series := sim.Recorder.ActiveSeries()
	peak := 0
	for _, v := range series {
		if v > peak {
			peak = v
		}
	}
	peaks, widths := outbreak.Detect(series, threshold)
	return runSummary{
		RunID:      runID,
		Seed:       sim.Config.Seed,
		Ticks:      sim.CurrentTick(),
		Citizens:   len(sim.Citizens),
		Cops:       len(sim.Cops),
		Final:      sim.Counts(),
		PeakActive: peak,
		Arrests:    arrests,
		Threshold:  threshold,
		Outbreaks:  outbreak.Summarize(peaks, widths, 1),
	}
}

func printSummary(cmd *cobra.Command, s runSummary, jsonOut bool) error {
	out := cmd.OutOrStdout()
	if jsonOut {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(s)
	}
	if s.RunID != "" {
		fmt.Fprintf(out, "Run %s (seed %d)\n", s.RunID, s.Seed)
	} else {
		fmt.Fprintf(out, "Seed %d\n", s.Seed)
	}
	fmt.Fprintf(out, "%s ticks, %s citizens, %s cops\n",
		humanize.Comma(int64(s.Ticks)), humanize.Comma(int64(s.Citizens)), humanize.Comma(int64(s.Cops)))
	fmt.Fprintf(out, "Final: %s quiescent, %s active, %s jailed\n",
		humanize.Comma(int64(s.Final.Quiescent)), humanize.Comma(int64(s.Final.Active)), humanize.Comma(int64(s.Final.Jailed)))
	fmt.Fprintf(out, "Peak active: %s, arrests: %s\n", humanize.Comma(int64(s.PeakActive)), humanize.Comma(int64(s.Arrests)))
	fmt.Fprintf(out, "Outbreaks at threshold %d: %d (mean peak %.1f, mean width %.1f)\n",
		s.Threshold, s.Outbreaks.Outbreaks, s.Outbreaks.MeanPeakHeight, s.Outbreaks.MeanWidth)
	return nil
}
