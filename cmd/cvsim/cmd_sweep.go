package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/talgya/civil-violence/internal/sweep"
)

func newSweepCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Run replicated simulations across a parameter range",
		Long: fmt.Sprintf(`Vary one parameter from --from to --to in --steps values, run --replicates
simulations per value and report outbreak statistics per value as CSV
(or JSON with --json). Supported parameters: %v.`, sweep.Params),
		RunE: func(cmd *cobra.Command, args []string) error {
			base, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			f := cmd.Flags()
			var plan sweep.Plan
			plan.Param, _ = f.GetString("param")
			plan.From, _ = f.GetFloat64("from")
			plan.To, _ = f.GetFloat64("to")
			plan.Steps, _ = f.GetInt("steps")
			plan.Replicates, _ = f.GetInt("replicates")
			plan.Threshold, _ = f.GetInt("threshold")
			plan.Workers, _ = f.GetInt("workers")
			outPath, _ := f.GetString("out")
			jsonOut, _ := f.GetBool("json")

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			total := plan.Steps * plan.Replicates
			every := total / 10
			if every == 0 {
				every = 1
			}
			progress := func(done, total int) {
				if done%every == 0 || done == total {
					slog.Info("sweep progress", "done", humanize.Comma(int64(done)), "total", humanize.Comma(int64(total)))
				}
			}

			rows, err := sweep.Run(ctx, base, plan, progress)
			if err != nil {
				return err
			}

			var out io.Writer = cmd.OutOrStdout()
			if outPath != "" {
				file, err := os.Create(outPath)
				if err != nil {
					return err
				}
				defer file.Close()
				out = file
			}
			if jsonOut {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(rows)
			}
			return sweep.WriteCSV(out, rows)
		},
	}
	addConfigFlags(cmd)
	cmd.Flags().String("param", "initial_legitimacy", "Parameter to vary")
	cmd.Flags().Float64("from", 0.5, "First value")
	cmd.Flags().Float64("to", 0.9, "Last value")
	cmd.Flags().Int("steps", 5, "Number of values")
	cmd.Flags().Int("replicates", 10, "Runs per value")
	cmd.Flags().Int("threshold", 50, "Outbreak threshold on the ACTIVE series")
	cmd.Flags().Int("workers", runtime.NumCPU(), "Concurrent runs")
	cmd.Flags().String("out", "", "Write results to this file instead of stdout")
	return cmd
}
