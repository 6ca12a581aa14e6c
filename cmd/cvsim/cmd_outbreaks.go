package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/talgya/civil-violence/internal/engine"
	"github.com/talgya/civil-violence/internal/outbreak"
	"github.com/talgya/civil-violence/internal/persistence"
)

func newOutbreaksCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "outbreaks",
		Short: "Detect outbreaks in a recorded ACTIVE series",
		Long: `Detect outbreaks in the ACTIVE series of a stored run (--db and --run) or
of an archive (--archive). An outbreak is a maximal stretch of ticks at or
above --threshold; one still open at the end of the series is not counted.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			dbPath, _ := cmd.Flags().GetString("db")
			runID, _ := cmd.Flags().GetString("run")
			archivePath, _ := cmd.Flags().GetString("archive")
			threshold, _ := cmd.Flags().GetInt("threshold")
			save, _ := cmd.Flags().GetBool("save")
			jsonOut, _ := cmd.Flags().GetBool("json")

			var records []engine.TickRecord
			var db *persistence.DB
			switch {
			case archivePath != "" && dbPath != "":
				return fmt.Errorf("use either --archive or --db, not both")
			case archivePath != "":
				if save {
					return fmt.Errorf("--save needs --db")
				}
				var err error
				records, err = persistence.ReadArchive(archivePath)
				if err != nil {
					return err
				}
			case dbPath != "":
				if runID == "" {
					return fmt.Errorf("--run is required with --db")
				}
				var err error
				db, err = persistence.Open(dbPath)
				if err != nil {
					return err
				}
				defer db.Close()
				if _, err := db.GetRun(runID); err != nil {
					return err
				}
				records, err = db.LoadSeries(runID)
				if err != nil {
					return err
				}
			default:
				return fmt.Errorf("one of --archive or --db is required")
			}

			series := make([]int, len(records))
			for i, rec := range records {
				series[i] = rec.Active
			}
			peaks, widths := outbreak.Detect(series, threshold)

			if save {
				if err := db.SaveOutbreaks(runID, threshold, peaks, widths); err != nil {
					return fmt.Errorf("save outbreaks: %w", err)
				}
			}

			out := cmd.OutOrStdout()
			if jsonOut {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(map[string]any{
					"threshold": threshold,
					"ticks":     len(series),
					"peaks":     peaks,
					"widths":    widths,
					"summary":   outbreak.Summarize(peaks, widths, 1),
				})
			}

			fmt.Fprintf(out, "%d ticks, threshold %d: %d outbreaks\n", len(series), threshold, len(peaks))
			for i := range peaks {
				fmt.Fprintf(out, "  #%d  peak %d  width %d\n", i+1, peaks[i], widths[i])
			}
			return nil
		},
	}
	cmd.Flags().String("db", "", "SQLite run store path")
	cmd.Flags().String("run", "", "Run ID in the store")
	cmd.Flags().String("archive", "", "Archive (.jsonl.zst) to read instead of a store")
	cmd.Flags().Int("threshold", 50, "Minimum ACTIVE count that counts as an outbreak")
	cmd.Flags().Bool("save", false, "Store the result in the run store")
	return cmd
}
