package main

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/talgya/civil-violence/internal/persistence"
)

func newRunsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List runs in a run store",
		RunE: func(cmd *cobra.Command, args []string) error {
			dbPath, _ := cmd.Flags().GetString("db")
			jsonOut, _ := cmd.Flags().GetBool("json")

			db, err := persistence.Open(dbPath)
			if err != nil {
				return err
			}
			defer db.Close()

			runs, err := db.ListRuns()
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if jsonOut {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(runs)
			}
			if len(runs) == 0 {
				fmt.Fprintln(out, "No runs stored.")
				return nil
			}

			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tCREATED\tSEED\tTICKS\tGRID\tSTATUS")
			for _, r := range runs {
				created := r.CreatedAt
				if t, err := time.Parse(time.RFC3339, r.CreatedAt); err == nil {
					created = humanize.Time(t)
				}
				status := "finished"
				if r.FinishedAt == "" {
					status = "incomplete"
				}
				fmt.Fprintf(tw, "%s\t%s\t%d\t%s\t%dx%d\t%s\n",
					r.ID, created, r.Seed, humanize.Comma(int64(r.Ticks)),
					r.Config.Width, r.Config.Height, status)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().String("db", "data/cvsim.db", "SQLite run store path")
	return cmd
}
