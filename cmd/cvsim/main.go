// Command cvsim runs the civil violence simulation and analyzes its
// outbreaks.
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/talgya/civil-violence/internal/logging"
)

var version = "0.1.0-dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "cvsim",
		Short: "Civil violence agent-based simulation",
		Long: `cvsim runs Epstein's civil violence model on a toroidal grid with a
social network layered over the citizens, records per-tick state, and
detects outbreaks of rebellion in the recorded series.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			level, _ := cmd.Flags().GetString("log-level")
			format, _ := cmd.Flags().GetString("log-format")
			logger, err := logging.NewLogger(level, format, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			slog.SetDefault(logger)
			return nil
		},
	}

	// Global flags
	rootCmd.PersistentFlags().String("log-level", "info", "Log level: error, warn, info, debug, trace")
	rootCmd.PersistentFlags().String("log-format", logging.FormatText, "Log format: text or json")
	rootCmd.PersistentFlags().Bool("json", false, "Output as JSON")

	rootCmd.AddCommand(
		newVersionCmd(),
		newRunCmd(),
		newOutbreaksCmd(),
		newSweepCmd(),
		newRunsCmd(),
	)
	return rootCmd
}
