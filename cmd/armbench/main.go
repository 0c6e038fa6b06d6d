package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Set by the release build via -ldflags.
var (
	version = "0.1.0-dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "armbench",
		Short: "Multi-armed bandit testbed",
		Long: `armbench runs multi-armed bandit simulations.

A run plays a fixed number of rounds against a set of Bernoulli arms,
choosing an arm each round with a selection strategy, and reports how
each arm's estimate evolved together with the cumulative regret.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Global flags
	rootCmd.PersistentFlags().Bool("json", false, "Output as JSON (for agent consumption)")

	rootCmd.AddCommand(
		newVersionCmd(),
		newRunCmd(),
		newStrategiesCmd(),
		newConfigCmd(),
		newRunsCmd(),
		newMCPServerCmd(),
	)

	return rootCmd
}
