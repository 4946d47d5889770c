package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var version = "0.1.0-dev"

func main() {
	rootCmd := &cobra.Command{
		Use:   "emurun",
		Short: "emurun - neural-graph emulation runtime",
		Long: `emurun drives rule-based simulations over sparse neural graphs.

It builds graphs from volumetric source data, folds the simulation context
through validated rule pipelines tick by tick, fans per-shard work out over
a bounded worker pool, and persists point-in-time context snapshots for
branching and recovery.`,
	}

	// Global flags
	rootCmd.PersistentFlags().Bool("json", false, "Output as JSON")
	rootCmd.PersistentFlags().String("root", ".", "Project root directory (config and default snapshot dir)")

	rootCmd.AddCommand(
		newVersionCmd(),
		newBuildGraphCmd(),
		newRunCmd(),
		newSnapshotCmd(),
		newGraphCmd(),
		newMCPServeCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			jsonOut, _ := cmd.Flags().GetBool("json")
			if jsonOut {
				fmt.Printf("{\"version\":%q}\n", version)
			} else {
				fmt.Printf("emurun version %s\n", version)
			}
		},
	}
}
