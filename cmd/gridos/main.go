// gridos is the host-side runner for the grid tick kernel: it loads the
// configuration, wires the transport, and drives Kernel.Tick on the game
// cadence so scripts can be soak-tested outside the game.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"gridos/internal/logging"
)

var (
	version = "dev"
	commit  = "none"
)

var (
	configPath string
	verbose    bool
)

var rootCmd = &cobra.Command{
	Use:   "gridos",
	Short: "gridos - budget-aware tick kernel for scripted grids",
	Long: `gridos runs the cooperative tick kernel outside the game host.

The kernel slices coroutine work across simulated ticks under instruction
and call-depth budgets, and routes messages between modules and across a
store-and-forward transport shared by multiple gridos processes.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := logging.Init(verbose); err != nil {
			return fmt.Errorf("initialize logging: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		logging.Sync()
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("gridos %s (commit=%s)\n", version, commit)
	},
}

func main() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "gridos.yaml", "path to configuration file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(statusCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
