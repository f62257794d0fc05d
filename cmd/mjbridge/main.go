package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Set via -ldflags at build time.
var (
	version = "0.1.0-dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "mjbridge",
		Short: "Relay ROS joint state commands into a MuJoCo simulation",
		Long: `mjbridge is a ROS node that drives a MuJoCo model from joint state commands.

Every command received on the input topic steps the simulation once; the
simulated joint states, a marker per free object and an echo of the command
are published back. Step results are also streamed over ZeroMQ and a
WebSocket and can be recorded to SQLite.`,
		SilenceUsage: true,
	}

	// Global flags
	rootCmd.PersistentFlags().Bool("json", false, "Output as JSON")
	rootCmd.PersistentFlags().String("config-dir", "./config", "Directory holding bridge_config.yaml")

	rootCmd.AddCommand(
		newVersionCmd(),
		newRunCmd(),
		newInspectCmd(),
		newStepsCmd(),
		newWatchCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
