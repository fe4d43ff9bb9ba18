package main

import (
	"github.com/spf13/cobra"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "wakespot",
	Short: "wakespot - Spotify alarm clock and sleep timer daemon",
	Long: `wakespot wakes you up by starting playback on a Spotify-connected
speaker at a configured local time, and puts you to sleep with a fade-out
timer. The scheduler survives restarts, tolerates clock adjustments and DST
transitions, and catches up missed alarms within a grace window.`,
	Version: Version,
}

func init() {
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(serveCmd)
}
