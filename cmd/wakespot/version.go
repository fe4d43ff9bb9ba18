package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/wakespot/wakespot/internal/version"
)

// versionCmd prints detailed build information.
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(_ *cobra.Command, _ []string) {
		fmt.Println(version.String())
	},
}
