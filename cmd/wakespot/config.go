package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/wakespot/wakespot/internal/config"
)

var configCheckPath string

// configCmd validates a configuration file without starting the daemon.
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Validate the configuration file",
	Run: func(_ *cobra.Command, _ []string) {
		path := configCheckPath
		if path == "" {
			path = "./config.toml"
		}

		cfg, err := config.Load(path)
		if err != nil {
			fmt.Printf("❌ Failed to load configuration: %v\n", err)
			os.Exit(1)
		}

		if errors := cfg.Validate(); len(errors) > 0 {
			fmt.Printf("❌ Configuration is invalid:\n")
			for _, e := range errors {
				fmt.Printf("  - %v\n", e)
			}
			os.Exit(1)
		}

		fmt.Printf("✅ Configuration is valid: %s\n", path)
		fmt.Printf("   alarm enabled: %t, time: %s, workspace: %s\n",
			cfg.Alarm.Enabled, cfg.Alarm.Time, cfg.Workspace.Path)
	},
}

func init() {
	configCmd.Flags().StringVarP(&configCheckPath, "config", "c", "", "path to config file (default ./config.toml)")
}
