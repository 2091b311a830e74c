// Package cli implements the travelquest command-line interface using Cobra.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "travelquest",
	Short: "TravelQuest reward settlement service",
	Long: `TravelQuest settles completed missions into points, XP, levels and badges.

Run "travelquest serve" to start the HTTP API, or use the one-shot commands
to migrate the schema, seed the badge catalog and replay pending settlements.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "config/config.yaml", "Path to the configuration file")
}

// Execute runs the root command. Called from main.go.
func Execute(version string) {
	rootCmd.Version = version

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
