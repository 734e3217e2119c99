package commands

import (
	"github.com/spf13/cobra"
)

var (
	// Global flags
	verbose bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "alpha",
	Short: "QuantumAlpha - A-share scanning and diagnostic fusion engine",
	Long: `QuantumAlpha Unified CLI

Concurrent multi-source market data aggregation, composite scoring and
AI-assisted trading recommendations for China A-shares.

Usage:
  go run ./cmd/alpha [command]

Examples:
  go run ./cmd/alpha api
  go run ./cmd/alpha scan --symbols 600519,000001
  go run ./cmd/alpha diagnose 600519
  go run ./cmd/alpha scheduler`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}
