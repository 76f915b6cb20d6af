package commands

import (
	"github.com/spf13/cobra"
)

var (
	// Global flags
	strategyFile string
	verbose      bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "quorum",
	Short: "Quorum - multi-analyst trading decision engine",
	Long: `Quorum Unified CLI

A panel of weighted analysts votes on each instrument, an aggregator
combines the votes, risk limits clamp the result, and the portfolio
manager turns what survives into share-level actions. Every run leaves
a frozen audit record.

Usage:
  go run ./cmd/quorum [command]

Examples:
  go run ./cmd/quorum run AAPL MSFT
  go run ./cmd/quorum api
  go run ./cmd/quorum scheduler start
  go run ./cmd/quorum status`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&strategyFile, "strategy", "", "strategy file (default from STRATEGY_FILE)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}
