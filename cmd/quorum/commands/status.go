package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

// statusCmd represents the status command
var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show system status and recent runs",
	Long: `Checks database connectivity, prints the portfolio state and
lists recent decision runs.

Example:
  go run ./cmd/quorum status
  go run ./cmd/quorum status --limit 5`,
	RunE: runStatus,
}

var statusLimit int

func init() {
	rootCmd.AddCommand(statusCmd)

	statusCmd.Flags().IntVar(&statusLimit, "limit", 10, "number of recent runs to list")
}

func runStatus(cmd *cobra.Command, args []string) error {
	fmt.Println("=== Quorum Status ===")

	d, err := buildDeps()
	if err != nil {
		return err
	}
	defer d.close()

	ctx := cmd.Context()

	health, err := d.db.HealthCheck(ctx)
	if err != nil {
		fmt.Printf("Database   : ❌ %s\n", health.Error)
		return fmt.Errorf("database unhealthy: %w", err)
	}
	fmt.Printf("Database   : ✅ healthy (%.0fms, %d/%d conns)\n",
		float64(health.ResponseTime.Microseconds())/1000,
		health.Stats.TotalConns, health.Stats.MaxConns)

	fmt.Printf("Strategy   : %s (v%s)\n", d.strategy.Meta.StrategyID, d.strategy.Meta.Version)
	fmt.Printf("Universe   : %d instruments\n", len(d.strategy.Universe.Instruments))

	state, err := d.repo.LoadPortfolio(ctx)
	if err != nil {
		return fmt.Errorf("load portfolio: %w", err)
	}
	if state == nil {
		fmt.Println("Portfolio  : none persisted yet")
	} else {
		fmt.Printf("Portfolio  : cash %.2f, %d positions\n", state.Cash, len(state.Positions))
	}

	runs, err := d.repo.ListRuns(ctx, statusLimit)
	if err != nil {
		return fmt.Errorf("list runs: %w", err)
	}

	if len(runs) == 0 {
		fmt.Println("\nNo runs recorded")
		return nil
	}

	fmt.Println("\nRecent runs:")
	for _, run := range runs {
		line := fmt.Sprintf("  %s  %s  %-9s", run.StartedAt.Format("2006-01-02 15:04"), run.RunID, run.State)
		if run.Failure != "" {
			line += "  " + run.Failure
		}
		fmt.Println(line)
	}

	return nil
}
