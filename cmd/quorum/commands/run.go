package commands

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/quorumtrade/quorum/internal/contracts"
)

// runCmd represents the run command
var runCmd = &cobra.Command{
	Use:   "run [instruments...]",
	Short: "Execute one decision run",
	Long: `Runs the full decision pipeline once and prints the resulting
actions. Without arguments the universe from the strategy file is used.

The run is persisted, so its record can be retrieved later via the API
or the status command.

Example:
  go run ./cmd/quorum run
  go run ./cmd/quorum run AAPL MSFT --as-of 2026-08-28`,
	RunE: runDecision,
}

var runAsOf string

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVar(&runAsOf, "as-of", "", "decision date YYYY-MM-DD (default today)")
}

func runDecision(cmd *cobra.Command, args []string) error {
	d, err := buildDeps()
	if err != nil {
		return err
	}
	defer d.close()

	instruments := args
	if len(instruments) == 0 {
		instruments = d.strategy.Universe.Instruments
	}

	asOf := time.Now().UTC().Truncate(24 * time.Hour)
	if runAsOf != "" {
		asOf, err = time.Parse("2006-01-02", runAsOf)
		if err != nil {
			return fmt.Errorf("invalid --as-of date: %w", err)
		}
	}

	fmt.Println("=== Quorum Decision Run ===")
	fmt.Printf("As of       : %s\n", asOf.Format("2006-01-02"))
	fmt.Printf("Instruments : %d\n", len(instruments))
	fmt.Println()

	started := time.Now()
	record, runErr := d.engine.Run(cmd.Context(), instruments, asOf)
	elapsed := time.Since(started)

	if record != nil {
		printRecord(record)
	}
	if runErr != nil {
		return fmt.Errorf("run failed: %w", runErr)
	}

	fmt.Printf("\n✅ Run %s completed in %.2fs\n", record.RunID, elapsed.Seconds())
	return nil
}

func printRecord(record *contracts.DecisionRecord) {
	fmt.Printf("Run ID : %s\n", record.RunID)
	fmt.Printf("State  : %s\n", record.State)
	if record.FailureCause != "" {
		fmt.Printf("Cause  : %s\n", record.FailureCause)
	}

	actions := record.Actions()
	if len(actions) > 0 {
		fmt.Println("\nActions:")
		for _, action := range actions {
			switch action.Action {
			case contracts.ActionHold:
				fmt.Printf("  %-8s HOLD   (%s)\n", action.Instrument, action.Reason)
			default:
				fmt.Printf("  %-8s %-4s %6d @ %.2f\n",
					action.Instrument, action.Action, action.Shares, action.Price)
			}
		}
	}

	if excluded := record.ExcludedInstruments(); len(excluded) > 0 {
		fmt.Println("\nExcluded:")
		for _, instrument := range excluded {
			fmt.Printf("  %-8s %s\n", instrument, record.Decisions[instrument].ExclusionReason)
		}
	}
}
