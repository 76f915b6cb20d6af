package commands

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/quorumtrade/quorum/internal/external/headlines"
	"github.com/quorumtrade/quorum/internal/scheduler"
	"github.com/quorumtrade/quorum/internal/scheduler/jobs"
	"github.com/quorumtrade/quorum/pkg/httputil"
	"github.com/quorumtrade/quorum/pkg/redis"
)

// schedulerCmd represents the scheduler command
var schedulerCmd = &cobra.Command{
	Use:   "scheduler",
	Short: "Manage scheduled jobs",
	Long: `Starts the scheduler daemon or manages its jobs.

Registered jobs:
- daily_decision: weekdays at 21:30 (full decision run over the universe)
- headline_collection: weekdays at 20:00 (news for the sentiment analyst)

Subcommands:
  start   - start the scheduler daemon
  list    - list registered jobs
  run     - run one job immediately
  status  - show job execution statistics

Example:
  go run ./cmd/quorum scheduler start
  go run ./cmd/quorum scheduler run daily_decision`,
}

var (
	schedulerStartCmd = &cobra.Command{
		Use:   "start",
		Short: "Start the scheduler",
		RunE:  runScheduler,
	}

	schedulerListCmd = &cobra.Command{
		Use:   "list",
		Short: "List registered jobs",
		RunE:  listJobs,
	}

	schedulerRunCmd = &cobra.Command{
		Use:   "run [job_name]",
		Short: "Run a job immediately",
		Args:  cobra.ExactArgs(1),
		RunE:  runJobNow,
	}

	schedulerStatusCmd = &cobra.Command{
		Use:   "status",
		Short: "Show job execution statistics",
		RunE:  showJobStats,
	}
)

func init() {
	rootCmd.AddCommand(schedulerCmd)
	schedulerCmd.AddCommand(schedulerStartCmd)
	schedulerCmd.AddCommand(schedulerListCmd)
	schedulerCmd.AddCommand(schedulerRunCmd)
	schedulerCmd.AddCommand(schedulerStatusCmd)
}

// initScheduler wires the scheduler with all jobs.
func initScheduler() (*scheduler.Scheduler, *deps, error) {
	d, err := buildDeps()
	if err != nil {
		return nil, nil, err
	}

	sched := scheduler.New(d.log)
	universe := d.strategy.Universe.Instruments

	if err := sched.AddJob(jobs.NewDecisionJob(d.engine, universe, d.log)); err != nil {
		d.close()
		return nil, nil, err
	}

	if d.cfg.Headlines.BaseURL != "" {
		httpClient := httputil.NewWithTimeout(d.log, d.cfg.Headlines.Timeout).
			WithRateLimit(d.cfg.Headlines.RequestsPerSec)
		client := headlines.NewClient(httpClient, d.cfg.Headlines.BaseURL, d.log)

		var limiter *redis.RateLimiter
		if d.redis != nil {
			limiter = redis.NewRateLimiter(d.redis, "quorum")
		}

		if err := sched.AddJob(jobs.NewHeadlineCollectionJob(client, d.dataset, limiter, universe, d.log)); err != nil {
			d.close()
			return nil, nil, err
		}
	} else {
		d.log.Warn("HEADLINES_BASE_URL not set, headline collection disabled")
	}

	return sched, d, nil
}

func runScheduler(cmd *cobra.Command, args []string) error {
	fmt.Println("=== Quorum Scheduler ===")

	sched, d, err := initScheduler()
	if err != nil {
		return fmt.Errorf("init scheduler: %w", err)
	}
	defer d.close()

	sched.Start()

	fmt.Println("\n✅ Scheduler started successfully")
	fmt.Println("\nRegistered jobs:")
	for _, jobName := range sched.GetAllJobs() {
		fmt.Printf("  - %s\n", jobName)
	}
	fmt.Println("\nPress Ctrl+C to stop")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	fmt.Println("\nShutting down scheduler...")
	sched.Stop()
	fmt.Println("Scheduler stopped")

	return nil
}

func listJobs(cmd *cobra.Command, args []string) error {
	sched, d, err := initScheduler()
	if err != nil {
		return fmt.Errorf("init scheduler: %w", err)
	}
	defer d.close()

	fmt.Println("Registered jobs:")
	for _, jobName := range sched.GetAllJobs() {
		fmt.Printf("  - %s\n", jobName)
	}

	return nil
}

func runJobNow(cmd *cobra.Command, args []string) error {
	jobName := args[0]

	sched, d, err := initScheduler()
	if err != nil {
		return fmt.Errorf("init scheduler: %w", err)
	}
	defer d.close()

	fmt.Printf("Running job: %s\n", jobName)

	result, err := sched.RunJobSync(jobName)
	if err != nil {
		return err
	}
	if !result.Success {
		return fmt.Errorf("job %s failed: %s", jobName, result.Error)
	}

	fmt.Printf("✅ Job %s completed in %.2fs\n", jobName, result.Duration.Seconds())
	return nil
}

func showJobStats(cmd *cobra.Command, args []string) error {
	sched, d, err := initScheduler()
	if err != nil {
		return fmt.Errorf("init scheduler: %w", err)
	}
	defer d.close()

	stats := sched.GetJobStats()

	fmt.Println("Job statistics:")
	for jobName, s := range stats {
		fmt.Printf("\n  %s (%s)\n", jobName, s.Schedule)
		fmt.Printf("    runs: %d  success: %d  failed: %d  rate: %.0f%%\n",
			s.TotalRuns, s.SuccessCount, s.FailureCount, s.SuccessRate*100)
		if s.LastRun != nil {
			fmt.Printf("    last run: %s\n", s.LastRun.Format("2006-01-02 15:04:05"))
		}
	}

	return nil
}
