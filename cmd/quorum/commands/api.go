package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/quorumtrade/quorum/internal/api"
	"github.com/quorumtrade/quorum/internal/api/handlers"
)

// apiCmd represents the api command
var apiCmd = &cobra.Command{
	Use:   "api",
	Short: "Start the API server",
	Long: `Starts the REST API server.

Endpoints:
  GET  /health           - Health check
  GET  /metrics          - Prometheus metrics
  POST /api/runs         - Trigger a decision run
  GET  /api/runs         - List recent runs
  GET  /api/runs/{id}    - Fetch one run's full record
  GET  /api/portfolio    - Current portfolio state
  GET  /ws/audit         - Live audit event stream (websocket)

Example:
  go run ./cmd/quorum api
  go run ./cmd/quorum api --port 8090`,
	RunE: runAPIServer,
}

var apiPort string

func init() {
	rootCmd.AddCommand(apiCmd)

	apiCmd.Flags().StringVar(&apiPort, "port", "", "API server port (default from PORT)")
}

func runAPIServer(cmd *cobra.Command, args []string) error {
	fmt.Println("=== Quorum API Server ===")

	d, err := buildDeps()
	if err != nil {
		return err
	}
	defer d.close()

	if apiPort != "" {
		d.cfg.Port = apiPort
	}

	d.log.WithFields(map[string]interface{}{
		"port": d.cfg.Port,
		"env":  d.cfg.Env,
	}).Info("Initializing API server")

	decisions := handlers.NewDecisionHandler(d.engine, d.repo, d.strategy.Universe.Instruments, d.log)
	stream := handlers.NewAuditStreamHandler(d.sink, d.log)
	router := api.NewRouter(decisions, stream, d.cfg.MetricsEnabled, d.log)
	server := api.New(d.cfg, d.log, router)

	go func() {
		if err := server.Start(); err != nil {
			d.log.WithError(err).Fatal("Failed to start server")
		}
	}()

	d.log.Info("API server started successfully")
	fmt.Printf("\n✅ Server running on http://localhost:%s\n", d.cfg.Port)
	fmt.Println("\nPress Ctrl+C to stop")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	d.log.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	d.log.Info("Server stopped")
	return nil
}
