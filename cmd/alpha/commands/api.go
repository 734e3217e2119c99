package commands

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/quantumalpha/backend/internal/api"
	"github.com/quantumalpha/backend/internal/api/handlers"
	"github.com/quantumalpha/backend/internal/metrics"
)

// apiCmd represents the api command
var apiCmd = &cobra.Command{
	Use:   "api",
	Short: "Start the API server with the trading-day scheduler",
	Long: `Starts the REST API server.

This command:
- serves the scan and diagnosis endpoints
- runs the trading-day scheduler in-process
- pushes completed cycles over the results websocket

Endpoints:
  GET  /health                 - Health check and cycle phase
  POST /api/alpha/scan         - Ad-hoc scan
  POST /api/alpha/morning      - Trigger the pre-market pipeline
  POST /api/stock/diagnose     - Single-symbol deep dive
  GET  /api/stock/scan         - Quick scan without AI
  GET  /api/recommendations    - Latest published cycle
  POST /api/llm/switch         - Switch reasoning provider
  GET  /api/config/providers   - List reasoning providers
  GET  /ws/results             - Websocket result feed

Example:
  go run ./cmd/alpha api
  go run ./cmd/alpha api --port 8080`,
	RunE: runAPIServer,
}

var apiPort string

func init() {
	rootCmd.AddCommand(apiCmd)

	apiCmd.Flags().StringVar(&apiPort, "port", "", "API server port (overrides PORT)")
}

func runAPIServer(cmd *cobra.Command, args []string) error {
	p, err := buildPipeline()
	if err != nil {
		return err
	}
	defer p.Close()

	if apiPort != "" {
		p.cfg.Port = apiPort
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Scheduler runs in-process so the morning endpoint can trigger it.
	sched := p.newScheduler()
	go func() {
		if err := sched.Run(ctx); err != nil && ctx.Err() == nil {
			p.log.WithError(err).Error("Scheduler stopped")
		}
	}()

	hub := api.NewHub(p.store.Subscribe(), p.log)
	go hub.Run(ctx)

	router := api.NewRouter(
		handlers.NewAlphaHandler(p.engine, p.store, sched, p.log),
		handlers.NewStockHandler(p.engine, p.log),
		handlers.NewLLMHandler(p.factory, p.log),
		hub,
		p.log,
	)
	server := api.New(p.cfg, p.log, router)

	if p.cfg.MetricsEnabled && p.cfg.MetricsPort != p.cfg.Port {
		metrics.Serve(":" + p.cfg.MetricsPort)
		p.log.WithField("port", p.cfg.MetricsPort).Info("Metrics listener started")
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	fmt.Printf("Server running on http://localhost:%s\n", p.cfg.Port)

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	p.log.Info("Server stopped")
	return nil
}
