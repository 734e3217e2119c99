package commands

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

// schedulerCmd represents the scheduler command
var schedulerCmd = &cobra.Command{
	Use:   "scheduler",
	Short: "Run the trading-day scheduler headless",
	Long: `Runs the two-phase trading-day cycle without the API server:
pre-market preprocessing at the configured cron, then intraday refreshes
while the session is open.

Example:
  go run ./cmd/alpha scheduler`,
	RunE: runScheduler,
}

func init() {
	rootCmd.AddCommand(schedulerCmd)
}

func runScheduler(cmd *cobra.Command, args []string) error {
	p, err := buildPipeline()
	if err != nil {
		return err
	}
	defer p.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sched := p.newScheduler()
	if err := sched.Run(ctx); err != nil && ctx.Err() == nil {
		return err
	}
	p.log.Info("Scheduler stopped")
	return nil
}
