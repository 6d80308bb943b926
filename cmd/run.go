package cmd

import (
	"context"
	"fmt"

	"lockcode-manager/core/models"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// runCmd executes one reconciliation run in the foreground.
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run one reconciliation pass",
	Long: `Fetches reservations checking in from today onward, matches each one to a lock
and programs a fresh guest passcode. Fails when another run is already in progress.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()

		a, err := newApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		run, err := a.runner.Run(ctx)
		if err != nil {
			return fmt.Errorf("failed to run reconciliation: %w", err)
		}
		printRun(a.log, run)

		if run.Status == models.RunStatusFailed {
			return fmt.Errorf("run %d failed: %s", run.ID, run.Error)
		}
		return nil
	},
}

func printRun(l *zap.Logger, run *models.Run) {
	fields := []zap.Field{
		zap.Uint("run_id", run.ID),
		zap.String("status", string(run.Status)),
		zap.Int("processed", run.Processed),
		zap.Int("succeeded", run.Succeeded),
		zap.Int("failed", run.Failed),
		zap.Int("skipped", run.Skipped),
	}
	if run.DurationMs != nil {
		fields = append(fields, zap.Int64("duration_ms", *run.DurationMs))
	}
	if run.Error != "" {
		fields = append(fields, zap.String("error", run.Error))
	}
	l.Info("Reconciliation run report", fields...)
}

func init() {
	RootCmd.AddCommand(runCmd)
}
