package cmd

import (
	"context"
	"fmt"

	"lockcode-manager/feature/reconciliation"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	retryAll bool
	retryIDs []uint
)

// retryCmd re-attempts failed passcode updates.
var retryCmd = &cobra.Command{
	Use:   "retry",
	Short: "Retry failed passcode updates",
	Long: `Retries unresolved failure records with a freshly generated code.

Examples:
  # Retry every unresolved failure
  retry --all

  # Retry specific failure records
  retry --id 12 --id 15`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if !retryAll && len(retryIDs) == 0 {
			return fmt.Errorf("either --all or at least one --id is required")
		}
		ctx := context.Background()

		a, err := newApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		summary, err := a.retry.RetryOutstanding(ctx, reconciliation.Selection{All: retryAll, IDs: retryIDs})
		if err != nil {
			return err
		}

		for _, r := range summary.Results {
			a.log.Info("Retry result",
				zap.Uint("failure_id", r.ID),
				zap.String("lock_id", r.LockID),
				zap.String("status", r.Status),
				zap.String("message", r.Message))
		}
		a.log.Info("Retry report",
			zap.Int("selected", summary.Selected),
			zap.Int("succeeded", summary.Succeeded),
			zap.Int("failed", summary.Failed),
			zap.Int("skipped", summary.Skipped))
		return nil
	},
}

func init() {
	retryCmd.Flags().BoolVar(&retryAll, "all", false, "Retry every unresolved failure")
	retryCmd.Flags().UintSliceVar(&retryIDs, "id", nil, "Failure record id to retry (repeatable)")
	RootCmd.AddCommand(retryCmd)
}
