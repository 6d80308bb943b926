package cmd

import (
	"context"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// reapCmd kills runs stuck in the running state.
var reapCmd = &cobra.Command{
	Use:   "reap",
	Short: "Kill reconciliation runs stuck past the timeout",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()

		a, err := newApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		n, err := a.reaper.Reap(ctx)
		if err != nil {
			return err
		}
		a.log.Info("Reap finished", zap.Int("killed", n), zap.Duration("timeout", a.cfg.Sync.StuckTimeout()))
		return nil
	},
}

func init() {
	RootCmd.AddCommand(reapCmd)
}
