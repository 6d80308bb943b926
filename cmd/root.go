package cmd

import (
	"fmt"
	"os"

	"lockcode-manager/core/logger"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// migrateOnBoot runs schema auto-migration before any command touches the store.
var migrateOnBoot bool

// RootCmd represents the base command when called without any subcommands
var RootCmd = &cobra.Command{
	Use:   "lockcode-manager",
	Short: "Lock Passcode Reconciliation Service",
	Long: `Lockcode Manager matches upcoming reservations to smart locks and
programs a fresh guest passcode on each lock before check-in.
It records every attempt in a success/failure ledger and retries failures on demand.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func Execute() {
	if err := RootCmd.Execute(); err != nil {
		// Console encoding at debug level gives readable ISO8601 timestamps on a terminal.
		cfg := &logger.Config{
			Level:  "debug",
			Format: "console",
		}

		l, logErr := logger.New(cfg)
		if logErr == nil {
			l.Error("command failed", zap.Error(err))
			_ = l.Sync()
		} else {
			fmt.Println(err)
		}
		os.Exit(1)
	}
}

func init() {
	RootCmd.PersistentFlags().BoolVar(&migrateOnBoot, "migrate", false, "Auto-migrate the database schema before running")
}
