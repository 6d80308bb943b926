package cmd

import (
	"context"
	"fmt"

	"lockcode-manager/core/config"
	"lockcode-manager/core/database"
	"lockcode-manager/core/logger"
	"lockcode-manager/core/store"

	"github.com/spf13/cobra"
)

// migrateCmd creates or updates the database schema.
var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Auto-migrate the database schema",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.LoadConfig(".")
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}

		l, err := logger.New(&cfg.Log)
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		defer l.Sync()

		db, err := database.Connect(cfg.Database)
		if err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
		}
		if sqlDB, err := db.DB(); err == nil {
			defer sqlDB.Close()
		}

		if err := store.New(db).Migrate(context.Background()); err != nil {
			return fmt.Errorf("failed to migrate schema: %w", err)
		}
		l.Info("Schema migrated")
		return nil
	},
}

func init() {
	RootCmd.AddCommand(migrateCmd)
}
