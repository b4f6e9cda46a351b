// Command migrate runs the embedded database migrations via goose against
// DATABASE_DRIVER / DATABASE_URL.
//
// Usage:
//
//	migrate up          # Apply all pending migrations
//	migrate down        # Roll back the last migration
//	migrate status      # Show migration status
//	migrate version     # Show current schema version
//	migrate redo        # Roll back and re-apply last migration
package main

import (
	"context"
	"os"

	"github.com/jmoiron/sqlx"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"fraudservice/internal/config"
	"fraudservice/internal/repository"
)

func main() {
	logger, _ := zap.NewDevelopment()
	defer logger.Sync()

	root := &cobra.Command{
		Use:   "migrate <command> [args]",
		Short: "Run database migrations",
		Long:  "Commands: up, down, status, version, redo, up-to <version>, down-to <version>",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}

			db, err := sqlx.Connect(cfg.DatabaseDriver, cfg.DatabaseURL)
			if err != nil {
				return err
			}
			defer db.Close()

			return repository.RunMigrations(context.Background(), db.DB, cfg.DatabaseDriver, args[0], logger, args[1:]...)
		},
		SilenceUsage: true,
	}

	if err := root.Execute(); err != nil {
		logger.Error("Migration failed", zap.Error(err))
		os.Exit(1)
	}
}
