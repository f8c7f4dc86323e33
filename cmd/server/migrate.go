package main

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/sheikh-saqib/market-trust-core/internal/config"
	"github.com/sheikh-saqib/market-trust-core/internal/logging"
	"github.com/sheikh-saqib/market-trust-core/internal/storage/postgres"
)

func init() {
	rootCmd.AddCommand(migrateCmd)
	migrateCmd.AddCommand(migrateUpCmd, migrateDownCmd)
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply or roll back the Postgres schema",
}

var migrateUpCmd = &cobra.Command{
	Use:   "up",
	Short: "Apply all pending migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runMigrate(cmd, true)
	},
}

var migrateDownCmd = &cobra.Command{
	Use:   "down",
	Short: "Roll back all migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runMigrate(cmd, false)
	},
}

func runMigrate(cmd *cobra.Command, up bool) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if cfg.DatabaseURL == "" {
		return errors.New("DATABASE_URL is required for migrations")
	}
	log := logging.New(cfg.LogLevel, cfg.LogFormat)

	db, err := postgres.Open(cmd.Context(), cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := postgres.Migrate(db.DB, up); err != nil {
		return err
	}
	log.WithField("up", up).Info("migrations finished")
	return nil
}
