package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Proton-105/stockroom-bot/internal/database"
	"github.com/Proton-105/stockroom-bot/pkg/config"
	"github.com/Proton-105/stockroom-bot/pkg/logger"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Run database migrations",
}

var migrateUpCmd = &cobra.Command{
	Use:   "up",
	Short: "Create or update the schema and seed the default settings",
	RunE:  runMigrateUp,
}

func init() {
	migrateCmd.AddCommand(migrateUpCmd)
}

func runMigrateUp(cmd *cobra.Command, _ []string) error {
	ctx := background(cmd)

	cfg, _, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	log := logger.New(*cfg)

	db, err := database.Open(ctx, cfg.Database, log)
	if err != nil {
		return fmt.Errorf("database: %w", err)
	}
	defer database.Close(db)

	if err := database.NewMigrator(db, log).Migrate(ctx); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	log.Info("migrate up: ok")
	return nil
}
