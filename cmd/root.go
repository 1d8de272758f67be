// Package cmd holds the stockroom-bot command line.
package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Proton-105/stockroom-bot/internal/app"
	"github.com/Proton-105/stockroom-bot/pkg/config"
	"github.com/Proton-105/stockroom-bot/pkg/logger"
)

var rootCmd = &cobra.Command{
	Use:          "stockroom-bot",
	Short:        "Telegram bot collecting branch inventory, orders and staff questions",
	SilenceUsage: true,
	RunE:         runBot,
}

// Execute runs the command line.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}

func runBot(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(background(cmd), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, v, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	log := logger.New(*cfg)

	log.Info("starting stockroom bot",
		"env", cfg.AppEnv,
		"mode", cfg.Bot.Mode,
		"database", cfg.Database.Driver,
		"log_level", cfg.Logger.Level,
	)

	a, err := app.New(ctx, cfg, v, log)
	if err != nil {
		log.Error("startup failed", "error", err)
		return err
	}

	if err := a.Run(ctx); err != nil {
		log.Error("shutdown finished with errors", "error", err)
		return err
	}
	log.Info("stockroom bot stopped")
	return nil
}

func background(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
