package main

import (
	"context"
	"fmt"

	"coachhub/internal/config"
	"coachhub/internal/database"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newMigrateCmd(a *app) *cobra.Command {
	var path string

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := a.loadConfig()
			if err != nil {
				return err
			}
			if path != "" {
				cfg.Database.MigrationsPath = path
			}
			logger, err := a.newLogger(cfg)
			if err != nil {
				return err
			}
			defer logger.Sync()

			if err := a.migrate(cmd.Context(), cfg, logger); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Migrations applied")
			return nil
		},
	}
	cmd.Flags().StringVar(&path, "path", "", "migrations directory (defaults to MIGRATIONS_PATH)")
	return cmd
}

func runMigrations(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	cfg.Database.AutoMigrate = true
	manager, err := database.InitDB(ctx, cfg, logger)
	if err != nil {
		return err
	}
	return manager.Close()
}
