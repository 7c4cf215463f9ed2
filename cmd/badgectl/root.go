package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"coachhub/internal/config"
	"coachhub/internal/database"
	"coachhub/internal/logging"
	"coachhub/internal/services"
	"coachhub/internal/utils/appinfo"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// app holds the collaborators commands need. Tests swap the constructors.
type app struct {
	output string

	loadConfig   func() (*config.Config, error)
	newLogger    func(cfg *config.Config) (*zap.Logger, error)
	badgeService func(ctx context.Context, cfg *config.Config, logger *zap.Logger) (services.BadgeService, func(), error)
	migrate      func(ctx context.Context, cfg *config.Config, logger *zap.Logger) error
}

func newApp() *app {
	return &app{
		loadConfig: config.Load,
		newLogger: func(cfg *config.Config) (*zap.Logger, error) {
			return logging.New(cfg.Server.Environment, cfg.Logging.Level, cfg.Logging.Format)
		},
		badgeService: openBadgeService,
		migrate:      runMigrations,
	}
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:          "badgectl",
		Short:        "Operate the CoachHub badge engine",
		Version:      appinfo.Version(),
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			switch a.output {
			case "text", "json":
				return nil
			default:
				return fmt.Errorf("unsupported output %q (want text or json)", a.output)
			}
		},
	}
	root.PersistentFlags().StringVarP(&a.output, "output", "o", "text", "output format: text or json")

	root.AddCommand(
		newEvaluateCmd(a),
		newPreviewCmd(a),
		newMigrateCmd(a),
		newCatalogCmd(a),
	)
	return root
}

// withService loads config and wires the service stack for one command
func (a *app) withService(cmd *cobra.Command, fn func(svc services.BadgeService) error) error {
	cfg, err := a.loadConfig()
	if err != nil {
		return err
	}
	logger, err := a.newLogger(cfg)
	if err != nil {
		return err
	}
	defer logger.Sync()

	svc, closeFn, err := a.badgeService(cmd.Context(), cfg, logger)
	if err != nil {
		return err
	}
	defer closeFn()

	return fn(svc)
}

// openBadgeService connects to the database and builds the service
// collection with the cron scheduler disabled.
func openBadgeService(ctx context.Context, cfg *config.Config, logger *zap.Logger) (services.BadgeService, func(), error) {
	cfg.Badges.SchedulerEnabled = false

	dbManager, err := database.InitDB(ctx, cfg, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	sc, err := services.NewServiceCollection(dbManager, cfg, nil, logger)
	if err != nil {
		dbManager.Close()
		return nil, nil, err
	}
	if err := sc.Start(ctx); err != nil {
		dbManager.Close()
		return nil, nil, err
	}

	closeFn := func() {
		if err := sc.Shutdown(context.Background()); err != nil {
			logger.Warn("Service shutdown reported errors", zap.Error(err))
		}
		dbManager.Close()
	}
	return sc.BadgeService, closeFn, nil
}

func (a *app) printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
