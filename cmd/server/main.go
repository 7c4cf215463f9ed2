package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"coachhub/internal/config"
	"coachhub/internal/database"
	"coachhub/internal/logging"
	"coachhub/internal/middleware"
	"coachhub/internal/response"
	"coachhub/internal/router"
	"coachhub/internal/services"
	"coachhub/internal/utils/appinfo"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger, err := logging.New(cfg.Server.Environment, cfg.Logging.Level, cfg.Logging.Format)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	if err := run(cfg, logger); err != nil {
		logger.Fatal("Server exited with error", zap.Error(err))
	}
}

func run(cfg *config.Config, logger *zap.Logger) error {
	logger.Info("Starting CoachHub badge service",
		zap.String("version", appinfo.Version()),
		zap.String("environment", cfg.Server.Environment),
		zap.String("port", cfg.Server.Port),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	dbManager, err := database.InitDB(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer dbManager.Close()

	// Metrics are only collected on a private registry when they are served
	var reg *prometheus.Registry
	if cfg.Monitoring.EnableMetrics {
		reg = prometheus.NewRegistry()
		reg.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}

	serviceCollection, err := services.NewServiceCollection(dbManager, cfg, registerer(reg), logger)
	if err != nil {
		return fmt.Errorf("failed to initialize services: %w", err)
	}
	if err := serviceCollection.Start(ctx); err != nil {
		return fmt.Errorf("failed to start services: %w", err)
	}

	responseConfig := response.DefaultConfig()
	responseConfig.PrettyJSON = cfg.IsDevelopment()
	responseConfig.MaskInternalErrors = !cfg.IsDevelopment()

	routerOpts := router.Options{
		BadgeService:    serviceCollection.BadgeService,
		Health:          serviceCollection,
		Auth:            middleware.NewAuthMiddleware(&cfg.Auth, logger),
		ResponseBuilder: response.NewBuilder(responseConfig, logger),
		CORSOrigins:     cfg.Server.CORSOrigins,
		Logger:          logger,
	}
	if reg != nil {
		routerOpts.HTTPMetrics = middleware.MustNewHTTPMetrics(reg)
		routerOpts.MetricsHandler = promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg})
		routerOpts.MetricsPath = cfg.Monitoring.MetricsPath
	}

	server := &http.Server{
		Addr:              fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port),
		Handler:           router.SetupRouter(routerOpts),
		ReadTimeout:       cfg.Server.ReadTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       cfg.Server.IdleTimeout,
		MaxHeaderBytes:    cfg.Server.MaxHeaderBytes,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("Starting HTTP server", zap.String("address", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case <-ctx.Done():
		logger.Info("Shutting down application...")
	case err := <-serverErr:
		if err != nil {
			logger.Error("HTTP server failed", zap.Error(err))
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.GracefulTimeout)
	defer cancel()

	var errs []error
	if err := server.Shutdown(shutdownCtx); err != nil {
		errs = append(errs, fmt.Errorf("server shutdown: %w", err))
	}
	if err := serviceCollection.Shutdown(shutdownCtx); err != nil {
		errs = append(errs, err)
	}

	metrics := dbManager.Metrics()
	logger.Info("Final database metrics",
		zap.Int64("total_queries", metrics.QueryCount),
		zap.Int64("slow_queries", metrics.SlowQueryCount),
		zap.Int64("errors", metrics.ErrorCount),
	)
	return errors.Join(errs...)
}

// registerer avoids handing a typed nil to the service collection
func registerer(reg *prometheus.Registry) prometheus.Registerer {
	if reg == nil {
		return nil
	}
	return reg
}
