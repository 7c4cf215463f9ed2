package router

import (
	"context"
	"net/http"

	"coachhub/internal/handlers/api/v1/badges"
	"coachhub/internal/middleware"
	"coachhub/internal/response"
	"coachhub/internal/services"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// HealthChecker reports dependency health for /health
type HealthChecker interface {
	HealthCheck(ctx context.Context) *services.ServiceHealth
}

// Options carries everything the router mounts
type Options struct {
	BadgeService    services.BadgeService
	Health          HealthChecker
	Auth            *middleware.AuthMiddleware
	ResponseBuilder *response.Builder
	Logging         *middleware.LoggingConfig
	CORSOrigins     []string

	// HTTPMetrics instruments every route when non-nil
	HTTPMetrics *middleware.HTTPMetrics
	// MetricsHandler is served on MetricsPath when non-nil
	MetricsHandler http.Handler
	MetricsPath    string

	Logger *zap.Logger
}

// SetupRouter configures all HTTP routes and returns the main handler
func SetupRouter(opts Options) http.Handler {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	builder := opts.ResponseBuilder
	if builder == nil {
		builder = response.NewBuilder(nil, logger)
	}

	r := chi.NewRouter()

	r.Use(middleware.RequestID(logger))
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.StructuredLogging(logger, opts.Logging))
	r.Use(middleware.SecureHeaders)
	r.Use(middleware.CORS(opts.CORSOrigins))
	if opts.HTTPMetrics != nil {
		r.Use(opts.HTTPMetrics.Middleware)
	}
	r.Use(response.Middleware(builder))

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		response.QuickError(w, r, services.NewNotFoundError("route not found"))
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		response.QuickError(w, r, &services.ServiceError{
			Type:       "METHOD_NOT_ALLOWED",
			Message:    "method not allowed",
			StatusCode: http.StatusMethodNotAllowed,
		})
	})

	// ===============================
	// HEALTH AND METRICS
	// ===============================

	r.Get("/health/live", func(w http.ResponseWriter, r *http.Request) {
		builder.WriteSuccess(w, r, map[string]string{"status": "alive"})
	})
	if opts.Health != nil {
		r.Get("/health", healthHandler(opts.Health, builder))
	}
	if opts.MetricsHandler != nil {
		path := opts.MetricsPath
		if path == "" {
			path = "/metrics"
		}
		r.Handle(path, opts.MetricsHandler)
	}

	// ===============================
	// API V1
	// ===============================

	controller := badges.NewBadgeController(opts.BadgeService, logger, builder)
	r.Route("/api/v1", func(r chi.Router) {
		controller.RegisterRoutes(r, opts.Auth)
	})

	logger.Info("Router setup completed",
		zap.Bool("metrics_enabled", opts.MetricsHandler != nil),
		zap.Strings("cors_origins", opts.CORSOrigins),
	)
	return r
}

func healthHandler(checker HealthChecker, builder *response.Builder) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		health := checker.HealthCheck(r.Context())

		status := http.StatusOK
		if health.Status != "healthy" {
			status = http.StatusServiceUnavailable
		}
		resp := builder.Success(r.Context(), health)
		resp.Success = status == http.StatusOK
		builder.WriteJSON(w, r, resp, status)
	}
}
