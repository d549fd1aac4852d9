package main

import (
	"go.uber.org/zap"

	"github.com/readr-media/readr-bff/internal/config"
	"github.com/readr-media/readr-bff/internal/observability"
	"github.com/readr-media/readr-bff/internal/server"
	"github.com/readr-media/readr-bff/internal/server/middleware"
)

// buildMiddlewareChain installs the global middleware on srv.
// The execution order (outermost executes first):
// Recovery -> RequestID -> Tracing -> Logging -> Metrics -> RateLimit ->
// ErrorBoundary -> [route chain]
//
// The error boundary sits innermost so that logging and metrics observe
// the rendered status.
func buildMiddlewareChain(
	srv *server.Server,
	cfg *config.Config,
	logger *zap.Logger,
	metrics *observability.Metrics,
	tracer *observability.Tracer,
) {
	srv.Use(
		middleware.RecoveryWithConfig(middleware.RecoveryConfig{
			Logger:           logger,
			EnableStackTrace: true,
		}),
		middleware.RequestID(),
		middleware.TracingWithConfig(middleware.TracingConfig{
			TracerProvider: tracer.Provider(),
		}),
		middleware.Logging(logger),
		middleware.Metrics(metrics),
	)

	if cfg.RateLimit.Enabled() {
		srv.Use(middleware.RateLimitWithConfig(middleware.RateLimitConfig{
			Limiter:  middleware.NewLimiter(cfg.RateLimit.RPS, cfg.RateLimit.Burst),
			Logger:   logger,
			Recorder: metrics,
		}))
	}

	srv.Use(middleware.ErrorBoundaryWithConfig(middleware.ErrorBoundaryConfig{
		Logger:   logger,
		Recorder: metrics,
	}))
}
