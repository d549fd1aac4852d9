package main

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/readr-media/readr-bff/internal/health"
	"github.com/readr-media/readr-bff/internal/observability"
)

// metricsPath is where the Prometheus registry is served.
const metricsPath = "/metrics"

// createMetricsServer creates the metrics HTTP server.
func createMetricsServer(
	port int,
	metrics *observability.Metrics,
	healthChecker *health.Checker,
	logger observability.Logger,
) *http.Server {
	mux := http.NewServeMux()
	mux.Handle(metricsPath, metrics.Handler())
	mux.HandleFunc("/healthz", healthChecker.HealthHandler())
	mux.HandleFunc("/readyz", healthChecker.ReadinessHandler())

	addr := fmt.Sprintf(":%d", port)
	logger.Info("metrics server configured",
		observability.String("address", addr),
		observability.String("metrics_path", metricsPath),
	)

	return &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadTimeout:       10 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      10 * time.Second,
	}
}

// runMetricsServer runs the metrics HTTP server.
func runMetricsServer(server *http.Server, logger observability.Logger) {
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("metrics server error", observability.Error(err))
	}
}
