// Package observability provides logging, metrics, and tracing
// for the readr BFF gateway.
//
// # Logging
//
// Structured logging is built on zap:
//
//	logger, err := observability.NewLogger(observability.LogConfig{
//	    Level:  "info",
//	    Format: "json",
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer logger.Sync()
//
//	logger.Info("request forwarded",
//	    observability.String("url", target),
//	    observability.Int("status", 200),
//	)
//
// The gin middleware layer takes the underlying *zap.Logger, available
// through Logger.Zap.
//
// # Metrics
//
// Prometheus collectors live on a private registry:
//
//	metrics := observability.NewMetrics("readr_bff")
//	mux.Handle("/metrics", metrics.Handler())
//
// # Tracing
//
// OpenTelemetry tracing with an optional OTLP gRPC exporter:
//
//	tracer, err := observability.NewTracer(observability.TracerConfig{
//	    ServiceName:  "readr-bff",
//	    OTLPEndpoint: "otel-collector:4317",
//	    Enabled:      true,
//	})
package observability
