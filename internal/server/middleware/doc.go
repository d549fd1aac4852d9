// Package middleware provides the gin middleware chain of the gateway.
//
// # Middleware Components
//
//   - Recovery: panic recovery with stack trace logging
//   - RequestID: X-Request-ID propagation and generation
//   - Logging: one structured line per request, level by status class
//   - Tracing: OpenTelemetry server spans
//   - Metrics: Prometheus request counters and latency
//   - RateLimit: optional global token bucket
//   - ErrorBoundary: renders errors recorded with c.Error by kind
//   - ClientCache: no-store response headers
//   - ResponseTrace: after-middleware logging the finished response
//
// # Usage
//
//	engine.Use(
//	    middleware.Recovery(logger),
//	    middleware.RequestID(),
//	    middleware.Logging(logger),
//	    middleware.ErrorBoundary(logger),
//	)
//
// Handlers report failures with c.Error and c.Abort; they never render
// error responses themselves.
package middleware
