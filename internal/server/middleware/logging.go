package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/readr-media/readr-bff/internal/auth"
)

// LoggingConfig holds configuration for the access log middleware.
type LoggingConfig struct {
	Logger *zap.Logger

	// SkipPaths are request paths that never produce an access log entry.
	SkipPaths []string
}

// Logging returns a middleware that writes one access log entry per request.
func Logging(logger *zap.Logger) gin.HandlerFunc {
	return LoggingWithConfig(LoggingConfig{Logger: logger})
}

// LoggingWithConfig returns an access log middleware with custom configuration.
// Entries are Info below 400, Warn for client errors and Error for 5xx.
func LoggingWithConfig(config LoggingConfig) gin.HandlerFunc {
	logger := config.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	skip := make(map[string]struct{}, len(config.SkipPaths))
	for _, p := range config.SkipPaths {
		skip[p] = struct{}{}
	}

	return func(c *gin.Context) {
		if _, ok := skip[c.Request.URL.Path]; ok {
			c.Next()
			return
		}

		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		ce := logger.Check(accessLevel(status), "request completed")
		if ce == nil {
			return
		}
		ce.Write(accessFields(c, status, time.Since(start))...)
	}
}

func accessLevel(status int) zapcore.Level {
	if status >= 500 {
		return zapcore.ErrorLevel
	}
	if status >= 400 {
		return zapcore.WarnLevel
	}
	return zapcore.InfoLevel
}

func accessFields(c *gin.Context, status int, latency time.Duration) []zap.Field {
	r := c.Request
	fields := make([]zap.Field, 0, 12)
	fields = append(fields,
		zap.String("requestID", GetRequestID(c)),
		zap.String("method", r.Method),
		zap.String("path", r.URL.Path),
		zap.String("query", r.URL.RawQuery),
		zap.String("route", GetRoute(c)),
		zap.Int("status", status),
		zap.Duration("latency", latency),
		zap.Int("bodySize", c.Writer.Size()),
		zap.String("clientIP", c.ClientIP()),
		zap.String("userAgent", r.UserAgent()),
	)
	if identity, ok := auth.GetIdentity(c); ok {
		fields = append(fields, zap.String("member", identity.IDString()))
	}
	if len(c.Errors) > 0 {
		fields = append(fields, zap.String("errors", c.Errors.String()))
	}
	return fields
}
