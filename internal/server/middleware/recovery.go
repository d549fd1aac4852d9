package middleware

import (
	"errors"
	"fmt"
	"net/http"
	"runtime/debug"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/readr-media/readr-bff/internal/apierror"
)

// RecoveryConfig holds configuration for the recovery middleware.
type RecoveryConfig struct {
	Logger *zap.Logger

	// EnableStackTrace attaches the goroutine stack to the panic log entry.
	EnableStackTrace bool
}

// Recovery returns a middleware that turns a handler panic into the same
// response an internal error gets from the error boundary.
func Recovery(logger *zap.Logger) gin.HandlerFunc {
	return RecoveryWithConfig(RecoveryConfig{
		Logger:           logger,
		EnableStackTrace: true,
	})
}

// RecoveryWithConfig returns a recovery middleware with custom configuration.
func RecoveryWithConfig(config RecoveryConfig) gin.HandlerFunc {
	if config.Logger == nil {
		config.Logger = zap.NewNop()
	}

	return func(c *gin.Context) {
		defer func() {
			v := recover()
			if v == nil {
				return
			}
			if err, ok := v.(error); ok && errors.Is(err, http.ErrAbortHandler) {
				// The client went away mid-relay; net/http handles this one.
				panic(v)
			}
			recovered(c, config, v)
		}()

		c.Next()
	}
}

func recovered(c *gin.Context, config RecoveryConfig, v any) {
	cause := fmt.Errorf("panic: %v", v)

	fields := []zap.Field{
		zap.Error(cause),
		zap.String("requestID", GetRequestID(c)),
		zap.String("method", c.Request.Method),
		zap.String("target", c.Request.RequestURI),
		zap.String("route", GetRoute(c)),
	}
	if config.EnableStackTrace {
		fields = append(fields, zap.ByteString("stack", debug.Stack()))
	}
	config.Logger.Error("panic recovered", fields...)
	trace.SpanFromContext(c.Request.Context()).RecordError(cause)

	c.Abort()
	if c.Writer.Written() {
		return
	}
	// The panic value stays in the log; the client gets the generic text.
	render(c, apierror.Internal(nil))
}
