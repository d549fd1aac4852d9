package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/readr-media/readr-bff/internal/auth"
)

// ResponseTrace returns an after-middleware that records the finished
// response. It runs behind the primary handler and never writes.
func ResponseTrace(logger *zap.Logger) gin.HandlerFunc {
	if logger == nil {
		logger = zap.NewNop()
	}

	return func(c *gin.Context) {
		status := c.Writer.Status()
		size := c.Writer.Size()
		latency := time.Since(receivedAt(c))

		fields := []zap.Field{
			zap.String("requestID", GetRequestID(c)),
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", status),
			zap.Int("size", size),
			zap.Duration("latency", latency),
		}

		attrs := []attribute.KeyValue{
			attribute.Int("http.response.status_code", status),
			attribute.Int("http.response.body.size", size),
		}
		if identity, ok := auth.GetIdentity(c); ok {
			fields = append(fields, zap.String("identity", identity.IDString()))
			attrs = append(attrs, attribute.String("enduser.id", identity.IDString()))
		}

		logger.Info("response traced", fields...)
		AddSpanEvent(c, "response.traced", attrs...)

		c.Next()
	}
}
