package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/readr-media/readr-bff/internal/observability"
)

const (
	// RequestIDHeader is the header name for request ID.
	RequestIDHeader = "X-Request-ID"
	// RequestIDKey is the gin context key for request ID.
	RequestIDKey = "requestID"
	// ReceivedAtKey is the gin context key for the time the request arrived.
	ReceivedAtKey = "receivedAt"
	// RouteKey is the gin context key for the matched route rule name.
	RouteKey = "route"
)

// RequestID returns a middleware that propagates or generates a request ID.
// The ID is stored in the gin context, the request context and the
// response header.
func RequestID() gin.HandlerFunc {
	return RequestIDWithGenerator(func() string { return uuid.New().String() })
}

// RequestIDWithGenerator returns a middleware that uses a custom ID generator.
func RequestIDWithGenerator(generator func() string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(ReceivedAtKey, time.Now())

		requestID := c.GetHeader(RequestIDHeader)
		if requestID == "" {
			requestID = generator()
		}
		c.Set(RequestIDKey, requestID)
		c.Header(RequestIDHeader, requestID)
		c.Request = c.Request.WithContext(
			observability.ContextWithRequestID(c.Request.Context(), requestID))

		c.Next()
	}
}

// GetRequestID returns the request ID from the context.
func GetRequestID(c *gin.Context) string {
	return c.GetString(RequestIDKey)
}

// GetRoute returns the route rule name that served the request, or
// observability.UnmatchedRoute.
func GetRoute(c *gin.Context) string {
	if route := c.GetString(RouteKey); route != "" {
		return route
	}
	return observability.UnmatchedRoute
}

func receivedAt(c *gin.Context) time.Time {
	if t := c.GetTime(ReceivedAtKey); !t.IsZero() {
		return t
	}
	return time.Now()
}
