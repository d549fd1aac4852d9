package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/readr-media/readr-bff/internal/apierror"
)

// statusPathMarker selects the login-status error rendering. The match is a
// plain substring test on the request URI.
const statusPathMarker = "/status"

// AuthFailureRecorder counts rejected requests by failure kind.
type AuthFailureRecorder interface {
	RecordAuthFailure(kind string)
}

// ErrorBoundaryConfig holds configuration for the error boundary.
type ErrorBoundaryConfig struct {
	Logger   *zap.Logger
	Recorder AuthFailureRecorder
}

// ErrorBoundary returns a middleware that renders the last error recorded
// with c.Error once the chain has finished. Responses already written by a
// handler are left alone.
func ErrorBoundary(logger *zap.Logger) gin.HandlerFunc {
	return ErrorBoundaryWithConfig(ErrorBoundaryConfig{Logger: logger})
}

// ErrorBoundaryWithConfig returns an error boundary with custom configuration.
func ErrorBoundaryWithConfig(config ErrorBoundaryConfig) gin.HandlerFunc {
	if config.Logger == nil {
		config.Logger = zap.NewNop()
	}

	return func(c *gin.Context) {
		c.Next()

		last := c.Errors.Last()
		if last == nil {
			return
		}
		e := apierror.As(last.Err)

		switch e.Kind {
		case apierror.KindAuthentication, apierror.KindAuthorization, apierror.KindStaleIdentity:
			if config.Recorder != nil {
				config.Recorder.RecordAuthFailure(e.Kind.String())
			}
		}

		fields := []zap.Field{
			zap.String("requestID", GetRequestID(c)),
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.String("kind", e.Kind.String()),
			zap.Int("status", e.Status),
			zap.Error(last.Err),
		}
		if e.URL != "" {
			fields = append(fields, zap.String("url", e.URL))
		}
		config.Logger.Error("error occurred", fields...)

		if c.Writer.Written() {
			return
		}
		render(c, e)
	}
}

func render(c *gin.Context, e *apierror.Error) {
	// Passthrough failures always carry their envelope, whatever the path.
	if e.Kind == apierror.KindUpstreamTransport || e.Kind == apierror.KindUpstreamStatus {
		env := apierror.Normalize(e)
		c.JSON(env.Status, env)
		return
	}

	if strings.Contains(c.Request.RequestURI, statusPathMarker) ||
		strings.Contains(c.Request.URL.Path, statusPathMarker) {
		c.JSON(http.StatusOK, false)
		return
	}

	switch e.Kind {
	case apierror.KindAuthentication:
		c.String(http.StatusUnauthorized, apierror.InvalidTokenText)

	case apierror.KindStaleIdentity:
		c.JSON(http.StatusUnauthorized, gin.H{"message": apierror.ReauthMessage})

	case apierror.KindAuthorization:
		status := e.Status
		if !apierror.ValidStatus(status) {
			status = http.StatusForbidden
		}
		c.JSON(status, gin.H{
			"error":   http.StatusText(status),
			"message": e.Text,
		})

	default:
		c.String(http.StatusInternalServerError, e.Text)
	}
}
