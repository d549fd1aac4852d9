package auth

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/readr-media/readr-bff/internal/apierror"
)

// MiddlewareConfig configures the verification middleware.
type MiddlewareConfig struct {
	// Verifier validates the extracted token. Required.
	Verifier *Verifier

	// QueryParam, when set, is consulted for a token if the request has no
	// Authorization header.
	QueryParam string

	// Logger receives rejected verifications at debug level.
	Logger *zap.Logger
}

// Middleware returns a gin middleware that requires a valid bearer token.
func Middleware(v *Verifier) gin.HandlerFunc {
	return MiddlewareWithConfig(MiddlewareConfig{Verifier: v})
}

// MiddlewareWithConfig returns a verification middleware with the given
// config. On failure the chain is aborted with an authentication error and
// nothing is written; the error boundary renders the response.
func MiddlewareWithConfig(cfg MiddlewareConfig) gin.HandlerFunc {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return func(c *gin.Context) {
		raw, err := ExtractToken(c.Request, cfg.QueryParam)
		if err == nil {
			var identity *Identity
			identity, err = cfg.Verifier.Verify(raw)
			if err == nil {
				SetIdentity(c, identity)
				c.Next()
				return
			}
		}

		logger.Debug("token verification failed",
			zap.String("path", c.Request.URL.Path),
			zap.Error(err),
		)
		_ = c.Error(apierror.Unauthorized(err))
		c.Abort()
	}
}

// ExtractToken returns the bearer token of r. The scheme is matched
// case-insensitively. When the header is absent and queryParam is set, the
// query parameter of that name is used instead.
func ExtractToken(r *http.Request, queryParam string) (string, error) {
	header := r.Header.Get("Authorization")
	if header == "" {
		if queryParam != "" {
			if token := r.URL.Query().Get(queryParam); token != "" {
				return token, nil
			}
		}
		return "", ErrNoToken
	}

	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", ErrBadFormat
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return "", ErrBadFormat
	}
	return token, nil
}
