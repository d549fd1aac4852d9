package authz

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/readr-media/readr-bff/internal/apierror"
	"github.com/readr-media/readr-bff/internal/auth"
)

// ScopesKey is the gin context key holding the caller's Scope Set once
// the filter has allowed the request.
const ScopesKey = "scopes"

// Filter gates routes on the caller's Scope Set.
type Filter struct {
	catalogue Catalogue
	logger    *zap.Logger
}

// FilterOption is a functional option for the filter.
type FilterOption func(*Filter)

// WithFilterLogger sets the logger.
func WithFilterLogger(logger *zap.Logger) FilterOption {
	return func(f *Filter) {
		f.logger = logger
	}
}

// NewFilter creates a filter backed by catalogue.
func NewFilter(catalogue Catalogue, opts ...FilterOption) *Filter {
	f := &Filter{
		catalogue: catalogue,
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Middleware returns a gin middleware requiring the scope derived by
// scope. It must run after the token verification middleware.
func (f *Filter) Middleware(scope ScopeFunc) gin.HandlerFunc {
	return func(c *gin.Context) {
		identity, ok := auth.GetIdentity(c)
		if !ok {
			_ = c.Error(apierror.Unauthorized(auth.ErrNoToken))
			c.Abort()
			return
		}

		required := scope(c.Request)

		perms, err := f.catalogue.Permissions(context.WithoutCancel(c.Request.Context()))
		if err != nil {
			_ = c.Error(apierror.Forbidden(http.StatusInternalServerError,
				"permission lookup failed", err))
			c.Abort()
			return
		}

		scopes := ConstructScope(perms, identity.Role)
		if !HasScope(scopes, required) {
			f.logger.Info("request denied",
				zap.String("path", c.Request.URL.Path),
				zap.String("scope", required),
				zap.String("role", identity.Role.String()),
			)
			_ = c.Error(apierror.Forbidden(http.StatusForbidden,
				"insufficient scope: "+required, nil))
			c.Abort()
			return
		}

		c.Set(ScopesKey, scopes)
		c.Next()
	}
}
