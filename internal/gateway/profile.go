package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/readr-media/readr-bff/internal/apierror"
	"github.com/readr-media/readr-bff/internal/auth"
	"github.com/readr-media/readr-bff/internal/authz"
)

// Fetcher reads camelized JSON from the upstream API.
type Fetcher interface {
	Fetch(ctx context.Context, path string) (any, error)
}

// ErrMemberNotFound is returned when the member listing has no items.
var ErrMemberNotFound = errors.New("member not found")

// Profile is the projection of a member returned to the caller. It holds
// only the profileFields the member record carries, null values included,
// plus the caller's scopes.
type Profile map[string]any

// profileFields are copied from the member record when present.
var profileFields = []string{
	"name", "nickname", "mail", "description", "id",
	"uuid", "role", "profileImage", "points",
}

func newProfile(member map[string]any, scopes []string) Profile {
	profile := make(Profile, len(profileFields)+1)
	for _, key := range profileFields {
		if v, ok := member[key]; ok {
			profile[key] = v
		}
	}
	profile["scopes"] = scopes
	return profile
}

// ProfileAggregator joins the member record and the permission catalogue
// into the caller's profile.
type ProfileAggregator struct {
	fetcher   Fetcher
	catalogue authz.Catalogue
	logger    *zap.Logger
}

// NewProfileAggregator creates an aggregator. The catalogue is queried
// directly on every request.
func NewProfileAggregator(fetcher Fetcher, catalogue authz.Catalogue, logger *zap.Logger) *ProfileAggregator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ProfileAggregator{fetcher: fetcher, catalogue: catalogue, logger: logger}
}

// Handle serves GET /profile. It must run after token verification.
func (p *ProfileAggregator) Handle(c *gin.Context) {
	identity, ok := auth.GetIdentity(c)
	if !ok {
		_ = c.Error(apierror.Unauthorized(auth.ErrNoToken))
		c.Abort()
		return
	}

	if identity.IDIsString() {
		_ = c.Error(apierror.StaleIdentity("token carries a legacy string id"))
		c.Abort()
		return
	}
	id, ok := identity.IDNumeric()
	if !ok {
		_ = c.Error(apierror.StaleIdentity("token carries no usable id"))
		c.Abort()
		return
	}

	profile, err := p.aggregate(context.WithoutCancel(c.Request.Context()), id, identity.Role)
	if err != nil {
		_ = c.Error(err)
		c.Abort()
		return
	}
	c.JSON(http.StatusOK, profile)
}

func (p *ProfileAggregator) aggregate(ctx context.Context, id int64, tokenRole auth.Role) (Profile, error) {
	path := "/member/" + strconv.FormatInt(id, 10)

	var (
		body  any
		perms []authz.Permission
	)
	var g errgroup.Group
	g.Go(func() error {
		var err error
		body, err = p.fetcher.Fetch(ctx, path)
		return err
	})
	g.Go(func() error {
		var err error
		perms, err = p.catalogue.Permissions(ctx)
		return err
	})
	if err := g.Wait(); err != nil {
		p.logger.Error("error occurred when fetching profile",
			zap.String("path", path),
			zap.Error(err),
		)
		return nil, apierror.Internal(err)
	}

	member, err := firstItem(body)
	if err != nil {
		return nil, apierror.Internal(fmt.Errorf("%s: %w", path, err))
	}

	memberRole := roleOf(member["role"])
	if memberRole != tokenRole {
		p.logger.Info("member role changed since token issue",
			zap.Int64("id", id),
			zap.String("tokenRole", tokenRole.String()),
			zap.String("memberRole", memberRole.String()),
		)
		return nil, apierror.StaleIdentity("member role changed")
	}

	return newProfile(member, authz.ConstructScope(perms, memberRole)), nil
}

// firstItem returns items[0] of a member listing.
func firstItem(body any) (map[string]any, error) {
	listing, ok := body.(map[string]any)
	if !ok {
		return nil, ErrMemberNotFound
	}
	items, ok := listing["items"].([]any)
	if !ok || len(items) == 0 {
		return nil, ErrMemberNotFound
	}
	member, ok := items[0].(map[string]any)
	if !ok {
		return nil, ErrMemberNotFound
	}
	return member, nil
}

// roleOf converts a decoded JSON role into a Role, so that numeric and
// string roles compare equal.
func roleOf(v any) auth.Role {
	raw, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	var role auth.Role
	if err := json.Unmarshal(raw, &role); err != nil {
		return ""
	}
	return role
}
