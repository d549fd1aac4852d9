package authz

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

// DefaultPermissionPath is the upstream path of the permission catalogue.
const DefaultPermissionPath = "/permission"

// ErrMalformedCatalogue indicates an upstream payload that is not a
// permission list.
var ErrMalformedCatalogue = errors.New("malformed permission catalogue")

// Catalogue provides the permission catalogue.
type Catalogue interface {
	// Permissions returns every permission row.
	Permissions(ctx context.Context) ([]Permission, error)
}

// Fetcher issues a GET against the upstream and returns the decoded,
// camelized body.
type Fetcher interface {
	Fetch(ctx context.Context, path string) (any, error)
}

// UpstreamCatalogue reads the catalogue from the upstream API.
type UpstreamCatalogue struct {
	fetcher Fetcher
	path    string
}

// NewUpstreamCatalogue creates a catalogue served at path; an empty path
// means DefaultPermissionPath.
func NewUpstreamCatalogue(fetcher Fetcher, path string) *UpstreamCatalogue {
	if path == "" {
		path = DefaultPermissionPath
	}
	return &UpstreamCatalogue{fetcher: fetcher, path: path}
}

// Permissions fetches and decodes the catalogue.
func (u *UpstreamCatalogue) Permissions(ctx context.Context) ([]Permission, error) {
	body, err := u.fetcher.Fetch(ctx, u.path)
	if err != nil {
		return nil, err
	}
	return DecodePermissions(body)
}

// DecodePermissions converts a decoded upstream body into permission rows.
// The body is either a list or an envelope with an "items" list.
func DecodePermissions(body any) ([]Permission, error) {
	var rows any
	switch v := body.(type) {
	case []any:
		rows = v
	case map[string]any:
		items, ok := v["items"]
		if !ok {
			return nil, fmt.Errorf("%w: no items", ErrMalformedCatalogue)
		}
		rows = items
	default:
		return nil, fmt.Errorf("%w: unexpected %T", ErrMalformedCatalogue, body)
	}

	raw, err := json.Marshal(rows)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedCatalogue, err)
	}
	var perms []Permission
	if err := json.Unmarshal(raw, &perms); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedCatalogue, err)
	}
	return perms, nil
}
