package authz

import (
	"net/http"
	"strings"

	"github.com/readr-media/readr-bff/internal/auth"
)

// Granted is the permission value that grants an object to a role.
const Granted = 1

// Permission is one row of the permission catalogue.
type Permission struct {
	Role       auth.Role `json:"role"`
	Object     string    `json:"object"`
	Permission int       `json:"permission"`
}

// ConstructScope returns the objects granted to role, in catalogue order and
// without duplicates. The result is never nil.
func ConstructScope(perms []Permission, role auth.Role) []string {
	scopes := make([]string, 0, len(perms))
	seen := make(map[string]struct{}, len(perms))
	for _, p := range perms {
		if p.Role != role || p.Permission != Granted {
			continue
		}
		if _, dup := seen[p.Object]; dup {
			continue
		}
		seen[p.Object] = struct{}{}
		scopes = append(scopes, p.Object)
	}
	return scopes
}

// HasScope reports whether scope is in scopes.
func HasScope(scopes []string, scope string) bool {
	for _, s := range scopes {
		if s == scope {
			return true
		}
	}
	return false
}

// ScopeFunc derives the scope a request requires.
type ScopeFunc func(r *http.Request) string

// ScopeFor returns a ScopeFunc yielding "<resource>:<action>" for a route
// prefix, where resource is the prefix without its leading slash and the
// action is derived from the request method.
func ScopeFor(prefix string) ScopeFunc {
	resource := strings.Trim(prefix, "/")
	return func(r *http.Request) string {
		return resource + ":" + Action(r.Method)
	}
}

// Action maps an HTTP method to a permission action.
func Action(method string) string {
	switch method {
	case http.MethodPost:
		return "create"
	case http.MethodPut, http.MethodPatch:
		return "update"
	case http.MethodDelete:
		return "delete"
	default:
		return "read"
	}
}
