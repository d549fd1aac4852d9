package gateway

import (
	"errors"
	"fmt"
	"net/http"
	"slices"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/readr-media/readr-bff/internal/authz"
	"github.com/readr-media/readr-bff/internal/server/middleware"
)

// AuthLevel is the guard a rule places in front of its handler.
type AuthLevel int

const (
	// AuthNone runs the handler without verification.
	AuthNone AuthLevel = iota
	// AuthToken requires a verified bearer token.
	AuthToken
	// AuthTokenAndScope requires a verified token and the rule's scope.
	AuthTokenAndScope
)

// String returns the level name.
func (l AuthLevel) String() string {
	switch l {
	case AuthNone:
		return "none"
	case AuthToken:
		return "token"
	case AuthTokenAndScope:
		return "token+scope"
	default:
		return fmt.Sprintf("AuthLevel(%d)", int(l))
	}
}

// Rule binds a path prefix to a handler chain.
type Rule struct {
	// Name labels logs and metrics.
	Name string
	// Prefix matches the path itself and everything below it.
	Prefix string
	// Exact restricts the match to the prefix path alone.
	Exact bool
	// Methods lists the accepted methods; empty accepts every method.
	Methods []string
	// Auth selects the guard.
	Auth AuthLevel
	// Verifier overrides the table's token verifier for this rule.
	Verifier gin.HandlerFunc
	// Scope derives the required scope; defaults to authz.ScopeFor(Prefix).
	Scope authz.ScopeFunc
	// Before runs after the guard and before the handler.
	Before []gin.HandlerFunc
	// Handler serves the request.
	Handler gin.HandlerFunc
	// After runs once the handler has finished, unless it aborted.
	After []gin.HandlerFunc
}

// matchesPath reports whether path falls under the rule.
func (r *Rule) matchesPath(path string) bool {
	if path == r.Prefix {
		return true
	}
	return !r.Exact && strings.HasPrefix(path, r.Prefix+"/")
}

func (r *Rule) matchesMethod(method string) bool {
	return len(r.Methods) == 0 || slices.Contains(r.Methods, method)
}

// coveredBy reports whether every request r accepts is also accepted by
// other.
func (r *Rule) coveredBy(other *Rule) bool {
	if len(other.Methods) > 0 {
		if len(r.Methods) == 0 {
			return false
		}
		for _, m := range r.Methods {
			if !slices.Contains(other.Methods, m) {
				return false
			}
		}
	}
	if other.Exact {
		return r.Exact && r.Prefix == other.Prefix
	}
	return other.matchesPath(r.Prefix)
}

// nestedUnder reports whether r sits strictly below other's prefix.
func (r *Rule) nestedUnder(other *Rule) bool {
	return !other.Exact && strings.HasPrefix(r.Prefix, other.Prefix+"/")
}

// Route table construction errors.
var (
	ErrInvalidRule  = errors.New("invalid rule")
	ErrShadowedRule = errors.New("rule is shadowed by an earlier rule")
	ErrNestedPrefix = errors.New("rule prefix nests under another prefix rule")
)

// Guards supplies the middleware a table places in front of guarded rules.
type Guards struct {
	// Token verifies the bearer token. Required by AuthToken rules.
	Token gin.HandlerFunc
	// Filter checks scopes. Required by AuthTokenAndScope rules.
	Filter *authz.Filter
}

// Table is an immutable, ordered rule list. The first matching rule serves
// a request; requests no rule matches go to the fallback.
type Table struct {
	rules    []Rule
	fallback Rule
}

// NewTable builds a table from rules in order. fallback serves unmatched
// requests; its Prefix is ignored. Rules that an earlier rule fully
// shadows, or whose prefix nests under another prefix rule, are rejected.
func NewTable(fallback Rule, rules ...Rule) (*Table, error) {
	if fallback.Handler == nil {
		return nil, fmt.Errorf("%w: fallback has no handler", ErrInvalidRule)
	}
	if fallback.Name == "" {
		fallback.Name = "passthrough"
	}

	copied := make([]Rule, len(rules))
	copy(copied, rules)

	for i := range copied {
		r := &copied[i]
		if err := validate(r); err != nil {
			return nil, err
		}
		for j := range copied[:i] {
			earlier := &copied[j]
			if r.coveredBy(earlier) {
				return nil, fmt.Errorf("%w: %q by %q", ErrShadowedRule, r.Name, earlier.Name)
			}
			if r.nestedUnder(earlier) || earlier.nestedUnder(r) {
				return nil, fmt.Errorf("%w: %q and %q", ErrNestedPrefix, r.Name, earlier.Name)
			}
		}
	}

	return &Table{rules: copied, fallback: fallback}, nil
}

func validate(r *Rule) error {
	switch {
	case r.Name == "":
		return fmt.Errorf("%w: rule for %q has no name", ErrInvalidRule, r.Prefix)
	case !strings.HasPrefix(r.Prefix, "/") || (len(r.Prefix) > 1 && strings.HasSuffix(r.Prefix, "/")):
		return fmt.Errorf("%w: %q has malformed prefix %q", ErrInvalidRule, r.Name, r.Prefix)
	case r.Prefix == "/" && !r.Exact:
		return fmt.Errorf("%w: %q would match every path", ErrInvalidRule, r.Name)
	case r.Handler == nil:
		return fmt.Errorf("%w: %q has no handler", ErrInvalidRule, r.Name)
	}
	methods := make([]string, len(r.Methods))
	for i, m := range r.Methods {
		methods[i] = strings.ToUpper(m)
	}
	r.Methods = methods
	if r.Auth == AuthTokenAndScope && r.Scope == nil {
		r.Scope = authz.ScopeFor(r.Prefix)
	}
	return nil
}

// Rules returns a copy of the rules in match order.
func (t *Table) Rules() []Rule {
	out := make([]Rule, len(t.rules))
	copy(out, t.rules)
	return out
}

// Match returns the first rule accepting method and path. ok is false when
// the fallback applies.
func (t *Table) Match(method, path string) (rule Rule, ok bool) {
	for i := range t.rules {
		r := &t.rules[i]
		if r.matchesPath(path) && r.matchesMethod(method) {
			return *r, true
		}
	}
	return t.fallback, false
}

// routeMethods is the method set of a rule with no Methods, matching
// gin's Any.
var routeMethods = []string{
	http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch,
	http.MethodHead, http.MethodOptions, http.MethodDelete,
	http.MethodConnect, http.MethodTrace,
}

// Mount installs one handler chain per rule on engine, in order, and the
// fallback as the NoRoute chain. Global middleware must already be
// registered with engine.Use.
func (t *Table) Mount(engine *gin.Engine, guards Guards) error {
	engine.RedirectTrailingSlash = false
	engine.RedirectFixedPath = false

	registered := make(map[string]bool)
	for i := range t.rules {
		r := &t.rules[i]
		chain, err := t.chain(r, guards)
		if err != nil {
			return err
		}

		methods := r.Methods
		if len(methods) == 0 {
			methods = routeMethods
		}
		patterns := []string{r.Prefix}
		if !r.Exact {
			patterns = append(patterns, r.Prefix+"/*rest")
		}
		for _, m := range methods {
			for _, p := range patterns {
				key := m + " " + p
				if registered[key] {
					continue
				}
				registered[key] = true
				engine.Handle(m, p, chain...)
			}
		}
	}

	fallback, err := t.chain(&t.fallback, guards)
	if err != nil {
		return err
	}
	engine.NoRoute(fallback...)
	return nil
}

func (t *Table) chain(r *Rule, guards Guards) ([]gin.HandlerFunc, error) {
	name := r.Name
	chain := []gin.HandlerFunc{func(c *gin.Context) {
		c.Set(middleware.RouteKey, name)
		c.Next()
	}}

	verifier := r.Verifier
	if verifier == nil {
		verifier = guards.Token
	}

	switch r.Auth {
	case AuthNone:
	case AuthToken:
		if verifier == nil {
			return nil, fmt.Errorf("%w: %q needs a token verifier", ErrInvalidRule, r.Name)
		}
		chain = append(chain, verifier)
	case AuthTokenAndScope:
		if verifier == nil || guards.Filter == nil {
			return nil, fmt.Errorf("%w: %q needs a token verifier and a scope filter", ErrInvalidRule, r.Name)
		}
		chain = append(chain, verifier, guards.Filter.Middleware(r.Scope))
	default:
		return nil, fmt.Errorf("%w: %q has unknown auth level %d", ErrInvalidRule, r.Name, int(r.Auth))
	}

	chain = append(chain, r.Before...)
	chain = append(chain, r.Handler)
	chain = append(chain, r.After...)
	return chain, nil
}
