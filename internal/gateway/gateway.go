package gateway

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/readr-media/readr-bff/internal/authz"
	"github.com/readr-media/readr-bff/internal/config"
	"github.com/readr-media/readr-bff/internal/server/middleware"
)

// Sub-handler names. A SubHandlers entry under one of these replaces the
// passthrough for that rule.
const (
	RuleAsset    = "asset"
	RuleLogin    = "login"
	RuleActivate = "activate"
	RuleProject  = "project"
	RuleReport   = "report"
	RuleMemo     = "memo"
	RuleMember   = "member"
	RuleMembers  = "members"
	RulePost     = "post"
	RulePoll     = "poll"
	RuleTags     = "tags"
	RuleToken    = "token"
)

// SubHandlers maps rule names to their handlers.
type SubHandlers map[string]gin.HandlerFunc

// ErrMissingDependency is returned by New when a required collaborator is nil.
var ErrMissingDependency = errors.New("missing gateway dependency")

// Upstream is the upstream API as seen by the gateway.
type Upstream interface {
	Forwarder
	Fetcher
}

// Config wires a Gateway.
type Config struct {
	// Upstream serves the passthrough and the profile fetches.
	Upstream Upstream
	// Verifier verifies bearer tokens.
	Verifier gin.HandlerFunc
	// ActivationVerifier verifies tokens on activation links. Defaults to
	// Verifier.
	ActivationVerifier gin.HandlerFunc
	// Filter checks scopes on /post and /poll.
	Filter *authz.Filter
	// Catalogue is queried by the profile aggregator.
	Catalogue authz.Catalogue
	// Models is the initial available-models table.
	Models config.ModelTable
	// Trace holds the client trace credentials.
	Trace config.TraceConfig
	// SubHandlers override the passthrough per rule.
	SubHandlers SubHandlers
	// Logger is the base logger.
	Logger *zap.Logger
}

// Gateway owns the route table and its handlers.
type Gateway struct {
	table   *Table
	guards  Guards
	models  *ModelCatalogue
	proxy   *Proxy
	profile *ProfileAggregator
	logger  *zap.Logger
}

// New builds the gateway and its route table.
func New(cfg Config) (*Gateway, error) {
	switch {
	case cfg.Upstream == nil:
		return nil, fmt.Errorf("%w: upstream", ErrMissingDependency)
	case cfg.Verifier == nil:
		return nil, fmt.Errorf("%w: verifier", ErrMissingDependency)
	case cfg.Filter == nil:
		return nil, fmt.Errorf("%w: authorization filter", ErrMissingDependency)
	case cfg.Catalogue == nil:
		return nil, fmt.Errorf("%w: permission catalogue", ErrMissingDependency)
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.ActivationVerifier == nil {
		cfg.ActivationVerifier = cfg.Verifier
	}

	g := &Gateway{
		guards: Guards{Token: cfg.Verifier, Filter: cfg.Filter},
		models: NewModelCatalogue(cfg.Models, cfg.Logger.Named("models")),
		proxy:  NewProxy(cfg.Upstream, cfg.Logger.Named("proxy")),
		profile: NewProfileAggregator(cfg.Upstream, cfg.Catalogue,
			cfg.Logger.Named("profile")),
		logger: cfg.Logger,
	}

	table, err := NewTable(g.fallback(cfg.Verifier), g.rules(cfg)...)
	if err != nil {
		return nil, err
	}
	g.table = table
	return g, nil
}

func (g *Gateway) fallback(verifier gin.HandlerFunc) Rule {
	return Rule{
		Name:    "passthrough",
		Prefix:  "/",
		Before:  []gin.HandlerFunc{RequireTokenForMutations(verifier)},
		Handler: g.proxy.Handle,
	}
}

func (g *Gateway) rules(cfg Config) []Rule {
	sub := func(name string) gin.HandlerFunc {
		if h, ok := cfg.SubHandlers[name]; ok && h != nil {
			return h
		}
		return g.proxy.Handle
	}
	openSub := func(name string) gin.HandlerFunc {
		if h, ok := cfg.SubHandlers[name]; ok && h != nil {
			return h
		}
		return g.proxy.HandleOpen
	}
	traced := []gin.HandlerFunc{middleware.ResponseTrace(cfg.Logger.Named("trace"))}
	noCache := []gin.HandlerFunc{middleware.ClientCache()}
	get := []string{http.MethodGet}

	traceSink := NewTraceSink(cfg.Trace, cfg.Logger)

	return []Rule{
		{Name: "enews-group-list", Prefix: "/enews-group-list/list", Auth: AuthNone, Handler: EnewsGroupList},
		{Name: RuleAsset, Prefix: "/asset", Auth: AuthNone, Handler: openSub(RuleAsset), After: traced},
		{Name: RuleLogin, Prefix: "/login", Auth: AuthToken, Handler: sub(RuleLogin)},
		{Name: RuleActivate, Prefix: "/activate", Auth: AuthToken, Verifier: cfg.ActivationVerifier, Handler: sub(RuleActivate)},
		{Name: RuleProject, Prefix: "/project", Auth: AuthToken, Handler: sub(RuleProject), After: traced},
		{Name: RuleReport, Prefix: "/report", Auth: AuthToken, Handler: sub(RuleReport)},
		{Name: RuleMemo, Prefix: "/memo", Auth: AuthToken, Handler: sub(RuleMemo)},
		{Name: RuleMember, Prefix: "/member", Auth: AuthToken, Handler: sub(RuleMember)},
		{Name: RuleMembers, Prefix: "/members", Auth: AuthToken, Handler: sub(RuleMembers)},
		{Name: RulePost, Prefix: "/post", Auth: AuthTokenAndScope, Handler: sub(RulePost), After: traced},
		{Name: RulePoll, Prefix: "/poll", Auth: AuthTokenAndScope, Handler: sub(RulePoll), After: traced},
		{Name: RuleTags, Prefix: "/tags", Auth: AuthToken, Handler: sub(RuleTags)},
		{Name: RuleToken, Prefix: "/token", Auth: AuthNone, Handler: openSub(RuleToken)},
		{Name: "trace", Prefix: "/trace", Auth: AuthNone, Handler: traceSink.Handle},
		{Name: "available-ms", Prefix: "/available-ms", Exact: true, Methods: get, Auth: AuthNone, Handler: g.models.Handle},
		{Name: "profile", Prefix: "/profile", Exact: true, Methods: get, Auth: AuthToken, Before: noCache, Handler: g.profile.Handle},
		{Name: "status", Prefix: "/status", Exact: true, Methods: get, Auth: AuthToken, Before: noCache, Handler: Status},
	}
}

// Mount installs the route table on engine. Global middleware must already
// be registered.
func (g *Gateway) Mount(engine *gin.Engine) error {
	return g.table.Mount(engine, g.guards)
}

// Table returns the route table.
func (g *Gateway) Table() *Table {
	return g.table
}

// SetAvailableModels swaps the available-models table.
func (g *Gateway) SetAvailableModels(table config.ModelTable) {
	g.models.Set(table)
	g.logger.Info("available models updated", zap.Int("hosts", len(table)))
}

// OnConfigReload applies the hot-reloadable parts of cfg.
func (g *Gateway) OnConfigReload(cfg *config.Config) {
	g.SetAvailableModels(cfg.AvailableModels)
}
