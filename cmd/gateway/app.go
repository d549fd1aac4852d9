package main

import (
	"fmt"
	"net/http"

	"github.com/redis/go-redis/v9"

	"github.com/readr-media/readr-bff/internal/auth"
	"github.com/readr-media/readr-bff/internal/authz"
	"github.com/readr-media/readr-bff/internal/config"
	"github.com/readr-media/readr-bff/internal/gateway"
	"github.com/readr-media/readr-bff/internal/health"
	"github.com/readr-media/readr-bff/internal/observability"
	"github.com/readr-media/readr-bff/internal/server"
	"github.com/readr-media/readr-bff/internal/upstream"
)

// application holds all application components.
type application struct {
	config        *config.Config
	logger        observability.Logger
	metrics       *observability.Metrics
	reloadMetrics *reloadMetrics
	tracer        *observability.Tracer
	healthChecker *health.Checker
	upstream      *upstream.Client
	breaker       *upstream.Breaker
	redis         *redis.Client
	gateway       *gateway.Gateway
	server        *server.Server
	metricsServer *http.Server
}

// initApplication wires every component from cfg. Nothing is started.
func initApplication(cfg *config.Config, logger observability.Logger) (*application, error) {
	metrics := observability.NewMetrics("readr_bff")
	metrics.SetBuildInfo(version, gitCommit, buildTime)

	tracer, err := initTracer(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize tracer: %w", err)
	}

	app := &application{
		config:        cfg,
		logger:        logger,
		metrics:       metrics,
		reloadMetrics: newReloadMetrics(metrics),
		tracer:        tracer,
		healthChecker: health.NewChecker(version),
	}

	client, err := app.initUpstream()
	if err != nil {
		return nil, err
	}
	app.upstream = client

	gw, err := app.initGateway()
	if err != nil {
		app.closeRedis()
		return nil, err
	}
	app.gateway = gw

	app.server = server.New(&server.Config{
		Port:               cfg.Server.Port,
		ReadTimeout:        cfg.Server.ReadTimeout.Duration(),
		WriteTimeout:       cfg.Server.WriteTimeout.Duration(),
		IdleTimeout:        cfg.Server.IdleTimeout.Duration(),
		MaxHeaderBytes:     1 << 20,
		MaxRequestBodySize: cfg.Server.MaxBodySize,
	}, logger.Zap().Named("server"))

	buildMiddlewareChain(app.server, cfg, logger.Zap(), metrics, tracer)
	if err := gw.Mount(app.server.Engine()); err != nil {
		app.closeRedis()
		return nil, fmt.Errorf("failed to mount routes: %w", err)
	}

	if cfg.Server.MetricsPort != 0 {
		app.metricsServer = createMetricsServer(cfg.Server.MetricsPort, metrics, app.healthChecker, logger)
	}
	return app, nil
}

// initTracer initializes the tracer.
func initTracer(cfg *config.Config) (*observability.Tracer, error) {
	obs := cfg.Observability
	return observability.NewTracer(observability.TracerConfig{
		ServiceName:    obs.ServiceName,
		ServiceVersion: version,
		OTLPEndpoint:   obs.OTLPEndpoint,
		SamplingRate:   obs.SamplingRate,
		Enabled:        obs.TracingEnabled(),
	})
}

// initUpstream creates the upstream client, guarded by a breaker when
// enabled.
func (a *application) initUpstream() (*upstream.Client, error) {
	cfg := a.config
	opts := []upstream.Option{
		upstream.WithLogger(a.logger.Zap().Named("upstream")),
		upstream.WithMetrics(a.metrics),
		upstream.WithTracerProvider(a.tracer.Provider()),
	}

	if cfg.Breaker.Enabled {
		a.breaker = upstream.NewBreaker(upstream.BreakerConfig{
			Name:          "upstream",
			Threshold:     cfg.Breaker.Threshold,
			Timeout:       cfg.Breaker.Timeout.Duration(),
			OnStateChange: a.metrics.SetCircuitBreakerState,
			Logger:        a.logger.Zap().Named("breaker"),
		})
		opts = append(opts, upstream.WithBreaker(a.breaker))
		a.healthChecker.RegisterCheck("upstream-breaker", health.BreakerCheck(a.breaker.Open))
	}

	client, err := upstream.New(upstream.Config{
		BaseURL:         cfg.Upstream.BaseURL(),
		ResponseTimeout: cfg.Upstream.Timeout.Duration(),
		Deadline:        cfg.Upstream.Deadline.Duration(),
	}, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create upstream client: %w", err)
	}
	return client, nil
}

// initGateway builds the verifiers, the permission catalogue and the
// route table.
func (a *application) initGateway() (*gateway.Gateway, error) {
	cfg := a.config
	zl := a.logger.Zap()

	var verifierOpts []auth.VerifierOption
	if leeway := cfg.Auth.Leeway.Duration(); leeway > 0 {
		verifierOpts = append(verifierOpts, auth.WithLeeway(leeway))
	}
	verifier, err := auth.NewVerifier(cfg.Auth.JWTSecret, verifierOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create token verifier: %w", err)
	}
	authLogger := zl.Named("auth")

	direct := authz.NewUpstreamCatalogue(a.upstream, cfg.Permission.Path)
	var filterCatalogue authz.Catalogue = direct
	if cfg.Permission.CacheEnabled() {
		client, err := authz.NewRedisClient(cfg.Permission.CacheRedisAddr)
		if err != nil {
			return nil, fmt.Errorf("failed to connect permission cache: %w", err)
		}
		a.redis = client
		a.healthChecker.RegisterCheck("permission-cache", health.RedisCheck(client))
		filterCatalogue = authz.NewCachedCatalogue(direct, client,
			authz.WithCacheTTL(cfg.Permission.CacheTTL.Duration()),
			authz.WithCacheLogger(a.logger.Named("permission-cache")),
		)
	}

	return gateway.New(gateway.Config{
		Upstream: a.upstream,
		Verifier: auth.MiddlewareWithConfig(auth.MiddlewareConfig{
			Verifier: verifier,
			Logger:   authLogger,
		}),
		ActivationVerifier: auth.MiddlewareWithConfig(auth.MiddlewareConfig{
			Verifier:   verifier,
			QueryParam: cfg.Auth.ActivationQueryParam,
			Logger:     authLogger,
		}),
		Filter:    authz.NewFilter(filterCatalogue, authz.WithFilterLogger(zl.Named("authz"))),
		Catalogue: direct,
		Models:    cfg.AvailableModels,
		Trace:     cfg.Trace,
		Logger:    zl.Named("gateway"),
	})
}

func (a *application) closeRedis() {
	if a.redis == nil {
		return
	}
	if err := a.redis.Close(); err != nil {
		a.logger.Error("failed to close permission cache", observability.Error(err))
	}
	a.redis = nil
}
