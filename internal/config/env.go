package config

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Environment variable names.
const (
	EnvAPIProtocol        = "API_PROTOCOL"
	EnvAPIHost            = "API_HOST"
	EnvAPIPort            = "API_PORT"
	EnvAPITimeout         = "API_TIMEOUT"
	EnvAPIDeadline        = "API_DEADLINE"
	EnvJWTSecret          = "JWT_SECRET"
	EnvAvailableModels    = "AVAILABLE_MODELS"
	EnvGCPProjectID       = "GCP_PROJECT_ID"
	EnvGCPKeyFile         = "GCP_KEYFILE"
	EnvGCPLogName         = "GCP_STACKDRIVER_LOG_NAME"
	EnvPermissionPath     = "PERMISSION_PATH"
	EnvPermissionCache    = "PERMISSION_CACHE_REDIS_ADDR"
	EnvPermissionCacheTTL = "PERMISSION_CACHE_TTL"
	EnvBreakerEnabled     = "UPSTREAM_BREAKER_ENABLED"
	EnvRateLimitRPS       = "RATE_LIMIT_RPS"
	EnvRateLimitBurst     = "RATE_LIMIT_BURST"
	EnvGatewayPort        = "GATEWAY_PORT"
	EnvMetricsPort        = "METRICS_PORT"
	EnvOTLPEndpoint       = "OTLP_ENDPOINT"
	EnvSamplingRate       = "TRACING_SAMPLING_RATE"
	EnvLogLevel           = "GATEWAY_LOG_LEVEL"
	EnvLogFormat          = "GATEWAY_LOG_FORMAT"
	EnvConfigPath         = "GATEWAY_CONFIG_PATH"
)

// LookupFunc resolves an environment variable, as os.LookupEnv does.
type LookupFunc func(key string) (string, bool)

// envOverlay applies variables onto a Config and collects parse failures.
type envOverlay struct {
	lookup LookupFunc
	errs   ValidationErrors
}

// ApplyEnv overlays recognised environment variables onto cfg. Unset or
// empty variables leave the current value in place. Every malformed value
// is reported.
func ApplyEnv(cfg *Config, lookup LookupFunc) error {
	o := &envOverlay{lookup: lookup}

	o.str(EnvAPIProtocol, &cfg.Upstream.Protocol)
	o.str(EnvAPIHost, &cfg.Upstream.Host)
	o.int(EnvAPIPort, &cfg.Upstream.Port)
	o.duration(EnvAPITimeout, &cfg.Upstream.Timeout)
	o.duration(EnvAPIDeadline, &cfg.Upstream.Deadline)

	o.str(EnvJWTSecret, &cfg.Auth.JWTSecret)
	o.models(EnvAvailableModels, &cfg.AvailableModels)

	o.str(EnvGCPProjectID, &cfg.Trace.ProjectID)
	o.str(EnvGCPKeyFile, &cfg.Trace.KeyFile)
	o.str(EnvGCPLogName, &cfg.Trace.LogName)

	o.str(EnvPermissionPath, &cfg.Permission.Path)
	o.str(EnvPermissionCache, &cfg.Permission.CacheRedisAddr)
	o.duration(EnvPermissionCacheTTL, &cfg.Permission.CacheTTL)

	o.bool(EnvBreakerEnabled, &cfg.Breaker.Enabled)
	o.float(EnvRateLimitRPS, &cfg.RateLimit.RPS)
	o.int(EnvRateLimitBurst, &cfg.RateLimit.Burst)

	o.int(EnvGatewayPort, &cfg.Server.Port)
	o.int(EnvMetricsPort, &cfg.Server.MetricsPort)

	o.str(EnvOTLPEndpoint, &cfg.Observability.OTLPEndpoint)
	o.float(EnvSamplingRate, &cfg.Observability.SamplingRate)
	o.str(EnvLogLevel, &cfg.Observability.LogLevel)
	o.str(EnvLogFormat, &cfg.Observability.LogFormat)

	if o.errs.HasErrors() {
		return o.errs
	}
	return nil
}

func (o *envOverlay) get(key string) (string, bool) {
	v, ok := o.lookup(key)
	if !ok {
		return "", false
	}
	v = strings.TrimSpace(v)
	return v, v != ""
}

func (o *envOverlay) fail(key, value string, err error) {
	o.errs = append(o.errs, ValidationError{
		Path:    key,
		Message: fmt.Sprintf("invalid value %q: %v", value, err),
	})
}

func (o *envOverlay) str(key string, dst *string) {
	if v, ok := o.get(key); ok {
		*dst = v
	}
}

func (o *envOverlay) int(key string, dst *int) {
	v, ok := o.get(key)
	if !ok {
		return
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		o.fail(key, v, err)
		return
	}
	*dst = n
}

func (o *envOverlay) float(key string, dst *float64) {
	v, ok := o.get(key)
	if !ok {
		return
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		o.fail(key, v, err)
		return
	}
	*dst = f
}

func (o *envOverlay) bool(key string, dst *bool) {
	v, ok := o.get(key)
	if !ok {
		return
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		o.fail(key, v, err)
		return
	}
	*dst = b
}

func (o *envOverlay) duration(key string, dst *Duration) {
	v, ok := o.get(key)
	if !ok {
		return
	}
	d, err := ParseDuration(v)
	if err != nil {
		o.fail(key, v, err)
		return
	}
	*dst = d
}

// models parses a JSON object of identifier to model list.
func (o *envOverlay) models(key string, dst *ModelTable) {
	v, ok := o.get(key)
	if !ok {
		return
	}
	var table ModelTable
	if err := json.Unmarshal([]byte(v), &table); err != nil {
		o.fail(key, v, err)
		return
	}
	*dst = table
}
