package config

import (
	"strconv"
	"time"
)

// Config is the complete gateway configuration.
type Config struct {
	Server          ServerConfig        `yaml:"server" json:"server"`
	Upstream        UpstreamConfig      `yaml:"upstream" json:"upstream"`
	Auth            AuthConfig          `yaml:"auth" json:"auth"`
	Permission      PermissionConfig    `yaml:"permission" json:"permission"`
	Breaker         BreakerConfig       `yaml:"breaker" json:"breaker"`
	RateLimit       RateLimitConfig     `yaml:"rateLimit" json:"rateLimit"`
	Trace           TraceConfig         `yaml:"trace" json:"trace"`
	Observability   ObservabilityConfig `yaml:"observability" json:"observability"`
	AvailableModels ModelTable          `yaml:"availableModels" json:"availableModels"`
}

// ServerConfig configures the HTTP listeners.
type ServerConfig struct {
	Port            int      `yaml:"port" json:"port"`
	MetricsPort     int      `yaml:"metricsPort" json:"metricsPort"`
	ReadTimeout     Duration `yaml:"readTimeout" json:"readTimeout"`
	WriteTimeout    Duration `yaml:"writeTimeout" json:"writeTimeout"`
	IdleTimeout     Duration `yaml:"idleTimeout" json:"idleTimeout"`
	ShutdownTimeout Duration `yaml:"shutdownTimeout" json:"shutdownTimeout"`
	MaxBodySize     int64    `yaml:"maxBodySize" json:"maxBodySize"`
}

// UpstreamConfig locates the upstream API and bounds passthrough calls.
type UpstreamConfig struct {
	Protocol string `yaml:"protocol" json:"protocol"`
	Host     string `yaml:"host" json:"host"`
	Port     int    `yaml:"port" json:"port"`

	// Timeout is the wait for the first response byte.
	Timeout Duration `yaml:"timeout" json:"timeout"`
	// Deadline is the wait for the complete response.
	Deadline Duration `yaml:"deadline" json:"deadline"`
}

// BaseURL returns protocol://host:port.
func (u UpstreamConfig) BaseURL() string {
	return u.Protocol + "://" + u.Host + ":" + strconv.Itoa(u.Port)
}

// AuthConfig configures token verification.
type AuthConfig struct {
	JWTSecret string `yaml:"jwtSecret" json:"-"`
	// ActivationQueryParam names the query parameter that may carry the
	// token on activation links.
	ActivationQueryParam string   `yaml:"activationQueryParam" json:"activationQueryParam"`
	Leeway               Duration `yaml:"leeway" json:"leeway"`
}

// PermissionConfig locates the permission catalogue and its optional cache.
type PermissionConfig struct {
	Path           string   `yaml:"path" json:"path"`
	CacheRedisAddr string   `yaml:"cacheRedisAddr" json:"cacheRedisAddr"`
	CacheTTL       Duration `yaml:"cacheTTL" json:"cacheTTL"`
}

// CacheEnabled reports whether the Redis catalogue cache is configured.
func (p PermissionConfig) CacheEnabled() bool {
	return p.CacheRedisAddr != ""
}

// BreakerConfig configures the optional upstream circuit breaker.
type BreakerConfig struct {
	Enabled   bool     `yaml:"enabled" json:"enabled"`
	Threshold int      `yaml:"threshold" json:"threshold"`
	Timeout   Duration `yaml:"timeout" json:"timeout"`
}

// RateLimitConfig configures the optional global rate limiter. A zero RPS
// disables it.
type RateLimitConfig struct {
	RPS   float64 `yaml:"rps" json:"rps"`
	Burst int     `yaml:"burst" json:"burst"`
}

// Enabled reports whether rate limiting is on.
func (r RateLimitConfig) Enabled() bool {
	return r.RPS > 0
}

// TraceConfig holds the credentials of the client trace logs backend.
type TraceConfig struct {
	ProjectID string `yaml:"projectId" json:"projectId"`
	KeyFile   string `yaml:"keyFile" json:"keyFile"`
	LogName   string `yaml:"logName" json:"logName"`
}

// Enabled reports whether every credential is present. /trace answers 404
// otherwise.
func (t TraceConfig) Enabled() bool {
	return t.ProjectID != "" && t.KeyFile != "" && t.LogName != ""
}

// ObservabilityConfig configures logging and tracing.
type ObservabilityConfig struct {
	LogLevel     string  `yaml:"logLevel" json:"logLevel"`
	LogFormat    string  `yaml:"logFormat" json:"logFormat"`
	ServiceName  string  `yaml:"serviceName" json:"serviceName"`
	OTLPEndpoint string  `yaml:"otlpEndpoint" json:"otlpEndpoint"`
	SamplingRate float64 `yaml:"samplingRate" json:"samplingRate"`
}

// TracingEnabled reports whether spans are exported.
func (o ObservabilityConfig) TracingEnabled() bool {
	return o.OTLPEndpoint != ""
}

// ModelTable maps a request identifier (the caller's host) to the models
// available to it.
type ModelTable map[string][]string

// Lookup returns the models for identifier, or an empty non-nil list.
func (m ModelTable) Lookup(identifier string) []string {
	if models, ok := m[identifier]; ok && models != nil {
		return models
	}
	return []string{}
}

// Defaults.
const (
	DefaultPort             = 8080
	DefaultMetricsPort      = 9090
	DefaultUpstreamPort     = 80
	DefaultProtocol         = "http"
	DefaultPermissionPath   = "/permission"
	DefaultServiceName      = "readr-bff"
	DefaultMaxBodySize      = 10 << 20
	DefaultBreakerThreshold = 10
)

// DefaultConfig returns a configuration with every default applied.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            DefaultPort,
			MetricsPort:     DefaultMetricsPort,
			ReadTimeout:     Duration(30 * time.Second),
			WriteTimeout:    Duration(90 * time.Second),
			IdleTimeout:     Duration(120 * time.Second),
			ShutdownTimeout: Duration(30 * time.Second),
			MaxBodySize:     DefaultMaxBodySize,
		},
		Upstream: UpstreamConfig{
			Protocol: DefaultProtocol,
			Port:     DefaultUpstreamPort,
			Timeout:  Duration(5 * time.Second),
			Deadline: Duration(60 * time.Second),
		},
		Permission: PermissionConfig{
			Path:     DefaultPermissionPath,
			CacheTTL: Duration(60 * time.Second),
		},
		Breaker: BreakerConfig{
			Threshold: DefaultBreakerThreshold,
			Timeout:   Duration(30 * time.Second),
		},
		Observability: ObservabilityConfig{
			LogLevel:     "info",
			LogFormat:    "json",
			ServiceName:  DefaultServiceName,
			SamplingRate: 1.0,
		},
		AvailableModels: ModelTable{},
	}
}
