package config

import (
	"fmt"
	"strings"
)

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Path    string
	Message string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("%s: %s", e.Path, e.Message)
	}
	return e.Message
}

// ValidationErrors is a collection of validation errors.
type ValidationErrors []ValidationError

// Error implements the error interface.
func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return "no validation errors"
	}
	if len(e) == 1 {
		return e[0].Error()
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "%d validation errors:\n", len(e))
	for i := range e {
		fmt.Fprintf(&sb, "  %d. %s\n", i+1, e[i].Error())
	}
	return sb.String()
}

// HasErrors returns true if there are validation errors.
func (e ValidationErrors) HasErrors() bool {
	return len(e) > 0
}

var (
	validProtocols  = map[string]bool{"http": true, "https": true}
	validLogLevels  = map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	validLogFormats = map[string]bool{"json": true, "console": true}
)

// Validate checks cfg and returns every problem found.
func Validate(cfg *Config) error {
	var errs ValidationErrors
	add := func(path, format string, args ...any) {
		errs = append(errs, ValidationError{Path: path, Message: fmt.Sprintf(format, args...)})
	}

	if cfg == nil {
		add("", "configuration is nil")
		return errs
	}

	u := cfg.Upstream
	if u.Host == "" {
		add("upstream.host", "is required (%s)", EnvAPIHost)
	}
	if !validProtocols[u.Protocol] {
		add("upstream.protocol", "must be http or https, got %q", u.Protocol)
	}
	if !validPort(u.Port) {
		add("upstream.port", "must be between 1 and 65535, got %d", u.Port)
	}
	if u.Timeout <= 0 {
		add("upstream.timeout", "must be positive")
	}
	if u.Deadline <= 0 {
		add("upstream.deadline", "must be positive")
	}

	if cfg.Auth.JWTSecret == "" {
		add("auth.jwtSecret", "is required (%s)", EnvJWTSecret)
	}
	if cfg.Auth.Leeway < 0 {
		add("auth.leeway", "must not be negative")
	}

	if !strings.HasPrefix(cfg.Permission.Path, "/") {
		add("permission.path", "must start with /, got %q", cfg.Permission.Path)
	}
	if cfg.Permission.CacheEnabled() && cfg.Permission.CacheTTL <= 0 {
		add("permission.cacheTTL", "must be positive when the cache is enabled")
	}

	if cfg.Breaker.Enabled && cfg.Breaker.Threshold <= 0 {
		add("breaker.threshold", "must be positive when the breaker is enabled")
	}

	if cfg.RateLimit.RPS < 0 {
		add("rateLimit.rps", "must not be negative")
	}
	if cfg.RateLimit.Enabled() && cfg.RateLimit.Burst < 1 {
		add("rateLimit.burst", "must be at least 1 when rate limiting is enabled")
	}

	s := cfg.Server
	if !validPort(s.Port) {
		add("server.port", "must be between 1 and 65535, got %d", s.Port)
	}
	if s.MetricsPort != 0 && !validPort(s.MetricsPort) {
		add("server.metricsPort", "must be between 1 and 65535, got %d", s.MetricsPort)
	}
	if s.MetricsPort != 0 && s.MetricsPort == s.Port {
		add("server.metricsPort", "must differ from server.port")
	}
	if s.MaxBodySize < 0 {
		add("server.maxBodySize", "must not be negative")
	}

	o := cfg.Observability
	if !validLogLevels[strings.ToLower(o.LogLevel)] {
		add("observability.logLevel", "unsupported level %q", o.LogLevel)
	}
	if !validLogFormats[o.LogFormat] {
		add("observability.logFormat", "must be json or console, got %q", o.LogFormat)
	}
	if o.SamplingRate < 0 || o.SamplingRate > 1 {
		add("observability.samplingRate", "must be between 0 and 1")
	}

	for id := range cfg.AvailableModels {
		if id == "" {
			add("availableModels", "identifier must not be empty")
		}
	}

	if errs.HasErrors() {
		return errs
	}
	return nil
}

func validPort(p int) bool {
	return p > 0 && p <= 65535
}
