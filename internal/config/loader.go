package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

// envVarPattern matches ${VAR} and ${VAR:-default} patterns.
var envVarPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

// Loader builds a Config from defaults, an optional file and the
// environment.
type Loader struct {
	lookup LookupFunc
}

// NewLoader creates a loader reading the process environment.
func NewLoader() *Loader {
	return &Loader{lookup: os.LookupEnv}
}

// NewLoaderWithLookup creates a loader reading variables through lookup.
func NewLoaderWithLookup(lookup LookupFunc) *Loader {
	return &Loader{lookup: lookup}
}

// Load loads the configuration. path may be empty, in which case only
// defaults and the environment are used.
func Load(path string) (*Config, error) {
	return NewLoader().Load(path)
}

// Load loads the configuration from path, which may be empty.
func (l *Loader) Load(path string) (*Config, error) {
	if path == "" {
		return l.build(nil)
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve path %s: %w", path, err)
	}
	data, err := os.ReadFile(absPath) //nolint:gosec // operator-supplied path
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	return l.build(data)
}

// LoadFromReader loads the configuration from r.
func (l *Loader) LoadFromReader(r io.Reader) (*Config, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	return l.build(data)
}

func (l *Loader) build(data []byte) (*Config, error) {
	cfg := DefaultConfig()

	if len(data) > 0 {
		content := l.substituteEnvVars(string(data))
		if err := yaml.Unmarshal([]byte(content), cfg); err != nil {
			return nil, fmt.Errorf("failed to parse YAML: %w", err)
		}
	}

	if err := ApplyEnv(cfg, l.lookup); err != nil {
		return nil, fmt.Errorf("failed to apply environment: %w", err)
	}
	if cfg.AvailableModels == nil {
		cfg.AvailableModels = ModelTable{}
	}
	return cfg, nil
}

// substituteEnvVars replaces ${VAR} and ${VAR:-default} patterns with
// environment variable values. "$$" escapes a literal dollar sign.
func (l *Loader) substituteEnvVars(content string) string {
	content = strings.ReplaceAll(content, "$$", "\x00ESCAPED_DOLLAR\x00")

	result := envVarPattern.ReplaceAllStringFunc(content, func(match string) string {
		submatches := envVarPattern.FindStringSubmatch(match)
		if len(submatches) < 2 {
			return match
		}

		if value, exists := l.lookup(submatches[1]); exists {
			return value
		}
		if len(submatches) >= 3 {
			return submatches[2]
		}
		return ""
	})

	return strings.ReplaceAll(result, "\x00ESCAPED_DOLLAR\x00", "$")
}
