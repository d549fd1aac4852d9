// Package main is the entry point for the readr BFF gateway.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/readr-media/readr-bff/internal/config"
	"github.com/readr-media/readr-bff/internal/observability"
)

// Version information (set at build time).
var (
	version   = "dev"
	buildTime = "unknown"
	gitCommit = "unknown"
)

// cliFlags holds command line flags. Empty log settings defer to the
// configuration.
type cliFlags struct {
	configPath  string
	logLevel    string
	logFormat   string
	showVersion bool
}

func main() {
	flags, err := parseFlags(flag.CommandLine, os.Args[1:])
	if err != nil {
		os.Exit(2)
	}

	if flags.showVersion {
		printVersion(os.Stdout)
		return
	}

	bootstrap, err := initLogger(logConfigFor(flags, config.DefaultConfig()))
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	cfg, err := loadAndValidateConfig(flags.configPath, bootstrap)
	if err != nil {
		bootstrap.Fatal("invalid configuration", observability.Error(err))
	}

	logger, err := initLogger(logConfigFor(flags, cfg))
	if err != nil {
		bootstrap.Fatal("failed to initialize logger", observability.Error(err))
	}
	defer func() { _ = logger.Sync() }()

	app, err := initApplication(cfg, logger)
	if err != nil {
		logger.Fatal("failed to initialize gateway", observability.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := app.run(ctx, flags.configPath); err != nil {
		logger.Error("gateway exited with error", observability.Error(err))
		_ = logger.Sync()
		os.Exit(1)
	}
}

// parseFlags parses args into cliFlags, falling back to environment
// variables for unset flags.
func parseFlags(fs *flag.FlagSet, args []string) (cliFlags, error) {
	var flags cliFlags
	fs.StringVar(&flags.configPath, "config", getEnvOrDefault(config.EnvConfigPath, ""),
		"Path to an optional YAML configuration file")
	fs.StringVar(&flags.logLevel, "log-level", getEnvOrDefault(config.EnvLogLevel, ""),
		"Log level (debug, info, warn, error)")
	fs.StringVar(&flags.logFormat, "log-format", getEnvOrDefault(config.EnvLogFormat, ""),
		"Log format (json, console)")
	fs.BoolVar(&flags.showVersion, "version", false, "Show version information")

	if err := fs.Parse(args); err != nil {
		return cliFlags{}, err
	}
	return flags, nil
}

// printVersion writes version information to w.
func printVersion(w io.Writer) {
	_, _ = fmt.Fprintf(w, "readr-bff version %s\n", version)
	_, _ = fmt.Fprintf(w, "  Build time: %s\n", buildTime)
	_, _ = fmt.Fprintf(w, "  Git commit: %s\n", gitCommit)
}

// logConfigFor merges the flags over the configured log settings.
func logConfigFor(flags cliFlags, cfg *config.Config) observability.LogConfig {
	logCfg := observability.DefaultLogConfig()
	logCfg.Level = cfg.Observability.LogLevel
	logCfg.Format = cfg.Observability.LogFormat
	logCfg.Service = cfg.Observability.ServiceName
	if flags.logLevel != "" {
		logCfg.Level = flags.logLevel
	}
	if flags.logFormat != "" {
		logCfg.Format = flags.logFormat
	}
	return logCfg
}

// initLogger creates the logger and installs it globally.
func initLogger(cfg observability.LogConfig) (observability.Logger, error) {
	logger, err := observability.NewLogger(cfg)
	if err != nil {
		return nil, err
	}
	observability.SetGlobalLogger(logger)
	return logger, nil
}

// loadAndValidateConfig loads and validates the configuration. An empty
// path means defaults and environment only.
func loadAndValidateConfig(configPath string, logger observability.Logger) (*config.Config, error) {
	logger.Info("starting readr-bff",
		observability.String("version", version),
		observability.String("config", configPath),
	)

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	if err := config.Validate(cfg); err != nil {
		return nil, err
	}

	logger.Info("configuration loaded",
		observability.String("upstream", cfg.Upstream.BaseURL()),
		observability.Int("port", cfg.Server.Port),
		observability.Int("metrics_port", cfg.Server.MetricsPort),
		observability.Bool("breaker", cfg.Breaker.Enabled),
		observability.Bool("rate_limit", cfg.RateLimit.Enabled()),
		observability.Bool("permission_cache", cfg.Permission.CacheEnabled()),
		observability.Bool("client_trace", cfg.Trace.Enabled()),
		observability.Int("model_hosts", len(cfg.AvailableModels)),
	)
	return cfg, nil
}
