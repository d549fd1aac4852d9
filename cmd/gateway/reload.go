package main

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/readr-media/readr-bff/internal/config"
	"github.com/readr-media/readr-bff/internal/observability"
)

// Reload outcomes used as metric labels.
const (
	reloadSuccess = "success"
	reloadError   = "error"
)

// reloadMetrics tracks configuration reloads. The collectors are
// registered with the gateway registry so they appear on /metrics.
type reloadMetrics struct {
	configReloadTotal       *prometheus.CounterVec
	configReloadLastSuccess prometheus.Gauge
	configWatcherStatus     prometheus.Gauge
}

// newReloadMetrics creates reload metrics registered with m's registry.
func newReloadMetrics(m *observability.Metrics) *reloadMetrics {
	rm := &reloadMetrics{
		configReloadTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "readr_bff",
				Name:      "config_reload_total",
				Help:      "Total number of configuration reloads",
			},
			[]string{"result"},
		),
		configReloadLastSuccess: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "readr_bff",
				Name:      "config_reload_last_success_timestamp",
				Help:      "Timestamp of last successful config reload",
			},
		),
		configWatcherStatus: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "readr_bff",
				Name:      "config_watcher_running",
				Help:      "Whether the config file watcher is running (1=running, 0=stopped)",
			},
		),
	}

	m.Registry().MustRegister(
		rm.configReloadTotal,
		rm.configReloadLastSuccess,
		rm.configWatcherStatus,
	)
	return rm
}

// reloadConfig applies the hot-reloadable parts of newCfg. Only the
// available-models table is swapped; everything else needs a restart.
func (a *application) reloadConfig(newCfg *config.Config) {
	a.logger.Info("configuration changed, reloading",
		observability.Int("model_hosts", len(newCfg.AvailableModels)),
	)
	a.gateway.OnConfigReload(newCfg)
	a.reloadMetrics.configReloadTotal.WithLabelValues(reloadSuccess).Inc()
	a.reloadMetrics.configReloadLastSuccess.Set(float64(time.Now().Unix()))
}

// reloadFailed records a rejected reload. The current config stays.
func (a *application) reloadFailed(err error) {
	a.logger.Error("failed to reload configuration", observability.Error(err))
	a.reloadMetrics.configReloadTotal.WithLabelValues(reloadError).Inc()
}

// startConfigWatcher watches configPath. It returns nil when there is no
// file to watch or the watcher cannot start; the gateway keeps serving
// the startup configuration in that case.
func (a *application) startConfigWatcher(ctx context.Context, configPath string) *config.Watcher {
	if configPath == "" {
		return nil
	}

	watcher, err := config.NewWatcher(configPath, a.reloadConfig,
		config.WithLogger(a.logger.Named("config")),
		config.WithErrorFunc(a.reloadFailed),
	)
	if err != nil {
		a.logger.Warn("failed to create config watcher", observability.Error(err))
		return nil
	}
	if err := watcher.Start(ctx); err != nil {
		a.logger.Warn("failed to start config watcher", observability.Error(err))
		return nil
	}

	a.reloadMetrics.configWatcherStatus.Set(1)
	return watcher
}
