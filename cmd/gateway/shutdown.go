package main

import (
	"context"
	"time"

	"github.com/readr-media/readr-bff/internal/config"
	"github.com/readr-media/readr-bff/internal/observability"
)

// defaultShutdownTimeout bounds the drain when the config leaves it unset.
const defaultShutdownTimeout = 30 * time.Second

// run serves until ctx is cancelled or the gateway server fails, then
// shuts everything down.
func (a *application) run(ctx context.Context, configPath string) error {
	serveErr := make(chan error, 1)
	go func() {
		serveErr <- a.server.Start(ctx)
	}()

	if a.metricsServer != nil {
		go runMetricsServer(a.metricsServer, a.logger)
	}

	watchCtx, stopWatch := context.WithCancel(context.WithoutCancel(ctx))
	defer stopWatch()
	watcher := a.startConfigWatcher(watchCtx, configPath)

	var err error
	select {
	case <-ctx.Done():
		a.logger.Info("received shutdown signal", observability.Error(context.Cause(ctx)))
	case err = <-serveErr:
		if err != nil {
			a.logger.Error("gateway server failed", observability.Error(err))
		}
	}

	a.shutdown(watcher)
	return err
}

// shutdown stops the components in reverse start order.
func (a *application) shutdown(watcher *config.Watcher) {
	timeout := a.config.Server.ShutdownTimeout.Duration()
	if timeout <= 0 {
		timeout = defaultShutdownTimeout
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	a.healthChecker.SetDraining(true)

	if watcher != nil {
		if err := watcher.Stop(); err != nil {
			a.logger.Error("failed to stop config watcher", observability.Error(err))
		}
		a.reloadMetrics.configWatcherStatus.Set(0)
	}

	if err := a.server.Stop(shutdownCtx); err != nil {
		a.logger.Error("failed to stop gateway gracefully", observability.Error(err))
	}

	if a.metricsServer != nil {
		a.logger.Info("stopping metrics server")
		if err := a.metricsServer.Shutdown(shutdownCtx); err != nil {
			a.logger.Error("failed to stop metrics server gracefully", observability.Error(err))
		}
	}

	a.closeRedis()

	if err := a.tracer.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("failed to shutdown tracer", observability.Error(err))
	}

	a.logger.Info("gateway stopped")
}
