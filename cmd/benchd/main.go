package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Quicklotz/benchd/internal/collector"
	"github.com/Quicklotz/benchd/internal/config"
	"github.com/Quicklotz/benchd/internal/controller"
	"github.com/Quicklotz/benchd/internal/logger"
	"github.com/Quicklotz/benchd/internal/observability"
	"github.com/Quicklotz/benchd/internal/pid"
	"github.com/Quicklotz/benchd/internal/runs"
	"github.com/Quicklotz/benchd/internal/safety"
	"github.com/Quicklotz/benchd/internal/store"
)

const drainTimeout = 10 * time.Second

var cfg *config.Config

func init() {
	var err error
	cfg, err = config.Load()
	if err != nil {
		fmt.Printf("failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.Init(cfg.Debug, cfg.Verbose, logger.IsService())
	applyLogLevel(cfg.LogLevel)
	logger.Debug().Msg("Config loaded")
}

func main() {
	log := logger.Default()

	if err := pid.Write(); err != nil {
		logger.Fatal().Err(err).Msg("failed to write PID file")
	}
	defer func() {
		if err := pid.Remove(); err != nil {
			logger.Error().Err(err).Msg("failed to remove PID file")
		}
	}()

	repo, err := store.NewRepository(store.Config{DBPath: cfg.Database}, log)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to open bench repository")
	}
	defer func() {
		if err := repo.Close(); err != nil {
			logger.Error().Err(err).Msg("failed to close bench repository")
		}
	}()

	metrics := observability.New()

	var metricsServer *http.Server
	if cfg.Metrics {
		metricsServer = metrics.Serve(cfg.MetricsListen, log)
	}

	col := collector.NewService(collector.Config{
		PollInterval: cfg.PollInterval(),
		ReadTimeout:  cfg.ReadTimeoutDuration(),
	}, repo, metrics, log)

	mon := safety.NewService(safety.Config{
		ReadingCheckInterval: cfg.ReadingCheckInterval(),
		HealthCheckInterval:  cfg.HealthCheckInterval(),
		SpikeHold:            cfg.SpikeHoldDuration(),
		ReadTimeout:          cfg.ReadTimeoutDuration(),
	}, repo, repo, col, metrics, log)

	controllerCfg := controller.DefaultConfig()
	controllerCfg.ReadTimeout = cfg.ReadTimeoutDuration()

	manager := runs.NewManager(runs.Config{
		PollInterval: cfg.PollInterval(),
	}, repo, col, mon, controllerCfg, log)

	logger.Info().Msg("benchd ready")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go handleSignals(cancel)

	<-ctx.Done()

	// Drain order: runs first so outlets de-energize, then whatever the
	// manager did not own.
	manager.Shutdown()
	mon.StopAll()
	col.StopAll()

	if metricsServer != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), drainTimeout)
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("failed to stop metrics listener")
		}
		shutdownCancel()
	}

	logger.Info().Msg("Exiting...")
}

func handleSignals(cancel context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	<-sigs
	logger.Info().Msg("Received termination signal.")
	cancel()
}

func applyLogLevel(level string) {
	switch config.LogLevel(level) {
	case config.LogLevelDebug:
		logger.SetLogLevel(logger.DebugLevel)
	case config.LogLevelInfo:
		logger.SetLogLevel(logger.InfoLevel)
	case config.LogLevelWarning:
		logger.SetLogLevel(logger.WarnLevel)
	case config.LogLevelError:
		logger.SetLogLevel(logger.ErrorLevel)
	}
}
