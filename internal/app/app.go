// Package app builds and holds the long-lived services shared by the CLI
// commands: logger, change-event hub, and state manager.
package app

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/JakeFAU/site-shields/internal/config"
	"github.com/JakeFAU/site-shields/internal/events"
	"github.com/JakeFAU/site-shields/internal/events/sinks"
	"github.com/JakeFAU/site-shields/internal/state"
)

// App is the dependency container built once per command invocation.
type App struct {
	cfg     config.Config
	logger  *zap.Logger
	hub     *events.Hub
	manager *state.Manager
}

// Config returns the loaded configuration.
func (a *App) Config() config.Config {
	return a.cfg
}

// Logger returns the root logger.
func (a *App) Logger() *zap.Logger {
	return a.logger
}

// Manager returns the settings state manager.
func (a *App) Manager() *state.Manager {
	return a.manager
}

// New wires the services described by cfg. Change events go to a log sink
// when events.log_changes is set, to a Prometheus sink registered on reg, and
// to any extra sinks.
func New(cfg config.Config, logger *zap.Logger, reg prometheus.Registerer, extra ...events.Sink) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	appCfg, err := cfg.AppConfig()
	if err != nil {
		return nil, fmt.Errorf("bravery config: %w", err)
	}
	appState, err := cfg.AppState()
	if err != nil {
		return nil, fmt.Errorf("initial state: %w", err)
	}
	seed, err := cfg.SeedStore()
	if err != nil {
		return nil, fmt.Errorf("seed site settings: %w", err)
	}

	var hubSinks []events.Sink
	if cfg.Events.LogChanges {
		hubSinks = append(hubSinks, sinks.NewLogSink(logger.Named("changes")))
	}
	if reg != nil {
		promSink, err := sinks.NewPrometheusSink(reg)
		if err != nil {
			return nil, fmt.Errorf("events metrics: %w", err)
		}
		hubSinks = append(hubSinks, promSink)
	}
	hubSinks = append(hubSinks, extra...)

	hub := events.NewHub(events.Config{
		BufferSize:     cfg.Events.BufferSize,
		MaxBatchEvents: cfg.Events.MaxBatchEvents,
		MaxBatchWait:   time.Duration(cfg.Events.MaxBatchWaitMs) * time.Millisecond,
		Logger:         logger,
	}, hubSinks...)

	manager := state.NewManager(appCfg, appState, seed, state.Options{
		Emitter: hub,
		Logger:  logger,
	})

	logger.Debug("application services initialized",
		zap.Int("seed_patterns", seed.Len()),
		zap.Int("resources", len(appCfg.Resources)),
		zap.Int("event_sinks", len(hubSinks)),
	)
	return &App{cfg: cfg, logger: logger, hub: hub, manager: manager}, nil
}

// Close flushes pending change events and the logger.
func (a *App) Close(ctx context.Context) error {
	if err := a.hub.Close(ctx); err != nil {
		return fmt.Errorf("close events hub: %w", err)
	}
	// Sync fails on some terminals; there is nothing useful to do about it.
	_ = a.logger.Sync()
	return nil
}
