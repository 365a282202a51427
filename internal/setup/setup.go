// Package setup bootstraps the shared dependencies of a pingbot process.
package setup

import (
	"context"
	"log"
	"time"

	"github.com/robalyx/pingbot/internal/setup/config"
	"github.com/robalyx/pingbot/internal/setup/telemetry"
	"go.uber.org/zap"
)

// Version is reported with traces and logs; overridden at build time.
var Version = "dev"

// App bundles the configuration, logging and tracing of a process.
type App struct {
	Config      *config.Config     // Application configuration
	ConfigDir   string             // Directory the config files were read from
	Logger      *zap.Logger        // Main application logger
	LogManager  *telemetry.Manager // Log management system
	Tracing     *telemetry.Tracing // Trace exporter
	debug       *debugServer       // Loopback profiling server
}

// Options tune InitializeApp.
type Options struct {
	// Component names the process in logs and Loki labels.
	Component string
	// LogDir is the base directory for per-run log directories.
	LogDir string
	// Console mirrors log output to stderr.
	Console bool
}

// InitializeApp loads configuration and brings up logging and tracing.
func InitializeApp(ctx context.Context, opts Options) (*App, error) {
	cfg, configDir, err := config.LoadConfig()
	if err != nil {
		return nil, err
	}

	return InitializeWithConfig(ctx, cfg, configDir, opts)
}

// InitializeWithConfig is InitializeApp for an already loaded configuration.
func InitializeWithConfig(ctx context.Context, cfg *config.Config, configDir string, opts Options) (*App, error) {
	var managerOpts []telemetry.Option
	if opts.Console {
		managerOpts = append(managerOpts, telemetry.WithConsole())
	}

	// Logging comes first to capture setup issues
	logManager := telemetry.NewManager(
		ctx, opts.Component, opts.LogDir, &cfg.Common.Debug, &cfg.Common.Loki, managerOpts...,
	)

	logger, err := logManager.Logger()
	if err != nil {
		logManager.Stop()
		return nil, err
	}

	logger.Info("Loaded configuration",
		zap.String("config_dir", configDir),
		zap.String("log_dir", logManager.SessionDir()),
		zap.String("version", Version))

	tracing := telemetry.StartTracing(&cfg.Common.Telemetry, Version, logger)

	var debug *debugServer
	if cfg.Common.Debug.EnablePprof {
		info := debugInfo{
			Component:  opts.Component,
			Version:    Version,
			InstanceID: logManager.InstanceID(),
			StartedAt:  time.Now().UTC().Format(time.RFC3339),
		}

		// Profiling is optional, the process keeps running without it
		debug, err = startDebugServer(cfg.Common.Debug.PprofPort, info, logger)
		if err != nil {
			logger.Error("Failed to start debug server", zap.Error(err))
		}
	}

	return &App{
		Config:      cfg,
		ConfigDir:   configDir,
		Logger:      logger,
		LogManager:  logManager,
		Tracing:     tracing,
		debug:       debug,
	}, nil
}

// DebugAddr returns the address of the profiling server, or "" when
// profiling is disabled.
func (s *App) DebugAddr() string {
	if s.debug == nil {
		return ""
	}
	return s.debug.Addr()
}

// Cleanup shuts components down in reverse initialization order. Errors are
// logged so every component gets its cleanup attempt.
func (s *App) Cleanup(ctx context.Context) {
	if s.debug != nil {
		if err := s.debug.Shutdown(ctx); err != nil {
			s.Logger.Error("Failed to shut down debug server", zap.Error(err))
		}
	}

	s.Tracing.Shutdown(ctx)

	if err := s.Logger.Sync(); err != nil {
		log.Printf("Failed to sync logger: %v", err)
	}

	// Flushes Loki and closes log files
	s.LogManager.Stop()
}
