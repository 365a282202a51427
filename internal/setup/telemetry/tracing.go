package telemetry

import (
	"context"

	"github.com/robalyx/pingbot/internal/setup/config"
	"github.com/uptrace/uptrace-go/uptrace"
	"go.uber.org/zap"
)

// Tracing owns the OpenTelemetry exporter set up for this process.
type Tracing struct {
	enabled bool
	logger  *zap.Logger
}

// StartTracing configures the global tracer provider to export to Uptrace.
// Without a DSN tracing stays on the no-op provider.
func StartTracing(cfg *config.Telemetry, version string, logger *zap.Logger) *Tracing {
	logger = logger.Named("tracing")

	if cfg.UptraceDSN == "" {
		logger.Debug("Tracing export disabled")
		return &Tracing{logger: logger}
	}

	opts := []uptrace.Option{
		uptrace.WithDSN(cfg.UptraceDSN),
		uptrace.WithServiceName(cfg.ServiceName),
		uptrace.WithServiceVersion(version),
	}
	if cfg.Environment != "" {
		opts = append(opts, uptrace.WithDeploymentEnvironment(cfg.Environment))
	}

	uptrace.ConfigureOpentelemetry(opts...)

	logger.Info("Tracing export enabled", zap.String("service", cfg.ServiceName))

	return &Tracing{enabled: true, logger: logger}
}

// Enabled reports whether spans are exported.
func (t *Tracing) Enabled() bool {
	return t.enabled
}

// Shutdown flushes pending spans.
func (t *Tracing) Shutdown(ctx context.Context) {
	if !t.enabled {
		return
	}

	if err := uptrace.Shutdown(ctx); err != nil {
		t.logger.Warn("Failed to shut down tracing", zap.Error(err))
	}
}
