package setup

import (
	"context"

	"github.com/robalyx/sentinel/internal/setup/config"
	"github.com/uptrace/uptrace-go/uptrace"
	"go.uber.org/zap"
)

// configureTracing installs the OpenTelemetry exporter when a DSN is set and
// reports whether it did. Spans are dropped by the default no-op provider
// otherwise.
func configureTracing(cfg *config.Telemetry, logger *zap.Logger) bool {
	if cfg.UptraceDSN == "" {
		logger.Debug("Tracing export disabled")
		return false
	}

	uptrace.ConfigureOpentelemetry(
		uptrace.WithDSN(cfg.UptraceDSN),
		uptrace.WithServiceName(cfg.ServiceName),
		uptrace.WithServiceVersion(config.RepositoryVersion),
	)

	logger.Info("Tracing export enabled", zap.String("service_name", cfg.ServiceName))

	return true
}

// shutdownTracing flushes pending spans.
func shutdownTracing(ctx context.Context, logger *zap.Logger) {
	if err := uptrace.Shutdown(ctx); err != nil {
		logger.Error("Failed to flush traces", zap.Error(err))
	}
}
