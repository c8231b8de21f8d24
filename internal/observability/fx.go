// Package observability wires tracing and metrics into the fx graph.
package observability

import (
	"github.com/smallbiznis/deskflow/internal/config"
	"github.com/smallbiznis/deskflow/internal/observability/metrics"
	"github.com/smallbiznis/deskflow/internal/observability/tracing"
	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("observability",
	fx.Provide(
		newTracerProvider,
		newHTTPMetrics,
		newBillingMetrics,
	),
)

func newTracerProvider(lc fx.Lifecycle, cfg config.Config, log *zap.Logger) (*sdktrace.TracerProvider, error) {
	return tracing.NewProvider(lc, tracing.Config{
		Enabled:          cfg.Tracing.Enabled,
		ServiceName:      cfg.Tracing.ServiceName,
		ServiceVersion:   cfg.Tracing.ServiceVersion,
		Environment:      cfg.Environment,
		ExporterEndpoint: cfg.Tracing.ExporterEndpoint,
		ExporterProtocol: cfg.Tracing.ExporterProtocol,
		SamplingRatio:    cfg.Tracing.SamplingRatio,
	}, log)
}

func newHTTPMetrics(cfg config.Config) (*metrics.HTTPMetrics, error) {
	return metrics.NewHTTPMetrics(metrics.Config{
		ServiceName: cfg.Tracing.ServiceName,
		Environment: cfg.Environment,
	}, otel.GetMeterProvider())
}

func newBillingMetrics(cfg config.Config) *metrics.BillingMetrics {
	return metrics.BillingWithConfig(metrics.Config{
		ServiceName: cfg.Tracing.ServiceName,
		Environment: cfg.Environment,
	})
}
