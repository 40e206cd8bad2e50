package otelcol

import (
	"go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	"go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"

	"drip-controlplane/pkg/config"
)

// Resource identifies this process in exported telemetry.
func Resource(cfg *config.Config) *resource.Resource {
	r, err := resource.Merge(resource.Default(), resource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceName(cfg.AppName),
		semconv.ServiceVersion(cfg.AppVersion),
		semconv.DeploymentEnvironment(cfg.AppEnv),
	))
	if err != nil {
		return resource.Default()
	}
	return r
}

func ProvideTrace(res *resource.Resource, exporter trace.SpanExporter) *trace.TracerProvider {
	return trace.NewTracerProvider(
		trace.WithResource(res),
		trace.WithBatcher(exporter),
	)
}

func ProvideMetric(res *resource.Resource, reader metric.Reader) *metric.MeterProvider {
	return metric.NewMeterProvider(
		metric.WithResource(res),
		metric.WithReader(reader),
	)
}
