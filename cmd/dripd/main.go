package main

import (
	"context"
	"log"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"

	"drip-controlplane/internal/httpapi"
	"drip-controlplane/pkg/config"
	"drip-controlplane/pkg/db"
	"drip-controlplane/pkg/gen"
	"drip-controlplane/pkg/health"
	"drip-controlplane/pkg/logger"
	"drip-controlplane/pkg/otelcol"
	"drip-controlplane/pkg/otelcol/exporters"
	"drip-controlplane/pkg/redis"
	"drip-controlplane/pkg/server"
	"drip-controlplane/pkg/sourceclient"
	"drip-controlplane/pkg/task"
	"drip-controlplane/services/authz"
	"drip-controlplane/services/collect"
	"drip-controlplane/services/ledger"
	"drip-controlplane/services/redeem"
	"drip-controlplane/services/weighting"
)

func main() {
	opts := []fx.Option{
		config.Module,
		logger.Module,
		db.Module,
		redis.Module,
		task.Client,
		gen.Module,
		fx.Provide(
			provideSpanExporter,
			provideTracerProvider,
			provideMeterProvider,
		),
		fx.Invoke(
			registerTelemetry,
			db.Otel,
			db.Metric,
		),
		sourceclient.Module,
		health.Module,
		ledger.Module,
		authz.Module,
		weighting.Module,
		collect.Module,
		redeem.Module,
		// The sweep has to run here: the balances it restores live in this
		// process's ledger, so the asynq server and scheduler ride along
		// with the API instead of a separate worker binary.
		task.Server,
		task.Scheduler,
		redeem.TaskModule,
		httpapi.Module,
		server.ProvideHTTPServer,
		fxLogger,
	}

	if err := fx.ValidateApp(opts...); err != nil {
		log.Fatalf("fx validation failed: %v", err)
	}

	app := fx.New(opts...)

	app.Run()
}

var fxLogger = fx.WithLogger(func(cfg *config.Config, logger *zap.Logger) fxevent.Logger {
	return fxevent.NopLogger
})

func provideSpanExporter(cfg *config.Config) (*otlptrace.Exporter, error) {
	if cfg.Otel.Protocol == "grpc" {
		return exporters.ProvideGrpc(cfg)
	}
	return exporters.ProvideHttp(cfg)
}

func provideTracerProvider(cfg *config.Config, exporter *otlptrace.Exporter) *sdktrace.TracerProvider {
	return otelcol.ProvideTrace(otelcol.Resource(cfg), exporter)
}

func provideMeterProvider(cfg *config.Config) *sdkmetric.MeterProvider {
	return otelcol.ProvideMetric(otelcol.Resource(cfg), sdkmetric.NewManualReader())
}

func registerTelemetry(lc fx.Lifecycle, tp *sdktrace.TracerProvider, mp *sdkmetric.MeterProvider) {
	otel.SetTracerProvider(tp)
	otel.SetMeterProvider(mp)

	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			if err := tp.Shutdown(ctx); err != nil {
				return err
			}
			return mp.Shutdown(ctx)
		},
	})
}
