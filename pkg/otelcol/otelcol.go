package otelcol

import (
	"context"
	"strings"
	"time"

	"careerloop-engine/pkg/config"
	"careerloop-engine/pkg/otelcol/exporters"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Module exports traces and metrics over OTLP when OTEL.ADDR is set and
// installs the providers as the otel globals. Without an address both
// providers are no-ops.
var Module = fx.Module("otelcol",
	fx.Provide(
		NewResource,
		NewTracerProvider,
		NewMeterProvider,
	),
	fx.Invoke(SetGlobals),
)

func NewResource(cfg *config.Config) (*resource.Resource, error) {
	return resource.Merge(resource.Default(), resource.NewSchemaless(
		semconv.ServiceName(cfg.AppName),
		semconv.ServiceVersion(cfg.AppVersion),
		semconv.DeploymentEnvironment(cfg.AppEnv),
	))
}

// Endpoint strips the scheme the OTLP clients do not accept.
func Endpoint(addr string) string {
	addr = strings.TrimPrefix(addr, "http://")
	return strings.TrimPrefix(addr, "https://")
}

func NewTracerProvider(lc fx.Lifecycle, cfg *config.Config, res *resource.Resource) (trace.TracerProvider, error) {
	if cfg.Otel.Addr == "" {
		return tracenoop.NewTracerProvider(), nil
	}

	var (
		exporter sdktrace.SpanExporter
		err      error
	)
	switch strings.ToLower(cfg.Otel.Protocol) {
	case "http":
		exporter, err = exporters.ProvideHttp(Endpoint(cfg.Otel.Addr))
	default:
		exporter, err = exporters.ProvideGrpc(Endpoint(cfg.Otel.Addr))
	}
	if err != nil {
		return nil, err
	}

	tp := ProvideTrace(exporter, sdktrace.WithResource(res))
	lc.Append(fx.Hook{OnStop: withShutdownTimeout(tp.Shutdown)})
	return tp, nil
}

func NewMeterProvider(lc fx.Lifecycle, cfg *config.Config, res *resource.Resource) (metric.MeterProvider, error) {
	if cfg.Otel.Addr == "" || strings.ToLower(cfg.Otel.Protocol) == "http" {
		return metricnoop.NewMeterProvider(), nil
	}

	exporter, err := exporters.ProvideMetricGrpc(Endpoint(cfg.Otel.Addr))
	if err != nil {
		return nil, err
	}

	reader := sdkmetric.NewPeriodicReader(exporter,
		sdkmetric.WithInterval(15*time.Second),
		sdkmetric.WithTimeout(5*time.Second),
	)
	mp := ProvideMetric(reader, sdkmetric.WithResource(res))
	lc.Append(fx.Hook{OnStop: withShutdownTimeout(mp.Shutdown)})
	return mp, nil
}

func SetGlobals(tp trace.TracerProvider, mp metric.MeterProvider) {
	otel.SetTracerProvider(tp)
	otel.SetMeterProvider(mp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))
	zap.L().Debug("otel providers installed")
}

func defaultTraceProviderOption() []sdktrace.TracerProviderOption {
	return []sdktrace.TracerProviderOption{
		sdktrace.WithResource(resource.Default()),
	}
}

func ProvideTrace(exporter sdktrace.SpanExporter, opts ...sdktrace.TracerProviderOption) *sdktrace.TracerProvider {
	if len(opts) == 0 {
		opts = defaultTraceProviderOption()
	}

	opts = append(opts, sdktrace.WithBatcher(exporter))

	return sdktrace.NewTracerProvider(opts...)
}

func defaultMetricProviderOption() []sdkmetric.Option {
	return []sdkmetric.Option{
		sdkmetric.WithResource(resource.Default()),
	}
}

func ProvideMetric(reader sdkmetric.Reader, opts ...sdkmetric.Option) *sdkmetric.MeterProvider {
	if len(opts) == 0 {
		opts = defaultMetricProviderOption()
	}

	opts = append(opts, sdkmetric.WithReader(reader))

	return sdkmetric.NewMeterProvider(opts...)
}

// shutdownTimeout bounds exporter flushes on stop.
const shutdownTimeout = 5 * time.Second

func withShutdownTimeout(fn func(context.Context) error) func(context.Context) error {
	return func(ctx context.Context) error {
		ctx, cancel := context.WithTimeout(ctx, shutdownTimeout)
		defer cancel()
		return fn(ctx)
	}
}
