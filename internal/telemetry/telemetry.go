// Package telemetry wires the process-wide tracer and meter providers.
//
// The instrumented packages (packer, resilience retry, RPC server) pull
// their instruments from the global meter provider set up here.
// These providers are the only process-wide mutable state the node carries;
// once Init returns they are append-only counters/histograms.
package telemetry

import (
	"context"
	"log/slog"
	"os"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/prometheus"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	sdkresource "go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	"google.golang.org/grpc"
)

// Shutdown stops all exporters started by Init.
type Shutdown func(context.Context) error

// Init sets up the global tracer provider (OTLP/gRPC) and the global meter
// provider, which fans out to both an OTLP/gRPC push exporter and a
// Prometheus registry exposed by the RPC server's /metrics route.
func Init(ctx context.Context, service string) (shutdown Shutdown, promGatherer *prometheus.Exporter) {
	res, _ := sdkresource.Merge(sdkresource.Default(), sdkresource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceName(service),
		attribute.String("component", service),
	))

	traceShutdown := initTracer(ctx, service, res)
	metricShutdown, promExp := initMeter(ctx, service, res)

	return func(ctx context.Context) error {
		ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
		defer cancel()
		_ = traceShutdown(ctx)
		return metricShutdown(ctx)
	}, promExp
}

func initTracer(ctx context.Context, service string, res *sdkresource.Resource) Shutdown {
	endpoint := os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")
	if endpoint == "" {
		endpoint = "localhost:4317"
	}
	exp, err := otlptracegrpc.New(ctx,
		otlptracegrpc.WithEndpoint(endpoint),
		otlptracegrpc.WithDialOption(grpc.WithInsecure()),
	)
	if err != nil {
		slog.Warn("trace exporter init failed", "error", err)
		return func(context.Context) error { return nil }
	}
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exp),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tp)
	return tp.Shutdown
}

func initMeter(ctx context.Context, service string, res *sdkresource.Resource) (Shutdown, *prometheus.Exporter) {
	promExp, err := prometheus.New()
	if err != nil {
		slog.Warn("prometheus exporter init failed", "error", err)
	}

	opts := []sdkmetric.Option{sdkmetric.WithResource(res)}
	if promExp != nil {
		opts = append(opts, sdkmetric.WithReader(promExp))
	}

	endpoint := os.Getenv("OTEL_EXPORTER_OTLP_METRICS_ENDPOINT")
	if endpoint == "" {
		endpoint = os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")
	}
	if endpoint == "" {
		endpoint = "localhost:4317"
	}
	if pushExp, err := otlpmetricgrpc.New(ctx,
		otlpmetricgrpc.WithEndpoint(endpoint),
		otlpmetricgrpc.WithDialOption(grpc.WithInsecure()),
	); err == nil {
		opts = append(opts, sdkmetric.WithReader(sdkmetric.NewPeriodicReader(pushExp, sdkmetric.WithInterval(10*time.Second))))
	} else {
		slog.Warn("otlp metric exporter init failed", "error", err)
	}

	mp := sdkmetric.NewMeterProvider(opts...)
	otel.SetMeterProvider(mp)
	return mp.Shutdown, promExp
}
