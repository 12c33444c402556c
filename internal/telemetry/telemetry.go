// Package telemetry initializes OpenTelemetry tracing and metrics exporters
// and hands out the named meters and tracers used by the engine.
package telemetry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
)

// Shutdown flushes and stops the providers installed by Init.
type Shutdown func(ctx context.Context) error

// Settings configures the OTLP exporters.
type Settings struct {
	Endpoint       string // host:port of the OTLP/HTTP collector; empty disables export.
	ServiceName    string
	Version        string
	Insecure       bool
	MetricInterval time.Duration
}

// Init installs global tracer and meter providers exporting over OTLP/HTTP.
// With an empty endpoint it leaves the no-op providers in place.
func Init(ctx context.Context, s Settings) (Shutdown, error) {
	if s.Endpoint == "" {
		return func(context.Context) error { return nil }, nil
	}
	if s.MetricInterval <= 0 {
		s.MetricInterval = 15 * time.Second
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceNameKey.String(s.ServiceName),
			semconv.ServiceVersionKey.String(s.Version),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("telemetry: create resource: %w", err)
	}

	tp, err := newTracerProvider(ctx, s, res)
	if err != nil {
		return nil, err
	}
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(
		propagation.NewCompositeTextMapPropagator(
			propagation.TraceContext{},
			propagation.Baggage{},
		),
	)

	mp, err := newMeterProvider(ctx, s, res)
	if err != nil {
		_ = tp.Shutdown(ctx)
		return nil, err
	}
	otel.SetMeterProvider(mp)

	return func(ctx context.Context) error {
		return errors.Join(tp.Shutdown(ctx), mp.Shutdown(ctx))
	}, nil
}

func newTracerProvider(ctx context.Context, s Settings, res *resource.Resource) (*sdktrace.TracerProvider, error) {
	opts := []otlptracehttp.Option{otlptracehttp.WithEndpoint(s.Endpoint)}
	if s.Insecure {
		opts = append(opts, otlptracehttp.WithInsecure())
	}
	exp, err := otlptracehttp.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("telemetry: create trace exporter: %w", err)
	}
	return sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exp, sdktrace.WithBatchTimeout(5*time.Second)),
		sdktrace.WithResource(res),
	), nil
}

func newMeterProvider(ctx context.Context, s Settings, res *resource.Resource) (*sdkmetric.MeterProvider, error) {
	opts := []otlpmetrichttp.Option{otlpmetrichttp.WithEndpoint(s.Endpoint)}
	if s.Insecure {
		opts = append(opts, otlpmetrichttp.WithInsecure())
	}
	exp, err := otlpmetrichttp.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("telemetry: create metric exporter: %w", err)
	}
	return sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exp, sdkmetric.WithInterval(s.MetricInterval))),
		sdkmetric.WithResource(res),
	), nil
}

// Meter returns the global meter for the given instrumentation scope.
func Meter(name string) metric.Meter {
	return otel.GetMeterProvider().Meter(name)
}

// Tracer returns the global tracer for the given instrumentation scope.
func Tracer(name string) trace.Tracer {
	return otel.GetTracerProvider().Tracer(name)
}
