// Package otel wires the OpenTelemetry metrics pipeline. Export is
// opt-in: without OTEL_EXPORTER_OTLP_ENDPOINT the provider is disabled and
// managers run without instrumentation.
package otel

import (
	"context"
	"fmt"
	"os"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

// SetupMetrics configures the global meter provider with an OTLP gRPC
// exporter. It returns a nil meter when no endpoint is configured; callers
// treat a nil meter as metrics-disabled. The returned shutdown flushes
// pending exports.
func SetupMetrics(ctx context.Context, serviceName string) (metric.Meter, func(context.Context) error, error) {
	noop := func(context.Context) error { return nil }

	if os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT") == "" {
		return nil, noop, nil
	}

	res, err := resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName(serviceName),
		),
	)
	if err != nil {
		return nil, noop, fmt.Errorf("create resource: %w", err)
	}

	// Endpoint and credentials come from the standard OTEL_* variables.
	exporter, err := otlpmetricgrpc.New(ctx)
	if err != nil {
		return nil, noop, fmt.Errorf("create metric exporter: %w", err)
	}

	provider := sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter)),
	)
	otel.SetMeterProvider(provider)

	return provider.Meter(serviceName), provider.Shutdown, nil
}
