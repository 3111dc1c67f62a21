// Package tracing wires the OpenTelemetry tracer provider and its Jaeger exporter.
package tracing

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/jaeger"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.12.0"
	"go.opentelemetry.io/otel/trace"
)

// ServiceName is reported as the service.name resource attribute.
const ServiceName = "servipro-booking-api"

// Provider owns the process tracer. Shutdown flushes pending spans.
type Provider struct {
	Tracer   trace.Tracer
	Shutdown func(context.Context) error
}

// Setup installs a global tracer provider exporting to the Jaeger collector at
// endpoint. An empty endpoint yields a no-op tracer.
func Setup(endpoint string) (*Provider, error) {
	if endpoint == "" {
		return &Provider{
			Tracer:   trace.NewNoopTracerProvider().Tracer(ServiceName),
			Shutdown: func(context.Context) error { return nil },
		}, nil
	}

	exp, err := newExporter(endpoint)
	if err != nil {
		return nil, fmt.Errorf("jaeger exporter: %w", err)
	}
	tp, err := newTraceProvider(exp)
	if err != nil {
		return nil, err
	}
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.TraceContext{})

	return &Provider{Tracer: tp.Tracer(ServiceName), Shutdown: tp.Shutdown}, nil
}

func newExporter(address string) (*jaeger.Exporter, error) {
	return jaeger.New(jaeger.WithCollectorEndpoint(jaeger.WithEndpoint(address)))
}

func newTraceProvider(exp sdktrace.SpanExporter) (*sdktrace.TracerProvider, error) {
	r, err := resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceNameKey.String(ServiceName),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("trace resource: %w", err)
	}

	return sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exp),
		sdktrace.WithResource(r),
	), nil
}
