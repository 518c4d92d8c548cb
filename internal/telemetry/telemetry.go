// Package telemetry wires a tracer provider for step execution spans. It
// trims the teacher's full observability.Tracer abstraction down to
// exactly what the scheduler needs: a provider to construct at startup and
// a tracer to start/end one span per step.
package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	stdouttrace "go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
)

// Provider wraps a TracerProvider for the runner's lifetime.
type Provider struct {
	tp     *sdktrace.TracerProvider
	tracer trace.Tracer
}

// Config selects where spans go. When Enabled is false, New returns a
// Provider whose spans are no-ops, so callers never need an enabled check
// at every call site.
type Config struct {
	Enabled        bool
	ServiceName    string
	ServiceVersion string
}

// New builds a Provider. With Config.Enabled false it still returns a
// working Provider backed by a no-op tracer, via otel's own noop
// implementation, rather than a sentinel nil the caller must branch on.
func New(cfg Config) (*Provider, error) {
	if !cfg.Enabled {
		return &Provider{tracer: otel.Tracer("flowctl")}, nil
	}

	res, err := resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(
			"",
			semconv.ServiceName(cfg.ServiceName),
			semconv.ServiceVersion(cfg.ServiceVersion),
		),
	)
	if err != nil {
		return nil, err
	}

	exporter, err := stdouttrace.New(stdouttrace.WithPrettyPrint())
	if err != nil {
		return nil, err
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithResource(res),
		sdktrace.WithBatcher(exporter),
	)
	otel.SetTracerProvider(tp)

	return &Provider{tp: tp, tracer: tp.Tracer("flowctl/scheduler")}, nil
}

// Shutdown flushes and releases the underlying exporter, if any.
func (p *Provider) Shutdown(ctx context.Context) error {
	if p.tp == nil {
		return nil
	}
	return p.tp.Shutdown(ctx)
}

// StartStep opens a span for one step execution, tagging it with the step
// name and connector type so a trace backend can group and filter by
// either.
func (p *Provider) StartStep(ctx context.Context, stepName, connectorType string) (context.Context, trace.Span) {
	return p.tracer.Start(ctx, "step:"+stepName, trace.WithAttributes(
		attribute.String("flowctl.step", stepName),
		attribute.String("flowctl.connector_type", connectorType),
	))
}

// EndStep closes span, recording err (if non-nil) as the span's failure
// cause.
func EndStep(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
	}
	span.End()
}
