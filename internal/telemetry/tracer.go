// Package telemetry wires an OpenTelemetry tracer used by the
// criticality scorer and cascade engine to emit spans around expensive
// graph passes, following the instrumentation style the retrieval
// pack's trace/graph service uses for its own centrality algorithms.
package telemetry

import (
	"context"
	"io"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "resilience-core"

var tracer trace.Tracer = otel.Tracer(tracerName)

// Tracer returns the process-wide tracer for the resilience core.
func Tracer() trace.Tracer {
	return tracer
}

// Provider builds a TracerProvider that exports spans to w (typically
// discarded in production, or stdout in local/dev runs) and installs
// it as the global provider. Callers should defer the returned
// shutdown function.
func Provider(ctx context.Context, w io.Writer) (shutdown func(context.Context) error, err error) {
	exporter, err := stdouttrace.New(stdouttrace.WithWriter(w), stdouttrace.WithPrettyPrint())
	if err != nil {
		return nil, err
	}
	tp := sdktrace.NewTracerProvider(sdktrace.WithBatcher(exporter))
	otel.SetTracerProvider(tp)
	tracer = tp.Tracer(tracerName)
	return tp.Shutdown, nil
}
