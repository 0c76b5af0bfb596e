package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.20.0"
)

// InitTracer wires up the global OpenTelemetry tracer provider under the
// "aegis" service resource. Spans come from the otelhttp-wrapped operator
// HTTP handler and the SQLite index's gorm tracing plugin; the UDP
// pipeline stages (ingress decode, detector fan-out, decision, egress)
// do not start spans of their own. The
// stdouttrace exporter is deliberately the only one wired: AEGIS ships
// as a single binary with no collector dependency, so traces land on
// stdout as pretty-printed JSON for an operator to pipe elsewhere.
// Returns a shutdown func to flush and stop the provider on exit.
func InitTracer(serviceVersion string) (func(context.Context) error, error) {
	exporter, err := stdouttrace.New(stdouttrace.WithPrettyPrint())
	if err != nil {
		return nil, err
	}

	res, err := resource.New(
		context.Background(),
		resource.WithAttributes(
			semconv.ServiceName("aegis"),
			semconv.ServiceVersion(serviceVersion),
		),
	)
	if err != nil {
		return nil, err
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.TraceContext{})

	return tp.Shutdown, nil
}
