package observe

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/trace"
)

type exporters interface {
	Trace(ctx context.Context) (trace.SpanExporter, error)
	Metric(ctx context.Context) (metric.Exporter, error)
}

// exportersFor maps OBSERVE_TYPE to its exporters. The OTLP exporters read
// their endpoint from the standard OTEL_EXPORTER_OTLP_* variables.
func exportersFor(kind string) (exporters, error) {
	switch kind {
	case "", "grpc":
		return grpcExporters{}, nil
	case "stdout":
		return stdoutExporters{}, nil
	default:
		return nil, fmt.Errorf("unknown telemetry exporter type %q: expected grpc or stdout", kind)
	}
}

type grpcExporters struct{}

func (grpcExporters) Trace(ctx context.Context) (trace.SpanExporter, error) {
	return otlptracegrpc.New(ctx)
}

func (grpcExporters) Metric(ctx context.Context) (metric.Exporter, error) {
	return otlpmetricgrpc.New(ctx)
}

type stdoutExporters struct{}

func (stdoutExporters) Trace(context.Context) (trace.SpanExporter, error) {
	return stdouttrace.New()
}

func (stdoutExporters) Metric(context.Context) (metric.Exporter, error) {
	return stdoutmetric.New()
}
