// Package observe wires OpenTelemetry tracing and metrics into the API and
// its outgoing HTTP client.
package observe

import (
	"context"
	"errors"
	"time"

	"github.com/coffee-shop/drinks-api/internal/config"
	"github.com/go-logr/logr"
	"github.com/go-logr/zerologr"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	"go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
)

// ShutdownFunc flushes and stops the telemetry providers.
type ShutdownFunc func(context.Context) error

// Configure installs the global propagator, tracer provider and (optionally)
// meter provider. When it succeeds the returned ShutdownFunc must be called
// before exit so buffered spans and metrics are published.
func Configure(ctx context.Context, cfg config.ObserveConfig) (ShutdownFunc, error) {
	if !cfg.Enabled {
		zerolog.Ctx(ctx).Info().Msg(
			"telemetry disabled: enable with OBSERVE_ENABLED to send telemetry data to an OpenTelemetry collector",
		)
		return func(context.Context) error { return nil }, nil
	}

	exp, err := exportersFor(cfg.Type)
	if err != nil {
		return nil, err
	}

	res, err := resourceWithServiceName(resource.Default(), cfg.ServiceName)
	if err != nil {
		return nil, err
	}

	configureInternalLogging(ctx)

	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	var stack shutdownStack

	traceExporter, err := exp.Trace(ctx)
	if err != nil {
		return nil, err
	}
	tracerProvider := trace.NewTracerProvider(
		trace.WithBatcher(traceExporter,
			trace.WithBatchTimeout(seconds(cfg.TraceBatchTimeoutSeconds)),
		),
		trace.WithResource(res),
	)
	stack.push(tracerProvider.Shutdown)
	otel.SetTracerProvider(tracerProvider)

	if !cfg.MetricsEnabled {
		return stack.shutdown, nil
	}

	metricExporter, err := exp.Metric(ctx)
	if err != nil {
		return nil, errors.Join(err, stack.shutdown(ctx))
	}
	meterProvider := metric.NewMeterProvider(
		metric.WithResource(res),
		metric.WithReader(metric.NewPeriodicReader(metricExporter,
			metric.WithInterval(seconds(cfg.MetricReadIntervalSeconds)),
		)),
	)
	stack.push(meterProvider.Shutdown)
	otel.SetMeterProvider(meterProvider)

	return stack.shutdown, nil
}

// shutdownStack stops providers in reverse start order. Stopping twice is a
// no-op.
type shutdownStack struct {
	funcs []ShutdownFunc
}

func (s *shutdownStack) push(fn ShutdownFunc) {
	s.funcs = append(s.funcs, fn)
}

func (s *shutdownStack) shutdown(ctx context.Context) error {
	var err error
	for i := len(s.funcs) - 1; i >= 0; i-- {
		err = errors.Join(err, s.funcs[i](ctx))
	}
	s.funcs = nil
	return err
}

// resourceWithServiceName identifies this service in exported telemetry. The
// name is attached schemaless, taking the schema of base.
func resourceWithServiceName(base *resource.Resource, name string) (*resource.Resource, error) {
	return resource.Merge(
		base,
		resource.NewSchemaless(semconv.ServiceName(name)),
	)
}

// configureInternalLogging routes diagnostics from the OpenTelemetry SDK
// through the application logger.
func configureInternalLogging(ctx context.Context) {
	l := zerolog.Ctx(ctx).With().Str("component", "otel").Logger()

	var logger logr.Logger = zerologr.New(&l)
	otel.SetLogger(logger)

	otel.SetErrorHandler(otel.ErrorHandlerFunc(func(err error) {
		l.Warn().Err(err).Msg("telemetry error")
	}))
}

func seconds(n int) time.Duration {
	return time.Duration(n) * time.Second
}
