package observe

import (
	"context"
	"net/http"
	"net/http/httptrace"

	"github.com/coffee-shop/drinks-api/internal/config"
	"go.opentelemetry.io/contrib/instrumentation/net/http/httptrace/otelhttptrace"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// HttpTransport instruments outgoing requests, such as key set fetches, when
// telemetry and transport tracing are both enabled. Otherwise wrapped is
// returned unchanged.
func HttpTransport(wrapped http.RoundTripper, cfg config.ObserveConfig) http.RoundTripper {
	if !cfg.Enabled || !cfg.HttpTransportEnabled {
		return wrapped
	}

	opts := []otelhttp.Option{}
	if cfg.HttpConnectionTraceEnabled {
		opts = append(opts, otelhttp.WithClientTrace(connectionTrace))
	}

	return otelhttp.NewTransport(wrapped, opts...)
}

func connectionTrace(ctx context.Context) *httptrace.ClientTrace {
	return otelhttptrace.NewClientTrace(ctx,
		otelhttptrace.WithoutSubSpans(),
		otelhttptrace.WithoutHeaders(),
	)
}
