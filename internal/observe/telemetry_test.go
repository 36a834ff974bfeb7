package observe

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/coffee-shop/drinks-api/internal/config"
	"github.com/coffee-shop/drinks-api/internal/testhelpers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
)

func Test_ResourceMerge(t *testing.T) {
	// schema incompatibility on OTEL upgrades must be detected here first
	r, err := resourceWithServiceName(
		resource.Default(),
		"serviceName")

	require.NoError(t, err)

	name, ok := r.Set().Value(semconv.ServiceNameKey)
	require.True(t, ok)
	assert.Equal(t, "serviceName", name.AsString())
}

func TestConfigure_Disabled(t *testing.T) {
	testhelpers.SetupLogger(t)

	shutdown, err := Configure(context.Background(), config.ObserveConfig{Enabled: false})
	require.NoError(t, err)

	assert.NoError(t, shutdown(context.Background()))
}

func TestConfigure_Stdout(t *testing.T) {
	testhelpers.SetupLogger(t)

	shutdown, err := Configure(context.Background(), config.ObserveConfig{
		Enabled:                   true,
		MetricsEnabled:            true,
		Type:                      "stdout",
		ServiceName:               "drinks-api-test",
		TraceBatchTimeoutSeconds:  1,
		MetricReadIntervalSeconds: 60,
	})
	require.NoError(t, err)

	assert.NoError(t, shutdown(context.Background()))
	// a second shutdown has nothing left to stop
	assert.NoError(t, shutdown(context.Background()))
}

func TestConfigure_UnknownExporter(t *testing.T) {
	testhelpers.SetupLogger(t)

	shutdown, err := Configure(context.Background(), config.ObserveConfig{Enabled: true, Type: "zipkin"})

	assert.EqualError(t, err, `unknown telemetry exporter type "zipkin": expected grpc or stdout`)
	assert.Nil(t, shutdown)
}

func TestExportersFor(t *testing.T) {
	cases := map[string]exporters{
		"":       grpcExporters{},
		"grpc":   grpcExporters{},
		"stdout": stdoutExporters{},
	}

	for kind, expected := range cases {
		actual, err := exportersFor(kind)
		require.NoError(t, err, kind)
		assert.Equal(t, expected, actual, kind)
	}
}

func TestShutdownStack(t *testing.T) {
	var order []string
	stop := func(name string, err error) ShutdownFunc {
		return func(context.Context) error {
			order = append(order, name)
			return err
		}
	}

	var stack shutdownStack
	stack.push(stop("traces", nil))
	stack.push(stop("metrics", errors.New("flush failed")))

	err := stack.shutdown(context.Background())

	assert.EqualError(t, err, "flush failed")
	assert.Equal(t, []string{"metrics", "traces"}, order)

	assert.NoError(t, stack.shutdown(context.Background()))
	assert.Len(t, order, 2)
}

func TestHttpTransport(t *testing.T) {
	base := http.DefaultTransport

	cases := []struct {
		name    string
		cfg     config.ObserveConfig
		wrapped bool
	}{
		{name: "telemetry disabled", cfg: config.ObserveConfig{Enabled: false, HttpTransportEnabled: true}},
		{name: "transport disabled", cfg: config.ObserveConfig{Enabled: true, HttpTransportEnabled: false}},
		{name: "enabled", cfg: config.ObserveConfig{Enabled: true, HttpTransportEnabled: true}, wrapped: true},
		{name: "with connection trace", cfg: config.ObserveConfig{Enabled: true, HttpTransportEnabled: true, HttpConnectionTraceEnabled: true}, wrapped: true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			transport := HttpTransport(base, tc.cfg)

			if tc.wrapped {
				assert.NotSame(t, base, transport)
			} else {
				assert.Same(t, base, transport)
			}
		})
	}
}
