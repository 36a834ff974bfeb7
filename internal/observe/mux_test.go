package observe

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/attribute"
)

func TestMux_TagsRoute(t *testing.T) {
	mux := NewMux(http.NewServeMux())

	var labels []attribute.KeyValue
	mux.Handle("PATCH /drinks/{id}", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// the labeler is added by the otel handler wrapping the router
		labeler, _ := otelhttp.LabelerFromContext(r.Context())
		labels = labeler.Get()
	}))

	w := httptest.NewRecorder()
	mux.ServeHTTP(w, httptest.NewRequest(http.MethodPatch, "/drinks/12", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []attribute.KeyValue{attribute.String("http.route", "/drinks/{id}")}, labels)
}

func TestMux_UntaggedRoute(t *testing.T) {
	routes := http.NewServeMux()
	mux := NewMux(routes)

	var labels []attribute.KeyValue
	routes.Handle("GET /healthcheck", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		labeler, _ := otelhttp.LabelerFromContext(r.Context())
		labels = labeler.Get()
	}))

	w := httptest.NewRecorder()
	mux.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthcheck", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, labels)
}

func TestMux_MethodMismatch(t *testing.T) {
	mux := NewMux(http.NewServeMux())
	mux.Handle("GET /drinks", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("handler must not be called")
	}))

	w := httptest.NewRecorder()
	mux.ServeHTTP(w, httptest.NewRequest(http.MethodPut, "/drinks", nil))

	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
}

func TestSpanName(t *testing.T) {
	r := httptest.NewRequest(http.MethodDelete, "/drinks/7", nil)

	assert.Equal(t, "drinks-api DELETE", spanName("drinks-api", r))
}

func TestRoute(t *testing.T) {
	cases := map[string]string{
		"/healthcheck":               "/healthcheck",
		"GET /drinks":                "/drinks",
		"DELETE /drinks/{id}":        "/drinks/{id}",
		"api.example.com/drinks":     "/drinks",
		"GET api.example.com/drinks": "/drinks",
	}

	for pattern, expected := range cases {
		t.Run(pattern, func(t *testing.T) {
			assert.Equal(t, expected, Route(pattern))
		})
	}
}
