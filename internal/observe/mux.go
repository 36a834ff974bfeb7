package observe

import (
	"net/http"
	"strings"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// Router is satisfied by http.ServeMux.
type Router interface {
	Handle(pattern string, handler http.Handler)
	http.Handler
}

// Mux traces every request served by the router it wraps. Routes added via
// Handle also carry their pattern as the "http.route" attribute; routes added
// directly to the wrapped router are served untagged.
type Mux struct {
	routes Router
	traced http.Handler
}

func NewMux(routes Router) *Mux {
	return &Mux{
		routes: routes,
		traced: otelhttp.NewHandler(routes, "drinks-api",
			otelhttp.WithSpanNameFormatter(spanName),
		),
	}
}

func (m *Mux) Handle(pattern string, handler http.Handler) {
	m.routes.Handle(pattern, otelhttp.WithRouteTag(Route(pattern), handler))
}

func (m *Mux) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	m.traced.ServeHTTP(w, r)
}

// spanName is bounded by the method set: paths carry drink IDs.
func spanName(operation string, r *http.Request) string {
	return operation + " " + r.Method
}

// Route returns the path portion of a ServeMux pattern, dropping any method
// and host: "PATCH /drinks/{id}" is reported as "/drinks/{id}".
func Route(pattern string) string {
	if _, path, ok := strings.Cut(pattern, " "); ok {
		pattern = strings.TrimSpace(path)
	}

	if i := strings.Index(pattern, "/"); i > 0 {
		pattern = pattern[i:]
	}

	return pattern
}
