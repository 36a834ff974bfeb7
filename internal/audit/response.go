package audit

import (
	"bufio"
	"net"
	"net/http"
)

// wrapResponseWriter records the response status on the entry. Only the
// first status written is kept, matching what the client receives.
func wrapResponseWriter(w http.ResponseWriter, e *Entry) http.ResponseWriter {
	wrapped := &statusRecorder{ResponseWriter: w, entry: e}
	if _, ok := w.(http.Hijacker); ok {
		return &hijackingRecorder{wrapped}
	}
	return wrapped
}

type statusRecorder struct {
	http.ResponseWriter
	entry       *Entry
	wroteHeader bool
}

func (w *statusRecorder) WriteHeader(code int) {
	if !w.wroteHeader {
		w.wroteHeader = true
		w.entry.Status = code
	}
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusRecorder) Write(buf []byte) (int, error) {
	if !w.wroteHeader {
		w.WriteHeader(http.StatusOK)
	}
	return w.ResponseWriter.Write(buf)
}

func (w *statusRecorder) Flush() {
	if flusher, ok := w.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}

// Unwrap allows http.ResponseController to reach the underlying writer.
func (w *statusRecorder) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}

type hijackingRecorder struct {
	*statusRecorder
}

func (h *hijackingRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	return h.ResponseWriter.(http.Hijacker).Hijack()
}
