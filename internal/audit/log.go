// Package audit records one structured log event per API request: who
// called, what they were allowed to do, and how the request ended.
package audit

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

var _ zerolog.LogObjectMarshaler = (*Entry)(nil)

type contextKey struct{}

const (
	// Level is the log level at which audit events are written, above all
	// of the standard levels.
	Level = zerolog.Level(20)

	// RequestIDHeader carries the request identifier in both directions.
	RequestIDHeader = "X-Request-Id"
)

// Entry collects the audit details of a single request. Middleware and
// handlers further down the chain add to it through Log.
type Entry struct {
	Method       string
	Path         string
	Status       int
	SourceIP     string
	ForwardedFor string
	UserAgent    string
	RequestID    string
	Started      time.Time
	Duration     time.Duration

	Authorized         bool
	AuthSubject        string
	AuthIssuer         string
	AuthAudience       []string
	AuthExpirySecs     int64
	RequiredPermission string
	Permissions        []string

	Drinks []int64
	Error  string
}

// MarshalZerologObject writes the entry without reflection. New fields on
// Entry must be added here to appear in the log.
func (e *Entry) MarshalZerologObject(event *zerolog.Event) {
	event.
		Str("requestID", e.RequestID).
		Str("method", e.Method).
		Str("path", e.Path).
		Int("status", e.Status).
		Dur("duration", e.Duration).
		Str("sourceIP", e.SourceIP).
		Str("userAgent", e.UserAgent)

	if e.ForwardedFor != "" {
		event.Str("forwardedFor", e.ForwardedFor)
	}

	event.
		Bool("authorized", e.Authorized).
		Str("requiredPermission", e.RequiredPermission).
		Str("authSubject", e.AuthSubject).
		Str("authIssuer", e.AuthIssuer)

	if len(e.AuthAudience) > 0 {
		event.Strs("authAudience", e.AuthAudience)
	}

	if e.AuthExpirySecs > 0 {
		expiry := time.Unix(e.AuthExpirySecs, 0)
		event.Time("authExpiry", expiry).
			Dur("authExpiryRemaining", time.Until(expiry).Round(time.Millisecond))
	}

	if len(e.Permissions) > 0 {
		event.Strs("permissions", e.Permissions)
	}

	if len(e.Drinks) > 0 {
		event.Ints64("drinks", e.Drinks)
	}

	event.Str("error", e.Error)
}

// Begin fills the entry from the incoming request.
func (e *Entry) Begin(r *http.Request) {
	e.Method = r.Method
	e.Path = r.URL.Path
	e.SourceIP = r.RemoteAddr
	e.UserAgent = r.UserAgent()
	e.RequestID = r.Header.Get(RequestIDHeader)
	e.Started = time.Now()

	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		first, _, _ := strings.Cut(forwarded, ",")
		e.ForwardedFor = strings.TrimSpace(first)
	}
}

// AddError appends to the recorded error rather than replacing it.
func (e *Entry) AddError(msg string) {
	if e.Error != "" {
		e.Error += "; "
	}
	e.Error += msg
}

// End returns a function that writes the entry, intended to be deferred. A
// panic in progress is recorded as a 500 and re-raised once the entry is
// written.
func (e *Entry) End(ctx context.Context) func() {
	return func() {
		recovered := recover()
		if recovered != nil {
			e.Status = http.StatusInternalServerError
			e.AddError(fmt.Sprintf("panic: %v", recovered))
		}

		e.write(ctx)

		if recovered != nil {
			panic(recovered)
		}
	}
}

func (e *Entry) write(ctx context.Context) {
	// a handler that writes nothing responds 200
	if e.Status == 0 {
		e.Status = http.StatusOK
	}
	if !e.Started.IsZero() {
		e.Duration = time.Since(e.Started)
	}

	zerolog.Ctx(ctx).
		WithLevel(Level).
		EmbedObject(e).
		Str("type", "audit").
		Msg("audit_event")
}

// Middleware starts an audit entry for every request and writes it when the
// request completes, including when the handler panics. The request ID is
// taken from RequestIDHeader or generated, echoed on the response and added
// to the context logger.
func Middleware() func(next http.Handler) http.Handler {
	registerLevel()

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, entry := Context(r.Context())

			entry.Begin(r)
			if entry.RequestID == "" {
				entry.RequestID = uuid.NewString()
			}

			response := wrapResponseWriter(w, entry)
			response.Header().Set(RequestIDHeader, entry.RequestID)

			ctx = zerolog.Ctx(ctx).With().
				Str("requestID", entry.RequestID).
				Logger().
				WithContext(ctx)

			defer entry.End(ctx)()

			next.ServeHTTP(response, r.WithContext(ctx))
		})
	}
}

// Log returns the entry for the current request. Outside of Middleware the
// returned entry is detached: it can be written to, but is never logged.
func Log(ctx context.Context) *Entry {
	_, e := Context(ctx)
	return e
}

// Context returns the request's Entry, adding a new one to the returned
// context if there is none.
func Context(ctx context.Context) (context.Context, *Entry) {
	if e, ok := ctx.Value(contextKey{}).(*Entry); ok {
		return ctx, e
	}

	e := &Entry{}
	return context.WithValue(ctx, contextKey{}, e), e
}

var registerOnce sync.Once

// registerLevel names the audit level "audit" in JSON output and "AUD" on
// the console.
func registerLevel() {
	registerOnce.Do(configureLevelNames)
}

func configureLevelNames() {
	zerolog.FormattedLevels[Level] = "AUD"

	marshal := zerolog.LevelFieldMarshalFunc
	zerolog.LevelFieldMarshalFunc = func(l zerolog.Level) string {
		if l == Level {
			return "audit"
		}
		return marshal(l)
	}
}
