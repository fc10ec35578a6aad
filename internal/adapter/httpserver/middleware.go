package httpserver

import (
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/oklog/ulid/v2"
	"go.opentelemetry.io/otel/trace"

	"github.com/fairyhunter13/career-readiness/internal/adapter/observability"
	"github.com/fairyhunter13/career-readiness/internal/domain"
)

const headerRequestID = "X-Request-Id"

// Recoverer turns a handler panic into a 500 envelope.
func Recoverer() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					writeError(w, r, fmt.Errorf("%w: panic: %v", domain.ErrInternal, rec), nil)
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// RequestID assigns a ULID request id unless the caller sent one, and stores a
// logger carrying it and the trace ids in the request context.
func RequestID() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			reqID := strings.TrimSpace(r.Header.Get(headerRequestID))
			if reqID == "" || len(reqID) > 128 {
				reqID = ulid.Make().String()
				r.Header.Set(headerRequestID, reqID)
			}
			sc := trace.SpanContextFromContext(r.Context())
			lg := slog.Default().With(
				slog.String("request_id", reqID),
				slog.String("trace_id", sc.TraceID().String()),
				slog.String("span_id", sc.SpanID().String()),
			)
			ctx := observability.ContextWithLogger(r.Context(), lg)
			ctx = observability.ContextWithRequestID(ctx, reqID)
			w.Header().Set(headerRequestID, reqID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireJSON rejects requests that will not accept a JSON response.
func RequireJSON(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		a := r.Header.Get("Accept")
		if a != "" && !strings.Contains(a, "*/*") && !strings.Contains(a, "application/json") && !strings.Contains(a, "application/*") {
			writeJSON(w, http.StatusNotAcceptable, errorEnvelope{Error: apiError{
				Code:    "NOT_ACCEPTABLE",
				Message: "only application/json responses are available",
				Details: map[string]string{"accept": a},
			}})
			return
		}
		next.ServeHTTP(w, r)
	})
}

// TimeoutMiddleware bounds handler time.
func TimeoutMiddleware(d time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.TimeoutHandler(next, d, `{"error":{"code":"TIMEOUT","message":"request timed out","details":null}}`)
	}
}

// SecurityHeaders sets headers suitable for a JSON API.
func SecurityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("X-Frame-Options", "DENY")
		h.Set("Content-Security-Policy", "default-src 'none'")
		h.Set("Referrer-Policy", "no-referrer")
		next.ServeHTTP(w, r)
	})
}

// AccessLog writes one line per request, at warn for 4xx and error for 5xx.
func AccessLog() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			route := r.URL.Path
			if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
				route = rc.RoutePattern()
			}
			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			level := slog.LevelInfo
			switch {
			case status >= 500:
				level = slog.LevelError
			case status >= 400:
				level = slog.LevelWarn
			}
			observability.Logger(r.Context()).LogAttrs(r.Context(), level, "http_access",
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.String("route", route),
				slog.Int("status", status),
				slog.Int("bytes", ww.BytesWritten()),
				slog.Duration("duration", time.Since(start)),
			)
		})
	}
}
