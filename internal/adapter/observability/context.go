package observability

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel/trace"
)

type loggerContextKey struct{}

type requestIDContextKey struct{}

// ContextWithLogger attaches a non-nil logger to the context.
func ContextWithLogger(ctx context.Context, lg *slog.Logger) context.Context {
	if ctx == nil || lg == nil {
		return ctx
	}
	return context.WithValue(ctx, loggerContextKey{}, lg)
}

// LoggerFromContext returns the logger stored in the context or the default
// slog logger when none is present.
func LoggerFromContext(ctx context.Context) *slog.Logger {
	if ctx == nil {
		return slog.Default()
	}
	if lg, ok := ctx.Value(loggerContextKey{}).(*slog.Logger); ok && lg != nil {
		return lg
	}
	return slog.Default()
}

// ContextWithRequestID stores a non-empty request_id so queue workers and
// adapters can correlate their logs with the originating HTTP request.
func ContextWithRequestID(ctx context.Context, requestID string) context.Context {
	if ctx == nil || requestID == "" {
		return ctx
	}
	return context.WithValue(ctx, requestIDContextKey{}, requestID)
}

// RequestIDFromContext retrieves the request_id, or "" when none is present.
func RequestIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	rid, _ := ctx.Value(requestIDContextKey{}).(string)
	return rid
}

// Logger returns the context logger enriched with request_id and the active
// trace and span ids, when present.
func Logger(ctx context.Context) *slog.Logger {
	lg := LoggerFromContext(ctx)
	if ctx == nil {
		return lg
	}
	if rid := RequestIDFromContext(ctx); rid != "" && ctx.Value(loggerContextKey{}) == nil {
		lg = lg.With(slog.String("request_id", rid))
	}
	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		lg = lg.With(
			slog.String("trace_id", sc.TraceID().String()),
			slog.String("span_id", sc.SpanID().String()),
		)
	}
	return lg
}
