package observe

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/MrWong99/voxbridge"

// Tracer returns the voxbridge tracer from the global provider.
func Tracer() trace.Tracer {
	return otel.Tracer(tracerName)
}

// StartSpan starts a span. The caller must call span.End().
func StartSpan(ctx context.Context, name string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	return Tracer().Start(ctx, name, opts...)
}

// CorrelationID returns the trace ID of the active span, or "".
func CorrelationID(ctx context.Context) string {
	sc := trace.SpanContextFromContext(ctx)
	if sc.HasTraceID() {
		return sc.TraceID().String()
	}
	return ""
}

type contactKey struct{}

// WithContact scopes ctx to one contact. Loggers derived from the returned
// context carry the masked identifier.
func WithContact(ctx context.Context, contactID string) context.Context {
	return context.WithValue(ctx, contactKey{}, contactID)
}

// ContactFrom returns the identifier set by WithContact.
func ContactFrom(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(contactKey{}).(string)
	return id, ok && id != ""
}

// Logger returns the default logger enriched from ctx: trace_id and span_id
// for an active span, contact for a contact-scoped context.
func Logger(ctx context.Context) *slog.Logger {
	var attrs []any
	if sc := trace.SpanContextFromContext(ctx); sc.HasTraceID() {
		attrs = append(attrs,
			slog.String("trace_id", sc.TraceID().String()),
			slog.String("span_id", sc.SpanID().String()),
		)
	}
	if id, ok := ContactFrom(ctx); ok {
		attrs = append(attrs, slog.String("contact", MaskContact(id)))
	}
	if len(attrs) == 0 {
		return slog.Default()
	}
	return slog.Default().With(attrs...)
}

// MaskContact hides all but the last four characters of a contact identifier
// so phone numbers never appear in full in logs.
func MaskContact(id string) string {
	r := []rune(id)
	if len(r) <= 4 {
		return "****"
	}
	return "****" + string(r[len(r)-4:])
}
