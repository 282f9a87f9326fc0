package logging

import (
	"context"
	"log/slog"
)

type ctxKey int

const (
	requestIDKey ctxKey = iota
	entityKindKey
	entityNameKey
)

// WithRequestID returns a context with the admission request ID set.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey, id)
}

// WithEntity returns a context with the payload's entity kind and name set.
func WithEntity(ctx context.Context, kind, name string) context.Context {
	ctx = context.WithValue(ctx, entityKindKey, kind)
	return context.WithValue(ctx, entityNameKey, name)
}

// RequestID extracts the admission request ID from the context, or "" if absent.
func RequestID(ctx context.Context) string {
	v, _ := ctx.Value(requestIDKey).(string)
	return v
}

// EntityKind extracts the payload entity kind from the context, or "" if absent.
func EntityKind(ctx context.Context) string {
	v, _ := ctx.Value(entityKindKey).(string)
	return v
}

// EntityName extracts the payload entity name from the context, or "" if absent.
func EntityName(ctx context.Context) string {
	v, _ := ctx.Value(entityNameKey).(string)
	return v
}

// CorrelationHandler wraps an slog.Handler, automatically injecting
// correlation attributes from the context into every log record.
// Use with slog.New(NewCorrelationHandler(inner)) so callers can use
// logger.InfoContext(ctx, ...) and the attributes appear automatically.
type CorrelationHandler struct {
	inner slog.Handler
}

// NewCorrelationHandler wraps the given handler with automatic correlation injection.
func NewCorrelationHandler(inner slog.Handler) *CorrelationHandler {
	return &CorrelationHandler{inner: inner}
}

func (h *CorrelationHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.inner.Enabled(ctx, level)
}

func (h *CorrelationHandler) Handle(ctx context.Context, r slog.Record) error {
	if v := RequestID(ctx); v != "" {
		r.AddAttrs(slog.String("request_id", v))
	}
	if v := EntityKind(ctx); v != "" {
		r.AddAttrs(slog.String("entity_kind", v))
	}
	if v := EntityName(ctx); v != "" {
		r.AddAttrs(slog.String("entity_name", v))
	}
	return h.inner.Handle(ctx, r)
}

func (h *CorrelationHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &CorrelationHandler{inner: h.inner.WithAttrs(attrs)}
}

func (h *CorrelationHandler) WithGroup(name string) slog.Handler {
	return &CorrelationHandler{inner: h.inner.WithGroup(name)}
}
