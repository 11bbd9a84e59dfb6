package common

import (
	"context"
	"log/slog"
)

// Context keys for storing values in context
type contextKey string

const (
	ContextKeyRequestID contextKey = "request_id"
	ContextKeyActorID   contextKey = "actor_id"
	ContextKeyActorRole contextKey = "actor_role"
)

// WithRequestID adds a request ID to the context
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, ContextKeyRequestID, requestID)
}

// RequestIDFromContext extracts the request ID from context
func RequestIDFromContext(ctx context.Context) string {
	if requestID, ok := ctx.Value(ContextKeyRequestID).(string); ok {
		return requestID
	}
	return ""
}

// WithActorAttrs records the authenticated actor for log enrichment.
func WithActorAttrs(ctx context.Context, actorID int64, role string) context.Context {
	ctx = context.WithValue(ctx, ContextKeyActorID, actorID)
	return context.WithValue(ctx, ContextKeyActorRole, role)
}

// LoggerWithContext returns logger enriched with the request id and actor found in ctx.
func LoggerWithContext(ctx context.Context, logger *slog.Logger) *slog.Logger {
	if requestID := RequestIDFromContext(ctx); requestID != "" {
		logger = logger.With("request_id", requestID)
	}
	if actorID, ok := ctx.Value(ContextKeyActorID).(int64); ok && actorID != 0 {
		logger = logger.With("actor_id", actorID)
	}
	if role, ok := ctx.Value(ContextKeyActorRole).(string); ok && role != "" {
		logger = logger.With("actor_role", role)
	}
	return logger
}
