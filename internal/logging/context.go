package logging

import (
	"context"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

type workspaceCtxKey struct{}
type requesterCtxKey struct{}
type requestCtxKey struct{}
type loggerCtxKey struct{}

// ContextFields extracts correlation fields from ctx.
func ContextFields(ctx context.Context) []zap.Field {
	fields := make([]zap.Field, 0, 6)

	if span := trace.SpanFromContext(ctx); span.SpanContext().IsValid() {
		sc := span.SpanContext()
		fields = append(fields,
			zap.String("trace_id", sc.TraceID().String()),
			zap.String("span_id", sc.SpanID().String()),
		)
	}
	if ws := WorkspaceFromContext(ctx); ws != "" {
		fields = append(fields, zap.String("workspace_id", ws))
	}
	if requester := RequesterFromContext(ctx); requester != "" {
		fields = append(fields, zap.String("requester_id", requester))
	}
	if requestID := RequestIDFromContext(ctx); requestID != "" {
		fields = append(fields, zap.String("request_id", requestID))
	}
	return fields
}

// WithWorkspace tags ctx with the workspace a call operates on.
func WithWorkspace(ctx context.Context, workspaceID string) context.Context {
	if workspaceID == "" {
		return ctx
	}
	return context.WithValue(ctx, workspaceCtxKey{}, workspaceID)
}

// WorkspaceFromContext returns the workspace tag, or "".
func WorkspaceFromContext(ctx context.Context) string {
	s, _ := ctx.Value(workspaceCtxKey{}).(string)
	return s
}

// WithRequester tags ctx with the resolved requester id.
func WithRequester(ctx context.Context, requesterID string) context.Context {
	if requesterID == "" {
		return ctx
	}
	return context.WithValue(ctx, requesterCtxKey{}, requesterID)
}

// RequesterFromContext returns the requester tag, or "".
func RequesterFromContext(ctx context.Context) string {
	s, _ := ctx.Value(requesterCtxKey{}).(string)
	return s
}

// WithRequestID tags ctx with a transport request id.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	if requestID == "" {
		return ctx
	}
	return context.WithValue(ctx, requestCtxKey{}, requestID)
}

// RequestIDFromContext returns the request id tag, or "".
func RequestIDFromContext(ctx context.Context) string {
	s, _ := ctx.Value(requestCtxKey{}).(string)
	return s
}

// WithLogger stores logger in ctx.
func WithLogger(ctx context.Context, logger *Logger) context.Context {
	return context.WithValue(ctx, loggerCtxKey{}, logger)
}

// FromContext returns the logger stored in ctx, or a nop logger.
func FromContext(ctx context.Context) *Logger {
	if l, ok := ctx.Value(loggerCtxKey{}).(*Logger); ok {
		return l
	}
	return NewNop()
}
