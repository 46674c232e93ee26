package logging

import (
	"context"
	"fmt"
	"regexp"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// ContextFields extracts correlation data from context.
func ContextFields(ctx context.Context) []zap.Field {
	fields := make([]zap.Field, 0, 4)

	if span := trace.SpanFromContext(ctx); span.SpanContext().IsValid() {
		sc := span.SpanContext()
		fields = append(fields,
			zap.String("trace_id", sc.TraceID().String()),
			zap.String("span_id", sc.SpanID().String()),
		)
	}

	if id := WorkflowIDFromContext(ctx); id != "" {
		fields = append(fields, zap.String("workflow.id", id))
	}

	if id := RequestIDFromContext(ctx); id != "" {
		fields = append(fields, zap.String("request.id", id))
	}

	return fields
}

type workflowCtxKey struct{}
type requestCtxKey struct{}
type loggerCtxKey struct{}

const maxIDLen = 128

var idPattern = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

func validateID(id, name string) error {
	if id == "" {
		return fmt.Errorf("%s cannot be empty", name)
	}
	if len(id) > maxIDLen {
		return fmt.Errorf("%s exceeds max length %d", name, maxIDLen)
	}
	if !idPattern.MatchString(id) {
		return fmt.Errorf("%s contains invalid characters (must be alphanumeric, hyphen, underscore)", name)
	}
	return nil
}

// ValidID reports whether id is accepted by WithRequestID.
func ValidID(id string) bool {
	return validateID(id, "id") == nil
}

// WithWorkflowID adds a workflow id to context.
// Invalid ids are ignored.
func WithWorkflowID(ctx context.Context, id string) context.Context {
	if validateID(id, "workflowID") != nil {
		return ctx
	}
	return context.WithValue(ctx, workflowCtxKey{}, id)
}

// WorkflowIDFromContext extracts the workflow id from context.
func WorkflowIDFromContext(ctx context.Context) string {
	if id, ok := ctx.Value(workflowCtxKey{}).(string); ok {
		return id
	}
	return ""
}

// WithRequestID adds a request id to context.
// Panics if requestID is empty or contains invalid characters.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	if err := validateID(requestID, "requestID"); err != nil {
		panic(fmt.Sprintf("logging: %v", err))
	}
	return context.WithValue(ctx, requestCtxKey{}, requestID)
}

// RequestIDFromContext extracts the request id from context.
func RequestIDFromContext(ctx context.Context) string {
	if r, ok := ctx.Value(requestCtxKey{}).(string); ok {
		return r
	}
	return ""
}

// WithLogger stores logger in context.
func WithLogger(ctx context.Context, logger *Logger) context.Context {
	return context.WithValue(ctx, loggerCtxKey{}, logger)
}

// FromContext retrieves logger from context, or a nop logger.
func FromContext(ctx context.Context) *Logger {
	if l, ok := ctx.Value(loggerCtxKey{}).(*Logger); ok {
		return l
	}
	return NewNop()
}
