// Package context carries lifecycle event tracing values through context.Context
package context

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type contextKey int

const (
	eventIDKey contextKey = iota
	operationKey
	startTimeKey
)

// Operation names used by the runtime
const (
	OperationActivate   = "activate"
	OperationDeactivate = "deactivate"
	OperationShutdown   = "shutdown"
	OperationValidate   = "validate"
)

// WithEventID adds a lifecycle event ID to the context
func WithEventID(parent context.Context, id string) context.Context {
	if id == "" {
		id = GenerateEventID()
	}
	return context.WithValue(parent, eventIDKey, id)
}

// EventID retrieves the lifecycle event ID from the context
func EventID(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(eventIDKey).(string)
	return id, ok && id != ""
}

// WithOperation adds an operation name to the context
func WithOperation(parent context.Context, operation string) context.Context {
	return context.WithValue(parent, operationKey, operation)
}

// Operation retrieves the operation name from the context
func Operation(ctx context.Context) (string, bool) {
	op, ok := ctx.Value(operationKey).(string)
	return op, ok && op != ""
}

// StartTime retrieves the event start time, or the zero time
func StartTime(ctx context.Context) time.Time {
	if t, ok := ctx.Value(startTimeKey).(time.Time); ok {
		return t
	}
	return time.Time{}
}

// Duration returns the time elapsed since the event started
func Duration(ctx context.Context) time.Duration {
	start := StartTime(ctx)
	if start.IsZero() {
		return 0
	}
	return time.Since(start)
}

// GenerateEventID creates a new unique event ID
func GenerateEventID() string {
	return "evt_" + uuid.New().String()
}

// NewEvent enriches parent with an event ID (unless present), the operation
// and a start time
func NewEvent(parent context.Context, operation string) context.Context {
	if parent == nil {
		parent = context.Background()
	}
	ctx := parent
	if _, ok := EventID(ctx); !ok {
		ctx = WithEventID(ctx, "")
	}
	ctx = WithOperation(ctx, operation)
	return context.WithValue(ctx, startTimeKey, time.Now())
}
