package logger

import (
	"context"

	rtcontext "github.com/dmruntime/dmruntime/pkg/context"
)

// LoggerContext extends the Logger interface with context-aware methods
type LoggerContext interface {
	Logger
	InfoContext(ctx context.Context, message string, fields ...Field)
	ErrorContext(ctx context.Context, message string, fields ...Field)
	WarnContext(ctx context.Context, message string, fields ...Field)
	DebugContext(ctx context.Context, message string, fields ...Field)
}

var _ LoggerContext = (*ModuleLogger)(nil)

// InfoContext logs an info message with activation tracing fields
func (l *ModuleLogger) InfoContext(ctx context.Context, message string, fields ...Field) {
	l.Info(message, append(extractContextFields(ctx), fields...)...)
}

// ErrorContext logs an error message with activation tracing fields
func (l *ModuleLogger) ErrorContext(ctx context.Context, message string, fields ...Field) {
	l.Error(message, append(extractContextFields(ctx), fields...)...)
}

// WarnContext logs a warning message with activation tracing fields
func (l *ModuleLogger) WarnContext(ctx context.Context, message string, fields ...Field) {
	l.Warn(message, append(extractContextFields(ctx), fields...)...)
}

// DebugContext logs a debug message with activation tracing fields
func (l *ModuleLogger) DebugContext(ctx context.Context, message string, fields ...Field) {
	l.Debug(message, append(extractContextFields(ctx), fields...)...)
}

func extractContextFields(ctx context.Context) []Field {
	if ctx == nil {
		return nil
	}

	var fields []Field
	if id, ok := rtcontext.EventID(ctx); ok {
		fields = append(fields, WithField("event_id", id))
	}
	if op, ok := rtcontext.Operation(ctx); ok {
		fields = append(fields, WithField("operation", op))
	}
	return fields
}

// WithContext creates a logger that automatically includes context fields
func WithContext(ctx context.Context, log Logger) Logger {
	if ctx == nil || log == nil {
		return log
	}
	return &contextualLogger{ctx: ctx, logger: log}
}

// contextualLogger wraps a logger with automatic context field extraction
type contextualLogger struct {
	ctx    context.Context
	logger Logger
}

func (cl *contextualLogger) Info(message string, fields ...Field) {
	if lc, ok := cl.logger.(LoggerContext); ok {
		lc.InfoContext(cl.ctx, message, fields...)
		return
	}
	cl.logger.Info(message, fields...)
}

func (cl *contextualLogger) Error(message string, fields ...Field) {
	if lc, ok := cl.logger.(LoggerContext); ok {
		lc.ErrorContext(cl.ctx, message, fields...)
		return
	}
	cl.logger.Error(message, fields...)
}

func (cl *contextualLogger) Warn(message string, fields ...Field) {
	if lc, ok := cl.logger.(LoggerContext); ok {
		lc.WarnContext(cl.ctx, message, fields...)
		return
	}
	cl.logger.Warn(message, fields...)
}

func (cl *contextualLogger) Debug(message string, fields ...Field) {
	if lc, ok := cl.logger.(LoggerContext); ok {
		lc.DebugContext(cl.ctx, message, fields...)
		return
	}
	cl.logger.Debug(message, fields...)
}

func (cl *contextualLogger) Success(message string, fields ...Field) {
	cl.logger.Success(message, append(extractContextFields(cl.ctx), fields...)...)
}

func (cl *contextualLogger) WithModule(module string) Logger {
	return &contextualLogger{
		ctx:    cl.ctx,
		logger: cl.logger.WithModule(module),
	}
}
