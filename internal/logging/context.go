package logging

import (
	"context"
	"log/slog"
)

// Standardized attribute keys shared across components.
const (
	FieldComponent   = "component"
	FieldRunID       = "run_id"
	FieldSubject     = "subject"
	FieldPerformance = "performance"
	FieldStage       = "stage"
	FieldModality    = "modality"
	FieldCamera      = "camera"
	FieldVariant     = "variant"
)

type contextKey struct{}

// TaskContext identifies the unit of work a log line belongs to.
type TaskContext struct {
	RunID       string
	Subject     string
	Performance string
	Stage       string
}

// WithTask attaches task identifiers to the context for later log tagging.
func WithTask(ctx context.Context, task TaskContext) context.Context {
	return context.WithValue(ctx, contextKey{}, task)
}

// TaskFromContext returns the task identifiers stored in ctx, if any.
func TaskFromContext(ctx context.Context) (TaskContext, bool) {
	task, ok := ctx.Value(contextKey{}).(TaskContext)
	return task, ok
}

// WithContext returns a logger tagged with whatever task identifiers the
// context carries. A nil logger yields a no-op logger.
func WithContext(ctx context.Context, logger *slog.Logger) *slog.Logger {
	if logger == nil {
		logger = NewNop()
	}
	task, ok := TaskFromContext(ctx)
	if !ok {
		return logger
	}
	attrs := make([]Attr, 0, 4)
	if task.RunID != "" {
		attrs = append(attrs, String(FieldRunID, task.RunID))
	}
	if task.Subject != "" {
		attrs = append(attrs, String(FieldSubject, task.Subject))
	}
	if task.Performance != "" {
		attrs = append(attrs, String(FieldPerformance, task.Performance))
	}
	if task.Stage != "" {
		attrs = append(attrs, String(FieldStage, task.Stage))
	}
	if len(attrs) == 0 {
		return logger
	}
	return logger.With(Args(attrs...)...)
}
