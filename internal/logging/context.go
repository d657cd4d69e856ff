package logging

import (
	"context"
	"log/slog"

	"clipper/internal/services"
)

// Structured field keys shared by every component.
const (
	FieldComponent     = "component"
	FieldJobID         = "job_id"
	FieldRequesterID   = "requester_id"
	FieldStage         = "stage"
	FieldState         = "state"
	FieldURL           = "url" // always redacted, see URL
	FieldCorrelationID = "correlation_id"

	// Warnings carry these three so an operator can act without reading code.
	FieldEventType = "event_type"
	FieldErrorHint = "error_hint"
	FieldImpact    = "impact"

	FieldAlert = "alert"
)

// ContextFields returns the job, requester, stage and correlation attributes
// stored in ctx.
func ContextFields(ctx context.Context) []slog.Attr {
	if ctx == nil {
		return nil
	}
	var fields []slog.Attr
	if id, ok := services.JobIDFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldJobID, id))
	}
	if id, ok := services.RequesterIDFromContext(ctx); ok {
		fields = append(fields, slog.Int64(FieldRequesterID, id))
	}
	if stage, ok := services.StageFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldStage, stage))
	}
	if rid, ok := services.RequestIDFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldCorrelationID, rid))
	}
	return fields
}

// WithContext returns logger with ContextFields(ctx) attached.
func WithContext(ctx context.Context, logger *slog.Logger) *slog.Logger {
	if logger == nil {
		logger = NewNop()
	}
	if fields := ContextFields(ctx); len(fields) > 0 {
		return logger.With(Args(fields...)...)
	}
	return logger
}
