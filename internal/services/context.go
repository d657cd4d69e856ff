package services

import "context"

// ctxKey is typed by the value it carries so lookups need no type switch.
type ctxKey[T comparable] struct{ name string }

var (
	jobIDKey       = ctxKey[string]{"job_id"}
	requesterIDKey = ctxKey[int64]{"requester_id"}
	stageKey       = ctxKey[string]{"stage"}
	requestIDKey   = ctxKey[string]{"request_id"}
)

// withValue stores v unless it is the zero value, so blank identifiers never
// shadow a value set further up.
func withValue[T comparable](ctx context.Context, key ctxKey[T], v T) context.Context {
	var zero T
	if v == zero {
		return ctx
	}
	return context.WithValue(ctx, key, v)
}

func valueFrom[T comparable](ctx context.Context, key ctxKey[T]) (T, bool) {
	v, ok := ctx.Value(key).(T)
	return v, ok
}

// WithJobID tags ctx with the job it works on.
func WithJobID(ctx context.Context, id string) context.Context { return withValue(ctx, jobIDKey, id) }

// JobIDFromContext returns the job id, if any.
func JobIDFromContext(ctx context.Context) (string, bool) { return valueFrom(ctx, jobIDKey) }

// WithRequesterID tags ctx with the Telegram user who submitted the job.
func WithRequesterID(ctx context.Context, id int64) context.Context {
	return withValue(ctx, requesterIDKey, id)
}

// RequesterIDFromContext returns the requester, if any.
func RequesterIDFromContext(ctx context.Context) (int64, bool) {
	return valueFrom(ctx, requesterIDKey)
}

// WithStage tags ctx with the pipeline stage.
func WithStage(ctx context.Context, stage string) context.Context {
	return withValue(ctx, stageKey, stage)
}

// StageFromContext returns the stage, if any.
func StageFromContext(ctx context.Context) (string, bool) { return valueFrom(ctx, stageKey) }

// WithRequestID tags ctx with the correlation id of one Telegram update.
func WithRequestID(ctx context.Context, id string) context.Context {
	return withValue(ctx, requestIDKey, id)
}

// RequestIDFromContext returns the correlation id, if any.
func RequestIDFromContext(ctx context.Context) (string, bool) {
	return valueFrom(ctx, requestIDKey)
}
