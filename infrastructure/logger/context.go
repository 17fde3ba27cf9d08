package logger

import "context"

type fieldsKey struct{}

// WithFields returns a copy of ctx carrying fields in addition to any it
// already carries. Ctx attaches them to a logger.
func WithFields(ctx context.Context, fields ...Field) context.Context {
	if len(fields) == 0 {
		return ctx
	}
	prev := contextFields(ctx)
	merged := make([]Field, 0, len(prev)+len(fields))
	merged = append(merged, prev...)
	merged = append(merged, fields...)
	return context.WithValue(ctx, fieldsKey{}, merged)
}

// WithRequestID tags ctx with the HTTP request id.
func WithRequestID(ctx context.Context, id string) context.Context {
	return WithFields(ctx, RequestID(id))
}

// WithJobID tags ctx with a translation job id.
func WithJobID(ctx context.Context, id string) context.Context {
	return WithFields(ctx, JobID(id))
}

// Ctx returns l with the correlation fields carried by ctx.
func Ctx(ctx context.Context, l Logger) Logger {
	fields := contextFields(ctx)
	if len(fields) == 0 {
		return l
	}
	return l.With(fields...)
}

func contextFields(ctx context.Context) []Field {
	fields, _ := ctx.Value(fieldsKey{}).([]Field)
	return fields
}
