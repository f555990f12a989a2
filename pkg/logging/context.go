package logging

import "context"

type contextKey string

const requestIDKey contextKey = "requestID"

// WithRequestID stores the request id for downstream logging and auditing.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey, id)
}

// RequestID returns the request id stored in ctx, or "".
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}
