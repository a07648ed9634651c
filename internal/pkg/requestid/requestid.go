// Package requestid carries a correlation ID — an HTTP request ID, a
// scheduler tick ID, a regulator tick ID — through a context.Context so
// every log line emitted while handling that unit of work can be tied
// back together.
package requestid

import "context"

type contextKey string

const requestIDKey contextKey = "request_id"

// WithRequestID returns a new context carrying the given correlation ID.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey, id)
}

// FromContext returns the correlation ID carried by ctx, or "" if none is set.
func FromContext(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}
