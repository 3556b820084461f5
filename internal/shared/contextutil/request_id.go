package contextutil

import "context"

// Unexported type keeps the context key collision-safe.
type contextKey string

const requestIDKey contextKey = "request_id"

// GetRequestID reads the request ID from the context. Propagation into the
// standard context happens in the RequestID middleware.
func GetRequestID(ctx context.Context) string {
	if rid, ok := ctx.Value(requestIDKey).(string); ok {
		return rid
	}
	return ""
}

// WithRequestID injects the ID into the context (also handy in unit tests).
func WithRequestID(ctx context.Context, rid string) context.Context {
	return context.WithValue(ctx, requestIDKey, rid)
}

// GetKey exposes the raw key for middleware that needs it.
func GetKey() string {
	return string(requestIDKey)
}
