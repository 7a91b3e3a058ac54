package store

import "context"

type contextKey string

const (
	// APIKeyIDKey is the context key for the authenticated key's short ID.
	APIKeyIDKey contextKey = "wagate_api_key_id"
	// RequestIDKey is the context key for the per-request correlation ID.
	RequestIDKey contextKey = "wagate_request_id"
)

// WithAPIKeyID returns a new context carrying the authenticated key ID.
func WithAPIKeyID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, APIKeyIDKey, id)
}

// APIKeyIDFromContext extracts the key ID from context. Returns "" if not set.
func APIKeyIDFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(APIKeyIDKey).(string); ok {
		return v
	}
	return ""
}

// WithRequestID returns a new context carrying a request ID.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, RequestIDKey, id)
}

// RequestIDFromContext extracts the request ID from context. Returns "" if not set.
func RequestIDFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(RequestIDKey).(string); ok {
		return v
	}
	return ""
}
