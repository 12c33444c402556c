// Package ctxutil provides shared context key accessors.
//
// The server assigns request IDs in its middleware and the MCP tool handlers
// run beneath that middleware. Both packages import ctxutil instead of each
// other.
package ctxutil

import "context"

type contextKey string

const keyRequestID contextKey = "request_id"

// WithRequestID returns a new context carrying the given request ID.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, keyRequestID, id)
}

// RequestIDFromContext extracts the request ID from the context.
// Returns "" when none was set.
func RequestIDFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(keyRequestID).(string); ok {
		return v
	}
	return ""
}
