package relevance

import (
	"context"
	"net/http"
)

// Transport delivers a notification on one channel.
// When provided via WithTransport, replaces the logging transport for that
// channel. Deliver runs on the request path; it should honour ctx and return
// promptly. A returned error marks only that channel as failed.
type Transport interface {
	Deliver(ctx context.Context, channel Channel, n Notification) error
}

// TransportFunc adapts a function to Transport.
type TransportFunc func(ctx context.Context, channel Channel, n Notification) error

// Deliver calls fn.
func (fn TransportFunc) Deliver(ctx context.Context, channel Channel, n Notification) error {
	return fn(ctx, channel, n)
}

// Middleware wraps the root HTTP handler.
// Applied outermost (before routing), so it sees all requests including /health.
// Multiple middlewares are applied in registration order (first-registered = outermost).
type Middleware func(http.Handler) http.Handler
