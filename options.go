package relevance

import (
	"io/fs"
	"log/slog"
	"time"
)

// Option configures an App.
type Option func(*resolvedOptions)

// resolvedOptions holds all extension points after applying defaults.
// Unexported; callers use the With* functions.
type resolvedOptions struct {
	port            int
	databaseURL     string
	notifyURL       string
	redisURL        string
	limiterBackend  string
	logger          *slog.Logger
	version         string
	clock           func() time.Time
	transports      map[Channel]Transport
	middlewares     []Middleware
	extraMigrations []fs.FS
}

// WithPort overrides the TCP port from config (RELEVANCE_PORT env var).
func WithPort(port int) Option {
	return func(o *resolvedOptions) { o.port = port }
}

// WithDatabaseURL overrides the database connection string from config (DATABASE_URL env var).
func WithDatabaseURL(url string) Option {
	return func(o *resolvedOptions) { o.databaseURL = url }
}

// WithNotifyURL overrides the direct Postgres URL used for LISTEN/NOTIFY (NOTIFY_URL env var).
// Set this when queries go through a connection pooler such as PgBouncer;
// LISTEN needs a direct connection.
func WithNotifyURL(url string) Option {
	return func(o *resolvedOptions) { o.notifyURL = url }
}

// WithRedisLimiter selects the Redis rate-limit backend at url, overriding
// RELEVANCE_LIMITER_BACKEND and REDIS_URL.
func WithRedisLimiter(url string) Option {
	return func(o *resolvedOptions) {
		o.limiterBackend = "redis"
		o.redisURL = url
	}
}

// WithLogger sets the structured logger for the App.
// If not set, the default slog logger is used.
func WithLogger(logger *slog.Logger) Option {
	return func(o *resolvedOptions) { o.logger = logger }
}

// WithVersion sets the version string reported in the health endpoint and logs.
func WithVersion(version string) Option {
	return func(o *resolvedOptions) { o.version = version }
}

// WithClock replaces the wall clock used by every scorer.
func WithClock(now func() time.Time) Option {
	return func(o *resolvedOptions) { o.clock = now }
}

// WithTransport registers the transport for one channel. A later call for
// the same channel replaces the earlier one. Channels without a transport
// are delivered to the structured log.
func WithTransport(channel Channel, t Transport) Option {
	return func(o *resolvedOptions) {
		if o.transports == nil {
			o.transports = make(map[Channel]Transport)
		}
		o.transports[channel] = t
	}
}

// WithMiddleware registers an outermost HTTP middleware.
// Multiple middlewares may be registered. Applied in registration order:
// the first-registered middleware is outermost (called first by every request).
func WithMiddleware(mw Middleware) Option {
	return func(o *resolvedOptions) { o.middlewares = append(o.middlewares, mw) }
}

// WithExtraMigrations adds an additional SQL migration filesystem to run after
// the embedded migrations. Filesystems are applied in registration order.
func WithExtraMigrations(dir fs.FS) Option {
	return func(o *resolvedOptions) { o.extraMigrations = append(o.extraMigrations, dir) }
}
