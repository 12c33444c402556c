// Package relevance is the public API for embedding the relevance and ranking
// engine host.
//
// Consumers import this package to construct and extend the server without
// forking it:
//
//	app, err := relevance.New(
//	    relevance.WithVersion(version),
//	    relevance.WithLogger(logger),
//	    relevance.WithTransport(relevance.ChannelWebhook, myWebhookSender),
//	)
//	if err != nil { ... }
//	if err := app.Run(ctx); err != nil { ... }
//
// The import graph enforces a strict no-cycle rule: relevance (root) imports
// internal/*, but internal/* never imports the root package. Public types
// (Notification, Channel) are standalone structs with no internal imports;
// conversion helpers live here because this is the only file that sees both
// sides of the boundary.
package relevance

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/joho/godotenv"

	"github.com/Alfred252525/Analytical-Fire-sub000/api"
	"github.com/Alfred252525/Analytical-Fire-sub000/internal/config"
	"github.com/Alfred252525/Analytical-Fire-sub000/internal/graph"
	"github.com/Alfred252525/Analytical-Fire-sub000/internal/matching"
	"github.com/Alfred252525/Analytical-Fire-sub000/internal/mcp"
	"github.com/Alfred252525/Analytical-Fire-sub000/internal/model"
	"github.com/Alfred252525/Analytical-Fire-sub000/internal/notify"
	"github.com/Alfred252525/Analytical-Fire-sub000/internal/ratelimit"
	"github.com/Alfred252525/Analytical-Fire-sub000/internal/server"
	"github.com/Alfred252525/Analytical-Fire-sub000/internal/service/feed"
	"github.com/Alfred252525/Analytical-Fire-sub000/internal/service/quality"
	"github.com/Alfred252525/Analytical-Fire-sub000/internal/storage"
	"github.com/Alfred252525/Analytical-Fire-sub000/internal/telemetry"
	"github.com/Alfred252525/Analytical-Fire-sub000/migrations"
)

// snapshotLimit caps the knowledge rows loaded into one graph build.
const snapshotLimit = 10_000

// redisKeyPrefix namespaces the notification budget keys in a shared Redis.
const redisKeyPrefix = "relevance:notify:"

// App is the relevance server lifecycle. Construct with New(), run with Run().
// App has no public fields; use New() options to configure it.
type App struct {
	cfg          config.Config
	db           *storage.DB
	srv          *server.Server
	watcher      *server.Watcher
	limiter      ratelimit.WindowLimiter
	scorer       *quality.Scorer
	otelShutdown telemetry.Shutdown
	logger       *slog.Logger
	version      string
}

// New initialises the server. It connects to the database, runs migrations,
// wires all subsystems, and returns a ready-to-run App.
// It does NOT start any goroutines or accept HTTP connections; call Run().
func New(opts ...Option) (*App, error) {
	o := resolvedOptions{}
	for _, fn := range opts {
		fn(&o)
	}

	logger := o.logger
	if logger == nil {
		logger = slog.Default()
	}

	// Load .env file if present (non-fatal; production won't have one).
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	applyOverrides(&cfg, o)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	version := o.version
	if version == "" {
		version = "dev"
	}

	logger.Info("relevance starting", "version", version, "port", cfg.Port, "limiter", cfg.LimiterBackend)

	ctx := context.Background()
	otelShutdown, err := telemetry.Init(ctx, telemetry.Settings{
		Endpoint:    cfg.OTELEndpoint,
		ServiceName: cfg.ServiceName,
		Version:     version,
		Insecure:    cfg.OTELInsecure,
	})
	if err != nil {
		return nil, fmt.Errorf("telemetry: %w", err)
	}

	db, err := storage.New(ctx, cfg.DatabaseURL, cfg.NotifyURL, logger)
	if err != nil {
		_ = otelShutdown(ctx)
		return nil, fmt.Errorf("storage: %w", err)
	}
	fail := func(err error) (*App, error) {
		db.Close(ctx)
		_ = otelShutdown(ctx)
		return nil, err
	}

	if cfg.SkipMigrations {
		logger.Info("embedded migrations skipped by config")
	} else if err := db.RunMigrations(ctx, migrations.FS); err != nil {
		return fail(fmt.Errorf("migrations: %w", err))
	}
	for i, extraFS := range o.extraMigrations {
		if err := db.RunMigrations(ctx, extraFS); err != nil {
			return fail(fmt.Errorf("extra migrations[%d]: %w", i, err))
		}
	}

	// Verify critical tables exist after migration.
	var schemaOK bool
	if err := db.Pool().QueryRow(ctx,
		`SELECT EXISTS (SELECT FROM information_schema.tables WHERE table_schema = 'public' AND table_name = 'knowledge_entries')`,
	).Scan(&schemaOK); err != nil {
		return fail(fmt.Errorf("schema verification: %w", err))
	}
	if !schemaOK {
		return fail(errors.New("critical table 'knowledge_entries' does not exist; run migrations or unset RELEVANCE_SKIP_MIGRATIONS"))
	}

	limiter, err := newWindowLimiter(ctx, cfg)
	if err != nil {
		return fail(fmt.Errorf("limiter: %w", err))
	}

	// Engine services share one clock so every score in a response agrees.
	clock := o.clock
	if clock == nil {
		clock = time.Now
	}
	scorer := quality.NewScorer(logger, cfg.Workers).WithClock(clock)
	builder := graph.NewBuilder(logger, cfg.Workers).WithClock(clock)
	matcher := matching.NewMatcher(logger, cfg.Workers).WithClock(clock)
	feedSvc := feed.New(matcher, logger).WithClock(clock)
	filter := notify.NewFilter(limiter, cfg.NotificationWindow, logger).WithClock(clock)
	dispatcher := notify.NewDispatcher(transports(o.transports, logger), logger)

	knowledgeWindow := cfg.KnowledgeWindow
	graphs := server.NewGraphCache(builder, func(ctx context.Context) ([]model.KnowledgeEntry, error) {
		var since time.Time
		if knowledgeWindow > 0 {
			since = clock().Add(-knowledgeWindow)
		}
		return db.ListKnowledge(ctx, since, snapshotLimit)
	}, cfg.GraphCacheTTL, logger)
	graphDefaults := graph.Options{MaxNodes: cfg.GraphMaxNodes, MinScore: cfg.GraphMinScore}

	mcpSrv := mcp.New(mcp.Deps{
		Store:         db,
		Graphs:        graphs,
		GraphDefaults: graphDefaults,
		Scorer:        scorer,
		Matcher:       matcher,
		Feed:          feedSvc,
		Logger:        logger,
		Version:       version,
	})

	middlewares := make([]func(http.Handler) http.Handler, len(o.middlewares))
	for i, mw := range o.middlewares {
		middlewares[i] = mw
	}

	srv := server.New(server.ServerConfig{
		Handlers: server.HandlersDeps{
			Store:               db,
			Scorer:              scorer,
			Graphs:              graphs,
			GraphDefaults:       graphDefaults,
			Matcher:             matcher,
			Feed:                feedSvc,
			Filter:              filter,
			Dispatcher:          dispatcher,
			KnowledgeWindow:     cfg.KnowledgeWindow,
			RefreshBatch:        cfg.QualityRefreshBatch,
			LimiterBackend:      cfg.LimiterBackend,
			Logger:              logger,
			Version:             version,
			MaxRequestBodyBytes: cfg.MaxRequestBodyBytes,
			OpenAPISpec:         api.OpenAPISpec,
		},
		MCPServer:    mcpSrv.MCPServer(),
		Middlewares:  middlewares,
		Port:         cfg.Port,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	})

	return &App{
		cfg:          cfg,
		db:           db,
		srv:          srv,
		watcher:      server.NewWatcher(db, graphs, logger),
		limiter:      limiter,
		scorer:       scorer,
		otelShutdown: otelShutdown,
		logger:       logger,
		version:      version,
	}, nil
}

func applyOverrides(cfg *config.Config, o resolvedOptions) {
	if o.port != 0 {
		cfg.Port = o.port
	}
	if o.databaseURL != "" {
		// The notify connection follows the pool unless set separately.
		if cfg.NotifyURL == cfg.DatabaseURL {
			cfg.NotifyURL = o.databaseURL
		}
		cfg.DatabaseURL = o.databaseURL
	}
	if o.notifyURL != "" {
		cfg.NotifyURL = o.notifyURL
	}
	if o.limiterBackend != "" {
		cfg.LimiterBackend = o.limiterBackend
	}
	if o.redisURL != "" {
		cfg.RedisURL = o.redisURL
	}
}

// newWindowLimiter builds the notification rate gate selected by config.
func newWindowLimiter(ctx context.Context, cfg config.Config) (ratelimit.WindowLimiter, error) {
	switch cfg.LimiterBackend {
	case config.LimiterRedis:
		return ratelimit.DialRedisWindowLimiter(ctx, cfg.RedisURL, redisKeyPrefix)
	case config.LimiterNoop:
		return ratelimit.NoopWindowLimiter{}, nil
	default:
		return ratelimit.NewMemoryWindowLimiter(), nil
	}
}

// transports maps every channel to its configured transport, falling back to
// the structured log.
func transports(custom map[Channel]Transport, logger *slog.Logger) map[model.Channel]notify.Transport {
	out := map[model.Channel]notify.Transport{}
	for _, ch := range []model.Channel{model.ChannelPush, model.ChannelEmail, model.ChannelWebhook} {
		out[ch] = notify.LogTransport{Logger: logger}
	}
	for ch, t := range custom {
		out[model.Channel(ch)] = transportAdapter{t: t}
	}
	return out
}

// transportAdapter bridges a public Transport to the dispatcher.
type transportAdapter struct {
	t Transport
}

func (a transportAdapter) Send(ctx context.Context, channel model.Channel, n model.Notification, _ model.NotificationPreference) error {
	return a.t.Deliver(ctx, Channel(channel), toPublicNotification(n))
}

// toPublicNotification converts the internal notification to the public view.
func toPublicNotification(n model.Notification) Notification {
	var tags []string
	if len(n.Tags) > 0 {
		tags = append([]string(nil), n.Tags...)
	}
	return Notification{
		ID:         n.ID,
		AgentID:    n.AgentID,
		Type:       n.Type,
		Title:      n.Title,
		Body:       n.Body,
		EntityType: n.EntityType,
		EntityID:   n.EntityID,
		Priority:   string(n.Priority),
		Category:   n.Category,
		Tags:       tags,
		CreatedAt:  n.CreatedAt,
	}
}

// Run starts the background goroutines and the HTTP server, then blocks until
// ctx is cancelled or a fatal server error occurs. On return, Shutdown is
// called automatically; callers should not call Shutdown separately.
func (a *App) Run(ctx context.Context) error {
	go a.watcher.Start(ctx)
	if a.cfg.QualityRefreshInterval > 0 {
		go a.qualityRefreshLoop(ctx)
	}

	errCh := make(chan error, 1)
	go func() {
		if err := a.srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	var runErr error
	select {
	case <-ctx.Done():
	case runErr = <-errCh:
	}

	if err := a.Shutdown(context.Background()); err != nil && runErr == nil {
		runErr = err
	}
	return runErr
}

// Shutdown drains in-flight HTTP requests, then closes the limiter, the
// database pool and the OTEL providers.
func (a *App) Shutdown(ctx context.Context) error {
	a.logger.Info("relevance shutting down")

	httpCtx, httpCancel := contextWithOptionalTimeout(ctx, a.cfg.ShutdownTimeout)
	httpErr := a.srv.Shutdown(httpCtx)
	httpCancel()
	if httpErr != nil {
		a.logger.Error("http shutdown error", "error", httpErr)
	}

	if err := a.limiter.Close(); err != nil {
		a.logger.Warn("limiter close error", "error", err)
	}
	if err := a.otelShutdown(context.Background()); err != nil {
		a.logger.Warn("telemetry shutdown error", "error", err)
	}
	a.db.Close(context.Background())

	a.logger.Info("relevance stopped")
	return httpErr
}

// qualityRefreshLoop periodically writes fresh quality scores back to the
// knowledge table.
func (a *App) qualityRefreshLoop(ctx context.Context) {
	ticker := time.NewTicker(a.cfg.QualityRefreshInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			res, err := a.scorer.Refresh(ctx, a.db, a.cfg.QualityRefreshBatch)
			if err != nil {
				if ctx.Err() == nil {
					a.logger.Warn("quality refresh failed", "error", err)
				}
				continue
			}
			a.logger.Info("quality refresh complete",
				"scored", res.Scored, "updated", res.Updated, "failed", len(res.Failed))
		}
	}
}

func contextWithOptionalTimeout(parent context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return context.WithCancel(parent)
	}
	return context.WithTimeout(parent, timeout)
}
