package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	mcpserver "github.com/mark3labs/mcp-go/server"
)

// Server is the relevance HTTP server.
type Server struct {
	httpServer *http.Server
	handler    http.Handler
	handlers   *Handlers
	logger     *slog.Logger
}

// Handler returns the root HTTP handler for use in tests.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// ServerConfig holds all dependencies and configuration for creating a Server.
// MCPServer is optional; without it /mcp is not mounted. Middlewares wrap the
// whole chain, first-registered outermost.
type ServerConfig struct {
	Handlers    HandlersDeps
	MCPServer   *mcpserver.MCPServer
	Middlewares []func(http.Handler) http.Handler

	// HTTP server settings.
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// New creates a new HTTP server with all routes configured.
func New(cfg ServerConfig) *Server {
	h := NewHandlers(cfg.Handlers)
	logger := cfg.Handlers.Logger

	mux := http.NewServeMux()

	// Quality.
	mux.HandleFunc("GET /v1/knowledge/{id}/quality", h.HandleQuality)
	mux.HandleFunc("GET /v1/knowledge/{id}/insights", h.HandleInsights)
	mux.HandleFunc("POST /v1/admin/quality/refresh", h.HandleQualityRefresh)

	// Knowledge graph.
	mux.HandleFunc("GET /v1/graph", h.HandleGraph)
	mux.HandleFunc("GET /v1/graph/stats", h.HandleGraphStats)
	mux.HandleFunc("GET /v1/graph/clusters", h.HandleGraphClusters)
	mux.HandleFunc("GET /v1/graph/central", h.HandleGraphCentral)
	mux.HandleFunc("GET /v1/graph/path", h.HandleGraphPath)
	mux.HandleFunc("GET /v1/graph/nodes/{id}/neighborhood", h.HandleNeighborhood)
	mux.HandleFunc("GET /v1/graph/nodes/{id}/related", h.HandleRelated)

	// Matching.
	mux.HandleFunc("GET /v1/problems/{id}/matches", h.HandleProblemMatches)
	mux.HandleFunc("GET /v1/knowledge/{id}/matches", h.HandleKnowledgeMatches)

	// Feeds.
	mux.HandleFunc("GET /v1/trending", h.HandleTrending)
	mux.HandleFunc("GET /v1/agents/{id}/recommended", h.HandleRecommended)
	mux.HandleFunc("GET /v1/agents/{id}/opportunities", h.HandleOpportunities)
	mux.HandleFunc("GET /v1/agents/{id}/smart-recommendations", h.HandleSmartRecommendations)

	// Notifications.
	mux.HandleFunc("POST /v1/agents/{id}/notifications/evaluate", h.HandleEvaluateNotifications)

	// MCP StreamableHTTP transport.
	if cfg.MCPServer != nil {
		mux.Handle("/mcp", mcpserver.NewStreamableHTTPServer(cfg.MCPServer))
	}

	mux.HandleFunc("GET /health", h.HandleHealth)
	mux.HandleFunc("GET /openapi.yaml", h.HandleOpenAPISpec)

	// Middleware chain (outermost executes first):
	// request ID → security headers → tracing → logging → recovery → handler.
	var handler http.Handler = mux
	handler = recoveryMiddleware(logger, handler)
	handler = loggingMiddleware(logger, handler)
	handler = tracingMiddleware(handler)
	handler = securityHeadersMiddleware(handler)
	handler = requestIDMiddleware(handler)
	for i := len(cfg.Middlewares) - 1; i >= 0; i-- {
		handler = cfg.Middlewares[i](handler)
	}

	return &Server{
		httpServer: &http.Server{
			Addr:              fmt.Sprintf(":%d", cfg.Port),
			Handler:           handler,
			ReadTimeout:       cfg.ReadTimeout,
			ReadHeaderTimeout: cfg.ReadTimeout,
			WriteTimeout:      cfg.WriteTimeout,
		},
		handler:  handler,
		handlers: h,
		logger:   logger,
	}
}

// Start begins serving HTTP requests.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("http server shutting down")
	return s.httpServer.Shutdown(ctx)
}
