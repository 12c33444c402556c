// Package mcp implements the Model Context Protocol server for the relevance
// engine.
//
// The MCP server exposes the read side of the HTTP API through MCP tools,
// resources and prompts, so MCP-compatible agents can ask for trending
// knowledge, expert matches and graph paths without speaking HTTP.
package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	mcplib "github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/Alfred252525/Analytical-Fire-sub000/internal/ctxutil"
	"github.com/Alfred252525/Analytical-Fire-sub000/internal/graph"
	"github.com/Alfred252525/Analytical-Fire-sub000/internal/matching"
	"github.com/Alfred252525/Analytical-Fire-sub000/internal/model"
	"github.com/Alfred252525/Analytical-Fire-sub000/internal/service/feed"
	"github.com/Alfred252525/Analytical-Fire-sub000/internal/service/quality"
	"github.com/Alfred252525/Analytical-Fire-sub000/internal/storage"
)

// snapshotLimit caps the rows loaded into one engine call.
const snapshotLimit = 10_000

// Store is the read surface the tools need. *storage.DB implements it.
type Store interface {
	ListKnowledge(ctx context.Context, since time.Time, limit int) ([]model.KnowledgeEntry, error)
	GetKnowledge(ctx context.Context, id int64) (model.KnowledgeEntry, error)
	ListProblems(ctx context.Context, status model.ProblemStatus, limit int) ([]model.Problem, error)
	GetProblem(ctx context.Context, id int64) (model.Problem, error)
	LoadAgentProfile(ctx context.Context, agentID int64, limits storage.ProfileLimits) (model.AgentProfile, error)
	LoadAgentProfiles(ctx context.Context, ids []int64, limits storage.ProfileLimits) ([]model.AgentProfile, error)
}

// GraphSource returns a built graph for the given options. The HTTP server's
// graph cache implements it.
type GraphSource interface {
	Get(ctx context.Context, opts graph.Options) (*graph.Graph, model.ItemErrors, error)
}

// Deps holds the services the MCP server is built from.
type Deps struct {
	Store         Store
	Graphs        GraphSource
	GraphDefaults graph.Options
	Scorer        *quality.Scorer
	Matcher       *matching.Matcher
	Feed          *feed.Service
	Logger        *slog.Logger
	Version       string
}

// Server wraps the MCP server with the relevance engine's services.
type Server struct {
	mcpServer     *mcpserver.MCPServer
	store         Store
	graphs        GraphSource
	graphDefaults graph.Options
	scorer        *quality.Scorer
	matcher       *matching.Matcher
	feed          *feed.Service
	logger        *slog.Logger
}

// New creates and configures a new MCP server with all resources, tools and
// prompts registered.
func New(d Deps) *Server {
	s := &Server{
		store:         d.Store,
		graphs:        d.Graphs,
		graphDefaults: d.GraphDefaults,
		scorer:        d.Scorer,
		matcher:       d.Matcher,
		feed:          d.Feed,
		logger:        d.Logger,
	}

	version := d.Version
	if version == "" {
		version = "dev"
	}
	s.mcpServer = mcpserver.NewMCPServer(
		"relevance",
		version,
		mcpserver.WithResourceCapabilities(true, true),
		mcpserver.WithToolCapabilities(true),
		mcpserver.WithPromptCapabilities(true),
	)

	s.registerResources()
	s.registerTools()
	s.registerPrompts()

	return s
}

// MCPServer returns the underlying mcp-go server for transport setup.
func (s *Server) MCPServer() *mcpserver.MCPServer {
	return s.mcpServer
}

func (s *Server) now() time.Time { return s.scorer.Now() }

func (s *Server) profileLimits() storage.ProfileLimits {
	return storage.DefaultProfileLimits(s.now())
}

// batchResult is the tool payload for engine calls that may skip items.
type batchResult struct {
	Data        any      `json:"data"`
	FailedItems []string `json:"failed_items,omitempty"`
}

func jsonResult(v any) (*mcplib.CallToolResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("mcp: marshal result: %w", err)
	}
	return &mcplib.CallToolResult{
		Content: []mcplib.Content{
			mcplib.TextContent{Type: "text", Text: string(data)},
		},
	}, nil
}

func (s *Server) batch(ctx context.Context, tool string, v any, failed model.ItemErrors) (*mcplib.CallToolResult, error) {
	res := batchResult{Data: v}
	if len(failed) > 0 {
		res.FailedItems = make([]string, len(failed))
		for i, f := range failed {
			res.FailedItems[i] = f.ItemID
		}
		s.logger.WarnContext(ctx, "mcp: skipped invalid records", append(failed.LogAttrs(), "tool", tool)...)
	}
	return jsonResult(res)
}

func errorResult(msg string) *mcplib.CallToolResult {
	return &mcplib.CallToolResult{
		Content: []mcplib.Content{
			mcplib.TextContent{Type: "text", Text: msg},
		},
		IsError: true,
	}
}

// failure turns an engine or storage error into a tool error result.
// Unexpected errors are logged; the caller sees only the operation name.
func (s *Server) failure(ctx context.Context, op string, err error) *mcplib.CallToolResult {
	switch {
	case errors.Is(err, storage.ErrNotFound):
		return errorResult(op + ": not found")
	case errors.Is(err, model.ErrInvalidInput):
		return errorResult(err.Error())
	}
	s.logger.ErrorContext(ctx, "mcp: tool failed", "op", op, "error", err, "request_id", ctxutil.RequestIDFromContext(ctx))
	return errorResult(op + " failed")
}
