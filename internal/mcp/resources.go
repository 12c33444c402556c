package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	mcplib "github.com/mark3labs/mcp-go/mcp"

	"github.com/Alfred252525/Analytical-Fire-sub000/internal/graph"
	"github.com/Alfred252525/Analytical-Fire-sub000/internal/service/feed"
	"github.com/Alfred252525/Analytical-Fire-sub000/internal/service/quality"
)

const (
	uriGraphStats = "relevance://graph/stats"
	uriTrending   = "relevance://knowledge/trending"

	knowledgeURIPrefix   = "relevance://knowledge/"
	insightsURISuffix    = "/insights"
	uriKnowledgeInsights = knowledgeURIPrefix + "{id}" + insightsURISuffix
)

func (s *Server) registerResources() {
	// relevance://graph/stats: shape of the current knowledge graph.
	s.mcpServer.AddResource(
		mcplib.NewResource(
			uriGraphStats,
			"Knowledge Graph Stats",
			mcplib.WithResourceDescription("Node and edge counts, category distribution and top tags of the knowledge graph"),
			mcplib.WithMIMEType("application/json"),
		),
		s.handleGraphStats,
	)

	// relevance://knowledge/trending: the default 7-day trending list.
	s.mcpServer.AddResource(
		mcplib.NewResource(
			uriTrending,
			"Trending Knowledge",
			mcplib.WithResourceDescription("Knowledge entries trending over the last seven days"),
			mcplib.WithMIMEType("application/json"),
		),
		s.handleTrendingResource,
	)

	// relevance://knowledge/{id}/insights: quality breakdown for one entry.
	s.mcpServer.AddResourceTemplate(
		mcplib.NewResourceTemplate(
			uriKnowledgeInsights,
			"Knowledge Insights",
			mcplib.WithTemplateDescription("Quality score, tier and improvement suggestions for a knowledge entry"),
			mcplib.WithTemplateMIMEType("application/json"),
		),
		s.handleKnowledgeInsights,
	)
}

func jsonContents(uri string, v any) ([]mcplib.ResourceContents, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("mcp: marshal %s: %w", uri, err)
	}
	return []mcplib.ResourceContents{
		mcplib.TextResourceContents{
			URI:      uri,
			MIMEType: "application/json",
			Text:     string(data),
		},
	}, nil
}

func (s *Server) handleGraphStats(ctx context.Context, request mcplib.ReadResourceRequest) ([]mcplib.ResourceContents, error) {
	g, _, err := s.graphs.Get(ctx, s.graphDefaults)
	if err != nil {
		return nil, fmt.Errorf("mcp: graph stats: %w", err)
	}
	return jsonContents(request.Params.URI, g.Stats(graph.DefaultTopTags))
}

func (s *Server) handleTrendingResource(ctx context.Context, request mcplib.ReadResourceRequest) ([]mcplib.ResourceContents, error) {
	entries, err := s.store.ListKnowledge(ctx, s.now().Add(-feed.Week.Duration()), snapshotLimit)
	if err != nil {
		return nil, fmt.Errorf("mcp: trending: %w", err)
	}
	items, _ := s.feed.Trending(entries, feed.Week, feed.DefaultLimit)
	return jsonContents(request.Params.URI, items)
}

func (s *Server) handleKnowledgeInsights(ctx context.Context, request mcplib.ReadResourceRequest) ([]mcplib.ResourceContents, error) {
	uri := request.Params.URI
	id, err := parseInsightsURI(uri)
	if err != nil {
		return nil, err
	}
	entry, err := s.store.GetKnowledge(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("mcp: knowledge insights %d: %w", id, err)
	}
	return jsonContents(uri, quality.Explain(entry, s.now()))
}

// parseInsightsURI extracts the entry id from relevance://knowledge/{id}/insights.
func parseInsightsURI(uri string) (int64, error) {
	rest, ok := strings.CutPrefix(uri, knowledgeURIPrefix)
	if !ok {
		return 0, fmt.Errorf("mcp: invalid knowledge insights URI: %s", uri)
	}
	raw, ok := strings.CutSuffix(rest, insightsURISuffix)
	if !ok {
		return 0, fmt.Errorf("mcp: invalid knowledge insights URI: %s", uri)
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("mcp: invalid knowledge insights URI: %s", uri)
	}
	return id, nil
}
