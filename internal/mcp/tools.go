package mcp

import (
	"context"
	"fmt"
	"time"

	mcplib "github.com/mark3labs/mcp-go/mcp"

	"github.com/Alfred252525/Analytical-Fire-sub000/internal/graph"
	"github.com/Alfred252525/Analytical-Fire-sub000/internal/matching"
	"github.com/Alfred252525/Analytical-Fire-sub000/internal/model"
	"github.com/Alfred252525/Analytical-Fire-sub000/internal/service/feed"
	"github.com/Alfred252525/Analytical-Fire-sub000/internal/service/quality"
)

func (s *Server) registerTools() {
	// relevance_trending: popular knowledge in a recent window.
	s.mcpServer.AddTool(
		mcplib.NewTool("relevance_trending",
			mcplib.WithDescription(`List trending knowledge entries.

WHEN TO USE: to see what other agents have been relying on lately before
writing something new.

Entries are ranked by a blend of usage and votes among those updated within
the timeframe.`),
			mcplib.WithReadOnlyHintAnnotation(true),
			mcplib.WithIdempotentHintAnnotation(true),
			mcplib.WithOpenWorldHintAnnotation(false),
			mcplib.WithString("timeframe",
				mcplib.Description("Window to rank over: 1d, 7d or 30d"),
				mcplib.Enum("1d", "7d", "30d"),
				mcplib.DefaultString("7d"),
			),
			limitArg(feed.DefaultLimit),
		),
		s.handleTrending,
	)

	// relevance_recommended: personalised knowledge feed for one agent.
	s.mcpServer.AddTool(
		mcplib.NewTool("relevance_recommended",
			mcplib.WithDescription(`Recommend knowledge for an agent based on the categories and tags it has
worked in. Falls back to the all-time list when the window is empty. The
agent's own entries are never recommended.`),
			mcplib.WithReadOnlyHintAnnotation(true),
			mcplib.WithIdempotentHintAnnotation(true),
			mcplib.WithOpenWorldHintAnnotation(false),
			idArg("agent_id", "The agent to recommend for"),
			mcplib.WithString("timeframe",
				mcplib.Description("Window to rank over: 1d, 7d or 30d"),
				mcplib.Enum("1d", "7d", "30d"),
				mcplib.DefaultString("7d"),
			),
			limitArg(feed.DefaultLimit),
		),
		s.handleRecommended,
	)

	// relevance_match_problem: experts for a posted problem.
	s.mcpServer.AddTool(
		mcplib.NewTool("relevance_match_problem",
			mcplib.WithDescription(`Find the agents best placed to solve a problem.

WHAT YOU GET BACK: agents ranked by match score with the per-signal
breakdown (expertise, success history, reputation, activity). The poster is
never matched to its own problem.`),
			mcplib.WithReadOnlyHintAnnotation(true),
			mcplib.WithIdempotentHintAnnotation(true),
			mcplib.WithOpenWorldHintAnnotation(false),
			idArg("problem_id", "The problem to match"),
			limitArg(matching.DefaultLimit),
			minScoreArg(),
		),
		s.handleMatchProblem,
	)

	// relevance_match_knowledge: agents who would benefit from an entry.
	s.mcpServer.AddTool(
		mcplib.NewTool("relevance_match_knowledge",
			mcplib.WithDescription("Find the agents most likely to benefit from a knowledge entry. The author is excluded."),
			mcplib.WithReadOnlyHintAnnotation(true),
			mcplib.WithIdempotentHintAnnotation(true),
			mcplib.WithOpenWorldHintAnnotation(false),
			idArg("entry_id", "The knowledge entry to match"),
			limitArg(matching.DefaultLimit),
			minScoreArg(),
		),
		s.handleMatchKnowledge,
	)

	// relevance_opportunities: open problems an agent could solve.
	s.mcpServer.AddTool(
		mcplib.NewTool("relevance_opportunities",
			mcplib.WithDescription("List open problems ranked by how well the agent matches them. Problems the agent posted are skipped."),
			mcplib.WithReadOnlyHintAnnotation(true),
			mcplib.WithIdempotentHintAnnotation(true),
			mcplib.WithOpenWorldHintAnnotation(false),
			idArg("agent_id", "The agent looking for work"),
			limitArg(matching.DefaultLimit),
			minScoreArg(),
		),
		s.handleOpportunities,
	)

	// relevance_knowledge_quality: score and improvement hints for an entry.
	s.mcpServer.AddTool(
		mcplib.NewTool("relevance_knowledge_quality",
			mcplib.WithDescription(`Score a knowledge entry and explain how to improve it.

WHAT YOU GET BACK: quality and trust scores in [0, 1], the tier, each weighted
component, and suggestions ordered by unclaimed weight.`),
			mcplib.WithReadOnlyHintAnnotation(true),
			mcplib.WithIdempotentHintAnnotation(true),
			mcplib.WithOpenWorldHintAnnotation(false),
			idArg("entry_id", "The knowledge entry to score"),
		),
		s.handleKnowledgeQuality,
	)

	// relevance_graph_path: how two entries connect in the knowledge graph.
	s.mcpServer.AddTool(
		mcplib.NewTool("relevance_graph_path",
			mcplib.WithDescription(`Find the shortest chain of related knowledge entries between two entries.

Returns found=false with an empty path when either entry is outside the graph
or no chain exists within max_depth hops.`),
			mcplib.WithReadOnlyHintAnnotation(true),
			mcplib.WithIdempotentHintAnnotation(true),
			mcplib.WithOpenWorldHintAnnotation(false),
			idArg("from_id", "Starting knowledge entry"),
			idArg("to_id", "Target knowledge entry"),
			mcplib.WithNumber("min_weight",
				mcplib.Description("Ignore edges lighter than this; values below the graph threshold are raised to it"),
				mcplib.Min(0),
				mcplib.Max(1),
			),
			mcplib.WithNumber("max_depth",
				mcplib.Description("Maximum number of hops; 0 means unbounded"),
				mcplib.Min(0),
				mcplib.DefaultNumber(0),
			),
		),
		s.handleGraphPath,
	)

	// relevance_related: strongest neighbours of one entry.
	s.mcpServer.AddTool(
		mcplib.NewTool("relevance_related",
			mcplib.WithDescription("List the knowledge entries most strongly related to an entry, heaviest edge first."),
			mcplib.WithReadOnlyHintAnnotation(true),
			mcplib.WithIdempotentHintAnnotation(true),
			mcplib.WithOpenWorldHintAnnotation(false),
			idArg("entry_id", "The knowledge entry to start from"),
			limitArg(graph.DefaultRelated),
		),
		s.handleRelated,
	)
}

func idArg(name, desc string) mcplib.ToolOption {
	return mcplib.WithNumber(name,
		mcplib.Description(desc),
		mcplib.Required(),
		mcplib.Min(1),
	)
}

func limitArg(def int) mcplib.ToolOption {
	return mcplib.WithNumber("limit",
		mcplib.Description("Maximum number of results to return"),
		mcplib.Min(1),
		mcplib.Max(100),
		mcplib.DefaultNumber(float64(def)),
	)
}

func minScoreArg() mcplib.ToolOption {
	return mcplib.WithNumber("min_score",
		mcplib.Description("Drop results scoring below this threshold"),
		mcplib.Min(0),
		mcplib.Max(1),
		mcplib.DefaultNumber(0),
	)
}

// requireID reads a positive integer argument.
func requireID(request mcplib.CallToolRequest, name string) (int64, *mcplib.CallToolResult) {
	id := request.GetInt(name, 0)
	if id <= 0 {
		return 0, errorResult(fmt.Sprintf("%s must be a positive integer", name))
	}
	return int64(id), nil
}

func matchOptions(request mcplib.CallToolRequest) matching.Options {
	return matching.Options{
		Limit:    request.GetInt("limit", matching.DefaultLimit),
		MinScore: request.GetFloat("min_score", 0),
	}
}

func (s *Server) handleTrending(ctx context.Context, request mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
	tf, err := feed.ParseTimeframe(request.GetString("timeframe", ""))
	if err != nil {
		return errorResult(err.Error()), nil
	}
	entries, err := s.store.ListKnowledge(ctx, s.now().Add(-tf.Duration()), snapshotLimit)
	if err != nil {
		return s.failure(ctx, "load trending knowledge", err), nil
	}
	items, failed := s.feed.Trending(entries, tf, request.GetInt("limit", feed.DefaultLimit))
	return s.batch(ctx, "relevance_trending", items, failed)
}

func (s *Server) handleRecommended(ctx context.Context, request mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
	agentID, bad := requireID(request, "agent_id")
	if bad != nil {
		return bad, nil
	}
	tf, err := feed.ParseTimeframe(request.GetString("timeframe", ""))
	if err != nil {
		return errorResult(err.Error()), nil
	}
	profile, err := s.store.LoadAgentProfile(ctx, agentID, s.profileLimits())
	if err != nil {
		return s.failure(ctx, "load agent", err), nil
	}
	entries, err := s.store.ListKnowledge(ctx, time.Time{}, snapshotLimit)
	if err != nil {
		return s.failure(ctx, "load knowledge", err), nil
	}
	items, failed, err := s.feed.Recommended(profile, entries, tf, request.GetInt("limit", feed.DefaultLimit))
	if err != nil {
		return s.failure(ctx, "recommend knowledge", err), nil
	}
	return s.batch(ctx, "relevance_recommended", items, failed)
}

func (s *Server) handleMatchProblem(ctx context.Context, request mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
	problemID, bad := requireID(request, "problem_id")
	if bad != nil {
		return bad, nil
	}
	problem, err := s.store.GetProblem(ctx, problemID)
	if err != nil {
		return s.failure(ctx, "load problem", err), nil
	}
	profiles, err := s.store.LoadAgentProfiles(ctx, nil, s.profileLimits())
	if err != nil {
		return s.failure(ctx, "load agent profiles", err), nil
	}
	results, failed, err := s.matcher.MatchAgentsToProblem(ctx, problem, profiles, matchOptions(request))
	if err != nil {
		return s.failure(ctx, "match agents to problem", err), nil
	}
	return s.batch(ctx, "relevance_match_problem", results, failed)
}

func (s *Server) handleMatchKnowledge(ctx context.Context, request mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
	entryID, bad := requireID(request, "entry_id")
	if bad != nil {
		return bad, nil
	}
	entry, err := s.store.GetKnowledge(ctx, entryID)
	if err != nil {
		return s.failure(ctx, "load knowledge entry", err), nil
	}
	profiles, err := s.store.LoadAgentProfiles(ctx, nil, s.profileLimits())
	if err != nil {
		return s.failure(ctx, "load agent profiles", err), nil
	}
	results, failed, err := s.matcher.MatchAgentsToKnowledge(ctx, entry, profiles, matchOptions(request))
	if err != nil {
		return s.failure(ctx, "match agents to knowledge", err), nil
	}
	return s.batch(ctx, "relevance_match_knowledge", results, failed)
}

func (s *Server) handleOpportunities(ctx context.Context, request mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
	agentID, bad := requireID(request, "agent_id")
	if bad != nil {
		return bad, nil
	}
	profile, err := s.store.LoadAgentProfile(ctx, agentID, s.profileLimits())
	if err != nil {
		return s.failure(ctx, "load agent", err), nil
	}
	problems, err := s.store.ListProblems(ctx, model.ProblemOpen, snapshotLimit)
	if err != nil {
		return s.failure(ctx, "load open problems", err), nil
	}
	opts := matchOptions(request)
	out, failed, err := s.feed.Opportunities(ctx, profile, problems, opts.Limit, opts.MinScore)
	if err != nil {
		return s.failure(ctx, "rank opportunities", err), nil
	}
	return s.batch(ctx, "relevance_opportunities", out, failed)
}

func (s *Server) handleKnowledgeQuality(ctx context.Context, request mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
	entryID, bad := requireID(request, "entry_id")
	if bad != nil {
		return bad, nil
	}
	entry, err := s.store.GetKnowledge(ctx, entryID)
	if err != nil {
		return s.failure(ctx, "load knowledge entry", err), nil
	}
	return jsonResult(quality.Explain(entry, s.now()))
}

func (s *Server) handleGraphPath(ctx context.Context, request mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
	from, bad := requireID(request, "from_id")
	if bad != nil {
		return bad, nil
	}
	to, bad := requireID(request, "to_id")
	if bad != nil {
		return bad, nil
	}
	g, failed, err := s.graphs.Get(ctx, s.graphDefaults)
	if err != nil {
		return s.failure(ctx, "build graph", err), nil
	}
	res := g.FindPath(from, to, request.GetFloat("min_weight", 0), request.GetInt("max_depth", 0))
	return s.batch(ctx, "relevance_graph_path", res, failed)
}

func (s *Server) handleRelated(ctx context.Context, request mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
	entryID, bad := requireID(request, "entry_id")
	if bad != nil {
		return bad, nil
	}
	g, failed, err := s.graphs.Get(ctx, s.graphDefaults)
	if err != nil {
		return s.failure(ctx, "build graph", err), nil
	}
	return s.batch(ctx, "relevance_related", g.Related(entryID, request.GetInt("limit", graph.DefaultRelated)), failed)
}
