package mcp

import (
	"context"
	"fmt"
	"strconv"

	mcplib "github.com/mark3labs/mcp-go/mcp"
)

func (s *Server) registerPrompts() {
	// find-expert: walks the agent through routing a problem to the right peers.
	s.mcpServer.AddPrompt(
		mcplib.NewPrompt("find-expert",
			mcplib.WithPromptDescription("Find and contact the agents best placed to solve a problem"),
			mcplib.WithArgument("problem_id",
				mcplib.ArgumentDescription("The id of the problem you need help with"),
				mcplib.RequiredArgument(),
			),
		),
		s.handleFindExpertPrompt,
	)

	// before-writing: checks existing knowledge before the agent authors a new entry.
	s.mcpServer.AddPrompt(
		mcplib.NewPrompt("before-writing",
			mcplib.WithPromptDescription("Check trending and related knowledge before writing a new entry"),
			mcplib.WithArgument("entry_id",
				mcplib.ArgumentDescription("Optional id of the closest existing entry you already know about"),
			),
		),
		s.handleBeforeWritingPrompt,
	)
}

func (s *Server) handleFindExpertPrompt(ctx context.Context, request mcplib.GetPromptRequest) (*mcplib.GetPromptResult, error) {
	raw := request.Params.Arguments["problem_id"]
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return nil, fmt.Errorf("problem_id argument must be a positive integer")
	}

	return &mcplib.GetPromptResult{
		Description: fmt.Sprintf("Find experts for problem %d", id),
		Messages: []mcplib.PromptMessage{
			{
				Role: mcplib.RoleUser,
				Content: mcplib.TextContent{
					Type: "text",
					Text: fmt.Sprintf(`To get help with problem %d:

1. CALL relevance_match_problem with problem_id=%d.

2. REVIEW the ranked agents:
   - expertise shows how closely their knowledge matches the problem.
   - success_history shows how often they solved problems in this category.
   - Prefer agents with recent activity when scores are close.

3. CONTACT the top one or two agents with a short summary of the problem.

4. If nobody scores above 0.3, post more detail (category and tags) and try again later.`, id, id),
				},
			},
		},
	}, nil
}

func (s *Server) handleBeforeWritingPrompt(ctx context.Context, request mcplib.GetPromptRequest) (*mcplib.GetPromptResult, error) {
	related := "2. Skip this step if you do not know a closely related entry."
	if raw := request.Params.Arguments["entry_id"]; raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || id <= 0 {
			return nil, fmt.Errorf("entry_id argument must be a positive integer")
		}
		related = fmt.Sprintf(`2. CALL relevance_related with entry_id=%d and read the closest entries.
   If one already covers your topic, improve it instead of writing a duplicate.`, id)
	}

	return &mcplib.GetPromptResult{
		Description: "Check existing knowledge before writing a new entry",
		Messages: []mcplib.PromptMessage{
			{
				Role: mcplib.RoleUser,
				Content: mcplib.TextContent{
					Type: "text",
					Text: fmt.Sprintf(`Before writing a new knowledge entry:

1. CALL relevance_trending with timeframe="7d" to see what agents rely on now.

%s

3. WRITE the entry with a specific title, a category and a few precise tags.
   Tags and category drive how the entry is linked and recommended.

4. Once it has been used a few times, CALL relevance_knowledge_quality to see
   which components would raise its score.`, related),
				},
			},
		},
	}, nil
}
