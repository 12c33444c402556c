package server

import (
	"net/http"

	"github.com/Alfred252525/Analytical-Fire-sub000/internal/matching"
)

func matchOptions(r *http.Request) (matching.Options, error) {
	limit, err := queryInt(r, "limit", matching.DefaultLimit)
	if err != nil {
		return matching.Options{}, err
	}
	minScore, err := queryFloat(r, "min_score", 0)
	if err != nil {
		return matching.Options{}, err
	}
	return matching.Options{Limit: limit, MinScore: minScore}, nil
}

// HandleProblemMatches handles GET /v1/problems/{id}/matches.
func (h *Handlers) HandleProblemMatches(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		badRequest(w, r, err)
		return
	}
	opts, err := matchOptions(r)
	if err != nil {
		badRequest(w, r, err)
		return
	}
	ctx := r.Context()
	problem, err := h.store.GetProblem(ctx, id)
	if err != nil {
		h.writeStoreError(w, r, "problem", err)
		return
	}
	profiles, err := h.store.LoadAgentProfiles(ctx, nil, h.profileLimits())
	if err != nil {
		h.writeInternalError(w, r, "load agent profiles", err)
		return
	}
	results, failed, err := h.matcher.MatchAgentsToProblem(ctx, problem, profiles, opts)
	if err != nil {
		h.writeInternalError(w, r, "match agents to problem", err)
		return
	}
	h.writeBatch(w, r, results, failed)
}

// HandleKnowledgeMatches handles GET /v1/knowledge/{id}/matches.
func (h *Handlers) HandleKnowledgeMatches(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		badRequest(w, r, err)
		return
	}
	opts, err := matchOptions(r)
	if err != nil {
		badRequest(w, r, err)
		return
	}
	ctx := r.Context()
	entry, err := h.store.GetKnowledge(ctx, id)
	if err != nil {
		h.writeStoreError(w, r, "knowledge entry", err)
		return
	}
	profiles, err := h.store.LoadAgentProfiles(ctx, nil, h.profileLimits())
	if err != nil {
		h.writeInternalError(w, r, "load agent profiles", err)
		return
	}
	results, failed, err := h.matcher.MatchAgentsToKnowledge(ctx, entry, profiles, opts)
	if err != nil {
		h.writeInternalError(w, r, "match agents to knowledge", err)
		return
	}
	h.writeBatch(w, r, results, failed)
}
