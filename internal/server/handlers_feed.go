package server

import (
	"net/http"
	"time"

	"github.com/Alfred252525/Analytical-Fire-sub000/internal/model"
	"github.com/Alfred252525/Analytical-Fire-sub000/internal/service/feed"
)

// HandleTrending handles GET /v1/trending.
func (h *Handlers) HandleTrending(w http.ResponseWriter, r *http.Request) {
	tf, err := feed.ParseTimeframe(r.URL.Query().Get("timeframe"))
	if err != nil {
		badRequest(w, r, err)
		return
	}
	limit, err := queryInt(r, "limit", feed.DefaultLimit)
	if err != nil {
		badRequest(w, r, err)
		return
	}
	entries, err := h.store.ListKnowledge(r.Context(), h.now().Add(-tf.Duration()), snapshotLimit)
	if err != nil {
		h.writeInternalError(w, r, "load trending knowledge", err)
		return
	}
	items, failed := h.feed.Trending(entries, tf, limit)
	h.writeBatch(w, r, items, failed)
}

// agentProfile loads the profile named by the {id} path value. On failure it
// has already written the response.
func (h *Handlers) agentProfile(w http.ResponseWriter, r *http.Request) (model.AgentProfile, bool) {
	id, err := pathID(r, "id")
	if err != nil {
		badRequest(w, r, err)
		return model.AgentProfile{}, false
	}
	profile, err := h.store.LoadAgentProfile(r.Context(), id, h.profileLimits())
	if err != nil {
		h.writeStoreError(w, r, "agent", err)
		return model.AgentProfile{}, false
	}
	return profile, true
}

// HandleRecommended handles GET /v1/agents/{id}/recommended. The all-time
// fallback draws from the whole knowledge window, so the snapshot is not
// limited to the timeframe.
func (h *Handlers) HandleRecommended(w http.ResponseWriter, r *http.Request) {
	tf, err := feed.ParseTimeframe(r.URL.Query().Get("timeframe"))
	if err != nil {
		badRequest(w, r, err)
		return
	}
	limit, err := queryInt(r, "limit", feed.DefaultLimit)
	if err != nil {
		badRequest(w, r, err)
		return
	}
	profile, ok := h.agentProfile(w, r)
	if !ok {
		return
	}
	entries, err := h.store.ListKnowledge(r.Context(), time.Time{}, snapshotLimit)
	if err != nil {
		h.writeInternalError(w, r, "load knowledge", err)
		return
	}
	items, failed, err := h.feed.Recommended(profile, entries, tf, limit)
	if err != nil {
		h.writeInternalError(w, r, "recommend knowledge", err)
		return
	}
	h.writeBatch(w, r, items, failed)
}

// HandleOpportunities handles GET /v1/agents/{id}/opportunities.
func (h *Handlers) HandleOpportunities(w http.ResponseWriter, r *http.Request) {
	opts, err := matchOptions(r)
	if err != nil {
		badRequest(w, r, err)
		return
	}
	profile, ok := h.agentProfile(w, r)
	if !ok {
		return
	}
	problems, err := h.store.ListProblems(r.Context(), model.ProblemOpen, snapshotLimit)
	if err != nil {
		h.writeInternalError(w, r, "load open problems", err)
		return
	}
	out, failed, err := h.feed.Opportunities(r.Context(), profile, problems, opts.Limit, opts.MinScore)
	if err != nil {
		h.writeInternalError(w, r, "rank opportunities", err)
		return
	}
	h.writeBatch(w, r, out, failed)
}

// HandleSmartRecommendations handles GET /v1/agents/{id}/smart-recommendations.
func (h *Handlers) HandleSmartRecommendations(w http.ResponseWriter, r *http.Request) {
	opts, err := matchOptions(r)
	if err != nil {
		badRequest(w, r, err)
		return
	}
	profile, ok := h.agentProfile(w, r)
	if !ok {
		return
	}
	entries, err := h.knowledgeSnapshot(r.Context())
	if err != nil {
		h.writeInternalError(w, r, "load knowledge", err)
		return
	}
	out, failed, err := h.feed.SmartRecommendations(r.Context(), profile, entries, opts.Limit, opts.MinScore)
	if err != nil {
		h.writeInternalError(w, r, "rank knowledge", err)
		return
	}
	h.writeBatch(w, r, out, failed)
}
