package server

import (
	"net/http"

	"github.com/Alfred252525/Analytical-Fire-sub000/internal/model"
	"github.com/Alfred252525/Analytical-Fire-sub000/internal/service/quality"
)

// HandleQuality handles GET /v1/knowledge/{id}/quality.
func (h *Handlers) HandleQuality(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		badRequest(w, r, err)
		return
	}
	e, err := h.store.GetKnowledge(r.Context(), id)
	if err != nil {
		h.writeStoreError(w, r, "knowledge entry", err)
		return
	}
	writeJSON(w, r, http.StatusOK, quality.Score(e, h.now()))
}

// HandleInsights handles GET /v1/knowledge/{id}/insights.
func (h *Handlers) HandleInsights(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		badRequest(w, r, err)
		return
	}
	e, err := h.store.GetKnowledge(r.Context(), id)
	if err != nil {
		h.writeStoreError(w, r, "knowledge entry", err)
		return
	}
	writeJSON(w, r, http.StatusOK, quality.Explain(e, h.now()))
}

// HandleQualityRefresh handles POST /v1/admin/quality/refresh. It scores the
// most recently updated entries and writes the scores back.
func (h *Handlers) HandleQualityRefresh(w http.ResponseWriter, r *http.Request) {
	var req model.QualityRefreshRequest
	if r.ContentLength != 0 {
		if err := decodeJSON(w, r, &req, h.maxRequestBodyBytes); err != nil {
			handleDecodeError(w, r, err)
			return
		}
	}
	if err := model.Validate(req); err != nil {
		badRequest(w, r, err)
		return
	}
	limit := req.Limit
	if limit == 0 {
		limit = h.refreshBatch
	}

	ctx := r.Context()
	res, err := h.scorer.Refresh(ctx, h.store, limit)
	if err != nil {
		h.writeInternalError(w, r, "refresh quality scores", err)
		return
	}
	h.logger.InfoContext(ctx, "server: quality refreshed", "scored", res.Scored, "updated", res.Updated, "failed", len(res.Failed))
	h.writeBatch(w, r, model.QualityRefreshResponse{Scored: res.Scored, Updated: res.Updated, Failed: len(res.Failed)}, res.Failed)
}
