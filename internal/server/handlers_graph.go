package server

import (
	"net/http"

	"github.com/Alfred252525/Analytical-Fire-sub000/internal/graph"
	"github.com/Alfred252525/Analytical-Fire-sub000/internal/model"
)

// graphFor returns the cached graph for the request's build options. On
// failure it has already written the response.
func (h *Handlers) graphFor(w http.ResponseWriter, r *http.Request) (*graph.Graph, model.ItemErrors, bool) {
	maxNodes, err := queryInt(r, "max_nodes", h.graphDefaults.MaxNodes)
	if err != nil {
		badRequest(w, r, err)
		return nil, nil, false
	}
	minScore, err := queryFloat(r, "min_score", h.graphDefaults.MinScore)
	if err != nil {
		badRequest(w, r, err)
		return nil, nil, false
	}
	g, failed, err := h.graphs.Get(r.Context(), graph.Options{MaxNodes: maxNodes, MinScore: minScore})
	if err != nil {
		h.writeInternalError(w, r, "build graph", err)
		return nil, nil, false
	}
	return g, failed, true
}

// HandleGraph handles GET /v1/graph.
func (h *Handlers) HandleGraph(w http.ResponseWriter, r *http.Request) {
	g, failed, ok := h.graphFor(w, r)
	if !ok {
		return
	}
	h.writeBatch(w, r, g.Payload(), failed)
}

// HandleGraphStats handles GET /v1/graph/stats.
func (h *Handlers) HandleGraphStats(w http.ResponseWriter, r *http.Request) {
	topTags, err := queryInt(r, "top_tags", graph.DefaultTopTags)
	if err != nil {
		badRequest(w, r, err)
		return
	}
	g, failed, ok := h.graphFor(w, r)
	if !ok {
		return
	}
	h.writeBatch(w, r, g.Stats(topTags), failed)
}

// HandleGraphClusters handles GET /v1/graph/clusters.
func (h *Handlers) HandleGraphClusters(w http.ResponseWriter, r *http.Request) {
	minSize, err := queryInt(r, "min_size", graph.DefaultMinClusterSize)
	if err != nil {
		badRequest(w, r, err)
		return
	}
	g, failed, ok := h.graphFor(w, r)
	if !ok {
		return
	}
	h.writeBatch(w, r, g.Clusters(minSize), failed)
}

// HandleGraphCentral handles GET /v1/graph/central.
func (h *Handlers) HandleGraphCentral(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit", graph.DefaultCentralNodes)
	if err != nil {
		badRequest(w, r, err)
		return
	}
	g, failed, ok := h.graphFor(w, r)
	if !ok {
		return
	}
	h.writeBatch(w, r, g.CentralNodes(limit), failed)
}

// HandleGraphPath handles GET /v1/graph/path?from=&to=. An unknown endpoint
// or unreachable target is a 200 with found=false.
func (h *Handlers) HandleGraphPath(w http.ResponseWriter, r *http.Request) {
	from, err := queryInt(r, "from", 0)
	if err != nil || from <= 0 {
		badRequest(w, r, errPositive("from"))
		return
	}
	to, err := queryInt(r, "to", 0)
	if err != nil || to <= 0 {
		badRequest(w, r, errPositive("to"))
		return
	}
	minWeight, err := queryFloat(r, "min_weight", 0)
	if err != nil {
		badRequest(w, r, err)
		return
	}
	maxDepth, err := queryInt(r, "max_depth", 0)
	if err != nil {
		badRequest(w, r, err)
		return
	}
	g, failed, ok := h.graphFor(w, r)
	if !ok {
		return
	}
	h.writeBatch(w, r, g.FindPath(int64(from), int64(to), minWeight, maxDepth), failed)
}

// HandleNeighborhood handles GET /v1/graph/nodes/{id}/neighborhood. A node
// outside the graph yields an empty payload.
func (h *Handlers) HandleNeighborhood(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		badRequest(w, r, err)
		return
	}
	depth, err := queryInt(r, "depth", graph.DefaultNeighborhood)
	if err != nil {
		badRequest(w, r, err)
		return
	}
	g, failed, ok := h.graphFor(w, r)
	if !ok {
		return
	}
	payload, _ := g.Neighborhood(id, depth)
	h.writeBatch(w, r, payload, failed)
}

// HandleRelated handles GET /v1/graph/nodes/{id}/related.
func (h *Handlers) HandleRelated(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		badRequest(w, r, err)
		return
	}
	limit, err := queryInt(r, "limit", graph.DefaultRelated)
	if err != nil {
		badRequest(w, r, err)
		return
	}
	g, failed, ok := h.graphFor(w, r)
	if !ok {
		return
	}
	h.writeBatch(w, r, g.Related(id, limit), failed)
}
