package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/Alfred252525/Analytical-Fire-sub000/internal/ctxutil"
	"github.com/Alfred252525/Analytical-Fire-sub000/internal/graph"
	"github.com/Alfred252525/Analytical-Fire-sub000/internal/matching"
	"github.com/Alfred252525/Analytical-Fire-sub000/internal/model"
	"github.com/Alfred252525/Analytical-Fire-sub000/internal/notify"
	"github.com/Alfred252525/Analytical-Fire-sub000/internal/service/feed"
	"github.com/Alfred252525/Analytical-Fire-sub000/internal/service/quality"
	"github.com/Alfred252525/Analytical-Fire-sub000/internal/storage"
)

// snapshotLimit caps the rows loaded into one engine call.
const snapshotLimit = 10_000

// Store is the read surface the handlers need. *storage.DB implements it.
type Store interface {
	Ping(ctx context.Context) error
	ListKnowledge(ctx context.Context, since time.Time, limit int) ([]model.KnowledgeEntry, error)
	GetKnowledge(ctx context.Context, id int64) (model.KnowledgeEntry, error)
	ListProblems(ctx context.Context, status model.ProblemStatus, limit int) ([]model.Problem, error)
	GetProblem(ctx context.Context, id int64) (model.Problem, error)
	LoadAgentProfile(ctx context.Context, agentID int64, limits storage.ProfileLimits) (model.AgentProfile, error)
	LoadAgentProfiles(ctx context.Context, ids []int64, limits storage.ProfileLimits) ([]model.AgentProfile, error)
	GetNotificationPreference(ctx context.Context, agentID int64) (model.NotificationPreference, error)
	UpdateQualityScores(ctx context.Context, scores map[int64]float64, scoredAt time.Time) (int64, error)
	RecordNotification(ctx context.Context, r storage.NotificationRecord) (bool, error)
	UpdateNotificationStatus(ctx context.Context, id uuid.UUID, status string) error
}

// Handlers holds HTTP handler dependencies.
type Handlers struct {
	store               Store
	scorer              *quality.Scorer
	graphs              *GraphCache
	graphDefaults       graph.Options
	matcher             *matching.Matcher
	feed                *feed.Service
	filter              *notify.Filter
	dispatcher          *notify.Dispatcher
	knowledgeWindow     time.Duration
	refreshBatch        int
	limiterBackend      string
	logger              *slog.Logger
	startedAt           time.Time
	version             string
	maxRequestBodyBytes int64
	openapiSpec         []byte
}

// HandlersDeps holds all dependencies for constructing Handlers.
// Dispatcher is optional; without it evaluate never dispatches.
// OpenAPISpec is optional; without it /openapi.yaml answers 404.
type HandlersDeps struct {
	Store               Store
	Scorer              *quality.Scorer
	Graphs              *GraphCache
	GraphDefaults       graph.Options
	Matcher             *matching.Matcher
	Feed                *feed.Service
	Filter              *notify.Filter
	Dispatcher          *notify.Dispatcher
	KnowledgeWindow     time.Duration
	RefreshBatch        int
	LimiterBackend      string
	Logger              *slog.Logger
	Version             string
	MaxRequestBodyBytes int64
	OpenAPISpec         []byte
}

// NewHandlers creates a new Handlers with all dependencies.
func NewHandlers(d HandlersDeps) *Handlers {
	return &Handlers{
		store:               d.Store,
		scorer:              d.Scorer,
		graphs:              d.Graphs,
		graphDefaults:       d.GraphDefaults,
		matcher:             d.Matcher,
		feed:                d.Feed,
		filter:              d.Filter,
		dispatcher:          d.Dispatcher,
		knowledgeWindow:     d.KnowledgeWindow,
		refreshBatch:        d.RefreshBatch,
		limiterBackend:      d.LimiterBackend,
		logger:              d.Logger,
		startedAt:           time.Now(),
		version:             d.Version,
		maxRequestBodyBytes: d.MaxRequestBodyBytes,
		openapiSpec:         d.OpenAPISpec,
	}
}

// HandleHealth handles GET /health.
func (h *Handlers) HandleHealth(w http.ResponseWriter, r *http.Request) {
	resp := model.HealthResponse{
		Status:   "healthy",
		Version:  h.version,
		Postgres: "connected",
		Limiter:  h.limiterBackend,
		Uptime:   int64(time.Since(h.startedAt).Seconds()),
	}
	status := http.StatusOK
	if err := h.store.Ping(r.Context()); err != nil {
		resp.Status = "unhealthy"
		resp.Postgres = "disconnected"
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, r, status, resp)
}

// HandleOpenAPISpec serves the embedded OpenAPI specification.
func (h *Handlers) HandleOpenAPISpec(w http.ResponseWriter, r *http.Request) {
	if len(h.openapiSpec) == 0 {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "application/yaml")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(h.openapiSpec)
}

// now is the engine clock shared by every service.
func (h *Handlers) now() time.Time { return h.scorer.Now() }

// knowledgeSnapshot loads the entries updated within the knowledge window.
func (h *Handlers) knowledgeSnapshot(ctx context.Context) ([]model.KnowledgeEntry, error) {
	var since time.Time
	if h.knowledgeWindow > 0 {
		since = h.now().Add(-h.knowledgeWindow)
	}
	return h.store.ListKnowledge(ctx, since, snapshotLimit)
}

func (h *Handlers) profileLimits() storage.ProfileLimits {
	return storage.DefaultProfileLimits(h.now())
}

// writeStoreError maps a storage failure to a response.
func (h *Handlers) writeStoreError(w http.ResponseWriter, r *http.Request, what string, err error) {
	if errors.Is(err, storage.ErrNotFound) {
		writeError(w, r, http.StatusNotFound, model.ErrCodeNotFound, what+" not found")
		return
	}
	h.writeInternalError(w, r, "load "+what, err)
}

func (h *Handlers) writeInternalError(w http.ResponseWriter, r *http.Request, op string, err error) {
	if errors.Is(err, model.ErrInvalidInput) {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeInvalidInput, err.Error())
		return
	}
	if r.Context().Err() != nil {
		writeError(w, r, http.StatusServiceUnavailable, model.ErrCodeUnavailable, "request cancelled")
		return
	}
	h.logger.ErrorContext(r.Context(), "server: "+op, "error", err, "request_id", ctxutil.RequestIDFromContext(r.Context()))
	writeError(w, r, http.StatusInternalServerError, model.ErrCodeInternalError, "internal error")
}

// writeBatch writes data and lists skipped items in the response metadata.
func (h *Handlers) writeBatch(w http.ResponseWriter, r *http.Request, data any, failed model.ItemErrors) {
	meta := newMeta(r)
	if len(failed) > 0 {
		meta.FailedItems = make([]string, len(failed))
		for i, f := range failed {
			meta.FailedItems[i] = f.ItemID
		}
		h.logger.WarnContext(r.Context(), "server: skipped invalid records",
			append(failed.LogAttrs(), "path", r.URL.Path)...)
	}
	writeJSONMeta(w, r, http.StatusOK, data, meta)
}

// pathID parses a positive integer path value.
func pathID(r *http.Request, name string) (int64, error) {
	id, err := strconv.ParseInt(r.PathValue(name), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%s must be a positive integer", name)
	}
	return id, nil
}

// queryInt parses an integer query parameter, returning def when absent.
func queryInt(r *http.Request, key string, def int) (int, error) {
	s := r.URL.Query().Get(key)
	if s == "" {
		return def, nil
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer", key)
	}
	return v, nil
}

// queryFloat parses a finite float query parameter, returning def when absent.
func queryFloat(r *http.Request, key string, def float64) (float64, error) {
	s := r.URL.Query().Get(key)
	if s == "" {
		return def, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("%s must be a number", key)
	}
	return v, nil
}

func badRequest(w http.ResponseWriter, r *http.Request, err error) {
	writeError(w, r, http.StatusBadRequest, model.ErrCodeInvalidInput, err.Error())
}

func errPositive(key string) error {
	return fmt.Errorf("%s must be a positive integer", key)
}
