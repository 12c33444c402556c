package relevance

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockServer creates an httptest server that mimics the relevance API.
func mockServer(t *testing.T, handlers map[string]http.HandlerFunc) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	for pattern, handler := range handlers {
		mux.HandleFunc(pattern, handler)
	}
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func envelope(data any) map[string]any {
	return map[string]any{
		"data": data,
		"meta": map[string]any{"request_id": "req-1", "timestamp": time.Now().UTC()},
	}
}

func newTestClient(t *testing.T, serverURL string) *Client {
	t.Helper()
	c, err := NewClient(Config{BaseURL: serverURL, Timeout: 5 * time.Second})
	require.NoError(t, err)
	return c
}

func TestNewClientValidation(t *testing.T) {
	_, err := NewClient(Config{})
	assert.Error(t, err)

	_, err = NewClient(Config{BaseURL: "not a url"})
	assert.Error(t, err)

	c, err := NewClient(Config{BaseURL: "http://localhost:8080/"})
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:8080", c.baseURL)
}

func TestHealth(t *testing.T) {
	srv := mockServer(t, map[string]http.HandlerFunc{
		"GET /health": func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, envelope(Health{Status: "healthy", Version: "1.2.3", Postgres: "connected"}))
		},
	})

	h, err := newTestClient(t, srv.URL).Health(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "healthy", h.Status)
	assert.Equal(t, "1.2.3", h.Version)
}

func TestQualityUnwrapsEnvelope(t *testing.T) {
	srv := mockServer(t, map[string]http.HandlerFunc{
		"GET /v1/knowledge/{id}/quality": func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "42", r.PathValue("id"))
			writeJSON(w, http.StatusOK, envelope(Quality{EntryID: 42, QualityScore: 0.73}))
		},
	})

	q, err := newTestClient(t, srv.URL).Quality(context.Background(), 42)
	require.NoError(t, err)
	assert.Equal(t, int64(42), q.EntryID)
	assert.InDelta(t, 0.73, q.QualityScore, 1e-9)
}

func TestRefreshQualitySendsLimit(t *testing.T) {
	srv := mockServer(t, map[string]http.HandlerFunc{
		"POST /v1/admin/quality/refresh": func(w http.ResponseWriter, r *http.Request) {
			var body map[string]int
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			assert.Equal(t, 25, body["limit"])
			writeJSON(w, http.StatusOK, envelope(RefreshResult{Scored: 25, Updated: 24}))
		},
	})

	res, err := newTestClient(t, srv.URL).RefreshQuality(context.Background(), 25)
	require.NoError(t, err)
	assert.Equal(t, 25, res.Scored)
	assert.Equal(t, int64(24), res.Updated)
}

func TestFindPathEncodesQuery(t *testing.T) {
	srv := mockServer(t, map[string]http.HandlerFunc{
		"GET /v1/graph/path": func(w http.ResponseWriter, r *http.Request) {
			q := r.URL.Query()
			assert.Equal(t, "1", q.Get("from"))
			assert.Equal(t, "9", q.Get("to"))
			assert.Equal(t, "0.5", q.Get("min_weight"))
			assert.Equal(t, "4", q.Get("max_depth"))
			assert.Equal(t, "200", q.Get("max_nodes"))
			assert.Empty(t, q.Get("min_score"))
			writeJSON(w, http.StatusOK, envelope(Path{From: 1, To: 9, Found: true, Path: []int64{1, 5, 9}, PathLength: 2}))
		},
	})

	p, err := newTestClient(t, srv.URL).FindPath(context.Background(), 1, 9, PathOptions{
		GraphOptions: GraphOptions{MaxNodes: 200},
		MinWeight:    0.5,
		MaxDepth:     4,
	})
	require.NoError(t, err)
	assert.True(t, p.Found)
	assert.Equal(t, []int64{1, 5, 9}, p.Path)
}

func TestGraphOmitsZeroOptions(t *testing.T) {
	srv := mockServer(t, map[string]http.HandlerFunc{
		"GET /v1/graph": func(w http.ResponseWriter, r *http.Request) {
			assert.Empty(t, r.URL.RawQuery)
			writeJSON(w, http.StatusOK, envelope(Graph{
				Nodes: []GraphNode{{ID: 1}, {ID: 2}},
				Edges: []GraphEdge{{SourceID: 1, TargetID: 2, Weight: 0.4}},
			}))
		},
	})

	g, err := newTestClient(t, srv.URL).Graph(context.Background(), GraphOptions{})
	require.NoError(t, err)
	assert.Len(t, g.Nodes, 2)
	assert.Len(t, g.Edges, 1)
}

func TestMatchProblem(t *testing.T) {
	srv := mockServer(t, map[string]http.HandlerFunc{
		"GET /v1/problems/{id}/matches": func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "7", r.PathValue("id"))
			assert.Equal(t, "3", r.URL.Query().Get("limit"))
			assert.Equal(t, "0.2", r.URL.Query().Get("min_score"))
			writeJSON(w, http.StatusOK, envelope([]Match{
				{AgentID: 11, TargetID: 7, TargetKind: "problem", MatchScore: 0.8},
			}))
		},
	})

	matches, err := newTestClient(t, srv.URL).MatchProblem(context.Background(), 7, MatchOptions{Limit: 3, MinScore: 0.2})
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, int64(11), matches[0].AgentID)
}

func TestTrendingDefaultsTimeframe(t *testing.T) {
	srv := mockServer(t, map[string]http.HandlerFunc{
		"GET /v1/trending": func(w http.ResponseWriter, r *http.Request) {
			assert.False(t, r.URL.Query().Has("timeframe"))
			writeJSON(w, http.StatusOK, envelope([]FeedItem{{Entry: KnowledgeEntry{ID: 3}, TrendingScore: 12}}))
		},
	})

	items, err := newTestClient(t, srv.URL).Trending(context.Background(), "", 0)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, int64(12), items[0].TrendingScore)
}

func TestEvaluateNotificationsReturnsMeta(t *testing.T) {
	id := uuid.New()
	srv := mockServer(t, map[string]http.HandlerFunc{
		"POST /v1/agents/{id}/notifications/evaluate": func(w http.ResponseWriter, r *http.Request) {
			var body evaluateBody
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			assert.True(t, body.Dispatch)
			require.Len(t, body.Notifications, 1)
			writeJSON(w, http.StatusOK, map[string]any{
				"data": []NotificationDecision{{NotificationID: id, AgentID: 5, Status: "queued", Channels: []string{"push"}}},
				"meta": map[string]any{
					"request_id": "req-9",
					"timestamp":  time.Now().UTC(),
					"warnings":   []string{"quiet hours ignored"},
				},
			})
		},
	})

	decisions, meta, err := newTestClient(t, srv.URL).EvaluateNotifications(context.Background(), 5, []Notification{
		{ID: id, AgentID: 5, Type: "new_knowledge", Title: "t", Priority: "normal"},
	}, true)
	require.NoError(t, err)
	require.Len(t, decisions, 1)
	assert.Equal(t, "queued", decisions[0].Status)
	assert.Equal(t, "req-9", meta.RequestID)
	assert.Equal(t, []string{"quiet hours ignored"}, meta.Warnings)
}

func TestErrorTypesMapCorrectly(t *testing.T) {
	srv := mockServer(t, map[string]http.HandlerFunc{
		"GET /v1/knowledge/{id}/insights": func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusNotFound, map[string]any{
				"error": map[string]any{"code": "NOT_FOUND", "message": "knowledge entry not found"},
			})
		},
		"GET /v1/agents/{id}/recommended": func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusBadRequest, map[string]any{
				"error": map[string]any{"code": "INVALID_INPUT", "message": "timeframe must be one of 1d, 7d, 30d"},
			})
		},
		"GET /v1/graph/stats": func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "upstream down", http.StatusServiceUnavailable)
		},
	})
	c := newTestClient(t, srv.URL)
	ctx := context.Background()

	_, err := c.Insights(ctx, 1)
	require.Error(t, err)
	assert.True(t, IsNotFound(err))
	var apiErr *Error
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "NOT_FOUND", apiErr.Code)

	_, err = c.Recommended(ctx, 1, "2w", 10)
	assert.True(t, IsInvalidInput(err))

	_, err = c.GraphStats(ctx, GraphOptions{}, 0)
	assert.True(t, IsUnavailable(err))
	require.ErrorAs(t, err, &apiErr)
	assert.Contains(t, apiErr.Message, "upstream down")
}

func TestTimeoutHandling(t *testing.T) {
	srv := mockServer(t, map[string]http.HandlerFunc{
		"GET /health": func(w http.ResponseWriter, r *http.Request) {
			time.Sleep(200 * time.Millisecond)
			writeJSON(w, http.StatusOK, envelope(Health{Status: "healthy"}))
		},
	})

	c, err := NewClient(Config{BaseURL: srv.URL, Timeout: 20 * time.Millisecond})
	require.NoError(t, err)
	_, err = c.Health(context.Background())
	assert.Error(t, err)
}
