package relevance

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// Config holds the settings needed to construct a Client.
type Config struct {
	// BaseURL is the root URL of the relevance server (e.g. "http://localhost:8080").
	BaseURL string

	// HTTPClient is an optional custom HTTP client. If nil, a default client
	// with a 30-second timeout is used.
	HTTPClient *http.Client

	// Timeout applies to individual API requests. Defaults to 30 seconds.
	Timeout time.Duration
}

// Client is an HTTP client for the relevance and ranking API.
// All methods are safe for concurrent use.
type Client struct {
	baseURL string
	client  *http.Client
}

// NewClient creates a Client from the given configuration.
// Returns an error if BaseURL is empty or malformed.
func NewClient(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("relevance: BaseURL is required")
	}
	if _, err := url.ParseRequestURI(cfg.BaseURL); err != nil {
		return nil, fmt.Errorf("relevance: invalid BaseURL: %w", err)
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout == 0 {
			timeout = 30 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}

	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		client:  httpClient,
	}, nil
}

// Health reports server and database status. An unhealthy server answers
// with an *Error whose StatusCode is 503.
func (c *Client) Health(ctx context.Context) (*Health, error) {
	var resp Health
	if _, err := c.get(ctx, "/health", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ---------------------------------------------------------------------------
// Quality
// ---------------------------------------------------------------------------

// Quality scores one knowledge entry.
func (c *Client) Quality(ctx context.Context, entryID int64) (*Quality, error) {
	var resp Quality
	if _, err := c.get(ctx, fmt.Sprintf("/v1/knowledge/%d/quality", entryID), nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Insights scores one knowledge entry and lists improvement suggestions.
func (c *Client) Insights(ctx context.Context, entryID int64) (*Insights, error) {
	var resp Insights
	if _, err := c.get(ctx, fmt.Sprintf("/v1/knowledge/%d/insights", entryID), nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// RefreshQuality rescores the limit most recently updated entries and writes
// the scores back. limit <= 0 uses the server's batch size.
func (c *Client) RefreshQuality(ctx context.Context, limit int) (*RefreshResult, error) {
	body := map[string]int{}
	if limit > 0 {
		body["limit"] = limit
	}
	var resp RefreshResult
	if _, err := c.post(ctx, "/v1/admin/quality/refresh", body, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ---------------------------------------------------------------------------
// Knowledge graph
// ---------------------------------------------------------------------------

// Graph returns every node and edge of the knowledge graph.
func (c *Client) Graph(ctx context.Context, opts GraphOptions) (*Graph, error) {
	var resp Graph
	if _, err := c.get(ctx, "/v1/graph", opts.values(), &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// GraphStats summarizes the graph. topTags <= 0 uses the server default.
func (c *Client) GraphStats(ctx context.Context, opts GraphOptions, topTags int) (*GraphStats, error) {
	q := opts.values()
	setInt(q, "top_tags", topTags)
	var resp GraphStats
	if _, err := c.get(ctx, "/v1/graph/stats", q, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Clusters returns connected components with at least minSize nodes.
func (c *Client) Clusters(ctx context.Context, opts GraphOptions, minSize int) ([]Cluster, error) {
	q := opts.values()
	setInt(q, "min_size", minSize)
	var resp []Cluster
	if _, err := c.get(ctx, "/v1/graph/clusters", q, &resp); err != nil {
		return nil, err
	}
	return resp, nil
}

// CentralNodes returns the highest-degree nodes.
func (c *Client) CentralNodes(ctx context.Context, opts GraphOptions, limit int) ([]GraphNode, error) {
	q := opts.values()
	setInt(q, "limit", limit)
	var resp []GraphNode
	if _, err := c.get(ctx, "/v1/graph/central", q, &resp); err != nil {
		return nil, err
	}
	return resp, nil
}

// FindPath searches for the shortest chain of related entries from one entry
// to another. An unreachable target is not an error: Found is false.
func (c *Client) FindPath(ctx context.Context, from, to int64, opts PathOptions) (*Path, error) {
	q := opts.values()
	q.Set("from", strconv.FormatInt(from, 10))
	q.Set("to", strconv.FormatInt(to, 10))
	setFloat(q, "min_weight", opts.MinWeight)
	setInt(q, "max_depth", opts.MaxDepth)
	var resp Path
	if _, err := c.get(ctx, "/v1/graph/path", q, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Neighborhood returns the subgraph within depth hops of an entry.
func (c *Client) Neighborhood(ctx context.Context, entryID int64, opts GraphOptions, depth int) (*Graph, error) {
	q := opts.values()
	setInt(q, "depth", depth)
	var resp Graph
	if _, err := c.get(ctx, fmt.Sprintf("/v1/graph/nodes/%d/neighborhood", entryID), q, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Related returns the direct neighbors of an entry, strongest edge first.
func (c *Client) Related(ctx context.Context, entryID int64, opts GraphOptions, limit int) ([]RelatedNode, error) {
	q := opts.values()
	setInt(q, "limit", limit)
	var resp []RelatedNode
	if _, err := c.get(ctx, fmt.Sprintf("/v1/graph/nodes/%d/related", entryID), q, &resp); err != nil {
		return nil, err
	}
	return resp, nil
}

// ---------------------------------------------------------------------------
// Matching and feeds
// ---------------------------------------------------------------------------

// MatchProblem ranks agents for a problem. The poster is never included.
func (c *Client) MatchProblem(ctx context.Context, problemID int64, opts MatchOptions) ([]Match, error) {
	var resp []Match
	if _, err := c.get(ctx, fmt.Sprintf("/v1/problems/%d/matches", problemID), opts.values(), &resp); err != nil {
		return nil, err
	}
	return resp, nil
}

// MatchKnowledge ranks agents who would benefit from an entry. The author is
// never included.
func (c *Client) MatchKnowledge(ctx context.Context, entryID int64, opts MatchOptions) ([]Match, error) {
	var resp []Match
	if _, err := c.get(ctx, fmt.Sprintf("/v1/knowledge/%d/matches", entryID), opts.values(), &resp); err != nil {
		return nil, err
	}
	return resp, nil
}

// Trending returns entries trending within timeframe ("1d", "7d", "30d";
// empty means "7d").
func (c *Client) Trending(ctx context.Context, timeframe string, limit int) ([]FeedItem, error) {
	q := url.Values{}
	if timeframe != "" {
		q.Set("timeframe", timeframe)
	}
	setInt(q, "limit", limit)
	var resp []FeedItem
	if _, err := c.get(ctx, "/v1/trending", q, &resp); err != nil {
		return nil, err
	}
	return resp, nil
}

// Recommended returns a personalized feed for an agent.
func (c *Client) Recommended(ctx context.Context, agentID int64, timeframe string, limit int) ([]FeedItem, error) {
	q := url.Values{}
	if timeframe != "" {
		q.Set("timeframe", timeframe)
	}
	setInt(q, "limit", limit)
	var resp []FeedItem
	if _, err := c.get(ctx, fmt.Sprintf("/v1/agents/%d/recommended", agentID), q, &resp); err != nil {
		return nil, err
	}
	return resp, nil
}

// Opportunities ranks open problems the agent could solve.
func (c *Client) Opportunities(ctx context.Context, agentID int64, opts MatchOptions) ([]Opportunity, error) {
	var resp []Opportunity
	if _, err := c.get(ctx, fmt.Sprintf("/v1/agents/%d/opportunities", agentID), opts.values(), &resp); err != nil {
		return nil, err
	}
	return resp, nil
}

// SmartRecommendations ranks knowledge for an agent by match signals.
func (c *Client) SmartRecommendations(ctx context.Context, agentID int64, opts MatchOptions) ([]SmartRecommendation, error) {
	var resp []SmartRecommendation
	if _, err := c.get(ctx, fmt.Sprintf("/v1/agents/%d/smart-recommendations", agentID), opts.values(), &resp); err != nil {
		return nil, err
	}
	return resp, nil
}

// ---------------------------------------------------------------------------
// Notifications
// ---------------------------------------------------------------------------

// EvaluateNotifications runs candidates for one agent through the
// notification filter. With dispatch set, queued notifications are delivered.
// Meta carries preference warnings and the ids of rejected candidates.
func (c *Client) EvaluateNotifications(ctx context.Context, agentID int64, candidates []Notification, dispatch bool) ([]NotificationDecision, *Meta, error) {
	body := evaluateBody{Notifications: candidates, Dispatch: dispatch}
	var resp []NotificationDecision
	meta, err := c.post(ctx, fmt.Sprintf("/v1/agents/%d/notifications/evaluate", agentID), body, &resp)
	if err != nil {
		return nil, nil, err
	}
	return resp, meta, nil
}

// evaluateBody is the wire format for POST /v1/agents/{id}/notifications/evaluate.
type evaluateBody struct {
	Notifications []Notification `json:"notifications"`
	Dispatch      bool           `json:"dispatch"`
}

func (o GraphOptions) values() url.Values {
	q := url.Values{}
	setInt(q, "max_nodes", o.MaxNodes)
	setFloat(q, "min_score", o.MinScore)
	return q
}

func (o MatchOptions) values() url.Values {
	q := url.Values{}
	setInt(q, "limit", o.Limit)
	setFloat(q, "min_score", o.MinScore)
	return q
}

func setInt(q url.Values, key string, v int) {
	if v > 0 {
		q.Set(key, strconv.Itoa(v))
	}
}

func setFloat(q url.Values, key string, v float64) {
	if v > 0 {
		q.Set(key, strconv.FormatFloat(v, 'f', -1, 64))
	}
}

// ---------------------------------------------------------------------------
// HTTP transport
// ---------------------------------------------------------------------------

// apiEnvelope is the server's standard response wrapper.
type apiEnvelope struct {
	Data json.RawMessage `json:"data"`
	Meta Meta            `json:"meta"`
}

// apiErrorEnvelope is the server's standard error response wrapper.
type apiErrorEnvelope struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func (c *Client) post(ctx context.Context, path string, body any, dest any) (*Meta, error) {
	encoded, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("relevance: marshal request body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(encoded))
	if err != nil {
		return nil, fmt.Errorf("relevance: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	return c.doRequest(req, dest)
}

func (c *Client) get(ctx context.Context, path string, q url.Values, dest any) (*Meta, error) {
	u := c.baseURL + path
	if len(q) > 0 {
		u += "?" + q.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("relevance: create request: %w", err)
	}

	return c.doRequest(req, dest)
}

func (c *Client) doRequest(req *http.Request, dest any) (*Meta, error) {
	req.Header.Set("Accept", "application/json")
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("relevance: %s %s: %w", req.Method, req.URL.Path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	return handleResponse(resp, dest)
}

func handleResponse(resp *http.Response, dest any) (*Meta, error) {
	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("relevance: read response body: %w", err)
	}

	if resp.StatusCode >= 400 {
		return nil, parseErrorResponse(resp.StatusCode, bodyBytes)
	}

	// Unwrap the server's { "data": ..., "meta": ... } envelope.
	var envelope apiEnvelope
	if err := json.Unmarshal(bodyBytes, &envelope); err != nil {
		return nil, fmt.Errorf("relevance: decode response envelope: %w", err)
	}
	if dest == nil || envelope.Data == nil {
		return &envelope.Meta, nil
	}
	if err := json.Unmarshal(envelope.Data, dest); err != nil {
		return nil, fmt.Errorf("relevance: decode response data: %w", err)
	}
	return &envelope.Meta, nil
}

func parseErrorResponse(statusCode int, body []byte) *Error {
	apiErr := &Error{StatusCode: statusCode}

	var envelope apiErrorEnvelope
	if err := json.Unmarshal(body, &envelope); err == nil && envelope.Error.Message != "" {
		apiErr.Code = envelope.Error.Code
		apiErr.Message = envelope.Error.Message
	} else {
		apiErr.Code = http.StatusText(statusCode)
		apiErr.Message = string(body)
	}

	return apiErr
}
