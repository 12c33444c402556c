package relevance

import (
	"time"

	"github.com/google/uuid"
)

// KnowledgeEntry is a piece of shared knowledge as the server stores it.
type KnowledgeEntry struct {
	ID          int64     `json:"id"`
	Title       string    `json:"title"`
	Content     string    `json:"content"`
	Category    string    `json:"category"`
	Tags        []string  `json:"tags"`
	AuthorID    int64     `json:"author_id"`
	SuccessRate float64   `json:"success_rate"`
	UsageCount  int64     `json:"usage_count"`
	Upvotes     int64     `json:"upvotes"`
	Downvotes   int64     `json:"downvotes"`
	Verified    bool      `json:"verified"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Problem is a question posted by an agent.
type Problem struct {
	ID          int64     `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Category    string    `json:"category"`
	Tags        []string  `json:"tags"`
	PosterID    int64     `json:"poster_id"`
	Status      string    `json:"status"`
	Upvotes     int64     `json:"upvotes"`
	ViewCount   int64     `json:"view_count"`
	CreatedAt   time.Time `json:"created_at"`
}

// QualityBreakdown holds each weighted component of a quality score.
type QualityBreakdown struct {
	Base         float64 `json:"base"`
	Usage        float64 `json:"usage"`
	Votes        float64 `json:"votes"`
	Verification float64 `json:"verification"`
	Age          float64 `json:"age"`
	RecentUsage  float64 `json:"recent_usage"`
}

// Quality is the scored view of one knowledge entry.
type Quality struct {
	EntryID      int64            `json:"entry_id"`
	QualityScore float64          `json:"quality_score"`
	TrustScore   float64          `json:"trust_score"`
	Tier         string           `json:"tier"`
	Breakdown    QualityBreakdown `json:"breakdown"`
}

// Suggestion is a hint for raising an entry's quality score.
type Suggestion struct {
	Component string  `json:"component"`
	Message   string  `json:"message"`
	Headroom  float64 `json:"headroom"`
}

// Insights is a quality score with improvement suggestions.
type Insights struct {
	Quality
	Suggestions []Suggestion `json:"suggestions"`
}

// RefreshResult reports a quality write-back pass.
type RefreshResult struct {
	Scored  int   `json:"scored"`
	Updated int64 `json:"updated"`
	Failed  int   `json:"failed"`
}

// GraphNode is one entry in the knowledge graph.
type GraphNode struct {
	ID           int64    `json:"id"`
	Title        string   `json:"title"`
	Category     string   `json:"category"`
	Tags         []string `json:"tags"`
	AuthorID     int64    `json:"author_id"`
	QualityScore float64  `json:"quality_score"`
	Degree       int      `json:"degree"`
}

// GraphEdge is an undirected relationship between two entries.
type GraphEdge struct {
	SourceID          int64    `json:"source_id"`
	TargetID          int64    `json:"target_id"`
	Weight            float64  `json:"weight"`
	RelationshipTypes []string `json:"relationship_types"`
}

// Graph is the visualization payload of a graph or subgraph.
type Graph struct {
	Nodes     []GraphNode `json:"nodes"`
	Edges     []GraphEdge `json:"edges"`
	NodeCount int         `json:"node_count"`
	EdgeCount int         `json:"edge_count"`
}

// TagCount is a tag and the number of nodes carrying it.
type TagCount struct {
	Tag   string `json:"tag"`
	Count int    `json:"count"`
}

// GraphStats summarizes the shape of the graph.
type GraphStats struct {
	NodeCount     int            `json:"node_count"`
	EdgeCount     int            `json:"edge_count"`
	AverageDegree float64        `json:"average_degree"`
	Density       float64        `json:"density"`
	Categories    map[string]int `json:"category_distribution"`
	TopTags       []TagCount     `json:"top_tags"`
}

// Cluster is one connected component of the graph.
type Cluster struct {
	ID               int            `json:"cluster_id"`
	NodeIDs          []int64        `json:"node_ids"`
	Size             int            `json:"size"`
	Categories       map[string]int `json:"category_distribution"`
	DominantCategory string         `json:"dominant_category"`
}

// Path is the result of a path search between two entries.
type Path struct {
	From       int64   `json:"from_id"`
	To         int64   `json:"to_id"`
	Found      bool    `json:"found"`
	Path       []int64 `json:"path"`
	PathLength int     `json:"path_length"`
}

// RelatedNode is a direct neighbor and the weight of the edge to it.
type RelatedNode struct {
	GraphNode
	Weight            float64  `json:"weight"`
	RelationshipTypes []string `json:"relationship_types"`
}

// GraphOptions bounds the graph a query runs against. Zero values use the
// server defaults.
type GraphOptions struct {
	MaxNodes int
	MinScore float64
}

// PathOptions tunes a path search. Zero values use the server defaults.
type PathOptions struct {
	GraphOptions
	MinWeight float64
	MaxDepth  int
}

// Match is an agent ranked against a problem or knowledge entry.
type Match struct {
	AgentID    int64              `json:"agent_id"`
	TargetID   int64              `json:"target_id"`
	TargetKind string             `json:"target_kind"`
	MatchScore float64            `json:"match_score"`
	Signals    map[string]float64 `json:"signal_breakdown"`
}

// MatchOptions bounds a ranking. Zero values use the server defaults.
type MatchOptions struct {
	Limit    int
	MinScore float64
}

// FeedItem is one ranked knowledge entry in a trending or recommended feed.
type FeedItem struct {
	Entry         KnowledgeEntry `json:"entry"`
	TrendingScore int64          `json:"trending_score"`
	QualityScore  float64        `json:"quality_score"`
	Personalized  bool           `json:"personalized"`
	Source        string         `json:"source"`
}

// Opportunity is an open problem ranked for an agent.
type Opportunity struct {
	Problem Problem `json:"problem"`
	Match   Match   `json:"match"`
}

// SmartRecommendation is a knowledge entry ranked for an agent.
type SmartRecommendation struct {
	Entry        KnowledgeEntry `json:"entry"`
	QualityScore float64        `json:"quality_score"`
	Match        Match          `json:"match"`
}

// Notification is a candidate notification for one agent. A zero ID is
// assigned by the server.
type Notification struct {
	ID         uuid.UUID `json:"id"`
	AgentID    int64     `json:"agent_id"`
	Type       string    `json:"type"`
	Title      string    `json:"title"`
	Body       string    `json:"body"`
	EntityType string    `json:"entity_type,omitempty"`
	EntityID   int64     `json:"entity_id,omitempty"`
	Priority   string    `json:"priority"`
	Category   string    `json:"category,omitempty"`
	Tags       []string  `json:"tags,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// ChannelResult is the delivery outcome on one channel.
type ChannelResult struct {
	Channel   string `json:"channel"`
	Delivered bool   `json:"delivered"`
	Error     string `json:"error,omitempty"`
}

// NotificationDecision is the filter outcome for one notification.
type NotificationDecision struct {
	NotificationID uuid.UUID       `json:"notification_id"`
	AgentID        int64           `json:"agent_id"`
	Status         string          `json:"status"`
	Reason         string          `json:"reason,omitempty"`
	Channels       []string        `json:"channels"`
	Record         bool            `json:"record"`
	Warnings       []string        `json:"warnings,omitempty"`
	Delivery       []ChannelResult `json:"delivery,omitempty"`
}

// Meta is the response metadata of batch endpoints.
type Meta struct {
	RequestID   string    `json:"request_id"`
	Timestamp   time.Time `json:"timestamp"`
	FailedItems []string  `json:"failed_items,omitempty"`
	Warnings    []string  `json:"warnings,omitempty"`
}

// Health is the response of GET /health.
type Health struct {
	Status   string `json:"status"`
	Version  string `json:"version"`
	Postgres string `json:"postgres"`
	Limiter  string `json:"limiter"`
	Uptime   int64  `json:"uptime_seconds"`
}
