// Package graph builds weighted relationship graphs over a bounded window of
// knowledge entries and answers structural queries against them.
package graph

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"slices"
	"sort"
	"time"

	"go.opentelemetry.io/otel/metric"

	"github.com/Alfred252525/Analytical-Fire-sub000/internal/model"
	"github.com/Alfred252525/Analytical-Fire-sub000/internal/parallel"
	"github.com/Alfred252525/Analytical-Fire-sub000/internal/service/quality"
	"github.com/Alfred252525/Analytical-Fire-sub000/internal/telemetry"
)

const (
	// MaxNodes is the hard upper bound on a build window.
	MaxNodes = 500
	// DefaultMinScore is the edge threshold used when Options.MinScore is unset.
	DefaultMinScore = 0.30
)

// Options bounds a graph build.
type Options struct {
	MaxNodes int     // <= 0 or > 500 means 500.
	MinScore float64 // <= 0 means 0.30.
}

func (o Options) normalized() (Options, error) {
	if o.MaxNodes <= 0 || o.MaxNodes > MaxNodes {
		o.MaxNodes = MaxNodes
	}
	if math.IsNaN(o.MinScore) || o.MinScore > 1 {
		return o, fmt.Errorf("graph: %w: min score %v outside (0, 1]", model.ErrInvalidInput, o.MinScore)
	}
	if o.MinScore <= 0 {
		o.MinScore = DefaultMinScore
	}
	return o, nil
}

// Node is one entry in a built graph.
type Node struct {
	ID           int64    `json:"id"`
	Title        string   `json:"title"`
	Category     string   `json:"category"`
	Tags         []string `json:"tags"`
	AuthorID     int64    `json:"author_id"`
	QualityScore float64  `json:"quality_score"`
	Degree       int      `json:"degree"`
}

type adjacent struct {
	node int // index into Graph.nodes
	edge int // index into Graph.edges
}

// Graph is an immutable arena of nodes and index-addressed edges.
// It is safe for concurrent readers.
type Graph struct {
	nodes    []Node
	index    map[int64]int
	edges    []model.Edge
	adj      [][]adjacent
	minScore float64
	builtAt  time.Time
}

// Builder constructs graphs from entry windows.
type Builder struct {
	logger  *slog.Logger
	workers int
	now     func() time.Time

	edgeCount     metric.Int64Histogram
	buildDuration metric.Float64Histogram
}

// NewBuilder creates a graph builder. workers <= 0 sizes the pair-scoring
// pool to GOMAXPROCS.
func NewBuilder(logger *slog.Logger, workers int) *Builder {
	meter := telemetry.Meter("relevance/graph")
	edgeCount, _ := meter.Int64Histogram("relevance.graph.edges",
		metric.WithDescription("Edges per graph build"),
	)
	buildDuration, _ := meter.Float64Histogram("relevance.graph.build.duration",
		metric.WithDescription("Graph build latency"),
		metric.WithUnit("ms"),
	)
	return &Builder{
		logger:        logger,
		workers:       workers,
		now:           time.Now,
		edgeCount:     edgeCount,
		buildDuration: buildDuration,
	}
}

// WithClock returns a copy of b that reads the current time from now.
func (b *Builder) WithClock(now func() time.Time) *Builder {
	cp := *b
	cp.now = now
	return &cp
}

// Build validates the window, scores every candidate pair, and keeps edges
// whose score reaches opts.MinScore. Invalid or duplicate entries are reported
// per item; entries beyond opts.MaxNodes are dropped in input order.
func (b *Builder) Build(ctx context.Context, entries []model.KnowledgeEntry, opts Options) (*Graph, model.ItemErrors, error) {
	start := time.Now()
	opts, err := opts.normalized()
	if err != nil {
		return nil, nil, err
	}

	var failed model.ItemErrors
	seen := make(map[int64]bool, len(entries))
	window := make([]model.KnowledgeEntry, 0, min(len(entries), opts.MaxNodes))
	for _, e := range entries {
		if verr := model.Validate(e); verr != nil {
			failed.Add(e.ID, verr)
			continue
		}
		if seen[e.ID] {
			failed.Add(e.ID, fmt.Errorf("%w: duplicate id", model.ErrInvalidInput))
			continue
		}
		if len(window) == opts.MaxNodes {
			b.logger.Debug("graph: window truncated", "max_nodes", opts.MaxNodes, "skipped_id", e.ID)
			continue
		}
		seen[e.ID] = true
		window = append(window, e)
	}
	if len(failed) > 0 {
		b.logger.Warn("graph: rejected invalid entries", failed.LogAttrs()...)
	}
	sort.Slice(window, func(i, j int) bool { return window[i].ID < window[j].ID })

	now := b.now()
	g := &Graph{
		nodes:    make([]Node, len(window)),
		index:    make(map[int64]int, len(window)),
		adj:      make([][]adjacent, len(window)),
		minScore: opts.MinScore,
		builtAt:  now,
	}
	feats := make([]features, len(window))
	keys := make([][]string, len(window))
	for i, e := range window {
		g.nodes[i] = Node{
			ID:           e.ID,
			Title:        e.Title,
			Category:     e.Category,
			Tags:         nonNil(e.Tags),
			AuthorID:     e.AuthorID,
			QualityScore: quality.Score(e, now).QualityScore,
		}
		g.index[e.ID] = i
		feats[i] = newFeatures(e)
		keys[i] = feats[i].keys()
	}

	postings := make(map[string][]int)
	for i, ks := range keys {
		for _, k := range ks {
			postings[k] = append(postings[k], i)
		}
	}

	// Each worker owns perNode[i]; pairs are scored only from the lower index.
	perNode := make([][]model.Edge, len(window))
	err = parallel.ForEach(ctx, len(window), b.workers, func(_ context.Context, i int) error {
		cands := make(map[int]bool)
		for _, k := range keys[i] {
			for _, j := range postings[k] {
				if j > i {
					cands[j] = true
				}
			}
		}
		js := make([]int, 0, len(cands))
		for j := range cands {
			js = append(js, j)
		}
		slices.Sort(js)
		for _, j := range js {
			c := compare(feats[i], feats[j])
			score := c.Score()
			if score < opts.MinScore {
				continue
			}
			perNode[i] = append(perNode[i], model.Edge{
				SourceID:          g.nodes[i].ID,
				TargetID:          g.nodes[j].ID,
				Weight:            score,
				RelationshipTypes: c.Types(),
			})
		}
		return nil
	})
	if err != nil {
		return nil, nil, fmt.Errorf("graph: build: %w", err)
	}

	// Nodes are id-sorted and edges are emitted from the lower index, so the
	// concatenation is ordered by (source, target).
	var edges []model.Edge
	for _, es := range perNode {
		edges = append(edges, es...)
	}
	g.link(edges)

	b.edgeCount.Record(ctx, int64(len(g.edges)))
	b.buildDuration.Record(ctx, float64(time.Since(start).Microseconds())/1000)
	b.logger.Debug("graph: built", "nodes", len(g.nodes), "edges", len(g.edges), "min_score", opts.MinScore)
	return g, failed, nil
}

// link installs the edge list and derives adjacency and degrees. Every
// endpoint must already be in g.index.
func (g *Graph) link(edges []model.Edge) {
	g.edges = edges
	if g.edges == nil {
		g.edges = []model.Edge{}
	}
	for i := range g.adj {
		g.adj[i] = nil
	}
	for ei, e := range g.edges {
		s, t := g.index[e.SourceID], g.index[e.TargetID]
		g.adj[s] = append(g.adj[s], adjacent{node: t, edge: ei})
		g.adj[t] = append(g.adj[t], adjacent{node: s, edge: ei})
	}
	for i := range g.nodes {
		g.nodes[i].Degree = len(g.adj[i])
	}
}

// Len returns the number of nodes.
func (g *Graph) Len() int { return len(g.nodes) }

// MinScore returns the edge threshold the graph was built with.
func (g *Graph) MinScore() float64 { return g.minScore }

// BuiltAt returns the clock reading used for node quality scores.
func (g *Graph) BuiltAt() time.Time { return g.builtAt }

// Node looks up a node by entry id.
func (g *Graph) Node(id int64) (Node, bool) {
	i, ok := g.index[id]
	if !ok {
		return Node{}, false
	}
	return g.nodes[i], true
}

// Edges returns the edge list ordered by (source, target).
func (g *Graph) Edges() []model.Edge { return g.edges }

func nonNil(tags []string) []string {
	if tags == nil {
		return []string{}
	}
	return tags
}
