package server

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	cache "github.com/patrickmn/go-cache"
	"golang.org/x/sync/singleflight"

	"github.com/Alfred252525/Analytical-Fire-sub000/internal/graph"
	"github.com/Alfred252525/Analytical-Fire-sub000/internal/model"
)

// KnowledgeSource loads the knowledge window a graph is built from.
type KnowledgeSource func(ctx context.Context) ([]model.KnowledgeEntry, error)

// GraphCache memoizes built graphs per build option set. Concurrent misses
// for the same key share one build. Entries expire after the TTL and are
// dropped wholesale by Invalidate.
type GraphCache struct {
	builder *graph.Builder
	source  KnowledgeSource
	cache   *cache.Cache
	group   singleflight.Group
	logger  *slog.Logger
}

// NewGraphCache creates a cache. A non-positive ttl disables caching; every
// Get then builds a fresh graph.
func NewGraphCache(builder *graph.Builder, source KnowledgeSource, ttl time.Duration, logger *slog.Logger) *GraphCache {
	c := &GraphCache{builder: builder, source: source, logger: logger}
	if ttl > 0 {
		c.cache = cache.New(ttl, 2*ttl)
	}
	return c
}

type builtGraph struct {
	graph  *graph.Graph
	failed model.ItemErrors
}

// Get returns the graph for opts, building it on a miss.
func (c *GraphCache) Get(ctx context.Context, opts graph.Options) (*graph.Graph, model.ItemErrors, error) {
	key := fmt.Sprintf("%d|%g", opts.MaxNodes, opts.MinScore)
	if c.cache != nil {
		if v, ok := c.cache.Get(key); ok {
			b := v.(builtGraph)
			return b.graph, b.failed, nil
		}
	}

	// The shared build must outlive any one caller's cancellation.
	v, err, shared := c.group.Do(key, func() (any, error) {
		buildCtx := context.WithoutCancel(ctx)
		entries, err := c.source(buildCtx)
		if err != nil {
			return nil, fmt.Errorf("server: load graph entries: %w", err)
		}
		g, failed, err := c.builder.Build(buildCtx, entries, opts)
		if err != nil {
			return nil, err
		}
		b := builtGraph{graph: g, failed: failed}
		if c.cache != nil {
			c.cache.SetDefault(key, b)
		}
		return b, nil
	})
	if err != nil {
		return nil, nil, err
	}
	if shared {
		c.logger.Debug("server: graph build shared", "key", key)
	}
	b := v.(builtGraph)
	return b.graph, b.failed, nil
}

// Invalidate drops every cached graph.
func (c *GraphCache) Invalidate() {
	if c.cache != nil {
		c.cache.Flush()
	}
}

// Len returns the number of cached graphs.
func (c *GraphCache) Len() int {
	if c.cache == nil {
		return 0
	}
	return c.cache.ItemCount()
}
