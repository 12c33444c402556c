package graph

import (
	"sort"

	"github.com/Alfred252525/Analytical-Fire-sub000/internal/model"
)

// Defaults applied when query arguments are unset.
const (
	DefaultTopTags        = 10
	DefaultCentralNodes   = 10
	DefaultMinClusterSize = 2
	DefaultRelated        = 10
	DefaultNeighborhood   = 1

	// uncategorized labels nodes with an empty category in distributions.
	uncategorized = "uncategorized"
)

// Payload is the visualization shape of a graph or subgraph.
type Payload struct {
	Nodes     []Node       `json:"nodes"`
	Edges     []model.Edge `json:"edges"`
	NodeCount int          `json:"node_count"`
	EdgeCount int          `json:"edge_count"`
}

// Payload returns every node and edge.
func (g *Graph) Payload() Payload {
	nodes := make([]Node, len(g.nodes))
	copy(nodes, g.nodes)
	edges := make([]model.Edge, len(g.edges))
	copy(edges, g.edges)
	return Payload{Nodes: nodes, Edges: edges, NodeCount: len(nodes), EdgeCount: len(edges)}
}

// TagCount is a tag and the number of nodes carrying it.
type TagCount struct {
	Tag   string `json:"tag"`
	Count int    `json:"count"`
}

// Stats summarizes the shape of a graph.
type Stats struct {
	NodeCount     int            `json:"node_count"`
	EdgeCount     int            `json:"edge_count"`
	AverageDegree float64        `json:"average_degree"`
	Density       float64        `json:"density"`
	Categories    map[string]int `json:"category_distribution"`
	TopTags       []TagCount     `json:"top_tags"`
}

// Stats computes counts, average degree, density, and the topTags most
// common tags. Density is 0 for graphs with fewer than two nodes.
func (g *Graph) Stats(topTags int) Stats {
	if topTags <= 0 {
		topTags = DefaultTopTags
	}
	n, e := len(g.nodes), len(g.edges)
	st := Stats{
		NodeCount:  n,
		EdgeCount:  e,
		Categories: make(map[string]int),
		TopTags:    []TagCount{},
	}
	if n > 0 {
		st.AverageDegree = 2 * float64(e) / float64(n)
	}
	if n >= 2 {
		st.Density = float64(e) / (float64(n) * float64(n-1) / 2)
	}

	tags := make(map[string]int)
	for _, node := range g.nodes {
		st.Categories[categoryLabel(node.Category)]++
		// Count each tag once per node.
		own := make(map[string]bool, len(node.Tags))
		for _, t := range node.Tags {
			t = model.NormalizeLabel(t)
			if t == "" || own[t] {
				continue
			}
			own[t] = true
			tags[t]++
		}
	}
	for t, c := range tags {
		st.TopTags = append(st.TopTags, TagCount{Tag: t, Count: c})
	}
	sort.Slice(st.TopTags, func(i, j int) bool {
		if st.TopTags[i].Count != st.TopTags[j].Count {
			return st.TopTags[i].Count > st.TopTags[j].Count
		}
		return st.TopTags[i].Tag < st.TopTags[j].Tag
	})
	if len(st.TopTags) > topTags {
		st.TopTags = st.TopTags[:topTags]
	}
	return st
}

func categoryLabel(c string) string {
	if c = model.NormalizeLabel(c); c == "" {
		return uncategorized
	}
	return c
}

// before orders nodes by quality desc, then id asc.
func (g *Graph) before(a, b int) bool {
	na, nb := g.nodes[a], g.nodes[b]
	if na.QualityScore != nb.QualityScore {
		return na.QualityScore > nb.QualityScore
	}
	return na.ID < nb.ID
}

// CentralNodes returns the k highest-degree nodes. Ties go to the higher
// quality score, then the lower id.
func (g *Graph) CentralNodes(k int) []Node {
	if k <= 0 {
		k = DefaultCentralNodes
	}
	order := make([]int, len(g.nodes))
	for i := range order {
		order[i] = i
	}
	sort.Slice(order, func(i, j int) bool {
		a, b := order[i], order[j]
		if g.nodes[a].Degree != g.nodes[b].Degree {
			return g.nodes[a].Degree > g.nodes[b].Degree
		}
		return g.before(a, b)
	})
	if len(order) > k {
		order = order[:k]
	}
	out := make([]Node, len(order))
	for i, idx := range order {
		out[i] = g.nodes[idx]
	}
	return out
}

// Cluster is one connected component of the graph.
type Cluster struct {
	ID               int            `json:"cluster_id"`
	NodeIDs          []int64        `json:"node_ids"`
	Size             int            `json:"size"`
	Categories       map[string]int `json:"category_distribution"`
	DominantCategory string         `json:"dominant_category"`
}

// Clusters partitions the graph into connected components and returns those
// with at least minSize nodes, largest first. A node belongs to at most one
// cluster. minSize <= 0 means 2.
func (g *Graph) Clusters(minSize int) []Cluster {
	if minSize <= 0 {
		minSize = DefaultMinClusterSize
	}
	uf := newUnionFind(len(g.nodes))
	for _, e := range g.edges {
		uf.union(g.index[e.SourceID], g.index[e.TargetID])
	}

	groups := make(map[int][]int)
	for i := range g.nodes {
		r := uf.find(i)
		groups[r] = append(groups[r], i)
	}

	out := make([]Cluster, 0, len(groups))
	for _, members := range groups {
		if len(members) < minSize {
			continue
		}
		c := Cluster{
			NodeIDs:    make([]int64, len(members)),
			Size:       len(members),
			Categories: make(map[string]int),
		}
		// Members are appended in index order, which is id order.
		for i, idx := range members {
			c.NodeIDs[i] = g.nodes[idx].ID
			c.Categories[categoryLabel(g.nodes[idx].Category)]++
		}
		c.DominantCategory = dominant(c.Categories)
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Size != out[j].Size {
			return out[i].Size > out[j].Size
		}
		return out[i].NodeIDs[0] < out[j].NodeIDs[0]
	})
	for i := range out {
		out[i].ID = i + 1
	}
	return out
}

func dominant(counts map[string]int) string {
	best, bestN := "", -1
	for c, n := range counts {
		if n > bestN || (n == bestN && c < best) {
			best, bestN = c, n
		}
	}
	return best
}

type unionFind struct {
	parent []int
	rank   []int
}

func newUnionFind(n int) *unionFind {
	uf := &unionFind{parent: make([]int, n), rank: make([]int, n)}
	for i := range uf.parent {
		uf.parent[i] = i
	}
	return uf
}

func (u *unionFind) find(x int) int {
	for u.parent[x] != x {
		u.parent[x] = u.parent[u.parent[x]]
		x = u.parent[x]
	}
	return x
}

func (u *unionFind) union(a, b int) {
	ra, rb := u.find(a), u.find(b)
	if ra == rb {
		return
	}
	switch {
	case u.rank[ra] < u.rank[rb]:
		u.parent[ra] = rb
	case u.rank[ra] > u.rank[rb]:
		u.parent[rb] = ra
	default:
		u.parent[rb] = ra
		u.rank[ra]++
	}
}

// PathResult is the outcome of a path search. A missing endpoint or an
// unreachable target yields Found=false with an empty path.
type PathResult struct {
	From       int64   `json:"from_id"`
	To         int64   `json:"to_id"`
	Found      bool    `json:"found"`
	Path       []int64 `json:"path"`
	PathLength int     `json:"path_length"`
}

// FindPath runs a breadth-first search from one entry to another over edges
// whose weight is at least minWeight (the build threshold when lower).
// maxDepth caps the number of hops; <= 0 means unbounded. Neighbors are
// expanded in quality-desc, id-asc order, so among shortest paths the one
// through higher-quality intermediates is found first. PathLength counts
// nodes, so a path from an entry to itself has length 1.
func (g *Graph) FindPath(from, to int64, minWeight float64, maxDepth int) PathResult {
	res := PathResult{From: from, To: to, Path: []int64{}}
	src, ok := g.index[from]
	if !ok {
		return res
	}
	dst, ok := g.index[to]
	if !ok {
		return res
	}
	if src == dst {
		res.Found, res.Path, res.PathLength = true, []int64{from}, 1
		return res
	}
	if minWeight < g.minScore {
		minWeight = g.minScore
	}
	if maxDepth <= 0 {
		maxDepth = len(g.nodes)
	}

	parent := make([]int, len(g.nodes))
	depth := make([]int, len(g.nodes))
	for i := range parent {
		parent[i] = -1
	}
	parent[src] = src
	queue := []int{src}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if depth[cur] >= maxDepth {
			continue
		}
		for _, next := range g.neighbors(cur, minWeight) {
			if parent[next] != -1 {
				continue
			}
			parent[next] = cur
			depth[next] = depth[cur] + 1
			if next == dst {
				res.Found = true
				res.Path = g.walkBack(parent, dst)
				res.PathLength = len(res.Path)
				return res
			}
			queue = append(queue, next)
		}
	}
	return res
}

// neighbors returns the node indexes adjacent to i over edges of at least
// minWeight, in quality-desc, id-asc order.
func (g *Graph) neighbors(i int, minWeight float64) []int {
	out := make([]int, 0, len(g.adj[i]))
	for _, a := range g.adj[i] {
		if g.edges[a.edge].Weight >= minWeight {
			out = append(out, a.node)
		}
	}
	sort.Slice(out, func(x, y int) bool { return g.before(out[x], out[y]) })
	return out
}

func (g *Graph) walkBack(parent []int, dst int) []int64 {
	var rev []int64
	for cur := dst; ; cur = parent[cur] {
		rev = append(rev, g.nodes[cur].ID)
		if parent[cur] == cur {
			break
		}
	}
	path := make([]int64, len(rev))
	for i, id := range rev {
		path[len(rev)-1-i] = id
	}
	return path
}

// Neighborhood returns the subgraph of nodes within depth hops of id and
// the edges among them. depth <= 0 means 1. ok is false for unknown ids.
func (g *Graph) Neighborhood(id int64, depth int) (Payload, bool) {
	src, ok := g.index[id]
	if !ok {
		return Payload{Nodes: []Node{}, Edges: []model.Edge{}}, false
	}
	if depth <= 0 {
		depth = DefaultNeighborhood
	}
	dist := map[int]int{src: 0}
	queue := []int{src}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if dist[cur] == depth {
			continue
		}
		for _, a := range g.adj[cur] {
			if _, seen := dist[a.node]; !seen {
				dist[a.node] = dist[cur] + 1
				queue = append(queue, a.node)
			}
		}
	}

	members := make([]int, 0, len(dist))
	for i := range dist {
		members = append(members, i)
	}
	sort.Ints(members)
	p := Payload{Nodes: make([]Node, len(members)), Edges: []model.Edge{}}
	for i, idx := range members {
		p.Nodes[i] = g.nodes[idx]
	}
	for _, e := range g.edges {
		_, s := dist[g.index[e.SourceID]]
		_, t := dist[g.index[e.TargetID]]
		if s && t {
			p.Edges = append(p.Edges, e)
		}
	}
	p.NodeCount, p.EdgeCount = len(p.Nodes), len(p.Edges)
	return p, true
}

// RelatedNode is a direct neighbor and the edge that links it.
type RelatedNode struct {
	Node
	Weight            float64                  `json:"weight"`
	RelationshipTypes []model.RelationshipType `json:"relationship_types"`
}

// Related returns up to limit direct neighbors of id, strongest edge first.
// limit <= 0 means 10. Unknown ids yield an empty list.
func (g *Graph) Related(id int64, limit int) []RelatedNode {
	src, ok := g.index[id]
	if !ok {
		return []RelatedNode{}
	}
	if limit <= 0 {
		limit = DefaultRelated
	}
	adj := make([]adjacent, len(g.adj[src]))
	copy(adj, g.adj[src])
	sort.Slice(adj, func(i, j int) bool {
		wi, wj := g.edges[adj[i].edge].Weight, g.edges[adj[j].edge].Weight
		if wi != wj {
			return wi > wj
		}
		return g.before(adj[i].node, adj[j].node)
	})
	if len(adj) > limit {
		adj = adj[:limit]
	}
	out := make([]RelatedNode, len(adj))
	for i, a := range adj {
		e := g.edges[a.edge]
		out[i] = RelatedNode{Node: g.nodes[a.node], Weight: e.Weight, RelationshipTypes: e.RelationshipTypes}
	}
	return out
}
