package graph

import (
	"math"

	"github.com/Alfred252525/Analytical-Fire-sub000/internal/model"
	"github.com/Alfred252525/Analytical-Fire-sub000/internal/similarity"
)

// Relationship signal weights. Each contribution is capped at its weight and
// the weights sum to 1, so no single signal can dominate the pair score.
const (
	WeightCategory = 0.40
	WeightTags     = 0.30
	WeightKeywords = 0.20
	WeightTitle    = 0.10

	// typeEpsilon is the smallest contribution that names a relationship type.
	typeEpsilon = 0.01
)

// features is the precomputed comparison view of one entry.
type features struct {
	category string
	tags     similarity.Set
	keywords similarity.Set
	title    similarity.Set
}

func newFeatures(e model.KnowledgeEntry) features {
	return features{
		category: model.NormalizeLabel(e.Category),
		tags:     similarity.Labels(e.Tags...),
		keywords: similarity.Tokens(e.Content),
		title:    similarity.Tokens(e.Title),
	}
}

// keys returns the inverted-index terms of f. Two entries with no key in
// common have a pair score of exactly zero.
func (f features) keys() []string {
	out := make([]string, 0, 1+len(f.tags)+len(f.keywords)+len(f.title))
	if f.category != "" {
		out = append(out, "c:"+f.category)
	}
	for t := range f.tags {
		out = append(out, "t:"+t)
	}
	for t := range f.keywords {
		out = append(out, "k:"+t)
	}
	for t := range f.title {
		out = append(out, "w:"+t)
	}
	return out
}

// Contributions is the per-signal breakdown of a pair score.
type Contributions struct {
	Category float64 `json:"category"`
	Tags     float64 `json:"tags"`
	Keywords float64 `json:"keywords"`
	Title    float64 `json:"title"`
}

// Score sums the contributions, capped at 1.
func (c Contributions) Score() float64 {
	return math.Min(1, c.Category+c.Tags+c.Keywords+c.Title)
}

// Types lists the relationship types whose contribution is at least 0.01,
// in a fixed order. The result is never nil.
func (c Contributions) Types() []model.RelationshipType {
	out := make([]model.RelationshipType, 0, 4)
	if c.Category >= typeEpsilon {
		out = append(out, model.RelationshipCategory)
	}
	if c.Tags >= typeEpsilon {
		out = append(out, model.RelationshipTags)
	}
	if c.Keywords >= typeEpsilon {
		out = append(out, model.RelationshipKeywords)
	}
	if c.Title >= typeEpsilon {
		out = append(out, model.RelationshipTitle)
	}
	return out
}

func compare(a, b features) Contributions {
	var c Contributions
	if a.category != "" && a.category == b.category {
		c.Category = WeightCategory
	}
	c.Tags = math.Min(WeightTags, WeightTags*similarity.Jaccard(a.tags, b.tags))
	c.Keywords = math.Min(WeightKeywords, WeightKeywords*similarity.Jaccard(a.keywords, b.keywords))
	c.Title = math.Min(WeightTitle, WeightTitle*similarity.Jaccard(a.title, b.title))
	return c
}

// Relationship scores the topical similarity of two entries in [0, 1].
// It is symmetric and total: empty tags, titles, or bodies contribute zero.
func Relationship(a, b model.KnowledgeEntry) Contributions {
	return compare(newFeatures(a), newFeatures(b))
}
