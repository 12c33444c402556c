// Package feed builds the trending, recommended, opportunity, and smart
// recommendation lists an agent sees.
//
// Trending and recommended lists rank by a popularity score inside a time
// window. Opportunity and smart recommendation lists delegate to the matcher
// so their ranking carries the same signal breakdown as agent matching.
package feed

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/Alfred252525/Analytical-Fire-sub000/internal/matching"
	"github.com/Alfred252525/Analytical-Fire-sub000/internal/model"
	"github.com/Alfred252525/Analytical-Fire-sub000/internal/service/quality"
)

// DefaultLimit caps feed lengths when callers pass limit <= 0.
const DefaultLimit = 10

// Timeframe is a trending window.
type Timeframe string

const (
	Day   Timeframe = "1d"
	Week  Timeframe = "7d"
	Month Timeframe = "30d"
)

// ParseTimeframe accepts "1d", "7d", or "30d". An empty string means "7d".
func ParseTimeframe(s string) (Timeframe, error) {
	switch t := Timeframe(s); t {
	case Day, Week, Month:
		return t, nil
	case "":
		return Week, nil
	}
	return "", fmt.Errorf("feed: %w: timeframe %q must be one of 1d, 7d, 30d", model.ErrInvalidInput, s)
}

// Duration returns the window length.
func (t Timeframe) Duration() time.Duration {
	switch t {
	case Day:
		return 24 * time.Hour
	case Month:
		return 30 * 24 * time.Hour
	}
	return 7 * 24 * time.Hour
}

// Source records which pass of a feed produced an item.
type Source string

const (
	SourceTrending     Source = "trending"
	SourcePersonalized Source = "personalized"
	// SourceFallback items come from the general trending list for the window.
	SourceFallback Source = "fallback"
	// SourceFallbackAllTime items come from outside the window.
	SourceFallbackAllTime Source = "fallback_all_time"
)

// Item is one ranked knowledge entry in a trending or recommended feed.
type Item struct {
	Entry         model.KnowledgeEntry `json:"entry"`
	TrendingScore int64                `json:"trending_score"`
	QualityScore  float64              `json:"quality_score"`
	Personalized  bool                 `json:"personalized"`
	Source        Source               `json:"source"`
}

// TrendingScore is (upvotes×2) + usage + 10 when verified − downvotes.
func TrendingScore(e model.KnowledgeEntry) int64 {
	score := e.Upvotes*2 + e.UsageCount - e.Downvotes
	if e.Verified {
		score += 10
	}
	return score
}

// Service assembles feeds. It holds no state between calls.
type Service struct {
	matcher *matching.Matcher
	logger  *slog.Logger
	now     func() time.Time
}

// New creates a feed service backed by matcher.
func New(matcher *matching.Matcher, logger *slog.Logger) *Service {
	return &Service{matcher: matcher, logger: logger, now: time.Now}
}

// WithClock returns a copy of s that reads the current time from now.
func (s *Service) WithClock(now func() time.Time) *Service {
	cp := *s
	cp.now = now
	return &cp
}

// Trending ranks entries updated within the timeframe by trending score,
// then quality desc, created_at desc, id asc.
func (s *Service) Trending(entries []model.KnowledgeEntry, tf Timeframe, limit int) ([]Item, model.ItemErrors) {
	limit = normLimit(limit)
	valid, failed := s.validEntries(entries, 0)
	now := s.now()
	ranked := rank(inWindow(valid, now, tf), now)
	out := make([]Item, 0, min(limit, len(ranked)))
	for _, it := range ranked {
		if len(out) == limit {
			break
		}
		it.Source = SourceTrending
		out = append(out, it)
	}
	return out, failed
}

// Recommended ranks window entries in the categories and tags the agent has
// authored in. Short lists are padded with the general window ranking, then
// with the all-time ranking, and padded items carry Personalized=false.
// The agent's own entries are never recommended.
func (s *Service) Recommended(profile model.AgentProfile, entries []model.KnowledgeEntry, tf Timeframe, limit int) ([]Item, model.ItemErrors, error) {
	if err := model.ValidateProfile(profile); err != nil {
		return nil, nil, fmt.Errorf("feed: recommended for agent %d: %w", profile.Agent.ID, err)
	}
	limit = normLimit(limit)
	valid, failed := s.validEntries(entries, profile.Agent.ID)
	now := s.now()
	window := rank(inWindow(valid, now, tf), now)

	categories, tags := profile.AuthoredCategories(), profile.AuthoredTags()
	out := make([]Item, 0, limit)
	taken := make(map[int64]bool, limit)
	add := func(it Item, src Source) {
		it.Source = src
		it.Personalized = src == SourcePersonalized
		taken[it.Entry.ID] = true
		out = append(out, it)
	}

	for _, it := range window {
		if len(out) == limit {
			break
		}
		if interested(it.Entry, categories, tags) {
			add(it, SourcePersonalized)
		}
	}
	personalized := len(out)
	for _, it := range window {
		if len(out) == limit {
			break
		}
		if !taken[it.Entry.ID] {
			add(it, SourceFallback)
		}
	}
	if len(out) < limit {
		for _, it := range rank(valid, now) {
			if len(out) == limit {
				break
			}
			if !taken[it.Entry.ID] {
				add(it, SourceFallbackAllTime)
			}
		}
	}
	if personalized < len(out) {
		s.logger.Debug("feed: recommended padded with fallback",
			"agent_id", profile.Agent.ID, "personalized", personalized, "fallback", len(out)-personalized)
	}
	return out, failed, nil
}

func interested(e model.KnowledgeEntry, categories, tags map[string]bool) bool {
	if categories[model.NormalizeLabel(e.Category)] {
		return true
	}
	for _, t := range e.Tags {
		if tags[model.NormalizeLabel(t)] {
			return true
		}
	}
	return false
}

// Opportunity is an open problem ranked for an agent.
type Opportunity struct {
	Problem model.Problem     `json:"problem"`
	Match   model.MatchResult `json:"match"`
}

// Opportunities ranks open problems for the agent by the matcher's problem
// signals. Problems the agent posted are skipped.
func (s *Service) Opportunities(ctx context.Context, profile model.AgentProfile, problems []model.Problem, limit int, minScore float64) ([]Opportunity, model.ItemErrors, error) {
	byID := make(map[int64]model.Problem, len(problems))
	open := make([]model.Problem, 0, len(problems))
	for _, p := range problems {
		if p.Status != model.ProblemOpen && p.Status != "" {
			continue
		}
		byID[p.ID] = p
		open = append(open, p)
	}
	matches, failed, err := s.matcher.ScoreProblemsForAgent(ctx, profile, open, matching.Options{MinScore: minScore, Limit: normLimit(limit)})
	if err != nil {
		return nil, nil, fmt.Errorf("feed: opportunities: %w", err)
	}
	out := make([]Opportunity, len(matches))
	for i, m := range matches {
		out[i] = Opportunity{Problem: byID[m.TargetID], Match: m}
	}
	return out, failed, nil
}

// SmartRecommendation is a knowledge entry ranked for an agent.
type SmartRecommendation struct {
	Entry        model.KnowledgeEntry `json:"entry"`
	QualityScore float64              `json:"quality_score"`
	Match        model.MatchResult    `json:"match"`
}

// SmartRecommendations ranks knowledge for the agent by the matcher's
// knowledge signals. Entries the agent authored are skipped.
func (s *Service) SmartRecommendations(ctx context.Context, profile model.AgentProfile, entries []model.KnowledgeEntry, limit int, minScore float64) ([]SmartRecommendation, model.ItemErrors, error) {
	byID := make(map[int64]model.KnowledgeEntry, len(entries))
	for _, e := range entries {
		byID[e.ID] = e
	}
	matches, failed, err := s.matcher.ScoreKnowledgeForAgent(ctx, profile, entries, matching.Options{MinScore: minScore, Limit: normLimit(limit)})
	if err != nil {
		return nil, nil, fmt.Errorf("feed: smart recommendations: %w", err)
	}
	now := s.now()
	out := make([]SmartRecommendation, len(matches))
	for i, m := range matches {
		e := byID[m.TargetID]
		out[i] = SmartRecommendation{Entry: e, QualityScore: quality.Score(e, now).QualityScore, Match: m}
	}
	return out, failed, nil
}

// validEntries drops invalid entries, duplicates, and entries authored by
// exclude (when non-zero).
func (s *Service) validEntries(entries []model.KnowledgeEntry, exclude int64) ([]model.KnowledgeEntry, model.ItemErrors) {
	var failed model.ItemErrors
	seen := make(map[int64]bool, len(entries))
	out := make([]model.KnowledgeEntry, 0, len(entries))
	for _, e := range entries {
		if err := model.Validate(e); err != nil {
			failed.Add(e.ID, err)
			continue
		}
		if seen[e.ID] {
			continue
		}
		seen[e.ID] = true
		if exclude != 0 && e.AuthorID == exclude {
			continue
		}
		out = append(out, e)
	}
	if len(failed) > 0 {
		s.logger.Warn("feed: rejected invalid entries", failed.LogAttrs()...)
	}
	return out, failed
}

func inWindow(entries []model.KnowledgeEntry, now time.Time, tf Timeframe) []model.KnowledgeEntry {
	cutoff := now.Add(-tf.Duration())
	out := make([]model.KnowledgeEntry, 0, len(entries))
	for _, e := range entries {
		if !e.UpdatedAt.Before(cutoff) {
			out = append(out, e)
		}
	}
	return out
}

// rank scores and sorts entries by trending score desc, quality desc,
// created_at desc, id asc.
func rank(entries []model.KnowledgeEntry, now time.Time) []Item {
	items := make([]Item, len(entries))
	for i, e := range entries {
		items[i] = Item{Entry: e, TrendingScore: TrendingScore(e), QualityScore: quality.Score(e, now).QualityScore}
	}
	sort.Slice(items, func(i, j int) bool {
		a, b := items[i], items[j]
		if a.TrendingScore != b.TrendingScore {
			return a.TrendingScore > b.TrendingScore
		}
		if a.QualityScore != b.QualityScore {
			return a.QualityScore > b.QualityScore
		}
		if !a.Entry.CreatedAt.Equal(b.Entry.CreatedAt) {
			return a.Entry.CreatedAt.After(b.Entry.CreatedAt)
		}
		return a.Entry.ID < b.Entry.ID
	})
	return items
}

func normLimit(limit int) int {
	if limit <= 0 {
		return DefaultLimit
	}
	return limit
}
