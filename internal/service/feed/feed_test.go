package feed

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Alfred252525/Analytical-Fire-sub000/internal/matching"
	"github.com/Alfred252525/Analytical-Fire-sub000/internal/model"
)

var testNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func testService() *Service {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	clock := func() time.Time { return testNow }
	m := matching.NewMatcher(logger, 2).WithClock(clock)
	return New(m, logger).WithClock(clock)
}

func entry(id, author int64, category string, updatedAgo time.Duration, up, usage int64, tags ...string) model.KnowledgeEntry {
	return model.KnowledgeEntry{
		ID: id, AuthorID: author, Title: "entry", Category: category, Tags: tags,
		Upvotes: up, UsageCount: usage, SuccessRate: 0.5,
		CreatedAt: testNow.Add(-updatedAgo - time.Hour), UpdatedAt: testNow.Add(-updatedAgo),
	}
}

func ids(items []Item) []int64 {
	out := make([]int64, len(items))
	for i, it := range items {
		out[i] = it.Entry.ID
	}
	return out
}

func TestParseTimeframe(t *testing.T) {
	for in, want := range map[string]Timeframe{"1d": Day, "7d": Week, "30d": Month, "": Week} {
		got, err := ParseTimeframe(in)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	_, err := ParseTimeframe("2w")
	require.Error(t, err)
	assert.True(t, errors.Is(err, model.ErrInvalidInput))

	assert.Equal(t, 24*time.Hour, Day.Duration())
	assert.Equal(t, 30*24*time.Hour, Month.Duration())
}

func TestTrendingScore(t *testing.T) {
	e := model.KnowledgeEntry{Upvotes: 5, UsageCount: 3, Downvotes: 2, Verified: true}
	assert.Equal(t, int64(5*2+3+10-2), TrendingScore(e))
	e.Verified = false
	e.Downvotes = 20
	assert.Equal(t, int64(-7), TrendingScore(e))
}

func TestTrendingWindowAndOrder(t *testing.T) {
	old := entry(1, 7, "auth", 10*24*time.Hour, 100, 0)
	top := entry(2, 7, "auth", time.Hour, 10, 0)
	// 3 and 4 tie on trending score; 4 has the higher success rate.
	tieLow := entry(3, 7, "db", 2*time.Hour, 2, 1)
	tieHigh := entry(4, 7, "db", 3*time.Hour, 2, 1)
	tieHigh.SuccessRate = 0.9
	bad := entry(5, 7, "db", time.Hour, 1, 0)
	bad.Downvotes = -1

	items, failed := testService().Trending([]model.KnowledgeEntry{old, top, tieLow, tieHigh, bad}, Week, 10)
	require.Len(t, failed, 1)
	assert.Equal(t, "5", failed[0].ItemID)
	assert.Equal(t, []int64{2, 4, 3}, ids(items))
	for _, it := range items {
		assert.Equal(t, SourceTrending, it.Source)
		assert.False(t, it.Personalized)
	}

	limited, _ := testService().Trending([]model.KnowledgeEntry{top, tieLow, tieHigh}, Week, 1)
	assert.Equal(t, []int64{2}, ids(limited))
}

func TestTrendingTieBreakByCreatedThenID(t *testing.T) {
	a := entry(10, 7, "auth", time.Hour, 1, 0)
	b := entry(11, 7, "auth", time.Hour, 1, 0)
	c := entry(12, 7, "auth", time.Hour, 1, 0)
	// Past the age horizon all three share the same quality score.
	a.CreatedAt = testNow.Add(-400 * 24 * time.Hour)
	b.CreatedAt = a.CreatedAt
	c.CreatedAt = testNow.Add(-390 * 24 * time.Hour)
	items, _ := testService().Trending([]model.KnowledgeEntry{b, a, c}, Day, 0)
	assert.Equal(t, []int64{12, 10, 11}, ids(items))
}

func TestRecommendedPersonalizedThenFallback(t *testing.T) {
	agent := model.AgentProfile{
		Agent:     model.Agent{ID: 1},
		Knowledge: []model.KnowledgeEntry{entry(100, 1, "auth", 48*time.Hour, 0, 0, "jwt")},
	}
	entries := []model.KnowledgeEntry{
		entry(100, 1, "auth", time.Hour, 50, 0, "jwt"), // own entry
		entry(1, 9, "auth", time.Hour, 1, 0),
		entry(2, 9, "ml", time.Hour, 3, 0, "JWT"),
		entry(3, 9, "ml", time.Hour, 9, 0),
		entry(4, 9, "db", 20*24*time.Hour, 40, 0),
		entry(5, 9, "db", time.Hour, 5, 0),
	}

	items, failed, err := testService().Recommended(agent, entries, Week, 5)
	require.NoError(t, err)
	assert.Empty(t, failed)
	require.Len(t, items, 5)
	assert.Equal(t, []int64{2, 1, 3, 5, 4}, ids(items))

	assert.True(t, items[0].Personalized)
	assert.Equal(t, SourcePersonalized, items[0].Source)
	assert.True(t, items[1].Personalized)
	assert.Equal(t, SourceFallback, items[2].Source)
	assert.False(t, items[2].Personalized)
	assert.Equal(t, SourceFallback, items[3].Source)
	assert.Equal(t, SourceFallbackAllTime, items[4].Source)
	assert.NotContains(t, ids(items), int64(100))
}

func TestRecommendedShortWhenCorpusIsSmall(t *testing.T) {
	agent := model.AgentProfile{Agent: model.Agent{ID: 1}}
	items, _, err := testService().Recommended(agent, []model.KnowledgeEntry{entry(1, 9, "auth", time.Hour, 1, 0)}, Day, 10)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, SourceFallback, items[0].Source)
}

func TestRecommendedRejectsInvalidProfile(t *testing.T) {
	_, _, err := testService().Recommended(model.AgentProfile{}, nil, Day, 10)
	require.Error(t, err)
	assert.True(t, errors.Is(err, model.ErrInvalidInput))
}

func TestOpportunitiesOnlyOpenProblems(t *testing.T) {
	agent := model.AgentProfile{
		Agent:     model.Agent{ID: 1, ReputationScore: 0.5},
		Knowledge: []model.KnowledgeEntry{entry(100, 1, "auth", time.Hour, 0, 0, "jwt")},
	}
	problems := []model.Problem{
		{ID: 1, Title: "JWT expiry", Category: "auth", Tags: []string{"jwt"}, PosterID: 9, Status: model.ProblemOpen},
		{ID: 2, Title: "JWT rotation", Category: "auth", PosterID: 9, Status: model.ProblemSolved},
		{ID: 3, Title: "Replica lag", Category: "db", PosterID: 9, Status: model.ProblemOpen},
		{ID: 4, Title: "Own", Category: "auth", PosterID: 1, Status: model.ProblemOpen},
	}
	out, failed, err := testService().Opportunities(context.Background(), agent, problems, 10, 0)
	require.NoError(t, err)
	assert.Empty(t, failed)
	require.Len(t, out, 2)
	assert.Equal(t, int64(1), out[0].Problem.ID)
	assert.Equal(t, int64(1), out[0].Match.TargetID)
	assert.Equal(t, model.TargetProblem, out[0].Match.TargetKind)
	assert.Equal(t, int64(3), out[1].Problem.ID)
	assert.Greater(t, out[0].Match.MatchScore, out[1].Match.MatchScore)
}

func TestSmartRecommendations(t *testing.T) {
	agent := model.AgentProfile{
		Agent:     model.Agent{ID: 1},
		Knowledge: []model.KnowledgeEntry{entry(100, 1, "auth", time.Hour, 0, 0, "jwt")},
	}
	entries := []model.KnowledgeEntry{
		entry(1, 9, "auth", time.Hour, 0, 0, "jwt"),
		entry(2, 9, "ml", time.Hour, 0, 0),
		entry(100, 1, "auth", time.Hour, 0, 0, "jwt"),
	}
	out, _, err := testService().SmartRecommendations(context.Background(), agent, entries, 10, 0.4)
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, int64(1), out[0].Entry.ID)
	assert.Greater(t, out[0].QualityScore, 0.0)
	assert.Contains(t, out[0].Match.Signals, "knowledge_gap")
}
