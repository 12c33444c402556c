package quality

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Alfred252525/Analytical-Fire-sub000/internal/model"
)

var testNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func TestScore(t *testing.T) {
	tests := []struct {
		name     string
		entry    model.KnowledgeEntry
		minScore float64
		maxScore float64
		tier     Tier
	}{
		{
			name:     "empty entry updated now",
			entry:    model.KnowledgeEntry{ID: 1, CreatedAt: testNow, UpdatedAt: testNow},
			minScore: 0.0,
			maxScore: 0.06,
			tier:     TierNeedsImprovement,
		},
		{
			name:     "zero value entry",
			entry:    model.KnowledgeEntry{ID: 1},
			minScore: 0,
			maxScore: 0,
			tier:     TierNeedsImprovement,
		},
		{
			name: "well used verified entry",
			entry: model.KnowledgeEntry{
				ID: 1, SuccessRate: 0.9, UsageCount: 100, Upvotes: 50, Downvotes: 1, Verified: true,
				CreatedAt: testNow.AddDate(0, 0, -30), UpdatedAt: testNow.AddDate(0, 0, -1),
			},
			minScore: 0.88,
			maxScore: 0.91,
			tier:     TierExcellent,
		},
		{
			name: "decent unverified entry",
			entry: model.KnowledgeEntry{
				ID: 1, SuccessRate: 0.7, UsageCount: 10, Upvotes: 5, Downvotes: 2,
				CreatedAt: testNow.AddDate(0, -6, 0), UpdatedAt: testNow.AddDate(0, 0, -3),
			},
			minScore: 0.50,
			maxScore: 0.60,
			tier:     TierFair,
		},
		{
			name: "heavily downvoted entry",
			entry: model.KnowledgeEntry{
				ID: 1, SuccessRate: 0.2, UsageCount: 3, Upvotes: 1, Downvotes: 40,
				CreatedAt: testNow.AddDate(-2, 0, 0), UpdatedAt: testNow.AddDate(-1, 0, 0),
			},
			minScore: 0.1,
			maxScore: 0.3,
			tier:     TierNeedsImprovement,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := Score(tt.entry, testNow)
			assert.GreaterOrEqual(t, r.QualityScore, tt.minScore)
			assert.LessOrEqual(t, r.QualityScore, tt.maxScore)
			assert.Equal(t, tt.tier, r.Tier)
			assert.GreaterOrEqual(t, r.TrustScore, r.QualityScore)
		})
	}
}

func TestScoreEndToEndScenario(t *testing.T) {
	e := model.KnowledgeEntry{
		ID: 7, SuccessRate: 0.85, UsageCount: 30, Upvotes: 20, Downvotes: 1, Verified: true,
		CreatedAt: testNow, UpdatedAt: testNow,
	}
	r := Score(e, testNow)

	wantUsage := math.Log(31) / math.Log(51) * 0.20
	wantVotes := 20.0 / 22.0 * 0.20
	want := 0.85*0.40 + wantUsage + wantVotes + 0.10 + 0 + 0.05

	assert.InDelta(t, 0.34, r.Breakdown.Base, 1e-9)
	assert.InDelta(t, wantUsage, r.Breakdown.Usage, 1e-9)
	assert.InDelta(t, wantVotes, r.Breakdown.Votes, 1e-9)
	assert.InDelta(t, 0.10, r.Breakdown.Verification, 1e-9)
	assert.InDelta(t, 0.0, r.Breakdown.Age, 1e-9)
	assert.InDelta(t, 0.05, r.Breakdown.RecentUsage, 1e-9)
	assert.InDelta(t, want, r.QualityScore, 1e-9)
	assert.True(t, r.QualityScore >= 0.84 && r.QualityScore <= 0.95)
	assert.Equal(t, TierExcellent, r.Tier)
	assert.InDelta(t, want+0.10, r.TrustScore, 1e-9)
	assert.Equal(t, int64(7), r.EntryID)
}

func TestScoreZeroSignalsIsNotAnError(t *testing.T) {
	e := model.KnowledgeEntry{ID: 3, CreatedAt: testNow.AddDate(0, 0, -10), UpdatedAt: testNow.AddDate(0, 0, -10)}
	r := Score(e, testNow)
	assert.LessOrEqual(t, r.QualityScore, 0.4)
	assert.Equal(t, TierNeedsImprovement, r.Tier)
	assert.Zero(t, r.Breakdown.Votes)
	assert.Zero(t, r.Breakdown.Usage)
}

func TestScoreComponentCaps(t *testing.T) {
	e := model.KnowledgeEntry{
		ID: 1, SuccessRate: 1, UsageCount: 1_000_000, Upvotes: 1_000_000, Verified: true,
		CreatedAt: testNow.AddDate(-5, 0, 0), UpdatedAt: testNow.Add(time.Hour), // clock skew
	}
	r := Score(e, testNow)
	assert.InDelta(t, WeightUsage, r.Breakdown.Usage, 1e-9)
	assert.InDelta(t, WeightAge, r.Breakdown.Age, 1e-9)
	assert.InDelta(t, WeightRecentUsage, r.Breakdown.RecentUsage, 1e-9)
	assert.Less(t, r.Breakdown.Votes, WeightVotes)
	assert.LessOrEqual(t, r.QualityScore, 1.0)
	assert.LessOrEqual(t, r.TrustScore, 1.0)
}

func TestScoreRecencyDecay(t *testing.T) {
	base := model.KnowledgeEntry{ID: 1, CreatedAt: testNow}
	var prev float64 = 1
	for days := 0; days <= 8; days++ {
		e := base
		e.UpdatedAt = testNow.AddDate(0, 0, -days)
		got := Score(e, testNow).Breakdown.RecentUsage
		assert.LessOrEqual(t, got, prev, "recency must not increase with age (day %d)", days)
		prev = got
	}
	assert.Zero(t, prev, "recency reaches zero after seven days")
}

func TestScoreClampsOutOfRangeFields(t *testing.T) {
	e := model.KnowledgeEntry{ID: 1, SuccessRate: math.NaN(), UsageCount: -5, Upvotes: -1, Downvotes: -1}
	r := Score(e, testNow)
	assert.Zero(t, r.QualityScore)
}

func TestScoreBoundsProperty(t *testing.T) {
	rates := []float64{0, 0.25, 0.5, 0.99, 1}
	counts := []int64{0, 1, 49, 50, 10_000}
	for _, rate := range rates {
		for _, usage := range counts {
			for _, up := range counts {
				for _, verified := range []bool{false, true} {
					e := model.KnowledgeEntry{
						ID: 1, SuccessRate: rate, UsageCount: usage, Upvotes: up, Downvotes: usage,
						Verified: verified, CreatedAt: testNow.AddDate(0, 0, -int(usage%400)), UpdatedAt: testNow,
					}
					r := Score(e, testNow)
					require.GreaterOrEqual(t, r.QualityScore, 0.0)
					require.LessOrEqual(t, r.QualityScore, 1.0)
					require.GreaterOrEqual(t, r.TrustScore, r.QualityScore)
					require.LessOrEqual(t, r.TrustScore, 1.0)
					require.InDelta(t, math.Min(1, r.Breakdown.Sum()), r.QualityScore, 1e-12)
				}
			}
		}
	}
}

func TestTierFor(t *testing.T) {
	assert.Equal(t, TierExcellent, TierFor(0.8))
	assert.Equal(t, TierGood, TierFor(0.79))
	assert.Equal(t, TierGood, TierFor(0.6))
	assert.Equal(t, TierFair, TierFor(0.4))
	assert.Equal(t, TierNeedsImprovement, TierFor(0.39))
}

func TestScoreIsDeterministic(t *testing.T) {
	e := model.KnowledgeEntry{ID: 9, SuccessRate: 0.42, UsageCount: 17, Upvotes: 3, Downvotes: 2, CreatedAt: testNow.AddDate(0, -1, 0), UpdatedAt: testNow.AddDate(0, 0, -2)}
	first := Score(e, testNow)
	for range 10 {
		assert.Equal(t, first, Score(e, testNow))
	}
}

func TestScoreBatch(t *testing.T) {
	s := NewScorer(testLogger(), 2).WithClock(func() time.Time { return testNow })
	entries := []model.KnowledgeEntry{
		{ID: 1, SuccessRate: 0.5, CreatedAt: testNow, UpdatedAt: testNow},
		{ID: 2, UsageCount: -1},
		{ID: 3, SuccessRate: 1.5},
		{ID: 4, SuccessRate: 0.9, Verified: true, UpdatedAt: testNow},
	}

	results, failed, err := s.ScoreBatch(context.Background(), entries)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Contains(t, results, int64(1))
	assert.Contains(t, results, int64(4))

	require.Len(t, failed, 2)
	assert.Equal(t, "2", failed[0].ItemID)
	assert.Equal(t, "3", failed[1].ItemID)
	assert.True(t, errors.Is(failed[0], model.ErrInvalidInput))
	assert.Contains(t, failed[0].Error(), "usage_count")
	assert.Error(t, failed.Err())
}

func TestScoreBatchCancelled(t *testing.T) {
	s := NewScorer(testLogger(), 1)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, _, err := s.ScoreBatch(ctx, []model.KnowledgeEntry{{ID: 1}})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestExplain(t *testing.T) {
	e := model.KnowledgeEntry{ID: 1, SuccessRate: 0.9, UsageCount: 100, Upvotes: 50, CreatedAt: testNow, UpdatedAt: testNow}
	in := Explain(e, testNow)
	require.NotEmpty(t, in.Suggestions)
	assert.Equal(t, "verification", in.Suggestions[0].Component)
	for i := 1; i < len(in.Suggestions); i++ {
		assert.GreaterOrEqual(t, in.Suggestions[i-1].Headroom, in.Suggestions[i].Headroom)
	}

	maxed := model.KnowledgeEntry{ID: 2, SuccessRate: 1, UsageCount: 100, Upvotes: 1000, Verified: true, CreatedAt: testNow, UpdatedAt: testNow}
	assert.Empty(t, Explain(maxed, testNow).Suggestions)

	fresh := Explain(model.KnowledgeEntry{ID: 3}, testNow)
	assert.Equal(t, "base", fresh.Suggestions[0].Component)
}

func TestIndex(t *testing.T) {
	idx := Index([]model.KnowledgeEntry{{ID: 1, SuccessRate: 1}, {ID: 2}}, testNow)
	assert.InDelta(t, 0.4, idx[1], 1e-9)
	assert.Zero(t, idx[2])
}
