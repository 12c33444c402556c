package matching

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Alfred252525/Analytical-Fire-sub000/internal/model"
)

var testNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func testMatcher() *Matcher {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewMatcher(logger, 4).WithClock(func() time.Time { return testNow })
}

func knowledge(id, author int64, category, title, content string, tags ...string) model.KnowledgeEntry {
	return model.KnowledgeEntry{
		ID: id, AuthorID: author, Category: category, Title: title, Content: content, Tags: tags,
		SuccessRate: 0.5, CreatedAt: testNow.Add(-72 * time.Hour), UpdatedAt: testNow.Add(-24 * time.Hour),
	}
}

func profile(id int64, reputation float64, entries ...model.KnowledgeEntry) model.AgentProfile {
	return model.AgentProfile{
		Agent:     model.Agent{ID: id, Name: "agent", ReputationScore: reputation},
		Knowledge: entries,
	}
}

func jwtProblem() model.Problem {
	return model.Problem{
		ID:          500,
		Title:       "JWT refresh fails",
		Description: "refresh tokens rejected after session rotation",
		Category:    "auth",
		Tags:        []string{"auth", "jwt"},
		PosterID:    99,
		Status:      model.ProblemOpen,
		CreatedAt:   testNow.Add(-time.Hour),
	}
}

// authDBAgent has authored knowledge in the auth and db categories only.
func authDBAgent(id int64) model.AgentProfile {
	return profile(id, 0.6,
		knowledge(10*id, id, "auth", "Session rotation", "rotate session tokens safely"),
		knowledge(10*id+1, id, "db", "Connection pooling", "pool sizing for postgres"),
	)
}

func weightedSum(r model.MatchResult) float64 {
	var sum float64
	for name, w := range SignalWeights(r.TargetKind) {
		sum += r.Signals[name] * w
	}
	return sum
}

func TestSignalWeightsSumToOne(t *testing.T) {
	for _, kind := range []model.TargetKind{model.TargetProblem, model.TargetKnowledge} {
		var sum float64
		for _, w := range SignalWeights(kind) {
			sum += w
		}
		assert.InDelta(t, 1.0, sum, 1e-9, string(kind))
	}
	assert.Nil(t, SignalWeights("unknown"))
}

func TestMatchAgentsToProblemScenario(t *testing.T) {
	m := testMatcher()
	profiles := []model.AgentProfile{authDBAgent(1)}

	first, failed, err := m.MatchAgentsToProblem(context.Background(), jwtProblem(), profiles, Options{})
	require.NoError(t, err)
	assert.Empty(t, failed)
	require.Len(t, first, 1)

	r := first[0]
	assert.Equal(t, int64(1), r.AgentID)
	assert.Equal(t, int64(500), r.TargetID)
	assert.Equal(t, model.TargetProblem, r.TargetKind)
	assert.InDelta(t, 1.0/3.0, r.Signals[SignalExpertiseMatch], 1e-9)
	assert.Len(t, r.Signals, 5)
	assert.InDelta(t, r.MatchScore, weightedSum(r), 1e-6)

	for range 5 {
		again, _, err := m.MatchAgentsToProblem(context.Background(), jwtProblem(), profiles, Options{})
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}

func TestProblemSignals(t *testing.T) {
	p := authDBAgent(1)
	p.Solutions = []model.SolutionRecord{
		{ProblemID: 1, Category: "auth", Accepted: true},
		{ProblemID: 2, Category: "Auth", Accepted: false},
		{ProblemID: 3, Category: "db", Accepted: true},
	}
	p.Activity = []model.ActivityEvent{
		{Kind: model.ActivityMessage, At: testNow.Add(-84 * time.Hour)},
		{Kind: model.ActivityDecision, At: testNow.Add(-8 * 24 * time.Hour)},
	}

	s := problemSignals(newAgentView(p, testNow), newProblemView(jwtProblem()))
	assert.InDelta(t, 0.5, s.SuccessHistory, 1e-9)
	// "Session rotation" shares tokens with the problem text; "Connection pooling" does not.
	assert.InDelta(t, 0.5, s.KnowledgeRelevance, 1e-9)
	assert.InDelta(t, math.Log1p(0.5)/math.Log1p(20), s.ActivityLevel, 1e-9)
	assert.InDelta(t, 0.6, s.Reputation, 1e-9)
}

func TestActivityLevel(t *testing.T) {
	assert.Zero(t, activityLevel(nil, testNow))

	var burst []model.ActivityEvent
	for range 40 {
		burst = append(burst, model.ActivityEvent{Kind: model.ActivityMessage, At: testNow})
	}
	assert.InDelta(t, 1.0, activityLevel(burst, testNow), 1e-9)

	stale := []model.ActivityEvent{{Kind: model.ActivityKnowledge, At: testNow.Add(-activityWindow)}}
	assert.Zero(t, activityLevel(stale, testNow))

	future := []model.ActivityEvent{{Kind: model.ActivityKnowledge, At: testNow.Add(time.Hour)}}
	assert.InDelta(t, math.Log1p(1)/math.Log1p(20), activityLevel(future, testNow), 1e-9)
}

func TestMatchAgentsToProblemExcludesPosterAndInvalid(t *testing.T) {
	poster := authDBAgent(99)
	bad := authDBAgent(2)
	bad.Agent.ReputationScore = 1.5
	profiles := []model.AgentProfile{authDBAgent(1), poster, bad, authDBAgent(1)}

	results, failed, err := testMatcher().MatchAgentsToProblem(context.Background(), jwtProblem(), profiles, Options{})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, int64(1), results[0].AgentID)

	require.Len(t, failed, 2)
	assert.Equal(t, "2", failed[0].ItemID)
	assert.Equal(t, "1", failed[1].ItemID)
	for _, f := range failed {
		assert.True(t, errors.Is(f, model.ErrInvalidInput))
	}
}

func TestMatchAgentsToProblemInvalidTarget(t *testing.T) {
	p := jwtProblem()
	p.Status = "pending"
	_, _, err := testMatcher().MatchAgentsToProblem(context.Background(), p, nil, Options{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, model.ErrInvalidInput))
}

func TestMinScoreFiltersToEmptyList(t *testing.T) {
	results, failed, err := testMatcher().MatchAgentsToProblem(context.Background(), jwtProblem(),
		[]model.AgentProfile{authDBAgent(1), authDBAgent(2)}, Options{MinScore: 0.9})
	require.NoError(t, err)
	assert.Empty(t, failed)
	assert.NotNil(t, results)
	assert.Empty(t, results)
}

func TestLimitAndOrdering(t *testing.T) {
	strong := authDBAgent(3)
	strong.Knowledge = append(strong.Knowledge, knowledge(77, 3, "auth", "JWT refresh", "refresh jwt tokens", "jwt"))
	profiles := []model.AgentProfile{authDBAgent(1), authDBAgent(2), strong}

	results, _, err := testMatcher().MatchAgentsToProblem(context.Background(), jwtProblem(), profiles, Options{Limit: 2})
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, int64(3), results[0].AgentID)
	// Agents 1 and 2 tie on every signal, so the lower id wins.
	assert.Equal(t, int64(1), results[1].AgentID)
}

func TestSortTieBreaks(t *testing.T) {
	rs := []model.MatchResult{
		{AgentID: 4, TargetID: 1, MatchScore: 0.5, Reputation: 0.2},
		{AgentID: 3, TargetID: 1, MatchScore: 0.5, Reputation: 0.9},
		{AgentID: 2, TargetID: 1, MatchScore: 0.5, Reputation: 0.2},
		{AgentID: 1, TargetID: 1, MatchScore: 0.7, Reputation: 0.1},
		{AgentID: 2, TargetID: 0, MatchScore: 0.5, Reputation: 0.2},
	}
	Sort(rs)
	got := make([][2]int64, len(rs))
	for i, r := range rs {
		got[i] = [2]int64{r.AgentID, r.TargetID}
	}
	assert.Equal(t, [][2]int64{{1, 1}, {3, 1}, {2, 0}, {2, 1}, {4, 1}}, got)
}

func TestMatchAgentsToKnowledge(t *testing.T) {
	entry := knowledge(900, 42, "auth", "JWT validation", "validate jwt signatures", "jwt")

	fresh := authDBAgent(1)
	equivalent := authDBAgent(2)
	equivalent.Knowledge = append(equivalent.Knowledge, knowledge(901, 2, "auth", "JWT validation guide", "checking jwt", "jwt"))
	author := authDBAgent(42)

	results, failed, err := testMatcher().MatchAgentsToKnowledge(context.Background(), entry,
		[]model.AgentProfile{fresh, equivalent, author}, Options{})
	require.NoError(t, err)
	assert.Empty(t, failed)
	require.Len(t, results, 2)

	byAgent := map[int64]model.MatchResult{}
	for _, r := range results {
		byAgent[r.AgentID] = r
		assert.Equal(t, model.TargetKnowledge, r.TargetKind)
		assert.Len(t, r.Signals, 3)
		assert.InDelta(t, r.MatchScore, weightedSum(r), 1e-6)
	}
	assert.NotContains(t, byAgent, int64(42))
	assert.Equal(t, 1.0, byAgent[1].Signals[SignalKnowledgeGap])
	assert.Equal(t, 0.0, byAgent[2].Signals[SignalKnowledgeGap])
}

func TestScoreProblemsForAgent(t *testing.T) {
	agent := authDBAgent(1)
	own := jwtProblem()
	own.ID, own.PosterID = 501, 1
	invalid := jwtProblem()
	invalid.ID, invalid.ViewCount = 502, -3
	unrelated := model.Problem{ID: 503, Title: "Gradient clipping", Category: "ml", Status: model.ProblemOpen, PosterID: 7}

	results, failed, err := testMatcher().ScoreProblemsForAgent(context.Background(), agent,
		[]model.Problem{unrelated, jwtProblem(), own, invalid}, Options{})
	require.NoError(t, err)
	require.Len(t, failed, 1)
	assert.Equal(t, "502", failed[0].ItemID)
	require.Len(t, results, 2)
	assert.Equal(t, int64(500), results[0].TargetID)
	assert.Equal(t, int64(503), results[1].TargetID)
	for _, r := range results {
		assert.Equal(t, int64(1), r.AgentID)
	}
}

func TestScoreKnowledgeForAgent(t *testing.T) {
	agent := authDBAgent(1)
	entries := []model.KnowledgeEntry{
		knowledge(900, 42, "auth", "JWT validation", "validate jwt signatures", "jwt"),
		knowledge(901, 1, "auth", "Own entry", "mine"),
		knowledge(902, 43, "ml", "Gradient clipping", "clip gradients"),
	}
	results, failed, err := testMatcher().ScoreKnowledgeForAgent(context.Background(), agent, entries, Options{Limit: 5})
	require.NoError(t, err)
	assert.Empty(t, failed)
	require.Len(t, results, 2)
	assert.Equal(t, int64(900), results[0].TargetID)
	assert.Equal(t, int64(902), results[1].TargetID)
}

func TestScoreForAgentRejectsInvalidProfile(t *testing.T) {
	agent := authDBAgent(1)
	agent.Agent.ID = 0
	_, _, err := testMatcher().ScoreKnowledgeForAgent(context.Background(), agent, nil, Options{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, model.ErrInvalidInput))
}

func TestMatchCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, _, err := testMatcher().MatchAgentsToProblem(ctx, jwtProblem(), []model.AgentProfile{authDBAgent(1)}, Options{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
}
