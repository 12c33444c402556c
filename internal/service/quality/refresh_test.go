package quality

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Alfred252525/Analytical-Fire-sub000/internal/model"
)

type scoreStore struct {
	entries  []model.KnowledgeEntry
	listErr  error
	writeErr error
	limit    int
	written  map[int64]float64
	scoredAt time.Time
}

func (s *scoreStore) ListKnowledge(_ context.Context, _ time.Time, limit int) ([]model.KnowledgeEntry, error) {
	s.limit = limit
	return s.entries, s.listErr
}

func (s *scoreStore) UpdateQualityScores(_ context.Context, scores map[int64]float64, scoredAt time.Time) (int64, error) {
	if s.writeErr != nil {
		return 0, s.writeErr
	}
	s.written = scores
	s.scoredAt = scoredAt
	return int64(len(scores)), nil
}

func TestRefreshWritesScores(t *testing.T) {
	store := &scoreStore{entries: []model.KnowledgeEntry{
		{ID: 1, SuccessRate: 1, CreatedAt: testNow, UpdatedAt: testNow},
		{ID: 2, SuccessRate: 3},
		{ID: 3, CreatedAt: testNow, UpdatedAt: testNow},
	}}
	s := NewScorer(testLogger(), 2).WithClock(func() time.Time { return testNow })

	res, err := s.Refresh(context.Background(), store, 50)
	require.NoError(t, err)
	assert.Equal(t, 50, store.limit)
	assert.Equal(t, 2, res.Scored)
	assert.Equal(t, int64(2), res.Updated)
	require.Len(t, res.Failed, 1)
	assert.Equal(t, "2", res.Failed[0].ItemID)

	assert.Equal(t, Score(store.entries[0], testNow).QualityScore, store.written[1])
	assert.NotContains(t, store.written, int64(2))
	assert.Equal(t, testNow, store.scoredAt)
}

func TestRefreshStoreErrors(t *testing.T) {
	s := NewScorer(testLogger(), 1)
	boom := errors.New("boom")

	_, err := s.Refresh(context.Background(), &scoreStore{listErr: boom}, 10)
	assert.ErrorIs(t, err, boom)

	_, err = s.Refresh(context.Background(), &scoreStore{writeErr: boom}, 10)
	assert.ErrorIs(t, err, boom)
}
