package quality

import (
	"context"
	"fmt"
	"time"

	"github.com/Alfred252525/Analytical-Fire-sub000/internal/model"
)

// ScoreStore is the storage surface a refresh reads from and writes back to.
type ScoreStore interface {
	ListKnowledge(ctx context.Context, since time.Time, limit int) ([]model.KnowledgeEntry, error)
	UpdateQualityScores(ctx context.Context, scores map[int64]float64, scoredAt time.Time) (int64, error)
}

// RefreshResult summarizes one write-back pass.
type RefreshResult struct {
	Scored  int
	Updated int64
	Failed  model.ItemErrors
}

// Refresh scores the limit most recently updated entries and writes the
// quality scores back. Invalid entries are skipped and reported in Failed.
func (s *Scorer) Refresh(ctx context.Context, store ScoreStore, limit int) (RefreshResult, error) {
	entries, err := store.ListKnowledge(ctx, time.Time{}, limit)
	if err != nil {
		return RefreshResult{}, fmt.Errorf("quality: refresh: load knowledge: %w", err)
	}
	results, failed, err := s.ScoreBatch(ctx, entries)
	if err != nil {
		return RefreshResult{}, fmt.Errorf("quality: refresh: %w", err)
	}
	scores := make(map[int64]float64, len(results))
	for id, r := range results {
		scores[id] = r.QualityScore
	}
	updated, err := store.UpdateQualityScores(ctx, scores, s.now())
	if err != nil {
		return RefreshResult{}, fmt.Errorf("quality: refresh: write scores: %w", err)
	}
	return RefreshResult{Scored: len(results), Updated: updated, Failed: failed}, nil
}
