package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/Alfred252525/Analytical-Fire-sub000/internal/model"
)

const knowledgeColumns = `id, title, content, category, tags, author_id, success_rate,
	usage_count, upvotes, downvotes, verified, created_at, updated_at`

func scanKnowledge(row pgx.Row) (model.KnowledgeEntry, error) {
	var e model.KnowledgeEntry
	err := row.Scan(&e.ID, &e.Title, &e.Content, &e.Category, &e.Tags, &e.AuthorID, &e.SuccessRate,
		&e.UsageCount, &e.Upvotes, &e.Downvotes, &e.Verified, &e.CreatedAt, &e.UpdatedAt)
	return e, err
}

func collectKnowledge(rows pgx.Rows) ([]model.KnowledgeEntry, error) {
	defer rows.Close()
	out := []model.KnowledgeEntry{}
	for rows.Next() {
		e, err := scanKnowledge(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// ListKnowledge returns up to limit entries updated at or after since, most
// recently updated first. A zero since returns all entries.
func (db *DB) ListKnowledge(ctx context.Context, since time.Time, limit int) ([]model.KnowledgeEntry, error) {
	if limit <= 0 {
		return []model.KnowledgeEntry{}, nil
	}
	rows, err := db.pool.Query(ctx,
		`SELECT `+knowledgeColumns+`
		 FROM knowledge_entries
		 WHERE updated_at >= $1
		 ORDER BY updated_at DESC, id
		 LIMIT $2`,
		since, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("storage: list knowledge: %w", err)
	}
	out, err := collectKnowledge(rows)
	if err != nil {
		return nil, fmt.Errorf("storage: scan knowledge: %w", err)
	}
	return out, nil
}

// GetKnowledge returns one entry or ErrNotFound.
func (db *DB) GetKnowledge(ctx context.Context, id int64) (model.KnowledgeEntry, error) {
	e, err := scanKnowledge(db.pool.QueryRow(ctx,
		`SELECT `+knowledgeColumns+` FROM knowledge_entries WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return model.KnowledgeEntry{}, fmt.Errorf("storage: knowledge %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return model.KnowledgeEntry{}, fmt.Errorf("storage: get knowledge: %w", err)
	}
	return e, nil
}

// InsertKnowledge stores an entry and returns it with its assigned id.
// The engine never calls it; hosts and tests seed snapshots with it.
func (db *DB) InsertKnowledge(ctx context.Context, e model.KnowledgeEntry) (model.KnowledgeEntry, error) {
	now := time.Now().UTC()
	if e.CreatedAt.IsZero() {
		e.CreatedAt = now
	}
	if e.UpdatedAt.IsZero() {
		e.UpdatedAt = e.CreatedAt
	}
	if e.Tags == nil {
		e.Tags = []string{}
	}
	err := db.pool.QueryRow(ctx,
		`INSERT INTO knowledge_entries (title, content, category, tags, author_id, success_rate,
		     usage_count, upvotes, downvotes, verified, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		 RETURNING id`,
		e.Title, e.Content, e.Category, e.Tags, e.AuthorID, e.SuccessRate,
		e.UsageCount, e.Upvotes, e.Downvotes, e.Verified, e.CreatedAt, e.UpdatedAt,
	).Scan(&e.ID)
	if err != nil {
		return model.KnowledgeEntry{}, fmt.Errorf("storage: insert knowledge: %w", err)
	}
	return e, nil
}

// UpdateQualityScores writes computed quality scores back in one transaction
// and returns the number of rows changed. Ids that no longer exist are
// ignored. Serialization failures and deadlocks are retried.
func (db *DB) UpdateQualityScores(ctx context.Context, scores map[int64]float64, scoredAt time.Time) (int64, error) {
	if len(scores) == 0 {
		return 0, nil
	}
	ids := make([]int64, 0, len(scores))
	values := make([]float64, 0, len(scores))
	for id, s := range scores {
		ids = append(ids, id)
		values = append(values, s)
	}

	var updated int64
	err := WithRetry(ctx, 3, 10*time.Millisecond, func() error {
		tx, err := db.pool.Begin(ctx)
		if err != nil {
			return err
		}
		defer func() { _ = tx.Rollback(ctx) }()

		tag, err := tx.Exec(ctx,
			`UPDATE knowledge_entries AS k
			 SET quality_score = s.score, quality_scored_at = $3
			 FROM unnest($1::bigint[], $2::double precision[]) AS s(id, score)
			 WHERE k.id = s.id`,
			ids, values, scoredAt,
		)
		if err != nil {
			return err
		}
		if err := tx.Commit(ctx); err != nil {
			return err
		}
		updated = tag.RowsAffected()
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("storage: update quality scores: %w", err)
	}
	return updated, nil
}

// QualityScore returns the stored quality score of an entry, or ErrNotFound
// when the entry does not exist or has not been scored yet.
func (db *DB) QualityScore(ctx context.Context, id int64) (float64, error) {
	var score *float64
	err := db.pool.QueryRow(ctx, `SELECT quality_score FROM knowledge_entries WHERE id = $1`, id).Scan(&score)
	if errors.Is(err, pgx.ErrNoRows) || (err == nil && score == nil) {
		return 0, fmt.Errorf("storage: quality score %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return 0, fmt.Errorf("storage: get quality score: %w", err)
	}
	return *score, nil
}
