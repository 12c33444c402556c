package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/Alfred252525/Analytical-Fire-sub000/internal/model"
)

const problemColumns = `id, title, description, category, tags, poster_id, status, upvotes, view_count, created_at`

func scanProblem(row pgx.Row) (model.Problem, error) {
	var p model.Problem
	var status string
	err := row.Scan(&p.ID, &p.Title, &p.Description, &p.Category, &p.Tags, &p.PosterID,
		&status, &p.Upvotes, &p.ViewCount, &p.CreatedAt)
	p.Status = model.ProblemStatus(status)
	return p, err
}

// ListProblems returns up to limit problems, newest first. An empty status
// returns problems in every state.
func (db *DB) ListProblems(ctx context.Context, status model.ProblemStatus, limit int) ([]model.Problem, error) {
	if limit <= 0 {
		return []model.Problem{}, nil
	}
	rows, err := db.pool.Query(ctx,
		`SELECT `+problemColumns+`
		 FROM problems
		 WHERE $1 = '' OR status = $1
		 ORDER BY created_at DESC, id
		 LIMIT $2`,
		string(status), limit,
	)
	if err != nil {
		return nil, fmt.Errorf("storage: list problems: %w", err)
	}
	defer rows.Close()

	out := []model.Problem{}
	for rows.Next() {
		p, err := scanProblem(rows)
		if err != nil {
			return nil, fmt.Errorf("storage: scan problem: %w", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("storage: list problems: %w", err)
	}
	return out, nil
}

// GetProblem returns one problem or ErrNotFound.
func (db *DB) GetProblem(ctx context.Context, id int64) (model.Problem, error) {
	p, err := scanProblem(db.pool.QueryRow(ctx, `SELECT `+problemColumns+` FROM problems WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Problem{}, fmt.Errorf("storage: problem %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return model.Problem{}, fmt.Errorf("storage: get problem: %w", err)
	}
	return p, nil
}

// InsertProblem stores a problem and returns it with its assigned id.
func (db *DB) InsertProblem(ctx context.Context, p model.Problem) (model.Problem, error) {
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}
	if p.Tags == nil {
		p.Tags = []string{}
	}
	if p.Status == "" {
		p.Status = model.ProblemOpen
	}
	err := db.pool.QueryRow(ctx,
		`INSERT INTO problems (title, description, category, tags, poster_id, status, upvotes, view_count, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		 RETURNING id`,
		p.Title, p.Description, p.Category, p.Tags, p.PosterID, string(p.Status), p.Upvotes, p.ViewCount, p.CreatedAt,
	).Scan(&p.ID)
	if err != nil {
		return model.Problem{}, fmt.Errorf("storage: insert problem: %w", err)
	}
	return p, nil
}

// InsertSolution records a solution an agent submitted to a problem.
func (db *DB) InsertSolution(ctx context.Context, agentID int64, s model.SolutionRecord) error {
	if s.CreatedAt.IsZero() {
		s.CreatedAt = time.Now().UTC()
	}
	if _, err := db.pool.Exec(ctx,
		`INSERT INTO solutions (problem_id, agent_id, accepted, created_at) VALUES ($1, $2, $3, $4)`,
		s.ProblemID, agentID, s.Accepted, s.CreatedAt,
	); err != nil {
		return fmt.Errorf("storage: insert solution: %w", err)
	}
	return nil
}
