package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/Alfred252525/Analytical-Fire-sub000/internal/model"
)

// ProfileLimits bounds the history loaded into each AgentProfile.
type ProfileLimits struct {
	Agents        int       // profiles per call when no ids are given
	Knowledge     int       // most recent authored entries per agent
	Solutions     int       // most recent solutions per agent
	ActivitySince time.Time // activity events at or after this instant
}

// DefaultProfileLimits returns the limits used by the reference host.
func DefaultProfileLimits(now time.Time) ProfileLimits {
	return ProfileLimits{
		Agents:        1000,
		Knowledge:     50,
		Solutions:     50,
		ActivitySince: now.Add(-7 * 24 * time.Hour),
	}
}

// InsertAgent stores an agent and returns it with its assigned id.
func (db *DB) InsertAgent(ctx context.Context, a model.Agent) (model.Agent, error) {
	err := db.pool.QueryRow(ctx,
		`INSERT INTO agents (name, model_type, messages_sent, messages_received, decisions_logged, reputation_score)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING id`,
		a.Name, a.ModelType, a.MessagesSent, a.MessagesReceived, a.DecisionsLogged, a.ReputationScore,
	).Scan(&a.ID)
	if err != nil {
		return model.Agent{}, fmt.Errorf("storage: insert agent: %w", err)
	}
	return a, nil
}

// RecordActivity appends an activity event for an agent.
func (db *DB) RecordActivity(ctx context.Context, agentID int64, ev model.ActivityEvent) error {
	if ev.At.IsZero() {
		ev.At = time.Now().UTC()
	}
	if _, err := db.pool.Exec(ctx,
		`INSERT INTO activity_events (agent_id, kind, at) VALUES ($1, $2, $3)`,
		agentID, string(ev.Kind), ev.At,
	); err != nil {
		return fmt.Errorf("storage: record activity: %w", err)
	}
	return nil
}

// LoadAgentProfile loads one agent with its bounded history, or ErrNotFound.
func (db *DB) LoadAgentProfile(ctx context.Context, agentID int64, limits ProfileLimits) (model.AgentProfile, error) {
	profiles, err := db.LoadAgentProfiles(ctx, []int64{agentID}, limits)
	if err != nil {
		return model.AgentProfile{}, err
	}
	if len(profiles) == 0 {
		return model.AgentProfile{}, fmt.Errorf("storage: agent %d: %w", agentID, ErrNotFound)
	}
	return profiles[0], nil
}

// LoadAgentProfiles loads the agents named by ids, or up to limits.Agents
// agents by ascending id when ids is empty, each with its bounded history.
// Missing ids are skipped. History is fetched with one query per table.
func (db *DB) LoadAgentProfiles(ctx context.Context, ids []int64, limits ProfileLimits) ([]model.AgentProfile, error) {
	agents, err := db.listAgents(ctx, ids, limits.Agents)
	if err != nil {
		return nil, err
	}
	profiles := make([]model.AgentProfile, len(agents))
	index := make(map[int64]int, len(agents))
	agentIDs := make([]int64, len(agents))
	for i, a := range agents {
		profiles[i] = model.AgentProfile{
			Agent:     a,
			Knowledge: []model.KnowledgeEntry{},
			Solutions: []model.SolutionRecord{},
			Activity:  []model.ActivityEvent{},
		}
		index[a.ID] = i
		agentIDs[i] = a.ID
	}
	if len(agents) == 0 {
		return profiles, nil
	}

	if err := db.loadAuthored(ctx, agentIDs, limits.Knowledge, profiles, index); err != nil {
		return nil, err
	}
	if err := db.loadSolutions(ctx, agentIDs, limits.Solutions, profiles, index); err != nil {
		return nil, err
	}
	if err := db.loadActivity(ctx, agentIDs, limits.ActivitySince, profiles, index); err != nil {
		return nil, err
	}
	return profiles, nil
}

func (db *DB) listAgents(ctx context.Context, ids []int64, limit int) ([]model.Agent, error) {
	const cols = `a.id, a.name, a.model_type, a.messages_sent, a.messages_received,
		(SELECT count(*) FROM knowledge_entries k WHERE k.author_id = a.id),
		a.decisions_logged, a.reputation_score`
	var (
		rows pgx.Rows
		err  error
	)
	if len(ids) > 0 {
		rows, err = db.pool.Query(ctx, `SELECT `+cols+` FROM agents a WHERE a.id = ANY($1) ORDER BY a.id`, ids)
	} else {
		if limit <= 0 {
			return nil, nil
		}
		rows, err = db.pool.Query(ctx, `SELECT `+cols+` FROM agents a ORDER BY a.id LIMIT $1`, limit)
	}
	if err != nil {
		return nil, fmt.Errorf("storage: list agents: %w", err)
	}
	defer rows.Close()

	var out []model.Agent
	for rows.Next() {
		var a model.Agent
		if err := rows.Scan(&a.ID, &a.Name, &a.ModelType, &a.MessagesSent, &a.MessagesReceived,
			&a.KnowledgeAuthored, &a.DecisionsLogged, &a.ReputationScore); err != nil {
			return nil, fmt.Errorf("storage: scan agent: %w", err)
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("storage: list agents: %w", err)
	}
	return out, nil
}

func (db *DB) loadAuthored(ctx context.Context, agentIDs []int64, limit int, profiles []model.AgentProfile, index map[int64]int) error {
	if limit <= 0 {
		return nil
	}
	rows, err := db.pool.Query(ctx,
		`SELECT `+knowledgeColumns+` FROM (
		     SELECT *, row_number() OVER (PARTITION BY author_id ORDER BY updated_at DESC, id) AS rn
		     FROM knowledge_entries
		     WHERE author_id = ANY($1)
		 ) k
		 WHERE rn <= $2
		 ORDER BY author_id, updated_at DESC, id`,
		agentIDs, limit,
	)
	if err != nil {
		return fmt.Errorf("storage: load authored knowledge: %w", err)
	}
	entries, err := collectKnowledge(rows)
	if err != nil {
		return fmt.Errorf("storage: scan authored knowledge: %w", err)
	}
	for _, e := range entries {
		if i, ok := index[e.AuthorID]; ok {
			profiles[i].Knowledge = append(profiles[i].Knowledge, e)
		}
	}
	return nil
}

func (db *DB) loadSolutions(ctx context.Context, agentIDs []int64, limit int, profiles []model.AgentProfile, index map[int64]int) error {
	if limit <= 0 {
		return nil
	}
	rows, err := db.pool.Query(ctx,
		`SELECT agent_id, problem_id, category, accepted, created_at FROM (
		     SELECT s.agent_id, s.problem_id, p.category, s.accepted, s.created_at, s.id,
		            row_number() OVER (PARTITION BY s.agent_id ORDER BY s.created_at DESC, s.id) AS rn
		     FROM solutions s
		     JOIN problems p ON p.id = s.problem_id
		     WHERE s.agent_id = ANY($1)
		 ) x
		 WHERE rn <= $2
		 ORDER BY agent_id, created_at DESC, id`,
		agentIDs, limit,
	)
	if err != nil {
		return fmt.Errorf("storage: load solutions: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			agentID int64
			s       model.SolutionRecord
		)
		if err := rows.Scan(&agentID, &s.ProblemID, &s.Category, &s.Accepted, &s.CreatedAt); err != nil {
			return fmt.Errorf("storage: scan solution: %w", err)
		}
		if i, ok := index[agentID]; ok {
			profiles[i].Solutions = append(profiles[i].Solutions, s)
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("storage: load solutions: %w", err)
	}
	return nil
}

func (db *DB) loadActivity(ctx context.Context, agentIDs []int64, since time.Time, profiles []model.AgentProfile, index map[int64]int) error {
	rows, err := db.pool.Query(ctx,
		`SELECT agent_id, kind, at FROM activity_events
		 WHERE agent_id = ANY($1) AND at >= $2
		 ORDER BY agent_id, at DESC`,
		agentIDs, since,
	)
	if err != nil {
		return fmt.Errorf("storage: load activity: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			agentID int64
			kind    string
			ev      model.ActivityEvent
		)
		if err := rows.Scan(&agentID, &kind, &ev.At); err != nil {
			return fmt.Errorf("storage: scan activity: %w", err)
		}
		ev.Kind = model.ActivityKind(kind)
		if i, ok := index[agentID]; ok {
			profiles[i].Activity = append(profiles[i].Activity, ev)
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("storage: load activity: %w", err)
	}
	return nil
}
