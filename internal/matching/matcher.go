// Package matching ranks agents against problems and knowledge entries, and
// targets against a single agent, using typed weighted signal records.
package matching

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/Alfred252525/Analytical-Fire-sub000/internal/model"
	"github.com/Alfred252525/Analytical-Fire-sub000/internal/parallel"
	"github.com/Alfred252525/Analytical-Fire-sub000/internal/telemetry"
)

// DefaultLimit caps result lists when Options.Limit is unset.
const DefaultLimit = 10

// Options filters and truncates a ranked result list.
type Options struct {
	MinScore float64 // Results below this score are dropped.
	Limit    int     // <= 0 means 10.
}

func (o Options) normalized() Options {
	if o.Limit <= 0 {
		o.Limit = DefaultLimit
	}
	if math.IsNaN(o.MinScore) || o.MinScore < 0 {
		o.MinScore = 0
	}
	return o
}

// Matcher scores agents against targets on a bounded worker pool.
// It holds no state between calls.
type Matcher struct {
	logger  *slog.Logger
	workers int
	now     func() time.Time

	candidates metric.Int64Counter
}

// NewMatcher creates a matcher. workers <= 0 sizes the pool to GOMAXPROCS.
func NewMatcher(logger *slog.Logger, workers int) *Matcher {
	candidates, _ := telemetry.Meter("relevance/matching").Int64Counter("relevance.match.candidates",
		metric.WithDescription("Candidates scored by the matcher, by target kind"),
	)
	return &Matcher{logger: logger, workers: workers, now: time.Now, candidates: candidates}
}

// WithClock returns a copy of m that reads the current time from now.
func (m *Matcher) WithClock(now func() time.Time) *Matcher {
	cp := *m
	cp.now = now
	return &cp
}

// MatchAgentsToProblem ranks candidate agents for a problem. The poster is
// never matched to their own problem. Invalid or duplicate profiles are
// reported per item. An invalid problem fails the whole call.
func (m *Matcher) MatchAgentsToProblem(ctx context.Context, problem model.Problem, profiles []model.AgentProfile, opts Options) ([]model.MatchResult, model.ItemErrors, error) {
	if err := model.Validate(problem); err != nil {
		return nil, nil, fmt.Errorf("matching: problem %d: %w", problem.ID, err)
	}
	target := newProblemView(problem)
	now := m.now()
	return m.rankAgents(ctx, model.TargetProblem, profiles, problem.PosterID, opts, func(p model.AgentProfile) model.MatchResult {
		s := problemSignals(newAgentView(p, now), target)
		return result(p.Agent, problem.ID, model.TargetProblem, s.Score(), s.Breakdown())
	})
}

// MatchAgentsToKnowledge ranks candidate agents for a knowledge entry. The
// author is never matched to their own entry.
func (m *Matcher) MatchAgentsToKnowledge(ctx context.Context, entry model.KnowledgeEntry, profiles []model.AgentProfile, opts Options) ([]model.MatchResult, model.ItemErrors, error) {
	if err := model.Validate(entry); err != nil {
		return nil, nil, fmt.Errorf("matching: knowledge %d: %w", entry.ID, err)
	}
	target := newKnowledgeView(entry)
	now := m.now()
	return m.rankAgents(ctx, model.TargetKnowledge, profiles, entry.AuthorID, opts, func(p model.AgentProfile) model.MatchResult {
		s := knowledgeSignals(newAgentView(p, now), target)
		return result(p.Agent, entry.ID, model.TargetKnowledge, s.Score(), s.Breakdown())
	})
}

// ScoreProblemsForAgent ranks problems for one agent with the problem
// signals. Problems the agent posted are skipped.
func (m *Matcher) ScoreProblemsForAgent(ctx context.Context, profile model.AgentProfile, problems []model.Problem, opts Options) ([]model.MatchResult, model.ItemErrors, error) {
	if err := model.ValidateProfile(profile); err != nil {
		return nil, nil, fmt.Errorf("matching: agent %d: %w", profile.Agent.ID, err)
	}
	agent := newAgentView(profile, m.now())
	return rankTargets(ctx, m, model.TargetProblem, problems, opts,
		func(p model.Problem) (int64, bool) { return p.ID, p.PosterID == profile.Agent.ID },
		func(p model.Problem) model.MatchResult {
			s := problemSignals(agent, newProblemView(p))
			return result(profile.Agent, p.ID, model.TargetProblem, s.Score(), s.Breakdown())
		})
}

// ScoreKnowledgeForAgent ranks knowledge entries for one agent with the
// knowledge signals. Entries the agent authored are skipped.
func (m *Matcher) ScoreKnowledgeForAgent(ctx context.Context, profile model.AgentProfile, entries []model.KnowledgeEntry, opts Options) ([]model.MatchResult, model.ItemErrors, error) {
	if err := model.ValidateProfile(profile); err != nil {
		return nil, nil, fmt.Errorf("matching: agent %d: %w", profile.Agent.ID, err)
	}
	agent := newAgentView(profile, m.now())
	return rankTargets(ctx, m, model.TargetKnowledge, entries, opts,
		func(e model.KnowledgeEntry) (int64, bool) { return e.ID, e.AuthorID == profile.Agent.ID },
		func(e model.KnowledgeEntry) model.MatchResult {
			s := knowledgeSignals(agent, newKnowledgeView(e))
			return result(profile.Agent, e.ID, model.TargetKnowledge, s.Score(), s.Breakdown())
		})
}

func result(a model.Agent, targetID int64, kind model.TargetKind, score float64, breakdown map[string]float64) model.MatchResult {
	return model.MatchResult{
		AgentID:    a.ID,
		TargetID:   targetID,
		TargetKind: kind,
		MatchScore: score,
		Signals:    breakdown,
		Reputation: a.ReputationScore,
	}
}

func (m *Matcher) rankAgents(ctx context.Context, kind model.TargetKind, profiles []model.AgentProfile, excluded int64, opts Options, score func(model.AgentProfile) model.MatchResult) ([]model.MatchResult, model.ItemErrors, error) {
	var failed model.ItemErrors
	seen := make(map[int64]bool, len(profiles))
	eligible := make([]model.AgentProfile, 0, len(profiles))
	for _, p := range profiles {
		if err := model.ValidateProfile(p); err != nil {
			failed.Add(p.Agent.ID, err)
			continue
		}
		if seen[p.Agent.ID] {
			failed.Add(p.Agent.ID, fmt.Errorf("%w: duplicate agent", model.ErrInvalidInput))
			continue
		}
		seen[p.Agent.ID] = true
		if p.Agent.ID == excluded {
			continue
		}
		eligible = append(eligible, p)
	}
	return m.finish(ctx, kind, len(eligible), failed, opts, func(i int) model.MatchResult { return score(eligible[i]) })
}

func rankTargets[T any](ctx context.Context, m *Matcher, kind model.TargetKind, targets []T, opts Options, key func(T) (id int64, excluded bool), score func(T) model.MatchResult) ([]model.MatchResult, model.ItemErrors, error) {
	var failed model.ItemErrors
	eligible := make([]T, 0, len(targets))
	for _, t := range targets {
		id, excluded := key(t)
		if err := model.Validate(t); err != nil {
			failed.Add(id, err)
			continue
		}
		if excluded {
			continue
		}
		eligible = append(eligible, t)
	}
	return m.finish(ctx, kind, len(eligible), failed, opts, func(i int) model.MatchResult { return score(eligible[i]) })
}

// finish scores n candidates on the pool, filters, sorts, and truncates.
func (m *Matcher) finish(ctx context.Context, kind model.TargetKind, n int, failed model.ItemErrors, opts Options, score func(i int) model.MatchResult) ([]model.MatchResult, model.ItemErrors, error) {
	opts = opts.normalized()
	scored := make([]model.MatchResult, n)
	err := parallel.ForEach(ctx, n, m.workers, func(_ context.Context, i int) error {
		scored[i] = score(i)
		return nil
	})
	if err != nil {
		return nil, nil, fmt.Errorf("matching: score %s candidates: %w", kind, err)
	}
	m.candidates.Add(ctx, int64(n), metric.WithAttributes(attribute.String("kind", string(kind))))
	if len(failed) > 0 {
		m.logger.Warn("matching: rejected invalid candidates", append(failed.LogAttrs(), "kind", kind)...)
	}

	out := make([]model.MatchResult, 0, len(scored))
	for _, r := range scored {
		if r.MatchScore >= opts.MinScore {
			out = append(out, r)
		}
	}
	Sort(out)
	if len(out) > opts.Limit {
		out = out[:opts.Limit]
	}
	return out, failed, nil
}

// Sort orders results by score desc, reputation desc, agent id asc, then
// target id asc.
func Sort(results []model.MatchResult) {
	sort.Slice(results, func(i, j int) bool {
		a, b := results[i], results[j]
		if a.MatchScore != b.MatchScore {
			return a.MatchScore > b.MatchScore
		}
		if a.Reputation != b.Reputation {
			return a.Reputation > b.Reputation
		}
		if a.AgentID != b.AgentID {
			return a.AgentID < b.AgentID
		}
		return a.TargetID < b.TargetID
	})
}
