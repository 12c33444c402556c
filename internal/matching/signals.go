package matching

import (
	"math"
	"time"

	"github.com/Alfred252525/Analytical-Fire-sub000/internal/model"
	"github.com/Alfred252525/Analytical-Fire-sub000/internal/similarity"
)

// Problem signal weights. They sum to 1.
const (
	WeightExpertise          = 0.40
	WeightSuccessHistory     = 0.25
	WeightKnowledgeRelevance = 0.20
	WeightActivity           = 0.10
	WeightReputation         = 0.05
)

// Knowledge signal weights. They sum to 1.
const (
	WeightInterest       = 0.50
	WeightKnowledgeGap   = 0.30
	WeightRecentActivity = 0.20
)

// Signal names as reported in MatchResult.Signals.
const (
	SignalExpertiseMatch     = "expertise_match"
	SignalSuccessHistory     = "success_history"
	SignalKnowledgeRelevance = "knowledge_relevance"
	SignalActivityLevel      = "activity_level"
	SignalReputation         = "reputation"
	SignalInterestMatch      = "interest_match"
	SignalKnowledgeGap       = "knowledge_gap"
	SignalRecentActivity     = "recent_activity"
)

const (
	// relevanceFloor is the minimum token Jaccard for an authored entry to
	// count as relevant to a problem.
	relevanceFloor = 0.05
	// equivalentTitle is the title Jaccard at which an authored entry in the
	// same category counts as equivalent knowledge.
	equivalentTitle = 0.5
	// activityWindow bounds the events counted toward activity level.
	activityWindow = 7 * 24 * time.Hour
	// activitySaturation is the decayed event count that maps to 1.
	activitySaturation = 20
)

// ProblemSignals are the agent→problem fit signals, each in [0, 1].
type ProblemSignals struct {
	ExpertiseMatch     float64
	SuccessHistory     float64
	KnowledgeRelevance float64
	ActivityLevel      float64
	Reputation         float64
}

// Score returns the weighted sum of the signals.
func (s ProblemSignals) Score() float64 {
	return s.ExpertiseMatch*WeightExpertise +
		s.SuccessHistory*WeightSuccessHistory +
		s.KnowledgeRelevance*WeightKnowledgeRelevance +
		s.ActivityLevel*WeightActivity +
		s.Reputation*WeightReputation
}

// Breakdown returns every signal keyed by name.
func (s ProblemSignals) Breakdown() map[string]float64 {
	return map[string]float64{
		SignalExpertiseMatch:     s.ExpertiseMatch,
		SignalSuccessHistory:     s.SuccessHistory,
		SignalKnowledgeRelevance: s.KnowledgeRelevance,
		SignalActivityLevel:      s.ActivityLevel,
		SignalReputation:         s.Reputation,
	}
}

// KnowledgeSignals are the agent→knowledge fit signals, each in [0, 1].
type KnowledgeSignals struct {
	InterestMatch  float64
	KnowledgeGap   float64
	RecentActivity float64
}

// Score returns the weighted sum of the signals.
func (s KnowledgeSignals) Score() float64 {
	return s.InterestMatch*WeightInterest +
		s.KnowledgeGap*WeightKnowledgeGap +
		s.RecentActivity*WeightRecentActivity
}

// Breakdown returns every signal keyed by name.
func (s KnowledgeSignals) Breakdown() map[string]float64 {
	return map[string]float64{
		SignalInterestMatch:  s.InterestMatch,
		SignalKnowledgeGap:   s.KnowledgeGap,
		SignalRecentActivity: s.RecentActivity,
	}
}

// SignalWeights returns the weight of every signal for a target kind.
func SignalWeights(kind model.TargetKind) map[string]float64 {
	switch kind {
	case model.TargetProblem:
		return map[string]float64{
			SignalExpertiseMatch:     WeightExpertise,
			SignalSuccessHistory:     WeightSuccessHistory,
			SignalKnowledgeRelevance: WeightKnowledgeRelevance,
			SignalActivityLevel:      WeightActivity,
			SignalReputation:         WeightReputation,
		}
	case model.TargetKnowledge:
		return map[string]float64{
			SignalInterestMatch:  WeightInterest,
			SignalKnowledgeGap:   WeightKnowledgeGap,
			SignalRecentActivity: WeightRecentActivity,
		}
	}
	return nil
}

type authoredView struct {
	id       int64
	category string
	title    similarity.Set
	text     similarity.Set
}

// agentView is an agent profile with its comparison sets precomputed.
type agentView struct {
	agent     model.Agent
	interests similarity.Set
	authored  []authoredView
	solutions []model.SolutionRecord
	activity  float64
}

func newAgentView(p model.AgentProfile, now time.Time) agentView {
	v := agentView{
		agent:     p.Agent,
		interests: similarity.Set(p.Interests()),
		authored:  make([]authoredView, len(p.Knowledge)),
		solutions: p.Solutions,
		activity:  activityLevel(p.Activity, now),
	}
	for i, k := range p.Knowledge {
		v.authored[i] = authoredView{
			id:       k.ID,
			category: model.NormalizeLabel(k.Category),
			title:    similarity.Tokens(k.Title),
			text:     similarity.Tokens(k.Title + " " + k.Content),
		}
	}
	return v
}

type problemView struct {
	problem  model.Problem
	category string
	labels   similarity.Set
	text     similarity.Set
}

func newProblemView(p model.Problem) problemView {
	return problemView{
		problem:  p,
		category: model.NormalizeLabel(p.Category),
		labels:   similarity.Union(similarity.Labels(p.Category), similarity.Labels(p.Tags...)),
		text:     similarity.Tokens(p.Title + " " + p.Description),
	}
}

type knowledgeView struct {
	entry    model.KnowledgeEntry
	category string
	labels   similarity.Set
	title    similarity.Set
}

func newKnowledgeView(e model.KnowledgeEntry) knowledgeView {
	return knowledgeView{
		entry:    e,
		category: model.NormalizeLabel(e.Category),
		labels:   similarity.Union(similarity.Labels(e.Category), similarity.Labels(e.Tags...)),
		title:    similarity.Tokens(e.Title),
	}
}

func problemSignals(a agentView, p problemView) ProblemSignals {
	return ProblemSignals{
		ExpertiseMatch:     similarity.Jaccard(a.interests, p.labels),
		SuccessHistory:     successHistory(a.solutions, p.category),
		KnowledgeRelevance: knowledgeRelevance(a.authored, p.text),
		ActivityLevel:      a.activity,
		Reputation:         clamp01(a.agent.ReputationScore),
	}
}

func knowledgeSignals(a agentView, k knowledgeView) KnowledgeSignals {
	return KnowledgeSignals{
		InterestMatch:  similarity.Jaccard(a.interests, k.labels),
		KnowledgeGap:   knowledgeGap(a.authored, k),
		RecentActivity: a.activity,
	}
}

// successHistory is the accepted share of the agent's solutions in category.
func successHistory(solutions []model.SolutionRecord, category string) float64 {
	if category == "" {
		return 0
	}
	var total, accepted int
	for _, s := range solutions {
		if model.NormalizeLabel(s.Category) != category {
			continue
		}
		total++
		if s.Accepted {
			accepted++
		}
	}
	if total == 0 {
		return 0
	}
	return float64(accepted) / float64(total)
}

// knowledgeRelevance is the share of authored entries whose tokens overlap
// the target text at or above the relevance floor.
func knowledgeRelevance(authored []authoredView, text similarity.Set) float64 {
	if len(authored) == 0 {
		return 0
	}
	relevant := 0
	for _, k := range authored {
		if similarity.Jaccard(k.text, text) >= relevanceFloor {
			relevant++
		}
	}
	return float64(relevant) / float64(len(authored))
}

// knowledgeGap is 0 when the agent already authored the entry or an
// equivalent one, 1 otherwise.
func knowledgeGap(authored []authoredView, k knowledgeView) float64 {
	for _, a := range authored {
		if a.id == k.entry.ID {
			return 0
		}
		if a.category != "" && a.category == k.category && similarity.Jaccard(a.title, k.title) >= equivalentTitle {
			return 0
		}
	}
	return 1
}

// activityLevel decays each event linearly over seven days, then
// log-compresses the sum against the saturation count. Future-dated events
// count fully.
func activityLevel(events []model.ActivityEvent, now time.Time) float64 {
	var sum float64
	for _, ev := range events {
		age := now.Sub(ev.At)
		if age >= activityWindow {
			continue
		}
		if age < 0 {
			age = 0
		}
		sum += 1 - float64(age)/float64(activityWindow)
	}
	if sum <= 0 {
		return 0
	}
	return math.Min(1, math.Log1p(sum)/math.Log1p(activitySaturation))
}

func clamp01(v float64) float64 {
	switch {
	case math.IsNaN(v), v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}
