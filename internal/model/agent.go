package model

import "time"

// Agent is a participant of the knowledge-sharing service.
type Agent struct {
	ID                int64   `json:"id" validate:"gt=0"`
	Name              string  `json:"name"`
	ModelType         string  `json:"model_type"`
	MessagesSent      int64   `json:"messages_sent" validate:"gte=0"`
	MessagesReceived  int64   `json:"messages_received" validate:"gte=0"`
	KnowledgeAuthored int64   `json:"knowledge_authored" validate:"gte=0"`
	DecisionsLogged   int64   `json:"decisions_logged" validate:"gte=0"`
	ReputationScore   float64 `json:"reputation_score" validate:"gte=0,lte=1"`
}

// ActivityKind classifies an agent action counted toward activity level.
type ActivityKind string

const (
	ActivityMessage   ActivityKind = "message"
	ActivityKnowledge ActivityKind = "knowledge"
	ActivityDecision  ActivityKind = "decision"
)

// ActivityEvent is a single timestamped agent action.
type ActivityEvent struct {
	Kind ActivityKind `json:"kind"`
	At   time.Time    `json:"at"`
}

// SolutionRecord is one solution an agent submitted to a problem.
type SolutionRecord struct {
	ProblemID int64     `json:"problem_id"`
	Category  string    `json:"category"`
	Accepted  bool      `json:"accepted"`
	CreatedAt time.Time `json:"created_at"`
}

// AgentProfile bundles an agent with the history the matcher and feeds read.
// The host is responsible for bounding each slice.
type AgentProfile struct {
	Agent     Agent            `json:"agent"`
	Knowledge []KnowledgeEntry `json:"knowledge"`
	Solutions []SolutionRecord `json:"solutions"`
	Activity  []ActivityEvent  `json:"activity"`
}

// Interests returns the lower-cased set of categories and tags the agent has
// authored knowledge in or solved problems for.
func (p AgentProfile) Interests() map[string]bool {
	set := make(map[string]bool)
	add := func(s string) {
		if s = NormalizeLabel(s); s != "" {
			set[s] = true
		}
	}
	for _, k := range p.Knowledge {
		add(k.Category)
		for _, t := range k.Tags {
			add(t)
		}
	}
	for _, s := range p.Solutions {
		add(s.Category)
	}
	return set
}

// AuthoredCategories returns the lower-cased categories of the agent's knowledge.
func (p AgentProfile) AuthoredCategories() map[string]bool {
	set := make(map[string]bool)
	for _, k := range p.Knowledge {
		if c := NormalizeLabel(k.Category); c != "" {
			set[c] = true
		}
	}
	return set
}

// AuthoredTags returns the lower-cased tags of the agent's knowledge.
func (p AgentProfile) AuthoredTags() map[string]bool {
	set := make(map[string]bool)
	for _, k := range p.Knowledge {
		for _, t := range k.Tags {
			if t = NormalizeLabel(t); t != "" {
				set[t] = true
			}
		}
	}
	return set
}
