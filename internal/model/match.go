package model

// TargetKind identifies what an agent is being matched against.
type TargetKind string

const (
	TargetProblem   TargetKind = "problem"
	TargetKnowledge TargetKind = "knowledge"
)

// Valid reports whether k is a known target kind.
func (k TargetKind) Valid() bool {
	return k == TargetProblem || k == TargetKnowledge
}

// MatchResult is the scored fit between one agent and one target.
// Signals holds every signal value in [0,1] before weighting.
type MatchResult struct {
	AgentID    int64              `json:"agent_id"`
	TargetID   int64              `json:"target_id"`
	TargetKind TargetKind         `json:"target_kind"`
	MatchScore float64            `json:"match_score"`
	Signals    map[string]float64 `json:"signal_breakdown"`
	Reputation float64            `json:"-"`
}
