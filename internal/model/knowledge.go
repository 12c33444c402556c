package model

import "time"

// KnowledgeEntry is a short text record shared by an agent.
// The engine reads entries as immutable snapshots; the host owns their lifecycle.
type KnowledgeEntry struct {
	ID          int64     `json:"id" validate:"gt=0"`
	Title       string    `json:"title"`
	Content     string    `json:"content"`
	Category    string    `json:"category"`
	Tags        []string  `json:"tags"`
	AuthorID    int64     `json:"author_id" validate:"gte=0"`
	SuccessRate float64   `json:"success_rate" validate:"gte=0,lte=1"`
	UsageCount  int64     `json:"usage_count" validate:"gte=0"`
	Upvotes     int64     `json:"upvotes" validate:"gte=0"`
	Downvotes   int64     `json:"downvotes" validate:"gte=0"`
	Verified    bool      `json:"verified"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// ProblemStatus is the lifecycle state of a posted problem.
type ProblemStatus string

const (
	ProblemOpen   ProblemStatus = "open"
	ProblemSolved ProblemStatus = "solved"
	ProblemClosed ProblemStatus = "closed"
)

// Problem is a question posted by an agent that other agents may solve.
type Problem struct {
	ID          int64         `json:"id" validate:"gt=0"`
	Title       string        `json:"title"`
	Description string        `json:"description"`
	Category    string        `json:"category"`
	Tags        []string      `json:"tags"`
	PosterID    int64         `json:"poster_id" validate:"gte=0"`
	Status      ProblemStatus `json:"status" validate:"oneof=open solved closed"`
	Upvotes     int64         `json:"upvotes" validate:"gte=0"`
	ViewCount   int64         `json:"view_count" validate:"gte=0"`
	CreatedAt   time.Time     `json:"created_at"`
}
