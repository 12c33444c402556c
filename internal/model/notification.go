package model

import (
	"time"

	"github.com/google/uuid"
)

// Priority is the urgency of a candidate notification.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityNormal Priority = "normal"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

// PriorityRank returns the numeric rank of a priority (higher = more urgent).
// Unknown priorities rank below low.
func PriorityRank(p Priority) int {
	switch p {
	case PriorityUrgent:
		return 4
	case PriorityHigh:
		return 3
	case PriorityNormal:
		return 2
	case PriorityLow:
		return 1
	default:
		return 0
	}
}

// Channel is an outbound delivery channel.
type Channel string

const (
	ChannelPush    Channel = "push"
	ChannelEmail   Channel = "email"
	ChannelWebhook Channel = "webhook"
)

// Notification is a candidate notification before delivery.
// ID is the at-most-once delivery marker.
type Notification struct {
	ID         uuid.UUID `json:"id"`
	AgentID    int64     `json:"agent_id" validate:"gt=0"`
	Type       string    `json:"type" validate:"required"`
	Title      string    `json:"title"`
	Body       string    `json:"body"`
	EntityType string    `json:"entity_type,omitempty"`
	EntityID   int64     `json:"entity_id,omitempty"`
	Priority   Priority  `json:"priority" validate:"oneof=low normal high urgent"`
	Category   string    `json:"category,omitempty"`
	Tags       []string  `json:"tags,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// NotificationPreference is an agent's delivery configuration.
// QuietHoursStart and QuietHoursEnd are hours of day (0-23) in Timezone;
// the window is [start, end) and wraps midnight when start > end.
type NotificationPreference struct {
	AgentID            int64    `json:"agent_id"`
	EnabledTypes       []string `json:"enabled_types,omitempty"`
	DisabledTypes      []string `json:"disabled_types,omitempty"`
	MinPriority        Priority `json:"min_priority,omitempty"`
	HighPriorityOnly   bool     `json:"high_priority_only"`
	EnabledCategories  []string `json:"enabled_categories,omitempty"`
	DisabledCategories []string `json:"disabled_categories,omitempty"`
	EnabledTags        []string `json:"enabled_tags,omitempty"`
	DisabledTags       []string `json:"disabled_tags,omitempty"`
	PushEnabled        bool     `json:"push_enabled"`
	EmailEnabled       bool     `json:"email_enabled"`
	WebhookEnabled     bool     `json:"webhook_enabled"`
	WebhookURL         string   `json:"webhook_url,omitempty"`
	MaxPerHour         int      `json:"max_notifications_per_hour"`
	QuietHoursStart    *int     `json:"quiet_hours_start,omitempty"`
	QuietHoursEnd      *int     `json:"quiet_hours_end,omitempty"`
	Timezone           string   `json:"timezone,omitempty"`
}

// DefaultMaxPerHour is the hourly cap applied when a preference sets none.
const DefaultMaxPerHour = 10

// DefaultNotificationPreference returns the preference used when an agent has
// no stored record: every type, category and tag allowed, push only, no quiet hours.
func DefaultNotificationPreference(agentID int64) NotificationPreference {
	return NotificationPreference{
		AgentID:     agentID,
		MinPriority: PriorityLow,
		PushEnabled: true,
		MaxPerHour:  DefaultMaxPerHour,
		Timezone:    "UTC",
	}
}
