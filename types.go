package relevance

import (
	"time"

	"github.com/google/uuid"
)

// Channel is a delivery channel named in an agent's notification preference.
type Channel string

const (
	ChannelPush    Channel = "push"
	ChannelEmail   Channel = "email"
	ChannelWebhook Channel = "webhook"
)

// Notification is the public representation of a notification that passed
// the filter and is being delivered.
// It is a curated view of internal/model.Notification for use in extension
// interfaces. No internal package imports, so it is safe to use from outside
// the module.
type Notification struct {
	ID         uuid.UUID
	AgentID    int64
	Type       string
	Title      string
	Body       string
	EntityType string
	EntityID   int64
	Priority   string // low | normal | high | urgent
	Category   string
	Tags       []string
	CreatedAt  time.Time
}
