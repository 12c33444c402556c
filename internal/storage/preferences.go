package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/Alfred252525/Analytical-Fire-sub000/internal/model"
)

// GetNotificationPreference returns an agent's stored preference, or
// ErrNotFound when the agent never configured one.
func (db *DB) GetNotificationPreference(ctx context.Context, agentID int64) (model.NotificationPreference, error) {
	p := model.NotificationPreference{AgentID: agentID}
	var minPriority string
	err := db.pool.QueryRow(ctx,
		`SELECT enabled_types, disabled_types, min_priority, high_priority_only,
		        enabled_categories, disabled_categories, enabled_tags, disabled_tags,
		        push_enabled, email_enabled, webhook_enabled, webhook_url,
		        max_per_hour, quiet_hours_start, quiet_hours_end, timezone
		 FROM notification_preferences WHERE agent_id = $1`, agentID,
	).Scan(&p.EnabledTypes, &p.DisabledTypes, &minPriority, &p.HighPriorityOnly,
		&p.EnabledCategories, &p.DisabledCategories, &p.EnabledTags, &p.DisabledTags,
		&p.PushEnabled, &p.EmailEnabled, &p.WebhookEnabled, &p.WebhookURL,
		&p.MaxPerHour, &p.QuietHoursStart, &p.QuietHoursEnd, &p.Timezone)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.NotificationPreference{}, fmt.Errorf("storage: preference for agent %d: %w", agentID, ErrNotFound)
	}
	if err != nil {
		return model.NotificationPreference{}, fmt.Errorf("storage: get notification preference: %w", err)
	}
	p.MinPriority = model.Priority(minPriority)
	return p, nil
}

// UpsertNotificationPreference stores an agent's preference. Values are
// stored as given; the filter resolves invalid ones at evaluation time.
func (db *DB) UpsertNotificationPreference(ctx context.Context, p model.NotificationPreference) error {
	nonNil := func(s []string) []string {
		if s == nil {
			return []string{}
		}
		return s
	}
	if _, err := db.pool.Exec(ctx,
		`INSERT INTO notification_preferences (agent_id, enabled_types, disabled_types, min_priority,
		     high_priority_only, enabled_categories, disabled_categories, enabled_tags, disabled_tags,
		     push_enabled, email_enabled, webhook_enabled, webhook_url, max_per_hour,
		     quiet_hours_start, quiet_hours_end, timezone)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
		 ON CONFLICT (agent_id) DO UPDATE SET
		     enabled_types = EXCLUDED.enabled_types,
		     disabled_types = EXCLUDED.disabled_types,
		     min_priority = EXCLUDED.min_priority,
		     high_priority_only = EXCLUDED.high_priority_only,
		     enabled_categories = EXCLUDED.enabled_categories,
		     disabled_categories = EXCLUDED.disabled_categories,
		     enabled_tags = EXCLUDED.enabled_tags,
		     disabled_tags = EXCLUDED.disabled_tags,
		     push_enabled = EXCLUDED.push_enabled,
		     email_enabled = EXCLUDED.email_enabled,
		     webhook_enabled = EXCLUDED.webhook_enabled,
		     webhook_url = EXCLUDED.webhook_url,
		     max_per_hour = EXCLUDED.max_per_hour,
		     quiet_hours_start = EXCLUDED.quiet_hours_start,
		     quiet_hours_end = EXCLUDED.quiet_hours_end,
		     timezone = EXCLUDED.timezone`,
		p.AgentID, nonNil(p.EnabledTypes), nonNil(p.DisabledTypes), string(p.MinPriority),
		p.HighPriorityOnly, nonNil(p.EnabledCategories), nonNil(p.DisabledCategories),
		nonNil(p.EnabledTags), nonNil(p.DisabledTags),
		p.PushEnabled, p.EmailEnabled, p.WebhookEnabled, p.WebhookURL, p.MaxPerHour,
		p.QuietHoursStart, p.QuietHoursEnd, p.Timezone,
	); err != nil {
		return fmt.Errorf("storage: upsert notification preference: %w", err)
	}
	return nil
}
