package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/Alfred252525/Analytical-Fire-sub000/internal/model"
)

// NotificationRecord is one logged filter decision.
type NotificationRecord struct {
	Notification model.Notification
	Status       string
	Reason       string
	Channels     []model.Channel
}

// RecordNotification logs a filter decision. A re-evaluated id replaces the
// earlier status, reason and channels unless that record was already
// delivered. It reports true only when a new row was inserted.
func (db *DB) RecordNotification(ctx context.Context, r NotificationRecord) (bool, error) {
	n := r.Notification
	if n.ID == uuid.Nil {
		return false, fmt.Errorf("storage: record notification: %w: missing id", model.ErrInvalidInput)
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now().UTC()
	}
	channels := make([]string, len(r.Channels))
	for i, c := range r.Channels {
		channels[i] = string(c)
	}
	var inserted bool
	err := db.pool.QueryRow(ctx,
		`INSERT INTO notifications (id, agent_id, type, title, body, priority, status, reason,
		     channels, entity_type, entity_id, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		 ON CONFLICT (id) DO UPDATE
		     SET status = EXCLUDED.status, reason = EXCLUDED.reason, channels = EXCLUDED.channels
		     WHERE notifications.status <> 'delivered'
		 RETURNING (xmax = 0)`,
		n.ID, n.AgentID, n.Type, n.Title, n.Body, string(n.Priority), r.Status, r.Reason,
		channels, n.EntityType, n.EntityID, n.CreatedAt,
	).Scan(&inserted)
	if errors.Is(err, pgx.ErrNoRows) {
		// Already delivered; the record is final.
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("storage: record notification: %w", err)
	}
	return inserted, nil
}

// GetNotification returns the logged record for a notification id.
func (db *DB) GetNotification(ctx context.Context, id uuid.UUID) (NotificationRecord, error) {
	var (
		r        NotificationRecord
		priority string
		channels []string
	)
	r.Notification.ID = id
	err := db.pool.QueryRow(ctx,
		`SELECT agent_id, type, title, body, priority, status, reason, channels,
		        entity_type, entity_id, created_at
		 FROM notifications WHERE id = $1`, id,
	).Scan(&r.Notification.AgentID, &r.Notification.Type, &r.Notification.Title, &r.Notification.Body,
		&priority, &r.Status, &r.Reason, &channels,
		&r.Notification.EntityType, &r.Notification.EntityID, &r.Notification.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return NotificationRecord{}, fmt.Errorf("storage: notification %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return NotificationRecord{}, fmt.Errorf("storage: get notification: %w", err)
	}
	r.Notification.Priority = model.Priority(priority)
	r.Channels = make([]model.Channel, len(channels))
	for i, c := range channels {
		r.Channels[i] = model.Channel(c)
	}
	return r, nil
}

// UpdateNotificationStatus sets the status of a logged notification, used
// after dispatch to mark delivered records.
func (db *DB) UpdateNotificationStatus(ctx context.Context, id uuid.UUID, status string) error {
	tag, err := db.pool.Exec(ctx, `UPDATE notifications SET status = $2 WHERE id = $1`, id, status)
	if err != nil {
		return fmt.Errorf("storage: update notification status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("storage: notification %s: %w", id, ErrNotFound)
	}
	return nil
}

// CountNotifications returns how many notifications were logged for an agent
// with the given status at or after since.
func (db *DB) CountNotifications(ctx context.Context, agentID int64, status string, since time.Time) (int, error) {
	var n int
	if err := db.pool.QueryRow(ctx,
		`SELECT count(*) FROM notifications WHERE agent_id = $1 AND status = $2 AND created_at >= $3`,
		agentID, status, since,
	).Scan(&n); err != nil {
		return 0, fmt.Errorf("storage: count notifications: %w", err)
	}
	return n, nil
}
