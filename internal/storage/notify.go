package storage

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// ChannelKnowledge carries the id of a knowledge entry that was inserted,
// updated or deleted. The trigger in the initial migration publishes on it.
const ChannelKnowledge = "relevance_knowledge"

// Listen starts listening on channel using the dedicated notify connection.
func (db *DB) Listen(ctx context.Context, channel string) error {
	if db.notifyConn == nil {
		return ErrNotifyUnavailable
	}
	if _, err := db.notifyConn.Exec(ctx, "LISTEN "+pgx.Identifier{channel}.Sanitize()); err != nil {
		return fmt.Errorf("storage: listen %s: %w", channel, err)
	}
	return nil
}

// WaitForNotification blocks until a notification arrives on any listened
// channel and returns its channel and payload.
func (db *DB) WaitForNotification(ctx context.Context) (channel, payload string, err error) {
	if db.notifyConn == nil {
		return "", "", ErrNotifyUnavailable
	}
	n, err := db.notifyConn.WaitForNotification(ctx)
	if err != nil {
		return "", "", fmt.Errorf("storage: wait for notification: %w", err)
	}
	return n.Channel, n.Payload, nil
}

// Notify publishes payload on channel.
func (db *DB) Notify(ctx context.Context, channel, payload string) error {
	if _, err := db.pool.Exec(ctx, "SELECT pg_notify($1, $2)", channel, payload); err != nil {
		return fmt.Errorf("storage: notify %s: %w", channel, err)
	}
	return nil
}
