// Package ratelimit provides sliding-window reservations for per-key
// delivery budgets.
//
// The default is an in-memory log per key (MemoryWindowLimiter). Deployments
// running several engine instances substitute the Redis-backed
// RedisWindowLimiter so every instance draws from the same budget. The
// WindowLimiter interface is the contract.
package ratelimit

import (
	"context"
	"time"
)

// Reservation is the outcome of one Reserve call.
type Reservation struct {
	Allowed bool
	// Duplicate is set when token was already reserved inside the window.
	// Duplicates never consume budget.
	Duplicate bool
	Limit     int
	Remaining int
	// ResetAt is when the oldest counted reservation leaves the window.
	// Zero when nothing is counted.
	ResetAt time.Time
}

// WindowLimiter reserves slots in a sliding window per key.
// Implementations must be safe for concurrent use.
type WindowLimiter interface {
	// Reserve counts one reservation for key at now if fewer than limit
	// reservations fall inside (now-window, now]. A non-empty token makes the
	// reservation idempotent: reserving the same token twice inside the
	// window reports Duplicate instead of consuming a second slot.
	// Returning an error signals a limiter malfunction.
	Reserve(ctx context.Context, key, token string, limit int, window time.Duration, now time.Time) (Reservation, error)

	// Close releases resources (cleanup goroutines, connections).
	Close() error
}

// NoopWindowLimiter permits every reservation. Used when delivery budgets are disabled.
type NoopWindowLimiter struct{}

// Reserve always allows.
func (NoopWindowLimiter) Reserve(_ context.Context, _, _ string, limit int, _ time.Duration, _ time.Time) (Reservation, error) {
	return Reservation{Allowed: true, Limit: limit, Remaining: limit}, nil
}

// Close is a no-op.
func (NoopWindowLimiter) Close() error { return nil }
