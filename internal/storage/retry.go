package storage

import (
	"context"
	"errors"
	"math/rand/v2"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
)

// retriableCodes are the Postgres error codes of transient write conflicts.
var retriableCodes = map[string]bool{
	"40001": true, // serialization_failure
	"40P01": true, // deadlock_detected
	"55P03": true, // lock_not_available
}

func isRetriable(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && retriableCodes[pgErr.Code]
}

// WithRetry runs fn, retrying up to maxRetries times on transient conflicts
// with jittered exponential backoff starting at baseDelay. Other errors are
// returned immediately.
func WithRetry(ctx context.Context, maxRetries int, baseDelay time.Duration, fn func() error) error {
	delay := baseDelay
	for attempt := 0; ; attempt++ {
		err := fn()
		if err == nil || !isRetriable(err) || attempt >= maxRetries {
			return err
		}
		wait := delay
		if delay > 0 {
			wait += time.Duration(rand.Int64N(int64(delay))) //nolint:gosec // jitter only
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
		delay *= 2
	}
}
