package storage

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
)

func TestWithRetryRetriesTransientConflicts(t *testing.T) {
	calls := 0
	err := WithRetry(context.Background(), 3, time.Millisecond, func() error {
		calls++
		if calls < 3 {
			return &pgconn.PgError{Code: "40001"}
		}
		return nil
	})
	assert.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestWithRetryGivesUp(t *testing.T) {
	calls := 0
	err := WithRetry(context.Background(), 2, time.Millisecond, func() error {
		calls++
		return &pgconn.PgError{Code: "40P01"}
	})
	var pgErr *pgconn.PgError
	assert.ErrorAs(t, err, &pgErr)
	assert.Equal(t, 3, calls)
}

func TestWithRetryDoesNotRetryOtherErrors(t *testing.T) {
	calls := 0
	boom := errors.New("syntax error")
	err := WithRetry(context.Background(), 5, time.Millisecond, func() error {
		calls++
		return boom
	})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, calls)
}

func TestWithRetryStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := WithRetry(ctx, 5, time.Hour, func() error {
		return &pgconn.PgError{Code: "40001"}
	})
	assert.ErrorIs(t, err, context.Canceled)
}
