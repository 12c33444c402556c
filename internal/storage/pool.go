// Package storage provides the PostgreSQL snapshot loader for the relevance
// engine.
//
// It manages connection pooling (via pgxpool), an optional dedicated
// connection for LISTEN/NOTIFY, and the read queries that assemble knowledge,
// problem, agent and preference snapshots. The only writes are quality score
// write-back and the notification log.
package storage

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// DB wraps a pgxpool.Pool for normal queries and a dedicated pgx.Conn for
// LISTEN/NOTIFY.
type DB struct {
	pool       *pgxpool.Pool
	notifyConn *pgx.Conn
	logger     *slog.Logger
}

// New creates a new DB with a connection pool. notifyDSN may be empty, in
// which case Listen and WaitForNotification report an error.
func New(ctx context.Context, poolDSN, notifyDSN string, logger *slog.Logger) (*DB, error) {
	poolCfg, err := pgxpool.ParseConfig(poolDSN)
	if err != nil {
		return nil, fmt.Errorf("storage: parse pool DSN: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("storage: create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("storage: ping pool: %w", err)
	}

	var notifyConn *pgx.Conn
	if notifyDSN != "" {
		notifyConn, err = pgx.Connect(ctx, notifyDSN)
		if err != nil {
			pool.Close()
			return nil, fmt.Errorf("storage: connect notify: %w", err)
		}
	}

	return &DB{
		pool:       pool,
		notifyConn: notifyConn,
		logger:     logger,
	}, nil
}

// Pool returns the underlying connection pool.
func (db *DB) Pool() *pgxpool.Pool {
	return db.pool
}

// Ping checks connectivity to the database.
func (db *DB) Ping(ctx context.Context) error {
	return db.pool.Ping(ctx)
}

// Close shuts down the connection pool and notify connection.
func (db *DB) Close(ctx context.Context) {
	db.pool.Close()
	if db.notifyConn != nil {
		if err := db.notifyConn.Close(ctx); err != nil {
			db.logger.Warn("storage: close notify connection", "error", err)
		}
	}
}
