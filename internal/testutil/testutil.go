// Package testutil provides shared test infrastructure for integration tests
// that require a Postgres or Redis container.
//
// Usage in TestMain:
//
//	func TestMain(m *testing.M) {
//	    tc, err := testutil.StartPostgres(context.Background())
//	    if err != nil { os.Exit(m.Run()) } // tests skip without Docker
//	    defer tc.Terminate()
//	    testDB, _ = tc.NewTestDB(context.Background(), testutil.TestLogger())
//	    os.Exit(m.Run())
//	}
package testutil

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/Alfred252525/Analytical-Fire-sub000/internal/storage"
	"github.com/Alfred252525/Analytical-Fire-sub000/migrations"
)

// ErrDockerUnavailable reports that no Docker host could be reached.
var ErrDockerUnavailable = errors.New("testutil: docker unavailable")

// TestContainer wraps a testcontainers container with a DSN for connecting.
type TestContainer struct {
	Container testcontainers.Container
	DSN       string
}

// StartPostgres starts a throwaway Postgres container. The error is non-nil
// when Docker is unavailable; callers usually skip their integration tests.
func StartPostgres(ctx context.Context) (*TestContainer, error) {
	container, err := start(ctx, testcontainers.ContainerRequest{
		Image:        "postgres:17-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "relevance",
			"POSTGRES_PASSWORD": "relevance",
			"POSTGRES_DB":       "relevance",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(60 * time.Second),
	})
	if err != nil {
		return nil, err
	}
	host, err := container.Host(ctx)
	if err != nil {
		_ = container.Terminate(ctx)
		return nil, fmt.Errorf("testutil: container host: %w", err)
	}
	port, err := container.MappedPort(ctx, "5432")
	if err != nil {
		_ = container.Terminate(ctx)
		return nil, fmt.Errorf("testutil: container port: %w", err)
	}

	dsn := fmt.Sprintf("postgres://relevance:relevance@%s:%s/relevance?sslmode=disable", host, port.Port())
	return &TestContainer{Container: container, DSN: dsn}, nil
}

// StartRedis starts a throwaway Redis container. DSN is a redis:// URL.
func StartRedis(ctx context.Context) (*TestContainer, error) {
	container, err := start(ctx, testcontainers.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForLog("Ready to accept connections").WithStartupTimeout(30 * time.Second),
	})
	if err != nil {
		return nil, err
	}
	host, err := container.Host(ctx)
	if err != nil {
		_ = container.Terminate(ctx)
		return nil, fmt.Errorf("testutil: container host: %w", err)
	}
	port, err := container.MappedPort(ctx, "6379")
	if err != nil {
		_ = container.Terminate(ctx)
		return nil, fmt.Errorf("testutil: container port: %w", err)
	}
	return &TestContainer{Container: container, DSN: fmt.Sprintf("redis://%s:%s", host, port.Port())}, nil
}

func start(ctx context.Context, req testcontainers.ContainerRequest) (testcontainers.Container, error) {
	container, err := guardStart(func() (testcontainers.Container, error) {
		return testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
			ContainerRequest: req,
			Started:          true,
		})
	})
	if err != nil {
		return nil, fmt.Errorf("testutil: start %s: %w", req.Image, err)
	}
	return container, nil
}

// guardStart turns a panic from the container client into an error.
// testcontainers panics when it cannot locate any Docker host.
func guardStart(fn func() (testcontainers.Container, error)) (c testcontainers.Container, err error) {
	defer func() {
		if r := recover(); r != nil {
			c, err = nil, fmt.Errorf("%w: %v", ErrDockerUnavailable, r)
		}
	}()
	return fn()
}

// NewTestDB creates a storage.DB connected to this container and runs all
// migrations. The same DSN serves the LISTEN connection.
func (tc *TestContainer) NewTestDB(ctx context.Context, logger *slog.Logger) (*storage.DB, error) {
	db, err := storage.New(ctx, tc.DSN, tc.DSN, logger)
	if err != nil {
		return nil, fmt.Errorf("testutil: create DB: %w", err)
	}
	if err := db.RunMigrations(ctx, migrations.FS); err != nil {
		db.Close(ctx)
		return nil, fmt.Errorf("testutil: run migrations: %w", err)
	}
	return db, nil
}

// Terminate stops and removes the container.
func (tc *TestContainer) Terminate() {
	_ = tc.Container.Terminate(context.Background())
}

// TestLogger returns a logger configured for test output (warns only).
func TestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
}
