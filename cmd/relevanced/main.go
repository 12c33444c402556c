package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	relevance "github.com/Alfred252525/Analytical-Fire-sub000"
)

// version is set at build time via -ldflags.
var version = "dev"

func main() {
	os.Exit(run())
}

func run() int {
	level := slog.LevelInfo
	if os.Getenv("RELEVANCE_LOG_LEVEL") == "debug" {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	app, err := relevance.New(
		relevance.WithVersion(version),
		relevance.WithLogger(logger),
	)
	if err != nil {
		slog.Error("fatal error", "error", err)
		return 1
	}
	if err := app.Run(ctx); err != nil {
		slog.Error("fatal error", "error", err)
		return 1
	}
	return 0
}
