package relevance

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Alfred252525/Analytical-Fire-sub000/internal/config"
	"github.com/Alfred252525/Analytical-Fire-sub000/internal/model"
	"github.com/Alfred252525/Analytical-Fire-sub000/internal/notify"
	"github.com/Alfred252525/Analytical-Fire-sub000/internal/ratelimit"
)

func TestApplyOverrides(t *testing.T) {
	base := config.Config{
		Port:           8080,
		DatabaseURL:    "postgres://pool/relevance",
		NotifyURL:      "postgres://pool/relevance",
		LimiterBackend: config.LimiterMemory,
	}

	cfg := base
	applyOverrides(&cfg, resolvedOptions{port: 9090, databaseURL: "postgres://other/relevance"})
	assert.Equal(t, 9090, cfg.Port)
	assert.Equal(t, "postgres://other/relevance", cfg.DatabaseURL)
	assert.Equal(t, "postgres://other/relevance", cfg.NotifyURL, "notify follows the pool when not set separately")

	cfg = base
	cfg.NotifyURL = "postgres://direct/relevance"
	applyOverrides(&cfg, resolvedOptions{databaseURL: "postgres://bouncer/relevance"})
	assert.Equal(t, "postgres://direct/relevance", cfg.NotifyURL)

	cfg = base
	o := resolvedOptions{}
	WithRedisLimiter("redis://cache:6379/1")(&o)
	WithNotifyURL("postgres://direct/relevance")(&o)
	applyOverrides(&cfg, o)
	assert.Equal(t, config.LimiterRedis, cfg.LimiterBackend)
	assert.Equal(t, "redis://cache:6379/1", cfg.RedisURL)
	assert.Equal(t, "postgres://direct/relevance", cfg.NotifyURL)
}

func TestNewWindowLimiter(t *testing.T) {
	ctx := context.Background()

	l, err := newWindowLimiter(ctx, config.Config{LimiterBackend: config.LimiterMemory})
	require.NoError(t, err)
	assert.IsType(t, &ratelimit.MemoryWindowLimiter{}, l)
	require.NoError(t, l.Close())

	l, err = newWindowLimiter(ctx, config.Config{LimiterBackend: config.LimiterNoop})
	require.NoError(t, err)
	assert.IsType(t, ratelimit.NoopWindowLimiter{}, l)

	_, err = newWindowLimiter(ctx, config.Config{LimiterBackend: config.LimiterRedis, RedisURL: "not a url"})
	assert.Error(t, err)
}

func TestTransportsFallBackToLog(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	var got []Notification
	custom := map[Channel]Transport{
		ChannelWebhook: TransportFunc(func(_ context.Context, ch Channel, n Notification) error {
			assert.Equal(t, ChannelWebhook, ch)
			got = append(got, n)
			return nil
		}),
	}
	ts := transports(custom, logger)
	require.Len(t, ts, 3)
	assert.IsType(t, notify.LogTransport{}, ts[model.ChannelPush])
	assert.IsType(t, notify.LogTransport{}, ts[model.ChannelEmail])

	n := model.Notification{
		ID: uuid.New(), AgentID: 7, Type: "problem_match", Title: "New problem",
		Priority: model.PriorityHigh, Category: "auth", Tags: []string{"jwt"},
		CreatedAt: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
	}
	require.NoError(t, ts[model.ChannelWebhook].Send(context.Background(), model.ChannelWebhook, n, model.NotificationPreference{}))
	require.Len(t, got, 1)
	assert.Equal(t, n.ID, got[0].ID)
	assert.Equal(t, "high", got[0].Priority)
	assert.Equal(t, []string{"jwt"}, got[0].Tags)

	got[0].Tags[0] = "mutated"
	assert.Equal(t, "jwt", n.Tags[0], "public view does not alias internal tags")
}

func TestTransportErrorPropagates(t *testing.T) {
	boom := errors.New("smtp down")
	a := transportAdapter{t: TransportFunc(func(context.Context, Channel, Notification) error { return boom })}
	err := a.Send(context.Background(), model.ChannelEmail, model.Notification{}, model.NotificationPreference{})
	assert.ErrorIs(t, err, boom)
}

func TestWithTransportLastWins(t *testing.T) {
	o := resolvedOptions{}
	first := TransportFunc(func(context.Context, Channel, Notification) error { return nil })
	second := TransportFunc(func(context.Context, Channel, Notification) error { return errors.New("second") })
	WithTransport(ChannelPush, first)(&o)
	WithTransport(ChannelPush, second)(&o)
	require.Len(t, o.transports, 1)
	assert.EqualError(t, o.transports[ChannelPush].Deliver(context.Background(), ChannelPush, Notification{}), "second")
}

func TestContextWithOptionalTimeout(t *testing.T) {
	ctx, cancel := contextWithOptionalTimeout(context.Background(), 0)
	defer cancel()
	_, ok := ctx.Deadline()
	assert.False(t, ok)

	ctx2, cancel2 := contextWithOptionalTimeout(context.Background(), time.Minute)
	defer cancel2()
	_, ok = ctx2.Deadline()
	assert.True(t, ok)
}
