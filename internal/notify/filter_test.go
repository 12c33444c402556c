package notify

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

	"github.com/Alfred252525/Analytical-Fire-sub000/internal/model"
	"github.com/Alfred252525/Analytical-Fire-sub000/internal/ratelimit"
)

var testNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newTestFilter returns a filter over a fresh in-memory limiter and a clock
// the test can move.
func newTestFilter(t *testing.T) (*Filter, *time.Time) {
	t.Helper()
	limiter := ratelimit.NewMemoryWindowLimiter()
	t.Cleanup(func() { _ = limiter.Close() })
	now := testNow
	f := NewFilter(limiter, time.Hour, discardLogger()).WithClock(func() time.Time { return now })
	return f, &now
}

func candidate(priority model.Priority) model.Notification {
	return model.Notification{
		ID:        uuid.New(),
		AgentID:   7,
		Type:      "problem_match",
		Title:     "New problem matches your expertise",
		Priority:  priority,
		Category:  "auth",
		Tags:      []string{"jwt"},
		CreatedAt: testNow,
	}
}

func pref() *model.NotificationPreference {
	p := model.DefaultNotificationPreference(7)
	return &p
}

func hour(h int) *int { return &h }

func TestEvaluateDefaultsQueuePush(t *testing.T) {
	f, _ := newTestFilter(t)
	d, err := f.Evaluate(context.Background(), pref(), candidate(model.PriorityNormal))
	require.NoError(t, err)
	assert.Equal(t, StatusQueued, d.Status)
	assert.Empty(t, d.Reason)
	assert.Equal(t, []model.Channel{model.ChannelPush}, d.Channels)
	assert.True(t, d.Record)
	assert.Empty(t, d.Warnings)
}

func TestEvaluateNilPreferenceUsesDefaultsWithWarning(t *testing.T) {
	f, _ := newTestFilter(t)
	d, err := f.Evaluate(context.Background(), nil, candidate(model.PriorityLow))
	require.NoError(t, err)
	assert.Equal(t, StatusQueued, d.Status)
	require.Len(t, d.Warnings, 1)
	assert.Contains(t, d.Warnings[0], "no notification preference")
}

func TestLowPriorityWithHighOnlyAlwaysCitesPriority(t *testing.T) {
	variants := map[string]func(p *model.NotificationPreference){
		"defaults":            func(*model.NotificationPreference) {},
		"type disabled":       func(p *model.NotificationPreference) { p.DisabledTypes = []string{"problem_match"} },
		"type not enabled":    func(p *model.NotificationPreference) { p.EnabledTypes = []string{"mention"} },
		"min priority urgent": func(p *model.NotificationPreference) { p.MinPriority = model.PriorityUrgent },
		"category disabled":   func(p *model.NotificationPreference) { p.DisabledCategories = []string{"auth"} },
		"quiet hours set":     func(p *model.NotificationPreference) { p.QuietHoursStart, p.QuietHoursEnd = hour(0), hour(23) },
		"no channels":         func(p *model.NotificationPreference) { p.PushEnabled = false },
		"huge budget":         func(p *model.NotificationPreference) { p.MaxPerHour = 1000 },
	}
	for name, mutate := range variants {
		t.Run(name, func(t *testing.T) {
			f, _ := newTestFilter(t)
			p := pref()
			p.HighPriorityOnly = true
			mutate(p)
			d, err := f.Evaluate(context.Background(), p, candidate(model.PriorityLow))
			require.NoError(t, err)
			assert.Equal(t, StatusSuppressed, d.Status)
			assert.Equal(t, ReasonPriorityBelowHigh, d.Reason)
			assert.False(t, d.Record)
			assert.Empty(t, d.Channels)
		})
	}
}

func TestEvaluateGates(t *testing.T) {
	tests := []struct {
		name     string
		mutate   func(p *model.NotificationPreference, n *model.Notification)
		want     Status
		reason   Reason
		channels []model.Channel
	}{
		{
			name:   "type not in enabled list",
			mutate: func(p *model.NotificationPreference, _ *model.Notification) { p.EnabledTypes = []string{"mention"} },
			want:   StatusSuppressed, reason: ReasonTypeNotEnabled,
		},
		{
			name: "enabled list wins over disabled list",
			mutate: func(p *model.NotificationPreference, _ *model.Notification) {
				p.EnabledTypes = []string{"Problem_Match"}
				p.DisabledTypes = []string{"problem_match"}
			},
			want: StatusQueued, channels: []model.Channel{model.ChannelPush},
		},
		{
			name: "type disabled",
			mutate: func(p *model.NotificationPreference, _ *model.Notification) {
				p.DisabledTypes = []string{"problem_match"}
			},
			want: StatusSuppressed, reason: ReasonTypeDisabled,
		},
		{
			name:   "below minimum priority",
			mutate: func(p *model.NotificationPreference, n *model.Notification) { p.MinPriority = model.PriorityHigh },
			want:   StatusSuppressed, reason: ReasonPriorityBelowMinimum,
		},
		{
			name: "urgent passes high only",
			mutate: func(p *model.NotificationPreference, n *model.Notification) {
				p.HighPriorityOnly = true
				n.Priority = model.PriorityUrgent
			},
			want: StatusQueued, channels: []model.Channel{model.ChannelPush},
		},
		{
			name:   "category not enabled",
			mutate: func(p *model.NotificationPreference, _ *model.Notification) { p.EnabledCategories = []string{"db"} },
			want:   StatusSuppressed, reason: ReasonCategoryNotEnabled,
		},
		{
			name:   "category disabled",
			mutate: func(p *model.NotificationPreference, _ *model.Notification) { p.DisabledCategories = []string{"AUTH"} },
			want:   StatusSuppressed, reason: ReasonCategoryDisabled,
		},
		{
			name: "tag not enabled",
			mutate: func(p *model.NotificationPreference, _ *model.Notification) {
				p.EnabledTags = []string{"oauth"}
			},
			want: StatusSuppressed, reason: ReasonTagNotEnabled,
		},
		{
			name: "any enabled tag matches",
			mutate: func(p *model.NotificationPreference, n *model.Notification) {
				p.EnabledTags = []string{"oauth"}
				n.Tags = []string{"jwt", "oauth"}
			},
			want: StatusQueued, channels: []model.Channel{model.ChannelPush},
		},
		{
			name:   "tag disabled",
			mutate: func(p *model.NotificationPreference, _ *model.Notification) { p.DisabledTags = []string{"jwt"} },
			want:   StatusSuppressed, reason: ReasonTagDisabled,
		},
		{
			name: "all channels",
			mutate: func(p *model.NotificationPreference, _ *model.Notification) {
				p.EmailEnabled = true
				p.WebhookEnabled = true
				p.WebhookURL = "https://hooks.example.com/agent/7"
			},
			want: StatusQueued, channels: []model.Channel{model.ChannelPush, model.ChannelEmail, model.ChannelWebhook},
		},
		{
			name:   "no channels",
			mutate: func(p *model.NotificationPreference, _ *model.Notification) { p.PushEnabled = false },
			want:   StatusSuppressed, reason: ReasonNoChannels,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, _ := newTestFilter(t)
			p, n := pref(), candidate(model.PriorityNormal)
			tt.mutate(p, &n)
			d, err := f.Evaluate(context.Background(), p, n)
			require.NoError(t, err)
			assert.Equal(t, tt.want, d.Status)
			assert.Equal(t, tt.reason, d.Reason)
			if tt.channels == nil {
				assert.Empty(t, d.Channels)
			} else {
				assert.Equal(t, tt.channels, d.Channels)
			}
		})
	}
}

func TestQuietHours(t *testing.T) {
	tests := []struct {
		name       string
		start, end int
		tz         string
		at         time.Time
		quiet      bool
	}{
		{"inside simple window", 9, 17, "UTC", testNow, true},
		{"end is exclusive", 9, 12, "UTC", testNow, false},
		{"start is inclusive", 12, 13, "UTC", testNow, true},
		{"wraps midnight late", 22, 7, "UTC", time.Date(2025, 6, 1, 23, 30, 0, 0, time.UTC), true},
		{"wraps midnight early", 22, 7, "UTC", time.Date(2025, 6, 1, 6, 59, 0, 0, time.UTC), true},
		{"outside wrapped window", 22, 7, "UTC", testNow, false},
		{"agent timezone", 22, 7, "America/New_York", time.Date(2025, 6, 1, 3, 0, 0, 0, time.UTC), true},
		{"agent timezone daytime", 22, 7, "America/New_York", time.Date(2025, 6, 1, 16, 0, 0, 0, time.UTC), false},
		{"equal bounds is empty", 12, 12, "UTC", testNow, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, now := newTestFilter(t)
			*now = tt.at
			p := pref()
			p.QuietHoursStart, p.QuietHoursEnd, p.Timezone = hour(tt.start), hour(tt.end), tt.tz
			d, err := f.Evaluate(context.Background(), p, candidate(model.PriorityUrgent))
			require.NoError(t, err)
			assert.Empty(t, d.Warnings)
			if tt.quiet {
				assert.Equal(t, StatusSuppressed, d.Status)
				assert.Equal(t, ReasonQuietHours, d.Reason)
				assert.True(t, d.Record, "record survives quiet hours")
				assert.Empty(t, d.Channels)
			} else {
				assert.Equal(t, StatusQueued, d.Status)
			}
		})
	}
}

func TestConfigurationProblemsFailClosed(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(p *model.NotificationPreference)
		want   Status
		reason Reason
		warn   string
	}{
		{"start without end", func(p *model.NotificationPreference) { p.QuietHoursStart = hour(0) }, StatusQueued, "", "both start and end"},
		{"hour out of range", func(p *model.NotificationPreference) { p.QuietHoursStart, p.QuietHoursEnd = hour(0), hour(24) }, StatusQueued, "", "outside 0-23"},
		{"unknown timezone", func(p *model.NotificationPreference) { p.Timezone = "Mars/Olympus" }, StatusQueued, "", "unknown timezone"},
		{"unknown min priority", func(p *model.NotificationPreference) { p.MinPriority = "critical" }, StatusQueued, "", "unknown min_priority"},
		{"non-positive budget", func(p *model.NotificationPreference) { p.MaxPerHour = 0 }, StatusQueued, "", "not positive"},
		{"webhook without url", func(p *model.NotificationPreference) {
			p.PushEnabled = false
			p.WebhookEnabled = true
		}, StatusSuppressed, ReasonNoChannels, "webhook enabled without webhook_url"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, _ := newTestFilter(t)
			p := pref()
			tt.mutate(p)
			d, err := f.Evaluate(context.Background(), p, candidate(model.PriorityNormal))
			require.NoError(t, err)
			assert.Equal(t, tt.want, d.Status)
			assert.Equal(t, tt.reason, d.Reason)
			require.Len(t, d.Warnings, 1)
			assert.Contains(t, d.Warnings[0], tt.warn)
		})
	}
}

func TestRateLimitExactBudgetThenRollsForward(t *testing.T) {
	f, now := newTestFilter(t)
	p := pref()
	p.MaxPerHour = 3
	ctx := context.Background()

	for i := range 3 {
		*now = testNow.Add(time.Duration(i) * time.Minute)
		d, err := f.Evaluate(ctx, p, candidate(model.PriorityLow))
		require.NoError(t, err)
		assert.Equal(t, StatusQueued, d.Status, "delivery %d", i+1)
	}

	// Priority does not bypass the budget.
	*now = testNow.Add(30 * time.Minute)
	d, err := f.Evaluate(ctx, p, candidate(model.PriorityUrgent))
	require.NoError(t, err)
	assert.Equal(t, StatusSuppressed, d.Status)
	assert.Equal(t, ReasonRateLimited, d.Reason)

	*now = testNow.Add(time.Hour)
	d, err = f.Evaluate(ctx, p, candidate(model.PriorityLow))
	require.NoError(t, err)
	assert.Equal(t, StatusQueued, d.Status, "oldest delivery left the window")
}

func TestSuppressedCandidatesDoNotConsumeBudget(t *testing.T) {
	f, _ := newTestFilter(t)
	p := pref()
	p.MaxPerHour = 1
	p.DisabledTags = []string{"spam"}
	ctx := context.Background()

	spam := candidate(model.PriorityNormal)
	spam.Tags = []string{"spam"}
	for range 5 {
		d, err := f.Evaluate(ctx, p, spam)
		require.NoError(t, err)
		assert.Equal(t, ReasonTagDisabled, d.Reason)
	}
	d, err := f.Evaluate(ctx, p, candidate(model.PriorityNormal))
	require.NoError(t, err)
	assert.Equal(t, StatusQueued, d.Status)
}

func TestDuplicateNotificationIsSuppressed(t *testing.T) {
	f, _ := newTestFilter(t)
	n := candidate(model.PriorityNormal)

	first, err := f.Evaluate(context.Background(), pref(), n)
	require.NoError(t, err)
	assert.Equal(t, StatusQueued, first.Status)

	again, err := f.Evaluate(context.Background(), pref(), n)
	require.NoError(t, err)
	assert.Equal(t, StatusSuppressed, again.Status)
	assert.Equal(t, ReasonDuplicate, again.Reason)
}

func TestEvaluateAssignsMissingID(t *testing.T) {
	f, _ := newTestFilter(t)
	n := candidate(model.PriorityNormal)
	n.ID = uuid.Nil
	d, err := f.Evaluate(context.Background(), pref(), n)
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, d.NotificationID)
}

func TestEvaluateRejectsMalformedCandidate(t *testing.T) {
	f, _ := newTestFilter(t)
	n := candidate("critical")
	_, err := f.Evaluate(context.Background(), pref(), n)
	require.Error(t, err)
	assert.True(t, errors.Is(err, model.ErrInvalidInput))
}

type failingLimiter struct{}

func (failingLimiter) Reserve(context.Context, string, string, int, time.Duration, time.Time) (ratelimit.Reservation, error) {
	return ratelimit.Reservation{}, errors.New("connection refused")
}

func (failingLimiter) Close() error { return nil }

func TestLimiterFailureFailsOpen(t *testing.T) {
	f := NewFilter(failingLimiter{}, time.Hour, discardLogger()).WithClock(func() time.Time { return testNow })
	d, err := f.Evaluate(context.Background(), pref(), candidate(model.PriorityNormal))
	require.NoError(t, err)
	assert.Equal(t, StatusQueued, d.Status)
	require.Len(t, d.Warnings, 1)
	assert.Contains(t, d.Warnings[0], "rate limiter unavailable")
}

func TestEvaluateBatch(t *testing.T) {
	f, _ := newTestFilter(t)
	p := pref()
	p.MaxPerHour = 2

	other := candidate(model.PriorityNormal)
	other.AgentID = 8
	bad := candidate(model.PriorityNormal)
	bad.Type = ""

	ns := []model.Notification{
		candidate(model.PriorityNormal),
		other,
		bad,
		candidate(model.PriorityNormal),
		candidate(model.PriorityNormal),
	}
	decisions, failed, err := f.EvaluateBatch(context.Background(), p, 7, ns)
	require.NoError(t, err)
	require.Len(t, failed, 2)
	assert.Equal(t, other.ID.String(), failed[0].ItemID)
	assert.Equal(t, bad.ID.String(), failed[1].ItemID)

	require.Len(t, decisions, 3)
	assert.Equal(t, StatusQueued, decisions[0].Status)
	assert.Equal(t, StatusQueued, decisions[1].Status)
	assert.Equal(t, ReasonRateLimited, decisions[2].Reason)
}
