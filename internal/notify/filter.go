// Package notify decides whether a candidate notification reaches an agent
// and on which channels, then hands queued decisions to transports.
//
// Gates run in a fixed order and stop at the first failure: type, priority,
// category and tags, quiet hours, channels, and finally the hourly budget.
// Only the budget gate touches shared state.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strconv"
	"time"
	_ "time/tzdata" // preference timezones must resolve on hosts without zoneinfo

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/Alfred252525/Analytical-Fire-sub000/internal/model"
	"github.com/Alfred252525/Analytical-Fire-sub000/internal/ratelimit"
	"github.com/Alfred252525/Analytical-Fire-sub000/internal/telemetry"
)

// Status is the state of a candidate notification after evaluation.
type Status string

const (
	StatusQueued     Status = "queued"
	StatusSuppressed Status = "suppressed"
	StatusDelivered  Status = "delivered"
)

// Reason explains a suppressed decision.
type Reason string

const (
	ReasonTypeNotEnabled       Reason = "type_not_enabled"
	ReasonTypeDisabled         Reason = "type_disabled"
	ReasonPriorityBelowHigh    Reason = "priority_below_high"
	ReasonPriorityBelowMinimum Reason = "priority_below_minimum"
	ReasonCategoryNotEnabled   Reason = "category_not_enabled"
	ReasonCategoryDisabled     Reason = "category_disabled"
	ReasonTagNotEnabled        Reason = "tag_not_enabled"
	ReasonTagDisabled          Reason = "tag_disabled"
	ReasonQuietHours           Reason = "quiet_hours"
	ReasonNoChannels           Reason = "no_channels"
	ReasonDuplicate            Reason = "duplicate"
	ReasonRateLimited          Reason = "rate_limited"
)

// Decision is the outcome for one (agent, notification) pair.
type Decision struct {
	NotificationID uuid.UUID       `json:"notification_id"`
	AgentID        int64           `json:"agent_id"`
	Status         Status          `json:"status"`
	Reason         Reason          `json:"reason,omitempty"`
	Channels       []model.Channel `json:"channels"`
	// Record is true when the host should keep the notification record even
	// though active delivery may be suppressed.
	Record   bool     `json:"record"`
	Warnings []string `json:"warnings,omitempty"`
}

// DefaultWindow is the trailing window of the hourly delivery budget.
const DefaultWindow = time.Hour

// Filter evaluates candidate notifications against agent preferences.
type Filter struct {
	limiter ratelimit.WindowLimiter
	window  time.Duration
	logger  *slog.Logger
	now     func() time.Time

	decisions metric.Int64Counter
}

// NewFilter creates a filter drawing delivery budgets from limiter.
// window <= 0 means one hour.
func NewFilter(limiter ratelimit.WindowLimiter, window time.Duration, logger *slog.Logger) *Filter {
	if window <= 0 {
		window = DefaultWindow
	}
	decisions, _ := telemetry.Meter("relevance/notify").Int64Counter("relevance.notify.decisions",
		metric.WithDescription("Notification decisions, by status and reason"),
	)
	return &Filter{limiter: limiter, window: window, logger: logger, now: time.Now, decisions: decisions}
}

// WithClock returns a copy of f that reads the current time from now.
func (f *Filter) WithClock(now func() time.Time) *Filter {
	cp := *f
	cp.now = now
	return &cp
}

// Evaluate runs the gates for one candidate. A nil preference evaluates
// against the defaults with a warning. Malformed candidates return an error
// wrapping model.ErrInvalidInput. A notification without an ID is assigned
// one, since the ID is the at-most-once delivery marker.
func (f *Filter) Evaluate(ctx context.Context, pref *model.NotificationPreference, n model.Notification) (Decision, error) {
	if err := model.Validate(n); err != nil {
		return Decision{}, fmt.Errorf("notify: evaluate: %w", err)
	}
	if n.ID == uuid.Nil {
		n.ID = uuid.New()
	}
	s := resolve(pref, n.AgentID)
	d, err := f.evaluate(ctx, s, n)
	if err != nil {
		return Decision{}, err
	}
	f.observe(ctx, d)
	return d, nil
}

// EvaluateBatch evaluates candidates for one agent in order, so earlier
// candidates draw from the hourly budget first. Malformed candidates and
// candidates addressed to another agent are reported per item.
func (f *Filter) EvaluateBatch(ctx context.Context, pref *model.NotificationPreference, agentID int64, ns []model.Notification) ([]Decision, model.ItemErrors, error) {
	s := resolve(pref, agentID)
	out := make([]Decision, 0, len(ns))
	var failed model.ItemErrors
	for _, n := range ns {
		if err := ctx.Err(); err != nil {
			return nil, nil, err
		}
		if n.ID == uuid.Nil {
			n.ID = uuid.New()
		}
		if err := model.Validate(n); err != nil {
			failed = append(failed, model.ItemError{ItemID: n.ID.String(), Err: err})
			continue
		}
		if n.AgentID != agentID {
			failed = append(failed, model.ItemError{
				ItemID: n.ID.String(),
				Err:    fmt.Errorf("%w: addressed to agent %d, not %d", model.ErrInvalidInput, n.AgentID, agentID),
			})
			continue
		}
		d, err := f.evaluate(ctx, s, n)
		if err != nil {
			return nil, nil, err
		}
		f.observe(ctx, d)
		out = append(out, d)
	}
	if len(failed) > 0 {
		f.logger.Warn("notify: rejected invalid candidates", append(failed.LogAttrs(), "agent_id", agentID)...)
	}
	return out, failed, nil
}

func (f *Filter) evaluate(ctx context.Context, s settings, n model.Notification) (Decision, error) {
	d := Decision{
		NotificationID: n.ID,
		AgentID:        n.AgentID,
		Status:         StatusSuppressed,
		Channels:       []model.Channel{},
		Warnings:       slices.Clone(s.warnings),
	}
	if reason, ok := preferenceGates(s, n); !ok {
		d.Reason = reason
		return d, nil
	}

	now := f.now()
	if s.quiet != nil && s.quiet.contains(now.In(s.location).Hour()) {
		d.Reason = ReasonQuietHours
		d.Record = true
		return d, nil
	}
	if len(s.channels) == 0 {
		d.Reason = ReasonNoChannels
		d.Record = true
		return d, nil
	}

	res, err := f.limiter.Reserve(ctx, budgetKey(n.AgentID), n.ID.String(), s.maxPerHour, f.window, now)
	switch {
	case err != nil:
		if ctx.Err() != nil {
			return Decision{}, fmt.Errorf("notify: reserve budget: %w", ctx.Err())
		}
		// The limiter contract is fail-open: a broken budget store must not
		// silence every agent.
		f.logger.Warn("notify: rate limiter unavailable, allowing delivery",
			"agent_id", n.AgentID, "notification_id", n.ID, "error", err)
		d.Warnings = append(d.Warnings, "rate limiter unavailable; budget not enforced")
	case res.Duplicate:
		d.Reason = ReasonDuplicate
		return d, nil
	case !res.Allowed:
		d.Reason = ReasonRateLimited
		d.Record = true
		return d, nil
	}

	d.Status = StatusQueued
	d.Record = true
	d.Channels = append(d.Channels, s.channels...)
	return d, nil
}

// preferenceGates runs the type, priority, and category/tag gates. The
// high_priority_only check runs before the type gate so a low-priority
// candidate always cites priority, whatever the other filters say.
func preferenceGates(s settings, n model.Notification) (Reason, bool) {
	rank := model.PriorityRank(n.Priority)
	if s.highPriorityOnly && rank < model.PriorityRank(model.PriorityHigh) {
		return ReasonPriorityBelowHigh, false
	}

	if len(s.enabledTypes) > 0 {
		if !s.enabledTypes.has(n.Type) {
			return ReasonTypeNotEnabled, false
		}
	} else if s.disabledTypes.has(n.Type) {
		return ReasonTypeDisabled, false
	}

	if !s.highPriorityOnly && rank < model.PriorityRank(s.minPriority) {
		return ReasonPriorityBelowMinimum, false
	}

	if len(s.enabledCategories) > 0 {
		if !s.enabledCategories.has(n.Category) {
			return ReasonCategoryNotEnabled, false
		}
	} else if s.disabledCategories.has(n.Category) {
		return ReasonCategoryDisabled, false
	}

	if len(s.enabledTags) > 0 {
		if !s.enabledTags.any(n.Tags) {
			return ReasonTagNotEnabled, false
		}
	} else if s.disabledTags.any(n.Tags) {
		return ReasonTagDisabled, false
	}
	return "", true
}

func budgetKey(agentID int64) string {
	return "agent:" + strconv.FormatInt(agentID, 10)
}

func (f *Filter) observe(ctx context.Context, d Decision) {
	f.decisions.Add(ctx, 1, metric.WithAttributes(
		attribute.String("status", string(d.Status)),
		attribute.String("reason", string(d.Reason)),
	))
	if len(d.Warnings) > 0 {
		f.logger.Warn("notify: preference fell back to defaults",
			"agent_id", d.AgentID, "notification_id", d.NotificationID, "warnings", d.Warnings)
	}
}
