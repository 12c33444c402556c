package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/Alfred252525/Analytical-Fire-sub000/internal/model"
	"github.com/Alfred252525/Analytical-Fire-sub000/internal/parallel"
)

// Transport delivers a notification on one channel. Implementations belong
// to the host; the engine never retries a failed send.
type Transport interface {
	Send(ctx context.Context, channel model.Channel, n model.Notification, pref model.NotificationPreference) error
}

// TransportFunc adapts a function to Transport.
type TransportFunc func(ctx context.Context, channel model.Channel, n model.Notification, pref model.NotificationPreference) error

// Send calls fn.
func (fn TransportFunc) Send(ctx context.Context, channel model.Channel, n model.Notification, pref model.NotificationPreference) error {
	return fn(ctx, channel, n, pref)
}

// ErrNoTransport is reported for a channel with no registered transport.
var ErrNoTransport = errors.New("notify: no transport for channel")

// ChannelResult is the delivery outcome on one channel.
type ChannelResult struct {
	Channel   model.Channel `json:"channel"`
	Delivered bool          `json:"delivered"`
	Error     string        `json:"error,omitempty"`
}

// Dispatcher fans queued decisions out to per-channel transports.
type Dispatcher struct {
	transports map[model.Channel]Transport
	logger     *slog.Logger
}

// NewDispatcher creates a dispatcher. Channels missing from transports fail
// with ErrNoTransport.
func NewDispatcher(transports map[model.Channel]Transport, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{transports: transports, logger: logger}
}

// Dispatch sends a queued decision on each of its channels concurrently.
// A failing channel never blocks the others. The returned decision is
// delivered when at least one channel succeeded and stays queued otherwise.
// Decisions that are not queued are returned unchanged.
func (d *Dispatcher) Dispatch(ctx context.Context, dec Decision, n model.Notification, pref model.NotificationPreference) (Decision, []ChannelResult) {
	if dec.Status != StatusQueued {
		return dec, nil
	}
	results := make([]ChannelResult, len(dec.Channels))
	// Workers record failures in results and never return an error, so one
	// channel cannot cancel its siblings.
	_ = parallel.ForEach(context.WithoutCancel(ctx), len(dec.Channels), len(dec.Channels), func(_ context.Context, i int) error {
		ch := dec.Channels[i]
		results[i] = ChannelResult{Channel: ch}
		err := d.send(ctx, ch, n, pref)
		if err != nil {
			results[i].Error = err.Error()
			return nil
		}
		results[i].Delivered = true
		return nil
	})

	delivered := 0
	for _, r := range results {
		if r.Delivered {
			delivered++
			continue
		}
		d.logger.Warn("notify: channel delivery failed",
			"agent_id", dec.AgentID, "notification_id", dec.NotificationID, "channel", r.Channel, "error", r.Error)
	}
	if delivered > 0 {
		dec.Status = StatusDelivered
	}
	return dec, results
}

func (d *Dispatcher) send(ctx context.Context, ch model.Channel, n model.Notification, pref model.NotificationPreference) (err error) {
	t, ok := d.transports[ch]
	if !ok || t == nil {
		return fmt.Errorf("%w %s", ErrNoTransport, ch)
	}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("notify: %s transport panicked: %v", ch, r)
		}
	}()
	return t.Send(ctx, ch, n, pref)
}

// LogTransport records deliveries in the structured log. The reference host
// uses it when no real transport is configured.
type LogTransport struct {
	Logger *slog.Logger
}

// Send logs the notification.
func (t LogTransport) Send(ctx context.Context, channel model.Channel, n model.Notification, _ model.NotificationPreference) error {
	t.Logger.InfoContext(ctx, "notify: delivered",
		"channel", channel, "agent_id", n.AgentID, "notification_id", n.ID, "type", n.Type, "priority", n.Priority)
	return nil
}
