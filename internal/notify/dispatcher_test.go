package notify

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Alfred252525/Analytical-Fire-sub000/internal/model"
)

func queued(channels ...model.Channel) Decision {
	return Decision{NotificationID: uuid.New(), AgentID: 7, Status: StatusQueued, Channels: channels, Record: true}
}

func TestDispatchOneFailingChannelDoesNotBlockOthers(t *testing.T) {
	var pushCalls atomic.Int32
	d := NewDispatcher(map[model.Channel]Transport{
		model.ChannelPush: TransportFunc(func(context.Context, model.Channel, model.Notification, model.NotificationPreference) error {
			pushCalls.Add(1)
			return nil
		}),
		model.ChannelEmail: TransportFunc(func(context.Context, model.Channel, model.Notification, model.NotificationPreference) error {
			return errors.New("smtp timeout")
		}),
	}, discardLogger())

	dec, results := d.Dispatch(context.Background(), queued(model.ChannelPush, model.ChannelEmail), candidate(model.PriorityHigh), *pref())
	assert.Equal(t, StatusDelivered, dec.Status)
	require.Len(t, results, 2)
	assert.True(t, results[0].Delivered)
	assert.False(t, results[1].Delivered)
	assert.Equal(t, "smtp timeout", results[1].Error)
	assert.Equal(t, int32(1), pushCalls.Load(), "no retries")
}

func TestDispatchAllChannelsFailStaysQueued(t *testing.T) {
	d := NewDispatcher(map[model.Channel]Transport{
		model.ChannelPush: TransportFunc(func(context.Context, model.Channel, model.Notification, model.NotificationPreference) error {
			panic("boom")
		}),
	}, discardLogger())

	dec, results := d.Dispatch(context.Background(), queued(model.ChannelPush, model.ChannelWebhook), candidate(model.PriorityHigh), *pref())
	assert.Equal(t, StatusQueued, dec.Status)
	require.Len(t, results, 2)
	assert.Contains(t, results[0].Error, "panicked")
	assert.Contains(t, results[1].Error, ErrNoTransport.Error())
}

func TestDispatchIgnoresSuppressedDecisions(t *testing.T) {
	d := NewDispatcher(nil, discardLogger())
	in := Decision{Status: StatusSuppressed, Reason: ReasonQuietHours}
	out, results := d.Dispatch(context.Background(), in, candidate(model.PriorityHigh), *pref())
	assert.Equal(t, in, out)
	assert.Nil(t, results)
}

func TestLogTransport(t *testing.T) {
	tr := LogTransport{Logger: discardLogger()}
	assert.NoError(t, tr.Send(context.Background(), model.ChannelPush, candidate(model.PriorityLow), *pref()))
}
