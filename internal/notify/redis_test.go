package notify

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/davidbanez/park-angel-v1-sub008/internal/model"
)

type published struct {
	channel string
	payload []byte
}

type fakeClient struct {
	err  error
	sent []published
}

func (c *fakeClient) Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd {
	cmd := redis.NewIntCmd(ctx, "publish", channel, message)
	if c.err != nil {
		cmd.SetErr(c.err)
		return cmd
	}
	c.sent = append(c.sent, published{channel: channel, payload: message.([]byte)})
	cmd.SetVal(1)
	return cmd
}

func TestNotify(t *testing.T) {
	client := &fakeClient{}
	p := NewPublisher(client, nil)

	ts := time.Date(2026, time.October, 19, 18, 30, 0, 0, time.UTC)
	p.Notify(context.Background(), model.Notification{
		UserID:    "user-1",
		BookingID: "b-1",
		Type:      model.NotificationBookingConfirmed,
		Message:   "Your booking is confirmed",
		Timestamp: ts,
	})

	require.Len(t, client.sent, 1)
	assert.Equal(t, NotificationsChannel, client.sent[0].channel)

	var got model.Notification
	require.NoError(t, json.Unmarshal(client.sent[0].payload, &got))
	assert.Equal(t, "b-1", got.BookingID)
	assert.Equal(t, model.NotificationBookingConfirmed, got.Type)
	assert.True(t, ts.Equal(got.Timestamp))
}

func TestPublishOccupancy(t *testing.T) {
	client := &fakeClient{}
	p := NewPublisher(client, nil)

	p.PublishOccupancy(context.Background(), model.OccupancyUpdate{SpotID: "spot-1", ZoneID: "zone-1", Status: model.SpotStatusOccupied})

	require.Len(t, client.sent, 1)
	assert.Equal(t, OccupancyChannel, client.sent[0].channel)
	assert.JSONEq(t, `{"spotId":"spot-1","zoneId":"zone-1","status":"occupied","timestamp":"0001-01-01T00:00:00Z"}`,
		string(client.sent[0].payload))
}

func TestPublishErrorIsLogged(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	p := NewPublisher(&fakeClient{err: errors.New("connection refused")}, zap.New(core))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	p.Notify(ctx, model.Notification{BookingID: "b-1", Type: model.NotificationPaymentFailed})

	entries := logs.FilterMessage("publish event").All()
	require.Len(t, entries, 1)
	assert.Equal(t, NotificationsChannel, entries[0].ContextMap()["channel"])
}

func TestWithoutClient(t *testing.T) {
	p := NewPublisher(nil, nil)
	assert.NotPanics(t, func() {
		p.Notify(context.Background(), model.Notification{})
		p.PublishOccupancy(context.Background(), model.OccupancyUpdate{})
	})
}
