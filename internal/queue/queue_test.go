package queue

import (
	"context"
	"errors"
	"testing"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ecoride/carpool/internal/model"
	"github.com/ecoride/carpool/internal/notify"
)

func TestEncodeDecode(t *testing.T) {
	at := time.Date(2026, 5, 4, 8, 0, 0, 0, time.UTC)
	ev := model.NewEvent(model.EventBookingCreated, 4, 2, at, model.EventData{Amount: 12}, 2, 3)

	msg, err := Encode(*ev)
	require.NoError(t, err)
	assert.Equal(t, ev.ID, msg.MessageId)
	assert.Equal(t, "booking.created", msg.Type)
	assert.Equal(t, amqp.Persistent, msg.DeliveryMode)
	assert.Equal(t, 0, attemptOf(msg.Headers))

	got, err := Decode(msg.Body)
	require.NoError(t, err)
	assert.Equal(t, ev.ID, got.ID)
	assert.Equal(t, []uint64{2, 3}, got.Recipients)
	assert.Equal(t, int64(12), got.Data.Amount)
	assert.True(t, at.Equal(got.OccurredAt))

	_, err = Decode([]byte(`{"recipients":[1]}`))
	assert.Error(t, err)
	_, err = Decode([]byte(`not json`))
	assert.Error(t, err)
}

func TestAttemptHeaderWidths(t *testing.T) {
	assert.Equal(t, 3, attemptOf(amqp.Table{HeaderAttempt: int32(3)}))
	assert.Equal(t, 4, attemptOf(amqp.Table{HeaderAttempt: int64(4)}))
	assert.Equal(t, 0, attemptOf(amqp.Table{HeaderAttempt: "5"}))
	assert.Equal(t, 0, attemptOf(nil))
}

func TestTopologyDefaults(t *testing.T) {
	topo := Topology{Queue: "custom"}.WithDefaults()
	assert.Equal(t, "carpool.events", topo.Exchange)
	assert.Equal(t, "custom.retry", topo.Retry)
	assert.Equal(t, "carpool.events.parked", topo.Parked)
}

func TestConsumerRoutesFailures(t *testing.T) {
	c := NewConsumer("amqp://unused", Topology{}, notify.NewDispatcher(nil),
		notify.RetryPolicy{MaxAttempts: 3, Base: time.Second, Max: time.Minute}, 0)

	q, delay := c.next(1)
	assert.Equal(t, "carpool.notifications.retry", q)
	assert.Equal(t, time.Second, delay)

	q, delay = c.next(2)
	assert.Equal(t, "carpool.notifications.retry", q)
	assert.Equal(t, 2*time.Second, delay)

	q, _ = c.next(3)
	assert.Equal(t, "carpool.events.parked", q)
}

type acker struct {
	acked, requeued int
}

func (a *acker) Ack(uint64, bool) error { a.acked++; return nil }

func (a *acker) Nack(_ uint64, _ bool, requeue bool) error {
	if requeue {
		a.requeued++
	}
	return nil
}

func (a *acker) Reject(uint64, bool) error { return nil }

func deliveryOf(t *testing.T, attempt int, ack amqp.Acknowledger) amqp.Delivery {
	t.Helper()
	ev := model.NewEvent(model.EventRideCancelled, 7, 1, time.Date(2026, 5, 4, 8, 0, 0, 0, time.UTC), model.EventData{}, 2)
	msg, err := Encode(*ev)
	require.NoError(t, err)
	return amqp.Delivery{
		Acknowledger: ack,
		DeliveryTag:  1,
		Headers:      amqp.Table{HeaderAttempt: int32(attempt)},
		MessageId:    msg.MessageId,
		Type:         msg.Type,
		Body:         msg.Body,
	}
}

func TestFailedDeliveryAckedOnlyAfterConfirmedForward(t *testing.T) {
	down := notify.SinkFunc(func(context.Context, model.Event) error { return errors.New("smtp down") })
	c := NewConsumer("amqp://unused", Topology{}, down,
		notify.RetryPolicy{MaxAttempts: 3, Base: time.Second, Max: time.Minute}, 0)
	ctx := context.Background()

	var queues []string
	var last amqp.Publishing
	confirmed := func(_ context.Context, queue string, msg amqp.Publishing) error {
		queues = append(queues, queue)
		last = msg
		return nil
	}
	a := &acker{}
	require.NoError(t, c.process(ctx, confirmed, deliveryOf(t, 0, a)))
	assert.Equal(t, 1, a.acked)
	assert.Equal(t, []string{"carpool.notifications.retry"}, queues)
	assert.Equal(t, int32(1), last.Headers[HeaderAttempt])
	assert.Equal(t, "smtp down", last.Headers[HeaderLastError])
	assert.Equal(t, "1000", last.Expiration)

	a = &acker{}
	require.NoError(t, c.process(ctx, confirmed, deliveryOf(t, 2, a)))
	assert.Equal(t, 1, a.acked)
	assert.Equal(t, "carpool.events.parked", queues[1])
	assert.Empty(t, last.Expiration)

	nacked := func(context.Context, string, amqp.Publishing) error {
		return errors.New("broker nacked message for carpool.events.parked")
	}
	a = &acker{}
	err := c.process(ctx, nacked, deliveryOf(t, 2, a))
	assert.Error(t, err)
	assert.Equal(t, 0, a.acked)
	assert.Equal(t, 1, a.requeued)
}

func TestDeliveredEventAckedWithoutForward(t *testing.T) {
	ok := notify.SinkFunc(func(context.Context, model.Event) error { return nil })
	c := NewConsumer("amqp://unused", Topology{}, ok, notify.DefaultRetryPolicy, 0)
	forwarded := false
	pub := func(context.Context, string, amqp.Publishing) error { forwarded = true; return nil }

	a := &acker{}
	require.NoError(t, c.process(context.Background(), pub, deliveryOf(t, 0, a)))
	assert.Equal(t, 1, a.acked)
	assert.False(t, forwarded)
}
