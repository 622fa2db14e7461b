package queue

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/ecoride/carpool/internal/logging"
	"github.com/ecoride/carpool/internal/notify"
)

const (
	minReconnect = time.Second
	maxReconnect = 30 * time.Second
)

// Consumer feeds events from the notifications queue to a sink. Failed
// deliveries are republished to the retry queue with a growing TTL and
// parked once the retry policy gives up.
type Consumer struct {
	url      string
	topo     Topology
	sink     notify.Sink
	policy   notify.RetryPolicy
	prefetch int
}

func NewConsumer(url string, topo Topology, sink notify.Sink, policy notify.RetryPolicy, prefetch int) *Consumer {
	if prefetch <= 0 {
		prefetch = 50
	}
	if policy.MaxAttempts <= 0 {
		policy = notify.DefaultRetryPolicy
	}
	return &Consumer{url: url, topo: topo.WithDefaults(), sink: sink, policy: policy, prefetch: prefetch}
}

// Run consumes until ctx is cancelled, reconnecting with backoff when
// the broker goes away.
func (c *Consumer) Run(ctx context.Context) error {
	backoff := minReconnect
	for {
		conn, err := amqp.Dial(c.url)
		if err != nil {
			logging.Warn(ctx, "dial broker failed", logging.Component("consumer"), logging.Err(err),
				logging.Duration("retry_in", backoff))
			if !sleep(ctx, backoff) {
				return ctx.Err()
			}
			backoff = min(backoff*2, maxReconnect)
			continue
		}
		backoff = minReconnect

		err = c.consume(ctx, conn)
		_ = conn.Close()
		if ctx.Err() != nil {
			return ctx.Err()
		}
		logging.Warn(ctx, "consume loop ended, reconnecting", logging.Component("consumer"), logging.Err(err))
		if !sleep(ctx, 2*time.Second) {
			return ctx.Err()
		}
	}
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

func (c *Consumer) consume(ctx context.Context, conn *amqp.Connection) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if err := ch.Qos(c.prefetch, 0, false); err != nil {
		logging.Warn(ctx, "set QoS failed", logging.Component("consumer"), logging.Err(err))
	}
	if err := c.topo.Declare(ch); err != nil {
		return err
	}
	if err := ch.Confirm(false); err != nil {
		return fmt.Errorf("confirm mode: %w", err)
	}
	msgs, err := ch.Consume(c.topo.Queue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("queue consume: %w", err)
	}
	pub := confirmedPublish(ch)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-msgs:
			if !ok {
				return errors.New("deliveries channel closed")
			}
			if err := c.process(ctx, pub, d); err != nil {
				return err
			}
		}
	}
}

// publishFunc publishes msg to queue on the default exchange and returns
// once the broker has confirmed it.
type publishFunc func(ctx context.Context, queue string, msg amqp.Publishing) error

func confirmedPublish(ch *amqp.Channel) publishFunc {
	return func(ctx context.Context, queue string, msg amqp.Publishing) error {
		conf, err := ch.PublishWithDeferredConfirmWithContext(ctx, "", queue, false, false, msg)
		if err != nil {
			return fmt.Errorf("publish to %s: %w", queue, err)
		}
		ok, err := conf.WaitContext(ctx)
		if err != nil {
			return fmt.Errorf("publish confirm on %s: %w", queue, err)
		}
		if !ok {
			return fmt.Errorf("broker nacked message for %s", queue)
		}
		return nil
	}
}

// process handles one delivery and settles it. The delivery is acked
// only after the sink accepted it or the broker confirmed the copy sent
// to the retry or parked queue; otherwise it is requeued.
func (c *Consumer) process(ctx context.Context, pub publishFunc, d amqp.Delivery) error {
	if err := c.handle(ctx, pub, d); err != nil {
		if nerr := d.Nack(false, true); nerr != nil {
			return errors.Join(err, nerr)
		}
		return err
	}
	return d.Ack(false)
}

// handle returns an error only when the message could not be handed
// over to the retry or parked queue.
func (c *Consumer) handle(ctx context.Context, pub publishFunc, d amqp.Delivery) error {
	ev, err := Decode(d.Body)
	if err != nil {
		logging.Error(ctx, "malformed message parked", logging.Component("consumer"), logging.Err(err))
		return c.forward(ctx, pub, c.topo.Parked, d, attemptOf(d.Headers), err, 0)
	}
	derr := c.sink.Deliver(ctx, ev)
	if derr == nil {
		return nil
	}
	attempt := attemptOf(d.Headers) + 1
	target, delay := c.next(attempt)
	if target == c.topo.Parked {
		logging.Error(ctx, "event parked", logging.Component("consumer"), logging.EventID(ev.ID),
			logging.Count("attempts", attempt), logging.Err(derr))
	} else {
		logging.Warn(ctx, "event delivery failed, retrying", logging.Component("consumer"), logging.EventID(ev.ID),
			logging.Count("attempts", attempt), logging.Err(derr))
	}
	return c.forward(ctx, pub, target, d, attempt, derr, delay)
}

// next picks the queue a message goes to after its attempt-th failure.
func (c *Consumer) next(attempt int) (string, time.Duration) {
	delay, park := c.policy.Next(attempt)
	if park {
		return c.topo.Parked, 0
	}
	return c.topo.Retry, delay
}

func (c *Consumer) forward(ctx context.Context, pub publishFunc, queue string, d amqp.Delivery, attempt int, cause error, delay time.Duration) error {
	headers := amqp.Table{}
	for k, v := range d.Headers {
		headers[k] = v
	}
	headers[HeaderAttempt] = int32(attempt)
	headers[HeaderLastError] = cause.Error()
	msg := amqp.Publishing{
		ContentType:  d.ContentType,
		DeliveryMode: amqp.Persistent,
		MessageId:    d.MessageId,
		Type:         d.Type,
		Timestamp:    d.Timestamp,
		Headers:      headers,
		Body:         d.Body,
	}
	if delay > 0 {
		msg.Expiration = strconv.FormatInt(delay.Milliseconds(), 10)
	}
	return pub(ctx, queue, msg)
}
