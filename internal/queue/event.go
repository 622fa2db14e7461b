// Package queue carries outbox events over RabbitMQ. The Publisher is
// the relay's sink; the Consumer feeds deliveries to the notification
// dispatcher, retrying failures through a TTL retry queue and parking
// messages that exhaust their attempts.
package queue

import (
	"fmt"
	"time"

	"github.com/goccy/go-json"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/ecoride/carpool/internal/model"
)

// Header names set on published messages.
const (
	HeaderAttempt   = "x-attempt"
	HeaderLastError = "x-last-error"
)

// Topology names the broker objects used by the engine.
type Topology struct {
	Exchange string // topic exchange receiving every event
	Queue    string // queue consumed by the dispatcher
	Retry    string // TTL queue dead-lettering back into Queue
	Parked   string // messages that exhausted their attempts
}

// DefaultTopology is used when the configuration leaves names empty.
var DefaultTopology = Topology{
	Exchange: "carpool.events",
	Queue:    "carpool.notifications",
	Retry:    "carpool.notifications.retry",
	Parked:   "carpool.events.parked",
}

// WithDefaults fills empty names from DefaultTopology.
func (t Topology) WithDefaults() Topology {
	if t.Exchange == "" {
		t.Exchange = DefaultTopology.Exchange
	}
	if t.Queue == "" {
		t.Queue = DefaultTopology.Queue
	}
	if t.Retry == "" {
		t.Retry = t.Queue + ".retry"
	}
	if t.Parked == "" {
		t.Parked = DefaultTopology.Parked
	}
	return t
}

// Declare creates the exchange and queues. It is idempotent.
func (t Topology) Declare(ch *amqp.Channel) error {
	if err := ch.ExchangeDeclare(t.Exchange, amqp.ExchangeTopic, true, false, false, false, nil); err != nil {
		return fmt.Errorf("exchange declare: %w", err)
	}
	if _, err := ch.QueueDeclare(t.Queue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("queue declare: %w", err)
	}
	if err := ch.QueueBind(t.Queue, "#", t.Exchange, false, nil); err != nil {
		return fmt.Errorf("queue bind: %w", err)
	}
	retryArgs := amqp.Table{
		"x-dead-letter-exchange":    "",
		"x-dead-letter-routing-key": t.Queue,
	}
	if _, err := ch.QueueDeclare(t.Retry, true, false, false, false, retryArgs); err != nil {
		return fmt.Errorf("retry queue declare: %w", err)
	}
	if _, err := ch.QueueDeclare(t.Parked, true, false, false, false, nil); err != nil {
		return fmt.Errorf("parked queue declare: %w", err)
	}
	return nil
}

// Encode wraps ev in a persistent JSON message keyed by the event id.
func Encode(ev model.Event) (amqp.Publishing, error) {
	body, err := json.Marshal(ev)
	if err != nil {
		return amqp.Publishing{}, fmt.Errorf("marshal event: %w", err)
	}
	return amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    ev.ID,
		Type:         string(ev.Type),
		Timestamp:    time.Now().UTC(),
		Headers:      amqp.Table{HeaderAttempt: int32(0)},
		Body:         body,
	}, nil
}

// Decode reads an event from a message body.
func Decode(body []byte) (model.Event, error) {
	var ev model.Event
	if err := json.Unmarshal(body, &ev); err != nil {
		return ev, fmt.Errorf("unmarshal event: %w", err)
	}
	if ev.ID == "" || ev.Type == "" {
		return ev, fmt.Errorf("event without id or type")
	}
	return ev, nil
}

// attemptOf reads the delivery attempt counter; brokers may hand back
// any integer width.
func attemptOf(h amqp.Table) int {
	switch v := h[HeaderAttempt].(type) {
	case int32:
		return int(v)
	case int64:
		return int(v)
	case int:
		return v
	case int16:
		return int(v)
	case int8:
		return int(v)
	}
	return 0
}
