package queue

import (
	"context"
	"fmt"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/ecoride/carpool/internal/logging"
	"github.com/ecoride/carpool/internal/model"
	"github.com/ecoride/carpool/internal/notify"
)

// Publisher publishes outbox events to the events exchange with
// publisher confirms. It keeps one connection and redials lazily after
// a failure.
type Publisher struct {
	url  string
	topo Topology

	mu   sync.Mutex
	conn *amqp.Connection
	ch   *amqp.Channel
}

var _ notify.Sink = (*Publisher)(nil)

func NewPublisher(url string, topo Topology) *Publisher {
	return &Publisher{url: url, topo: topo.WithDefaults()}
}

func (p *Publisher) channel() (*amqp.Channel, error) {
	if p.ch != nil && !p.ch.IsClosed() {
		return p.ch, nil
	}
	p.reset()
	conn, err := amqp.Dial(p.url)
	if err != nil {
		return nil, fmt.Errorf("dial broker: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("channel open: %w", err)
	}
	if err := p.topo.Declare(ch); err != nil {
		_ = conn.Close()
		return nil, err
	}
	if err := ch.Confirm(false); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("confirm mode: %w", err)
	}
	p.conn, p.ch = conn, ch
	return ch, nil
}

func (p *Publisher) reset() {
	if p.ch != nil {
		_ = p.ch.Close()
	}
	if p.conn != nil {
		_ = p.conn.Close()
	}
	p.conn, p.ch = nil, nil
}

// Deliver publishes ev and waits for the broker's confirmation.
func (p *Publisher) Deliver(ctx context.Context, ev model.Event) error {
	msg, err := Encode(ev)
	if err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	ch, err := p.channel()
	if err != nil {
		return err
	}
	conf, err := ch.PublishWithDeferredConfirmWithContext(ctx, p.topo.Exchange, string(ev.Type), false, false, msg)
	if err != nil {
		p.reset()
		return fmt.Errorf("publish: %w", err)
	}
	ok, err := conf.WaitContext(ctx)
	if err != nil {
		p.reset()
		return fmt.Errorf("publish confirm: %w", err)
	}
	if !ok {
		return fmt.Errorf("broker nacked event %s", ev.ID)
	}
	logging.Debug(ctx, "event published", logging.Component("publisher"), logging.EventID(ev.ID))
	return nil
}

// Close releases the broker connection.
func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.reset()
	return nil
}
