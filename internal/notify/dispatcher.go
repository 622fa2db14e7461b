// Package notify turns outbox events into user notifications. The relay
// drains the outbox into a Sink (the broker, or the Dispatcher directly);
// the Dispatcher writes one notification per recipient and is idempotent
// on (event id, recipient) so redelivered events are harmless.
package notify

import (
	"context"
	"fmt"

	"github.com/ecoride/carpool/internal/logging"
	"github.com/ecoride/carpool/internal/model"
	"github.com/ecoride/carpool/internal/store"
)

// Sink receives events drained from the outbox.
type Sink interface {
	Deliver(ctx context.Context, ev model.Event) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ctx context.Context, ev model.Event) error

func (f SinkFunc) Deliver(ctx context.Context, ev model.Event) error { return f(ctx, ev) }

type Dispatcher struct {
	store store.NotificationStore
}

func NewDispatcher(s store.NotificationStore) *Dispatcher {
	return &Dispatcher{store: s}
}

// Deliver writes the notifications of ev. Recipients already notified
// for this event are skipped.
func (d *Dispatcher) Deliver(ctx context.Context, ev model.Event) error {
	for _, rcpt := range ev.Recipients {
		n := &model.Notification{
			RecipientID: rcpt,
			RideID:      ev.RideID,
			EventID:     ev.ID,
			Kind:        ev.Type,
			Message:     Render(ev, rcpt),
			CreatedAt:   ev.OccurredAt,
		}
		inserted, err := d.store.InsertNotification(ctx, n)
		if err != nil {
			return fmt.Errorf("notify %d of %s: %w", rcpt, ev.ID, err)
		}
		if !inserted {
			logging.Debug(ctx, "notification already delivered",
				logging.Component("dispatcher"), logging.EventID(ev.ID), logging.UserID(rcpt))
		}
	}
	return nil
}
