package notify

import (
	"context"
	"errors"
	"time"

	"github.com/ecoride/carpool/internal/logging"
	"github.com/ecoride/carpool/internal/store"
)

// DefaultBatch bounds the events fetched per relay pass.
const DefaultBatch = 100

// Relay drains due outbox events into a Sink.
type Relay struct {
	store  store.OutboxStore
	sink   Sink
	policy RetryPolicy
	batch  int
	now    func() time.Time
}

type RelayOption func(*Relay)

func WithBatch(n int) RelayOption {
	return func(r *Relay) {
		if n > 0 {
			r.batch = n
		}
	}
}

func WithRelayClock(now func() time.Time) RelayOption { return func(r *Relay) { r.now = now } }

func NewRelay(s store.OutboxStore, sink Sink, policy RetryPolicy, opts ...RelayOption) (*Relay, error) {
	if s == nil || sink == nil {
		return nil, errors.New("relay: nil store or sink")
	}
	if policy.MaxAttempts <= 0 {
		policy = DefaultRetryPolicy
	}
	r := &Relay{store: s, sink: sink, policy: policy, batch: DefaultBatch, now: time.Now}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// RelayStats counts the outcome of one pass.
type RelayStats struct {
	Sent    int
	Retried int
	Parked  int
}

// RunOnce delivers every due event once.
func (r *Relay) RunOnce(ctx context.Context) (RelayStats, error) {
	var st RelayStats
	due, err := r.store.DueEvents(ctx, r.now(), r.batch)
	if err != nil {
		return st, err
	}
	for _, rec := range due {
		if err := ctx.Err(); err != nil {
			return st, err
		}
		derr := r.sink.Deliver(ctx, rec.Event)
		if derr == nil {
			if err := r.store.MarkSent(ctx, rec.ID); err != nil {
				return st, err
			}
			st.Sent++
			continue
		}
		attempts := rec.Attempts + 1
		delay, park := r.policy.Next(attempts)
		if err := r.store.MarkFailed(ctx, rec.ID, attempts, r.now().Add(delay), derr.Error(), park); err != nil {
			return st, err
		}
		if park {
			st.Parked++
			logging.Error(ctx, "event parked", logging.Component("relay"), logging.EventID(rec.ID),
				logging.Count("attempts", attempts), logging.Err(derr))
			continue
		}
		st.Retried++
		logging.Warn(ctx, "event delivery failed", logging.Component("relay"), logging.EventID(rec.ID),
			logging.Count("attempts", attempts), logging.Err(derr))
	}
	return st, nil
}

// Run polls the outbox every interval until ctx is cancelled. A full
// batch is followed by an immediate pass.
func (r *Relay) Run(ctx context.Context, interval time.Duration) error {
	for {
		st, err := r.RunOnce(ctx)
		if err != nil && ctx.Err() == nil {
			logging.Error(ctx, "relay pass failed", logging.Component("relay"), logging.Err(err))
		}
		if st.Sent+st.Retried+st.Parked >= r.batch {
			continue
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(interval):
		}
	}
}
