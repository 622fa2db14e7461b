package ride

import (
	"context"
	"errors"
	"time"

	"github.com/ecoride/carpool/internal/apperr"
	"github.com/ecoride/carpool/internal/logging"
	"github.com/ecoride/carpool/internal/model"
	"github.com/ecoride/carpool/internal/store"
)

// sweepBatch bounds the rides handled per status in one pass.
const sweepBatch = 200

// SweepResult counts the transitions applied by one pass.
type SweepResult struct {
	Started   int
	Completed int
	Failed    int
}

// Sweep starts published rides whose departure has passed and completes
// ongoing rides whose arrival is older than the completion grace. Each
// ride runs in its own unit; a ride moved concurrently by its driver is
// skipped.
func (m *Manager) Sweep(ctx context.Context) (SweepResult, error) {
	var res SweepResult
	now := m.now().UTC()

	due, err := m.store.DueRides(ctx, model.RidePublished, now, sweepBatch)
	if err != nil {
		return res, err
	}
	for _, id := range due {
		err := store.Run(ctx, m.store, m.attempts, func(ctx context.Context, tx store.Tx) error {
			r, err := lockRide(ctx, tx, id)
			if err != nil {
				return err
			}
			return m.start(ctx, tx, r, 0)
		})
		res.record(ctx, id, err, &res.Started)
	}

	overdue, err := m.store.DueRides(ctx, model.RideOngoing, now.Add(-m.grace), sweepBatch)
	if err != nil {
		return res, err
	}
	for _, id := range overdue {
		err := store.Run(ctx, m.store, m.attempts, func(ctx context.Context, tx store.Tx) error {
			r, err := lockRide(ctx, tx, id)
			if err != nil {
				return err
			}
			return m.complete(ctx, tx, r, 0)
		})
		res.record(ctx, id, err, &res.Completed)
	}
	return res, ctx.Err()
}

func (res *SweepResult) record(ctx context.Context, rideID uint64, err error, counter *int) {
	switch {
	case err == nil:
		*counter++
	case errors.Is(err, apperr.ErrInvalidTransition):
	default:
		res.Failed++
		logging.Warn(ctx, "sweep failed", logging.Component("sweeper"), logging.RideID(rideID), logging.Err(err))
	}
}

// RunSweeper sweeps every interval until ctx is cancelled.
func (m *Manager) RunSweeper(ctx context.Context, interval time.Duration) error {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		res, err := m.Sweep(ctx)
		if err != nil && ctx.Err() == nil {
			logging.Error(ctx, "sweep pass failed", logging.Component("sweeper"), logging.Err(err))
		}
		if res.Started+res.Completed+res.Failed > 0 {
			logging.Info(ctx, "sweep pass",
				logging.Component("sweeper"),
				logging.Count("started", res.Started),
				logging.Count("completed", res.Completed),
				logging.Count("failed", res.Failed))
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
		}
	}
}
