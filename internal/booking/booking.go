// Package booking creates and cancels passenger participations. The seat
// taken on the ride, the participation row and the credit hold are
// written in one store unit, so a booking either exists with all three
// or not at all.
package booking

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ecoride/carpool/internal/apperr"
	"github.com/ecoride/carpool/internal/ledger"
	"github.com/ecoride/carpool/internal/logging"
	"github.com/ecoride/carpool/internal/model"
	"github.com/ecoride/carpool/internal/ride"
	"github.com/ecoride/carpool/internal/store"
)

type Coordinator struct {
	store    store.Store
	rides    *ride.Manager
	ledger   *ledger.Ledger
	attempts int
	cutoff   time.Duration
	now      func() time.Time
}

type Option func(*Coordinator) error

// WithClock sets the time source.
func WithClock(now func() time.Time) Option {
	return func(c *Coordinator) error {
		if now == nil {
			return errors.New("nil clock")
		}
		c.now = now
		return nil
	}
}

// WithAttempts bounds the conflict retries of Book and Cancel.
func WithAttempts(n int) Option {
	return func(c *Coordinator) error {
		if n <= 0 {
			return errors.New("attempts must be positive")
		}
		c.attempts = n
		return nil
	}
}

// WithCancelCutoff forbids passenger cancellation once departure is
// closer than d. Zero allows cancelling until the ride completes.
func WithCancelCutoff(d time.Duration) Option {
	return func(c *Coordinator) error {
		if d < 0 {
			return errors.New("negative cancel cutoff")
		}
		c.cutoff = d
		return nil
	}
}

func New(s store.Store, rides *ride.Manager, l *ledger.Ledger, opts ...Option) (*Coordinator, error) {
	if s == nil || rides == nil || l == nil {
		return nil, errors.New("booking: nil dependency")
	}
	c := &Coordinator{store: s, rides: rides, ledger: l, attempts: store.DefaultAttempts, now: time.Now}
	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, fmt.Errorf("booking option: %w", err)
		}
	}
	return c, nil
}

// Book reserves a seat and the ride price for the passenger.
//
// Failures: apperr.ErrRideNotBookable unless the ride is published and
// its departure is still ahead,
// apperr.ErrAlreadyBooked when an active participation exists,
// apperr.ErrSoldOut when no seat is left, apperr.ErrInsufficientFunds
// when the balance is below the price.
func (c *Coordinator) Book(ctx context.Context, passengerID, rideID uint64) (*model.Participation, error) {
	var out *model.Participation
	err := store.Run(ctx, c.store, c.attempts, func(ctx context.Context, tx store.Tx) error {
		r, err := tx.GetRide(ctx, rideID)
		if errors.Is(err, store.ErrNotFound) {
			return apperr.ErrRideNotFound
		}
		if err != nil {
			return err
		}
		if r.DriverID == passengerID {
			return apperr.ErrSelfBooking
		}
		if r.Status != model.RidePublished {
			return fmt.Errorf("%w: ride %d is %s", apperr.ErrRideNotBookable, r.ID, r.Status)
		}
		now := c.now().UTC()
		if !now.Before(r.DepartureAt) {
			return fmt.Errorf("%w: ride %d departed at %s", apperr.ErrRideNotBookable, r.ID, r.DepartureAt.Format(time.RFC3339))
		}
		if _, err := tx.FindParticipation(ctx, passengerID, rideID, model.ParticipationActive); err == nil {
			return apperr.ErrAlreadyBooked
		} else if !errors.Is(err, store.ErrNotFound) {
			return err
		}
		if err := c.rides.TryReserveSeat(ctx, tx, r); err != nil {
			return err
		}

		u, err := tx.GetUser(ctx, passengerID)
		if errors.Is(err, store.ErrNotFound) {
			return apperr.ErrUserNotFound
		}
		if err != nil {
			return err
		}
		if !u.CanTravel() {
			return apperr.ErrUserNotAllowed
		}

		p := &model.Participation{
			PassengerID:  passengerID,
			RideID:       rideID,
			Status:       model.ParticipationActive,
			RegisteredAt: now,
		}
		if err := tx.CreateParticipation(ctx, p); err != nil {
			if errors.Is(err, store.ErrDuplicate) {
				return apperr.ErrAlreadyBooked
			}
			return fmt.Errorf("create participation: %w", err)
		}
		if _, err := c.ledger.Reserve(ctx, tx, passengerID, rideID, p.ID, r.Price); err != nil {
			return err
		}
		data := model.RideData(r)
		data.Amount = r.Price
		out = p
		return tx.Enqueue(ctx, model.NewEvent(model.EventBookingCreated, r.ID, passengerID, now, data, passengerID, r.DriverID))
	})
	if err != nil {
		logging.Debug(ctx, "booking refused", logging.Component("booking"),
			logging.RideID(rideID), logging.UserID(passengerID), logging.Err(err))
		return nil, err
	}
	logging.Info(ctx, "ride booked", logging.Component("booking"), logging.RideID(rideID), logging.UserID(passengerID))
	return out, nil
}

// Cancel withdraws the passenger's active participation, releasing the
// hold and returning the seat. The participation row is kept as
// cancelled.
func (c *Coordinator) Cancel(ctx context.Context, passengerID, rideID uint64) (*model.Participation, error) {
	var out *model.Participation
	err := store.Run(ctx, c.store, c.attempts, func(ctx context.Context, tx store.Tx) error {
		r, err := tx.GetRide(ctx, rideID)
		if errors.Is(err, store.ErrNotFound) {
			return apperr.ErrRideNotFound
		}
		if err != nil {
			return err
		}
		p, err := tx.FindParticipation(ctx, passengerID, rideID, model.ParticipationActive)
		if errors.Is(err, store.ErrNotFound) {
			return apperr.ErrNoActiveParticipation
		}
		if err != nil {
			return err
		}
		now := c.now().UTC()
		if err := c.cancellable(r, now); err != nil {
			return err
		}
		if err := c.ledger.ReleaseFor(ctx, tx, p.ID); err != nil {
			return err
		}
		p.Status = model.ParticipationCancelled
		p.CancelledAt = &now
		if err := tx.UpdateParticipation(ctx, p); err != nil {
			return err
		}
		if err := c.rides.RestoreSeat(ctx, tx, r); err != nil {
			return err
		}
		data := model.RideData(r)
		data.Amount = r.Price
		out = p
		return tx.Enqueue(ctx, model.NewEvent(model.EventBookingCancelled, r.ID, passengerID, now, data, passengerID, r.DriverID))
	})
	if err != nil {
		return nil, err
	}
	logging.Info(ctx, "booking cancelled", logging.Component("booking"), logging.RideID(rideID), logging.UserID(passengerID))
	return out, nil
}

func (c *Coordinator) cancellable(r *model.Ride, now time.Time) error {
	if r.Status != model.RidePublished && r.Status != model.RideOngoing {
		return fmt.Errorf("%w: ride %d is %s", apperr.ErrTooLateToCancel, r.ID, r.Status)
	}
	if c.cutoff > 0 && !now.Before(r.DepartureAt.Add(-c.cutoff)) {
		return fmt.Errorf("%w: cutoff %s before departure", apperr.ErrTooLateToCancel, c.cutoff)
	}
	return nil
}

// Mine lists a passenger's participations, newest first.
func (c *Coordinator) Mine(ctx context.Context, passengerID uint64) ([]model.Participation, error) {
	return c.store.ListParticipationsByPassenger(ctx, passengerID)
}
