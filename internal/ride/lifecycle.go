// Package ride runs the ride state machine: drafting, publication with
// moderation gating, start, completion with credit settlement and
// driver cancellation with credit release.
//
// Every mutation runs in one store unit that also records the outbox
// events it produces. Rows are locked ride first, then participations,
// then users.
package ride

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ecoride/carpool/internal/apperr"
	"github.com/ecoride/carpool/internal/ledger"
	"github.com/ecoride/carpool/internal/logging"
	"github.com/ecoride/carpool/internal/model"
	"github.com/ecoride/carpool/internal/registry"
	"github.com/ecoride/carpool/internal/store"
)

// Defaults used when no option overrides them.
const (
	DefaultCompletionGrace = 24 * time.Hour
	DefaultPageSize        = 20
	MaxPageSize            = 100
)

type Manager struct {
	store    store.Store
	ledger   *ledger.Ledger
	screener Screener
	attempts int
	grace    time.Duration
	now      func() time.Time
}

func New(s store.Store, l *ledger.Ledger, opts ...Option) (*Manager, error) {
	if s == nil || l == nil {
		return nil, errors.New("ride: nil store or ledger")
	}
	m := &Manager{
		store:    s,
		ledger:   l,
		attempts: store.DefaultAttempts,
		grace:    DefaultCompletionGrace,
		now:      time.Now,
	}
	for _, opt := range opts {
		if err := opt(m); err != nil {
			return nil, fmt.Errorf("ride option: %w", err)
		}
	}
	return m, nil
}

// Draft is the driver's description of a ride.
type Draft struct {
	VehicleID     uint64
	DepartureCity string
	ArrivalCity   string
	DepartureAt   time.Time
	ArrivalAt     time.Time
	Price         int64
	Seats         int
	Notes         string
}

func (d Draft) validate(now time.Time) error {
	if strings.TrimSpace(d.DepartureCity) == "" || strings.TrimSpace(d.ArrivalCity) == "" {
		return apperr.Validation("departure and arrival cities are required")
	}
	if !d.ArrivalAt.After(d.DepartureAt) || !d.DepartureAt.After(now) {
		return apperr.ErrInvalidSchedule
	}
	if d.Price < 0 {
		return apperr.ErrInvalidAmount
	}
	if d.Seats <= 0 {
		return apperr.ErrInvalidSeatCount
	}
	return nil
}

// CreateDraft stores a new ride in the draft state.
func (m *Manager) CreateDraft(ctx context.Context, driverID uint64, d Draft) (*model.Ride, error) {
	now := m.now().UTC()
	if err := d.validate(now); err != nil {
		return nil, err
	}
	var out *model.Ride
	err := store.Run(ctx, m.store, m.attempts, func(ctx context.Context, tx store.Tx) error {
		if err := requireTraveller(ctx, tx, driverID); err != nil {
			return err
		}
		if err := registry.ValidateSeats(ctx, tx, driverID, d.VehicleID, d.Seats); err != nil {
			return err
		}
		r := &model.Ride{
			DriverID:       driverID,
			VehicleID:      d.VehicleID,
			DepartureCity:  strings.TrimSpace(d.DepartureCity),
			ArrivalCity:    strings.TrimSpace(d.ArrivalCity),
			DepartureAt:    d.DepartureAt.UTC(),
			ArrivalAt:      d.ArrivalAt.UTC(),
			Price:          d.Price,
			SeatsOffered:   d.Seats,
			SeatsAvailable: d.Seats,
			Status:         model.RideDraft,
			Notes:          strings.TrimSpace(d.Notes),
			CreatedAt:      now,
		}
		if err := tx.CreateRide(ctx, r); err != nil {
			return fmt.Errorf("create ride: %w", err)
		}
		out = r
		return nil
	})
	if err != nil {
		return nil, err
	}
	logging.Info(ctx, "ride drafted", logging.Component("ride"), logging.RideID(out.ID), logging.UserID(driverID))
	return out, nil
}

// Publish submits a draft to moderation. Rides raising no moderation
// flag are published immediately; others wait for an employee.
func (m *Manager) Publish(ctx context.Context, driverID, rideID uint64) (*model.Ride, error) {
	var out *model.Ride
	err := store.Run(ctx, m.store, m.attempts, func(ctx context.Context, tx store.Tx) error {
		r, err := m.ownRide(ctx, tx, driverID, rideID)
		if err != nil {
			return err
		}
		if err := requireTraveller(ctx, tx, driverID); err != nil {
			return err
		}
		if err := r.TransitionTo(model.RidePendingModeration); err != nil {
			return err
		}
		if err := registry.ValidateSeats(ctx, tx, driverID, r.VehicleID, r.SeatsOffered); err != nil {
			return err
		}
		now := m.now().UTC()
		r.Moderation = model.ModerationPayload{Flags: m.screener.Screen(r)}
		typ := model.EventRideFlagged
		if !r.Moderation.Flagged() {
			r.Moderation.Decision = model.DecisionAuto
			r.Moderation.DecidedAt = &now
			if err := r.TransitionTo(model.RidePublished); err != nil {
				return err
			}
			typ = model.EventRidePublished
		}
		if err := tx.UpdateRide(ctx, r); err != nil {
			return err
		}
		out = r
		return tx.Enqueue(ctx, model.NewEvent(typ, r.ID, driverID, now, model.RideData(r), driverID))
	})
	if err != nil {
		return nil, err
	}
	logging.Info(ctx, "ride submitted", logging.Component("ride"), logging.RideID(rideID),
		logging.Status(string(out.Status)))
	return out, nil
}

// Start moves a published ride to ongoing on the driver's request.
func (m *Manager) Start(ctx context.Context, driverID, rideID uint64) (*model.Ride, error) {
	var out *model.Ride
	err := store.Run(ctx, m.store, m.attempts, func(ctx context.Context, tx store.Tx) error {
		r, err := m.ownRide(ctx, tx, driverID, rideID)
		if err != nil {
			return err
		}
		out = r
		return m.start(ctx, tx, r, driverID)
	})
	return out, err
}

func (m *Manager) start(ctx context.Context, tx store.Tx, r *model.Ride, actorID uint64) error {
	if err := r.TransitionTo(model.RideOngoing); err != nil {
		return err
	}
	if err := tx.UpdateRide(ctx, r); err != nil {
		return err
	}
	active, err := tx.ListParticipations(ctx, r.ID, model.ParticipationActive)
	if err != nil {
		return err
	}
	recipients := append(passengers(active), r.DriverID)
	return tx.Enqueue(ctx, model.NewEvent(model.EventRideStarted, r.ID, actorID, m.now(), model.RideData(r), recipients...))
}

// ConfirmArrival records the passenger's confirmation. The ride is
// completed once every active participation is confirmed. It reports
// whether this confirmation completed the ride.
func (m *Manager) ConfirmArrival(ctx context.Context, passengerID, rideID uint64) (bool, error) {
	completed := false
	err := store.Run(ctx, m.store, m.attempts, func(ctx context.Context, tx store.Tx) error {
		completed = false
		r, err := lockRide(ctx, tx, rideID)
		if err != nil {
			return err
		}
		if r.Status != model.RideOngoing {
			return fmt.Errorf("%w: ride %d is %s", apperr.ErrInvalidTransition, r.ID, r.Status)
		}
		p, err := tx.FindParticipation(ctx, passengerID, rideID, model.ParticipationActive)
		if errors.Is(err, store.ErrNotFound) {
			return apperr.ErrNoActiveParticipation
		}
		if err != nil {
			return err
		}
		if !p.ConfirmedByPassenger {
			p.ConfirmedByPassenger = true
			if err := tx.UpdateParticipation(ctx, p); err != nil {
				return err
			}
		}
		active, err := tx.ListParticipations(ctx, rideID, model.ParticipationActive)
		if err != nil {
			return err
		}
		for _, a := range active {
			if !a.ConfirmedByPassenger {
				return nil
			}
		}
		completed = true
		return m.complete(ctx, tx, r, passengerID)
	})
	return completed, err
}

// Complete finishes an ongoing ride on the driver's request.
func (m *Manager) Complete(ctx context.Context, driverID, rideID uint64) (*model.Ride, error) {
	var out *model.Ride
	err := store.Run(ctx, m.store, m.attempts, func(ctx context.Context, tx store.Tx) error {
		r, err := m.ownRide(ctx, tx, driverID, rideID)
		if err != nil {
			return err
		}
		out = r
		return m.complete(ctx, tx, r, driverID)
	})
	if err == nil {
		logging.Info(ctx, "ride completed", logging.Component("ride"), logging.RideID(rideID))
	}
	return out, err
}

// complete commits the hold of every active participation to the driver.
func (m *Manager) complete(ctx context.Context, tx store.Tx, r *model.Ride, actorID uint64) error {
	if err := r.TransitionTo(model.RideCompleted); err != nil {
		return err
	}
	if err := tx.UpdateRide(ctx, r); err != nil {
		return err
	}
	active, err := tx.ListParticipations(ctx, r.ID, model.ParticipationActive)
	if err != nil {
		return err
	}
	for i := range active {
		p := &active[i]
		if err := m.ledger.CommitFor(ctx, tx, p.ID); err != nil {
			return fmt.Errorf("settle participation %d: %w", p.ID, err)
		}
		p.Status = model.ParticipationCompleted
		if err := tx.UpdateParticipation(ctx, p); err != nil {
			return err
		}
	}
	recipients := append(passengers(active), r.DriverID)
	return tx.Enqueue(ctx, model.NewEvent(model.EventRideCompleted, r.ID, actorID, m.now(), model.RideData(r), recipients...))
}

// Cancel cancels a ride on behalf of its driver or staff. Every active
// participation is cancelled, its hold released and its seat returned;
// each passenger is notified.
func (m *Manager) Cancel(ctx context.Context, actorID, rideID uint64, reason string) (*model.Ride, error) {
	var out *model.Ride
	err := store.Run(ctx, m.store, m.attempts, func(ctx context.Context, tx store.Tx) error {
		r, err := lockRide(ctx, tx, rideID)
		if err != nil {
			return err
		}
		if r.DriverID != actorID {
			if err := requireStaff(ctx, tx, actorID); err != nil {
				return err
			}
		}
		if err := r.TransitionTo(model.RideCancelled); err != nil {
			return err
		}
		r.CancelReason = strings.TrimSpace(reason)
		active, err := tx.ListParticipations(ctx, r.ID, model.ParticipationActive)
		if err != nil {
			return err
		}
		now := m.now().UTC()
		for i := range active {
			p := &active[i]
			if err := m.ledger.ReleaseFor(ctx, tx, p.ID); err != nil {
				return fmt.Errorf("release participation %d: %w", p.ID, err)
			}
			p.Status = model.ParticipationCancelled
			p.CancelledAt = &now
			if err := tx.UpdateParticipation(ctx, p); err != nil {
				return err
			}
			if err := r.ReturnSeat(); err != nil {
				return err
			}
		}
		if err := tx.UpdateRide(ctx, r); err != nil {
			return err
		}
		out = r
		if len(active) == 0 {
			return nil
		}
		data := model.RideData(r)
		data.Reason = r.CancelReason
		return tx.Enqueue(ctx, model.NewEvent(model.EventRideCancelled, r.ID, actorID, now, data, passengers(active)...))
	})
	if err != nil {
		return nil, err
	}
	logging.Info(ctx, "ride cancelled", logging.Component("ride"), logging.RideID(rideID), logging.UserID(actorID))
	return out, nil
}

// TryReserveSeat takes one seat of a ride locked by the caller's unit.
// It fails with apperr.ErrSoldOut when none is left.
func (m *Manager) TryReserveSeat(ctx context.Context, tx store.RideTx, r *model.Ride) error {
	if err := r.TakeSeat(); err != nil {
		return err
	}
	return tx.UpdateRide(ctx, r)
}

// RestoreSeat gives back a seat taken by TryReserveSeat.
func (m *Manager) RestoreSeat(ctx context.Context, tx store.RideTx, r *model.Ride) error {
	if err := r.ReturnSeat(); err != nil {
		return err
	}
	return tx.UpdateRide(ctx, r)
}

// Get returns a ride.
func (m *Manager) Get(ctx context.Context, rideID uint64) (*model.Ride, error) {
	r, err := m.store.FindRide(ctx, rideID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, apperr.ErrRideNotFound
	}
	return r, err
}

// ListByDriver lists a driver's rides, latest departure first.
func (m *Manager) ListByDriver(ctx context.Context, driverID uint64) ([]model.Ride, error) {
	return m.store.ListRidesByDriver(ctx, driverID)
}

// Search lists published rides with a free seat.
func (m *Manager) Search(ctx context.Context, q model.RideSearch) ([]model.Ride, error) {
	if q.Page < 1 {
		q.Page = 1
	}
	if q.PageSize <= 0 {
		q.PageSize = DefaultPageSize
	}
	if q.PageSize > MaxPageSize {
		q.PageSize = MaxPageSize
	}
	return m.store.SearchRides(ctx, q)
}

func (m *Manager) ownRide(ctx context.Context, tx store.RideTx, driverID, rideID uint64) (*model.Ride, error) {
	r, err := lockRide(ctx, tx, rideID)
	if err != nil {
		return nil, err
	}
	if r.DriverID != driverID {
		return nil, apperr.ErrForbidden
	}
	return r, nil
}

func lockRide(ctx context.Context, tx store.RideTx, rideID uint64) (*model.Ride, error) {
	r, err := tx.GetRide(ctx, rideID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, apperr.ErrRideNotFound
	}
	return r, err
}

func requireTraveller(ctx context.Context, tx store.UserTx, userID uint64) error {
	u, err := tx.GetUser(ctx, userID)
	if err != nil {
		return userErr(err)
	}
	if !u.CanTravel() {
		return apperr.ErrUserNotAllowed
	}
	return nil
}

func userErr(err error) error {
	if errors.Is(err, store.ErrNotFound) {
		return apperr.ErrUserNotFound
	}
	return err
}

func passengers(ps []model.Participation) []uint64 {
	ids := make([]uint64, len(ps))
	for i, p := range ps {
		ids[i] = p.PassengerID
	}
	return ids
}
