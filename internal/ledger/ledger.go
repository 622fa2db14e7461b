// Package ledger owns user balances and credit holds. Every method runs
// inside the caller's store.Tx so that balance moves commit or roll back
// together with the booking or ride change that caused them, and every
// balance move appends a ledger entry.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ecoride/carpool/internal/apperr"
	"github.com/ecoride/carpool/internal/logging"
	"github.com/ecoride/carpool/internal/model"
	"github.com/ecoride/carpool/internal/store"
)

// PlatformAccount is the ledger user id of platform revenue.
const PlatformAccount uint64 = 0

type Ledger struct {
	fee int64
	now func() time.Time
}

type Option func(*Ledger) error

// WithClock sets the time source used for settlement timestamps.
func WithClock(now func() time.Time) Option {
	return func(l *Ledger) error {
		if now == nil {
			return errors.New("nil clock")
		}
		l.now = now
		return nil
	}
}

// New builds a ledger charging fee credits per committed hold.
func New(fee int64, opts ...Option) (*Ledger, error) {
	if fee < 0 {
		return nil, fmt.Errorf("negative platform fee %d", fee)
	}
	l := &Ledger{fee: fee, now: time.Now}
	for _, opt := range opts {
		if err := opt(l); err != nil {
			return nil, fmt.Errorf("ledger option: %w", err)
		}
	}
	return l, nil
}

// Fee returns the flat platform fee.
func (l *Ledger) Fee() int64 { return l.fee }

func (l *Ledger) lockUser(ctx context.Context, tx store.Tx, id uint64) (*model.User, error) {
	u, err := tx.GetUser(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, apperr.ErrUserNotFound
	}
	return u, err
}

// move applies delta to the user's balance and journals it.
func (l *Ledger) move(ctx context.Context, tx store.Tx, u *model.User, holdID uint64, kind model.LedgerKind, delta int64, note string) error {
	next := u.Credits + delta
	if next < 0 {
		return apperr.ErrInsufficientFunds
	}
	if err := tx.UpdateUserBalance(ctx, u.ID, next); err != nil {
		return fmt.Errorf("update balance: %w", err)
	}
	u.Credits = next
	return tx.AppendLedger(ctx, &model.LedgerEntry{
		UserID:       u.ID,
		HoldID:       holdID,
		Kind:         kind,
		Amount:       delta,
		BalanceAfter: next,
		Note:         note,
		CreatedAt:    l.now().UTC(),
	})
}

// Reserve debits amount from the user and parks it in a hold tied to
// the participation. It fails with apperr.ErrInsufficientFunds when the
// balance is below amount.
func (l *Ledger) Reserve(ctx context.Context, tx store.Tx, userID, rideID, participationID uint64, amount int64) (*model.CreditHold, error) {
	if amount < 0 {
		return nil, apperr.ErrInvalidAmount
	}
	u, err := l.lockUser(ctx, tx, userID)
	if err != nil {
		return nil, err
	}
	if u.Credits < amount {
		return nil, apperr.ErrInsufficientFunds
	}
	h := &model.CreditHold{
		UserID:          userID,
		RideID:          rideID,
		ParticipationID: participationID,
		Amount:          amount,
		Status:          model.HoldHeld,
		CreatedAt:       l.now().UTC(),
	}
	if err := tx.CreateHold(ctx, h); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return nil, apperr.ErrInvalidReservationState
		}
		return nil, fmt.Errorf("create hold: %w", err)
	}
	if err := l.move(ctx, tx, u, h.ID, model.LedgerHold, -amount, fmt.Sprintf("ride %d", rideID)); err != nil {
		return nil, err
	}
	return h, nil
}

func (l *Ledger) hold(ctx context.Context, tx store.Tx, holdID uint64) (*model.CreditHold, error) {
	h, err := tx.GetHold(ctx, holdID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("%w: hold %d does not exist", apperr.ErrInvalidReservationState, holdID)
	}
	return h, err
}

// Commit transfers a held amount to the ride's driver minus the platform
// fee. Committing an already committed hold is a no-op; committing a
// released hold fails with apperr.ErrInvalidReservationState.
func (l *Ledger) Commit(ctx context.Context, tx store.Tx, holdID uint64) error {
	h, err := l.hold(ctx, tx, holdID)
	if err != nil {
		return err
	}
	switch h.Status {
	case model.HoldCommitted:
		return nil
	case model.HoldHeld:
	default:
		return fmt.Errorf("%w: hold %d is %s", apperr.ErrInvalidReservationState, h.ID, h.Status)
	}
	ride, err := tx.GetRide(ctx, h.RideID)
	if err != nil {
		return fmt.Errorf("ride of hold %d: %w", h.ID, err)
	}
	driver, err := l.lockUser(ctx, tx, ride.DriverID)
	if err != nil {
		return err
	}

	fee := min(l.fee, h.Amount)
	if err := l.move(ctx, tx, driver, h.ID, model.LedgerPayout, h.Amount-fee, fmt.Sprintf("ride %d", h.RideID)); err != nil {
		return err
	}
	if fee > 0 {
		err := tx.AppendLedger(ctx, &model.LedgerEntry{
			UserID:    PlatformAccount,
			HoldID:    h.ID,
			Kind:      model.LedgerPlatformFee,
			Amount:    fee,
			Note:      fmt.Sprintf("ride %d", h.RideID),
			CreatedAt: l.now().UTC(),
		})
		if err != nil {
			return fmt.Errorf("append fee: %w", err)
		}
	}
	return l.settle(ctx, tx, h, model.HoldCommitted)
}

// Release gives a held amount back to the passenger. Releasing an
// already released hold is a no-op; releasing a committed hold fails
// with apperr.ErrInvalidReservationState.
func (l *Ledger) Release(ctx context.Context, tx store.Tx, holdID uint64) error {
	h, err := l.hold(ctx, tx, holdID)
	if err != nil {
		return err
	}
	switch h.Status {
	case model.HoldReleased:
		return nil
	case model.HoldHeld:
	default:
		return fmt.Errorf("%w: hold %d is %s", apperr.ErrInvalidReservationState, h.ID, h.Status)
	}
	u, err := l.lockUser(ctx, tx, h.UserID)
	if err != nil {
		return err
	}
	if err := l.move(ctx, tx, u, h.ID, model.LedgerRelease, h.Amount, fmt.Sprintf("ride %d", h.RideID)); err != nil {
		return err
	}
	return l.settle(ctx, tx, h, model.HoldReleased)
}

// ReleaseFor releases the hold of a participation.
func (l *Ledger) ReleaseFor(ctx context.Context, tx store.Tx, participationID uint64) error {
	h, err := tx.GetHoldByParticipation(ctx, participationID)
	if errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("%w: no hold for participation %d", apperr.ErrInvalidReservationState, participationID)
	}
	if err != nil {
		return err
	}
	return l.Release(ctx, tx, h.ID)
}

// CommitFor commits the hold of a participation.
func (l *Ledger) CommitFor(ctx context.Context, tx store.Tx, participationID uint64) error {
	h, err := tx.GetHoldByParticipation(ctx, participationID)
	if errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("%w: no hold for participation %d", apperr.ErrInvalidReservationState, participationID)
	}
	if err != nil {
		return err
	}
	return l.Commit(ctx, tx, h.ID)
}

func (l *Ledger) settle(ctx context.Context, tx store.Tx, h *model.CreditHold, status model.HoldStatus) error {
	now := l.now().UTC()
	h.Status = status
	h.SettledAt = &now
	if err := tx.UpdateHold(ctx, h); err != nil {
		return fmt.Errorf("update hold: %w", err)
	}
	logging.Debug(ctx, "credit hold settled",
		logging.Component("ledger"), logging.UserID(h.UserID), logging.RideID(h.RideID),
		slogStatus(status))
	return nil
}

// Grant credits a user outside of any ride: signup bonus or staff top-up.
func (l *Ledger) Grant(ctx context.Context, tx store.Tx, userID uint64, amount int64, note string) error {
	if amount <= 0 {
		return apperr.ErrInvalidAmount
	}
	u, err := l.lockUser(ctx, tx, userID)
	if err != nil {
		return err
	}
	return l.move(ctx, tx, u, 0, model.LedgerGrant, amount, note)
}
