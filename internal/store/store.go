// Package store declares the persistence contract of the ride engine.
//
// All exclusion between concurrent requests goes through Store.WithTx:
// implementations run fn inside a serializable unit (row locks in MySQL)
// and either apply every write or none of them. Reads made through a Tx
// lock the rows they return until the unit ends.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/ecoride/carpool/internal/model"
)

var (
	// ErrNotFound is returned when a looked-up row does not exist.
	ErrNotFound = errors.New("store: not found")
	// ErrConflict signals a lost race (deadlock, lock timeout, version
	// mismatch). The whole unit may be retried.
	ErrConflict = errors.New("store: conflict")
	// ErrDuplicate is returned when a unique constraint rejects a write.
	ErrDuplicate = errors.New("store: duplicate")
)

// TxFunc is the body of a transactional unit.
type TxFunc func(ctx context.Context, tx Tx) error

// Store is the full persistence surface.
type Store interface {
	// WithTx runs fn atomically. A non-nil error from fn rolls back.
	WithTx(ctx context.Context, fn TxFunc) error

	Reader
	NotificationStore
	OutboxStore
	TokenStore
}

// Tx is the set of operations available inside a unit.
type Tx interface {
	UserTx
	VehicleTx
	RideTx
	ParticipationTx
	CreditTx
	ReviewTx

	// Enqueue records ev in the outbox.
	Enqueue(ctx context.Context, ev *model.Event) error
}

type UserTx interface {
	GetUser(ctx context.Context, id uint64) (*model.User, error)
	CreateUser(ctx context.Context, u *model.User) error
	UpdateUserBalance(ctx context.Context, id uint64, credits int64) error
	UpdateUserStatus(ctx context.Context, id uint64, status model.UserStatus) error
	UpdateUserRoles(ctx context.Context, id uint64, roles model.Roles) error
}

type VehicleTx interface {
	GetVehicle(ctx context.Context, id uint64) (*model.Vehicle, error)
	CreateVehicle(ctx context.Context, v *model.Vehicle) error
	UpdateVehicleSeats(ctx context.Context, id uint64, seats int) error
	// CountNonDraftRides counts rides past the draft stage using the vehicle.
	CountNonDraftRides(ctx context.Context, vehicleID uint64) (int, error)
}

type RideTx interface {
	GetRide(ctx context.Context, id uint64) (*model.Ride, error)
	CreateRide(ctx context.Context, r *model.Ride) error
	UpdateRide(ctx context.Context, r *model.Ride) error
}

type ParticipationTx interface {
	// FindParticipation returns the passenger's participation on the ride
	// in the given status, or ErrNotFound.
	FindParticipation(ctx context.Context, passengerID, rideID uint64, status model.ParticipationStatus) (*model.Participation, error)
	ListParticipations(ctx context.Context, rideID uint64, status model.ParticipationStatus) ([]model.Participation, error)
	CreateParticipation(ctx context.Context, p *model.Participation) error
	UpdateParticipation(ctx context.Context, p *model.Participation) error
}

type CreditTx interface {
	CreateHold(ctx context.Context, h *model.CreditHold) error
	GetHold(ctx context.Context, id uint64) (*model.CreditHold, error)
	GetHoldByParticipation(ctx context.Context, participationID uint64) (*model.CreditHold, error)
	UpdateHold(ctx context.Context, h *model.CreditHold) error
	AppendLedger(ctx context.Context, e *model.LedgerEntry) error
}

type ReviewTx interface {
	GetReview(ctx context.Context, id uint64) (*model.Review, error)
	// CreateReview fails with ErrDuplicate when (author, ride, subject) exists.
	CreateReview(ctx context.Context, r *model.Review) error
	UpdateReview(ctx context.Context, r *model.Review) error
}

// Reader serves the query surface. Reads are not locked and must not be
// called from inside a WithTx body.
type Reader interface {
	FindUser(ctx context.Context, id uint64) (*model.User, error)
	FindUserByEmail(ctx context.Context, email string) (*model.User, error)
	FindRide(ctx context.Context, id uint64) (*model.Ride, error)
	SearchRides(ctx context.Context, q model.RideSearch) ([]model.Ride, error)
	ListRidesByDriver(ctx context.Context, driverID uint64) ([]model.Ride, error)
	ListRidesByStatus(ctx context.Context, status model.RideStatus, limit int) ([]model.Ride, error)
	// DueRides returns ids of rides in status whose reference time
	// (departure for published, arrival for ongoing) is at or before t.
	DueRides(ctx context.Context, status model.RideStatus, t time.Time, limit int) ([]uint64, error)
	ListVehiclesByOwner(ctx context.Context, ownerID uint64) ([]model.Vehicle, error)
	ListParticipationsByPassenger(ctx context.Context, passengerID uint64) ([]model.Participation, error)
	ListReviewsByStatus(ctx context.Context, limit int, statuses ...model.ReviewStatus) ([]model.Review, error)
	RatingOf(ctx context.Context, userID uint64) (model.RatingSummary, error)
	ListLedger(ctx context.Context, userID uint64, limit int) ([]model.LedgerEntry, error)
}

// NotificationStore persists delivered notifications.
type NotificationStore interface {
	// InsertNotification stores n unless (EventID, RecipientID) exists;
	// it reports whether a row was written.
	InsertNotification(ctx context.Context, n *model.Notification) (bool, error)
	// Feed lists unread first, then newest first.
	Feed(ctx context.Context, recipientID uint64, limit int) ([]model.Notification, error)
	// MarkRead fails with ErrNotFound unless the notification belongs to recipientID.
	MarkRead(ctx context.Context, recipientID, notificationID uint64) error
	MarkAllRead(ctx context.Context, recipientID uint64) (int, error)
}

// OutboxStore is used by the relay draining the outbox.
type OutboxStore interface {
	DueEvents(ctx context.Context, now time.Time, limit int) ([]model.OutboxRecord, error)
	MarkSent(ctx context.Context, eventID string) error
	// MarkFailed records a failed attempt; parked events leave the queue.
	MarkFailed(ctx context.Context, eventID string, attempts int, next time.Time, lastErr string, parked bool) error
}

// TokenStore persists refresh tokens by hash.
type TokenStore interface {
	StoreRefresh(ctx context.Context, userID uint64, tokenHash string, expiresAt time.Time) error
	// ValidateRefresh returns the owner of a live token, or ErrNotFound
	// when the token is unknown, revoked or expired at now.
	ValidateRefresh(ctx context.Context, tokenHash string, now time.Time) (uint64, error)
	RevokeRefresh(ctx context.Context, tokenHash string) error
	RevokeAllRefresh(ctx context.Context, userID uint64) error
}
