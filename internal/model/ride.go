package model

import (
	"fmt"
	"time"

	"github.com/ecoride/carpool/internal/apperr"
)

// RideStatus is a state of the ride state machine.
type RideStatus string

const (
	RideDraft             RideStatus = "draft"
	RidePendingModeration RideStatus = "pending_moderation"
	RidePublished         RideStatus = "published"
	RideOngoing           RideStatus = "ongoing"
	RideCompleted         RideStatus = "completed"
	RideCancelled         RideStatus = "cancelled"
	RideRejected          RideStatus = "rejected"
)

var rideTransitions = map[RideStatus][]RideStatus{
	RideDraft:             {RidePendingModeration, RideCancelled},
	RidePendingModeration: {RidePublished, RideRejected, RideCancelled},
	RidePublished:         {RideOngoing, RideCancelled},
	RideOngoing:           {RideCompleted, RideCancelled},
}

// Terminal reports whether no transition leaves s.
func (s RideStatus) Terminal() bool {
	return len(rideTransitions[s]) == 0
}

// CanTransition reports whether the state machine allows s -> to.
func (s RideStatus) CanTransition(to RideStatus) bool {
	for _, next := range rideTransitions[s] {
		if next == to {
			return true
		}
	}
	return false
}

// Ride is a single driver-offered trip. It mirrors the `rides` table.
//
// Invariant: 0 <= SeatsAvailable <= SeatsOffered.
type Ride struct {
	ID             uint64
	DriverID       uint64
	VehicleID      uint64
	DepartureCity  string
	ArrivalCity    string
	DepartureAt    time.Time
	ArrivalAt      time.Time
	Price          int64 // credits per seat
	SeatsOffered   int
	SeatsAvailable int
	Status         RideStatus
	Notes          string
	Moderation     ModerationPayload
	CancelReason   string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// TransitionTo moves the ride to the given status or fails with
// apperr.ErrInvalidTransition.
func (r *Ride) TransitionTo(to RideStatus) error {
	if !r.Status.CanTransition(to) {
		return fmt.Errorf("%w: %s -> %s", apperr.ErrInvalidTransition, r.Status, to)
	}
	r.Status = to
	return nil
}

// TakeSeat decrements SeatsAvailable or fails with apperr.ErrSoldOut.
func (r *Ride) TakeSeat() error {
	if r.SeatsAvailable <= 0 {
		return apperr.ErrSoldOut
	}
	r.SeatsAvailable--
	return nil
}

// ReturnSeat increments SeatsAvailable. Returning a seat to a full ride
// means the accounting is already broken and is refused.
func (r *Ride) ReturnSeat() error {
	if r.SeatsAvailable >= r.SeatsOffered {
		return fmt.Errorf("%w: ride %d already has %d/%d seats", apperr.ErrSeatAccounting, r.ID, r.SeatsAvailable, r.SeatsOffered)
	}
	r.SeatsAvailable++
	return nil
}

// Clone returns a copy that shares no mutable state with r.
func (r Ride) Clone() Ride {
	r.Moderation = r.Moderation.Clone()
	return r
}

// RideSearch filters the public ride search.
type RideSearch struct {
	DepartureCity string
	ArrivalCity   string
	Date          time.Time // day of departure, compared in UTC
	Page          int
	PageSize      int
}
