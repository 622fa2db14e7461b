// Package apperr defines the outcome codes returned by the ride engine.
// Every sentinel carries a Kind so that callers (the HTTP layer, the
// retry loop) can react to a family of failures without listing each
// sentinel. Sentinels may be wrapped with fmt.Errorf("...: %w", err);
// errors.Is and KindOf keep working through the wrap chain.
package apperr

import (
	"errors"
	"fmt"
)

// Kind groups errors by how the caller is expected to react.
type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindCapacity
	KindConsistency
	KindPolicy
	KindFunds
	KindNotFound
	KindForbidden
	KindUnauthorized
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindCapacity:
		return "capacity"
	case KindConsistency:
		return "consistency"
	case KindPolicy:
		return "policy"
	case KindFunds:
		return "funds"
	case KindNotFound:
		return "not_found"
	case KindForbidden:
		return "forbidden"
	case KindUnauthorized:
		return "unauthorized"
	default:
		return "internal"
	}
}

// Error is a classified outcome. Code is the stable machine-readable
// identifier exposed to clients.
type Error struct {
	Kind Kind
	Code string
	msg  string
}

func (e *Error) Error() string { return e.msg }

// New builds a classified error.
func New(kind Kind, code, msg string) *Error {
	return &Error{Kind: kind, Code: code, msg: msg}
}

// Validation wraps a free-form validation failure so that it is
// classified as KindValidation.
func Validation(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, fmt.Sprintf(format, args...))
}

// KindOf returns the kind of the first classified error in err's chain.
// Unclassified errors are KindInternal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// CodeOf returns the code of the first classified error in err's chain,
// or "internal" for unclassified errors.
func CodeOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return "internal"
}

// Validation errors.
var (
	ErrInvalidInput     = New(KindValidation, "invalid_input", "invalid input")
	ErrInvalidRating    = New(KindValidation, "invalid_rating", "rating must be between 1 and 5")
	ErrVehicleTooSmall  = New(KindValidation, "vehicle_too_small", "vehicle has fewer seats than offered")
	ErrReasonRequired   = New(KindValidation, "reason_required", "a reason is required")
	ErrEmailTaken       = New(KindValidation, "email_taken", "email already registered")
	ErrInvalidAmount    = New(KindValidation, "invalid_amount", "amount must not be negative")
	ErrInvalidSchedule  = New(KindValidation, "invalid_schedule", "arrival must be after departure")
	ErrInvalidSeatCount = New(KindValidation, "invalid_seat_count", "seat count must be positive")
)

// Capacity errors.
var (
	ErrSoldOut = New(KindCapacity, "sold_out", "no seat available")
)

// Consistency errors.
var (
	ErrBusy                    = New(KindConsistency, "busy", "concurrent modification, try again")
	ErrInvalidReservationState = New(KindConsistency, "invalid_reservation_state", "credit reservation is not in the expected state")
	ErrSeatAccounting          = New(KindConsistency, "seat_accounting", "seat count would leave its bounds")
)

// Policy errors.
var (
	ErrTooLateToCancel       = New(KindPolicy, "too_late_to_cancel", "ride can no longer be cancelled")
	ErrNotEligible           = New(KindPolicy, "not_eligible", "not eligible to review this ride")
	ErrAlreadyModerated      = New(KindPolicy, "already_moderated", "already moderated")
	ErrAlreadyBooked         = New(KindPolicy, "already_booked", "passenger already booked this ride")
	ErrRideNotBookable       = New(KindPolicy, "ride_not_bookable", "ride is not open for booking")
	ErrNoActiveParticipation = New(KindPolicy, "no_active_participation", "no active participation for this ride")
	ErrInvalidTransition     = New(KindPolicy, "invalid_transition", "ride status does not allow this action")
	ErrUserNotAllowed        = New(KindPolicy, "user_not_allowed", "account is not allowed to perform this action")
	ErrVehicleLocked         = New(KindPolicy, "vehicle_locked", "vehicle is referenced by a published ride")
	ErrDisputeNotAllowed     = New(KindPolicy, "dispute_not_allowed", "review cannot be disputed")
	ErrSelfBooking           = New(KindPolicy, "self_booking", "drivers cannot book their own ride")
)

// Funds errors.
var (
	ErrInsufficientFunds = New(KindFunds, "insufficient_funds", "insufficient credits")
)

// Lookup and access errors.
var (
	ErrUserNotFound         = New(KindNotFound, "user_not_found", "user not found")
	ErrRideNotFound         = New(KindNotFound, "ride_not_found", "ride not found")
	ErrVehicleNotFound      = New(KindNotFound, "vehicle_not_found", "vehicle not found")
	ErrReviewNotFound       = New(KindNotFound, "review_not_found", "review not found")
	ErrNotificationNotFound = New(KindNotFound, "notification_not_found", "notification not found")
	ErrForbidden            = New(KindForbidden, "forbidden", "forbidden")
	ErrInvalidCredentials   = New(KindUnauthorized, "invalid_credentials", "invalid credentials")
)
