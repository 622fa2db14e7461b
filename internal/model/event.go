package model

import (
	"time"

	"github.com/google/uuid"
)

// EventType names a lifecycle event recorded in the outbox.
type EventType string

const (
	EventRidePublished    EventType = "ride.published"
	EventRideFlagged      EventType = "ride.flagged"
	EventRideRejected     EventType = "ride.rejected"
	EventRideStarted      EventType = "ride.started"
	EventRideCompleted    EventType = "ride.completed"
	EventRideCancelled    EventType = "ride.cancelled"
	EventBookingCreated   EventType = "booking.created"
	EventBookingCancelled EventType = "booking.cancelled"
	EventReviewSubmitted  EventType = "review.submitted"
	EventReviewApproved   EventType = "review.approved"
	EventReviewRejected   EventType = "review.rejected"
	EventReviewDisputed   EventType = "review.disputed"
)

// EventData carries what notification rendering needs so the consumer
// never has to read the authoritative tables.
type EventData struct {
	DepartureCity string    `json:"departure_city,omitempty"`
	ArrivalCity   string    `json:"arrival_city,omitempty"`
	DepartureAt   time.Time `json:"departure_at,omitempty"`
	Amount        int64     `json:"amount,omitempty"`
	Rating        int       `json:"rating,omitempty"`
	Reason        string    `json:"reason,omitempty"`
	ReviewID      uint64    `json:"review_id,omitempty"`
}

// Event is written to the outbox in the same transaction as the state
// change that produced it. ID is the idempotency key for dispatch.
type Event struct {
	ID         string    `json:"id"`
	Type       EventType `json:"type"`
	RideID     uint64    `json:"ride_id,omitempty"`
	ActorID    uint64    `json:"actor_id,omitempty"`
	Recipients []uint64  `json:"recipients"`
	Data       EventData `json:"data"`
	OccurredAt time.Time `json:"occurred_at"`
}

// NewEvent builds an event with a fresh id. Zero and repeated
// recipients are dropped.
func NewEvent(typ EventType, rideID, actorID uint64, at time.Time, data EventData, recipients ...uint64) *Event {
	seen := make(map[uint64]bool, len(recipients))
	list := make([]uint64, 0, len(recipients))
	for _, r := range recipients {
		if r == 0 || seen[r] {
			continue
		}
		seen[r] = true
		list = append(list, r)
	}
	return &Event{
		ID:         uuid.NewString(),
		Type:       typ,
		RideID:     rideID,
		ActorID:    actorID,
		Recipients: list,
		Data:       data,
		OccurredAt: at.UTC(),
	}
}

// RideData copies the route of r into event data.
func RideData(r *Ride) EventData {
	return EventData{DepartureCity: r.DepartureCity, ArrivalCity: r.ArrivalCity, DepartureAt: r.DepartureAt}
}

// OutboxStatus tracks relay progress for an event.
type OutboxStatus string

const (
	OutboxPending OutboxStatus = "pending"
	OutboxSent    OutboxStatus = "sent"
	OutboxParked  OutboxStatus = "parked"
)

// OutboxRecord is a row of `outbox_events`.
type OutboxRecord struct {
	Event
	Status        OutboxStatus
	Attempts      int
	NextAttemptAt time.Time
	LastError     string
}
