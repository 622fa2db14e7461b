package model

import "time"

// ParticipationStatus tracks a booking through its life. Cancelled rows
// are kept for audit.
type ParticipationStatus string

const (
	ParticipationActive    ParticipationStatus = "active"
	ParticipationCancelled ParticipationStatus = "cancelled"
	ParticipationCompleted ParticipationStatus = "completed"
)

// Participation is one passenger's booking against a ride. At most one
// active participation exists per (passenger, ride), and an active one
// exists only while the ride's available seat count was decremented for it.
type Participation struct {
	ID                   uint64              // participations.id
	PassengerID          uint64              // participations.passenger_id
	RideID               uint64              // participations.ride_id
	Status               ParticipationStatus // participations.status
	RegisteredAt         time.Time           // participations.registered_at
	ConfirmedByPassenger bool                // participations.valide_par_passager
	ReviewSubmitted      bool                // participations.avis_depose
	CancelledAt          *time.Time          // participations.cancelled_at (nullable)
}
