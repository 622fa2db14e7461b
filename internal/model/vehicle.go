package model

import "time"

// Vehicle is a car declared by its owner. Seats counts passenger seats
// and is frozen once a non-draft ride references the vehicle.
type Vehicle struct {
	ID        uint64    // vehicles.id
	OwnerID   uint64    // vehicles.owner_id
	Brand     string    // vehicles.brand
	Model     string    // vehicles.model
	Plate     string    // vehicles.plate
	Seats     int       // vehicles.seats (> 0)
	CreatedAt time.Time // vehicles.created_at
}
