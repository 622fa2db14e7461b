package model

import "time"

// Notification is one user-facing message. Read is the only field the
// recipient may change. (EventID, RecipientID) is unique so redelivered
// events do not duplicate rows.
type Notification struct {
	ID          uint64    `json:"id"`
	RecipientID uint64    `json:"recipient_id"`
	RideID      uint64    `json:"ride_id,omitempty"`
	EventID     string    `json:"event_id"`
	Kind        EventType `json:"kind"`
	Message     string    `json:"message"`
	Read        bool      `json:"read"`
	CreatedAt   time.Time `json:"created_at"`
}
