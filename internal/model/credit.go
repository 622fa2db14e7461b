package model

import "time"

// HoldStatus is the state of a credit reservation.
type HoldStatus string

const (
	HoldHeld      HoldStatus = "held"
	HoldCommitted HoldStatus = "committed"
	HoldReleased  HoldStatus = "released"
)

// CreditHold earmarks a passenger's credits for one participation until
// the ride completes (commit) or the booking goes away (release).
type CreditHold struct {
	ID              uint64     // credit_holds.id
	UserID          uint64     // credit_holds.user_id
	RideID          uint64     // credit_holds.ride_id
	ParticipationID uint64     // credit_holds.participation_id (unique)
	Amount          int64      // credit_holds.amount
	Status          HoldStatus // credit_holds.status
	CreatedAt       time.Time  // credit_holds.created_at
	SettledAt       *time.Time // credit_holds.settled_at (nullable)
}

// LedgerKind labels an entry of the append-only ledger.
type LedgerKind string

const (
	LedgerHold        LedgerKind = "hold"
	LedgerRelease     LedgerKind = "release"
	LedgerPayout      LedgerKind = "payout"
	LedgerPlatformFee LedgerKind = "platform_fee"
	LedgerGrant       LedgerKind = "grant"
)

// LedgerEntry records one balance movement. UserID is zero for platform
// revenue. Amount is signed from the user's point of view.
type LedgerEntry struct {
	ID           uint64     `json:"id"`
	UserID       uint64     `json:"user_id"`
	HoldID       uint64     `json:"hold_id,omitempty"`
	Kind         LedgerKind `json:"kind"`
	Amount       int64      `json:"amount"`
	BalanceAfter int64      `json:"balance_after"`
	Note         string     `json:"note,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
}
