package model

import (
	"fmt"
	"time"

	"github.com/goccy/go-json"
)

// FlagKind tags each moderation flag record.
type FlagKind string

const (
	FlagBannedTerm   FlagKind = "banned_term"
	FlagPriceCeiling FlagKind = "price_above_ceiling"
)

// Flag is one reason a ride was routed to manual moderation. The set of
// implementations is closed: BannedTerm and PriceAboveCeiling.
type Flag interface {
	Kind() FlagKind
	Describe() string
	isFlag()
}

// BannedTerm reports a banned term found in the ride's notes.
type BannedTerm struct {
	Term string
}

func (BannedTerm) Kind() FlagKind { return FlagBannedTerm }
func (f BannedTerm) Describe() string { return fmt.Sprintf("notes contain banned term %q", f.Term) }
func (BannedTerm) isFlag() {}

// PriceAboveCeiling reports a seat price above the configured ceiling.
type PriceAboveCeiling struct {
	Price   int64
	Ceiling int64
}

func (PriceAboveCeiling) Kind() FlagKind { return FlagPriceCeiling }
func (f PriceAboveCeiling) Describe() string {
	return fmt.Sprintf("price %d exceeds ceiling %d", f.Price, f.Ceiling)
}
func (PriceAboveCeiling) isFlag() {}

// ModerationDecision is the outcome recorded on the payload.
type ModerationDecision string

const (
	DecisionNone     ModerationDecision = ""
	DecisionAuto     ModerationDecision = "auto_approved"
	DecisionApproved ModerationDecision = "approved"
	DecisionRejected ModerationDecision = "rejected"
)

// ModerationPayload is owned by its ride and persisted as JSON in
// rides.moderation.
type ModerationPayload struct {
	Flags       []Flag
	Decision    ModerationDecision
	Reason      string
	ModeratorID uint64
	DecidedAt   *time.Time
}

// Flagged reports whether manual moderation is required.
func (p ModerationPayload) Flagged() bool { return len(p.Flags) > 0 }

// Clone returns a copy with its own flag slice.
func (p ModerationPayload) Clone() ModerationPayload {
	if p.Flags != nil {
		p.Flags = append([]Flag(nil), p.Flags...)
	}
	if p.DecidedAt != nil {
		t := *p.DecidedAt
		p.DecidedAt = &t
	}
	return p
}

type flagRecord struct {
	Kind    FlagKind `json:"kind"`
	Term    string   `json:"term,omitempty"`
	Price   int64    `json:"price,omitempty"`
	Ceiling int64    `json:"ceiling,omitempty"`
}

type payloadRecord struct {
	Flags       []flagRecord       `json:"flags"`
	Decision    ModerationDecision `json:"decision,omitempty"`
	Reason      string             `json:"reason,omitempty"`
	ModeratorID uint64             `json:"moderator_id,omitempty"`
	DecidedAt   *time.Time         `json:"decided_at,omitempty"`
}

func (p ModerationPayload) MarshalJSON() ([]byte, error) {
	rec := payloadRecord{
		Flags:       make([]flagRecord, 0, len(p.Flags)),
		Decision:    p.Decision,
		Reason:      p.Reason,
		ModeratorID: p.ModeratorID,
		DecidedAt:   p.DecidedAt,
	}
	for _, f := range p.Flags {
		switch v := f.(type) {
		case BannedTerm:
			rec.Flags = append(rec.Flags, flagRecord{Kind: v.Kind(), Term: v.Term})
		case PriceAboveCeiling:
			rec.Flags = append(rec.Flags, flagRecord{Kind: v.Kind(), Price: v.Price, Ceiling: v.Ceiling})
		default:
			return nil, fmt.Errorf("moderation: unknown flag type %T", f)
		}
	}
	return json.Marshal(rec)
}

func (p *ModerationPayload) UnmarshalJSON(b []byte) error {
	var rec payloadRecord
	if err := json.Unmarshal(b, &rec); err != nil {
		return err
	}
	out := ModerationPayload{
		Decision:    rec.Decision,
		Reason:      rec.Reason,
		ModeratorID: rec.ModeratorID,
		DecidedAt:   rec.DecidedAt,
	}
	for _, f := range rec.Flags {
		switch f.Kind {
		case FlagBannedTerm:
			out.Flags = append(out.Flags, BannedTerm{Term: f.Term})
		case FlagPriceCeiling:
			out.Flags = append(out.Flags, PriceAboveCeiling{Price: f.Price, Ceiling: f.Ceiling})
		default:
			return fmt.Errorf("moderation: unknown flag kind %q", f.Kind)
		}
	}
	*p = out
	return nil
}
