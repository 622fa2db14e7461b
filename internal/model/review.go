package model

import (
	"time"

	"github.com/ecoride/carpool/internal/apperr"
)

// Rating bounds for reviews.
const (
	MinRating = 1
	MaxRating = 5
)

// ReviewStatus is the moderation state of a review.
type ReviewStatus string

const (
	ReviewPending  ReviewStatus = "pending"
	ReviewApproved ReviewStatus = "approved"
	ReviewRejected ReviewStatus = "rejected"
	ReviewDisputed ReviewStatus = "disputed"
)

// Review is written by a participant about another participant of a
// completed ride. Only moderation mutates it after creation.
type Review struct {
	ID            uint64       // avis.id
	SubjectID     uint64       // avis.subject_id
	AuthorID      uint64       // avis.author_id
	RideID        uint64       // avis.ride_id
	Rating        int          // avis.note
	Comment       string       // avis.commentaire
	Status        ReviewStatus // avis.status
	Validated     bool         // avis.valide
	Rejected      bool         // avis.rejete
	RejectReason  string       // avis.motif_rejet
	DisputeReason string       // avis.motif_litige
	DisputeUsed   bool         // avis.litige_utilise
	ModeratorID   uint64       // avis.moderator_id (0 when unmoderated)
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// ValidRating reports whether r lies within [MinRating, MaxRating].
func ValidRating(r int) bool { return r >= MinRating && r <= MaxRating }

// Moderatable reports whether an employee decision may still apply.
func (r *Review) Moderatable() bool {
	return r.Status == ReviewPending || r.Status == ReviewDisputed
}

// Approve applies an approval decision.
func (r *Review) Approve(moderatorID uint64) error {
	if !r.Moderatable() {
		return apperr.ErrAlreadyModerated
	}
	r.Status = ReviewApproved
	r.Validated = true
	r.Rejected = false
	r.ModeratorID = moderatorID
	return nil
}

// Reject applies a rejection decision. The review is kept for audit.
func (r *Review) Reject(moderatorID uint64, reason string) error {
	if !r.Moderatable() {
		return apperr.ErrAlreadyModerated
	}
	if reason == "" {
		return apperr.ErrReasonRequired
	}
	r.Status = ReviewRejected
	r.Validated = false
	r.Rejected = true
	r.RejectReason = reason
	r.ModeratorID = moderatorID
	return nil
}

// Dispute sends an approved review back to moderation. A review can go
// through a single dispute cycle.
func (r *Review) Dispute(reason string) error {
	if r.Status != ReviewApproved || r.DisputeUsed {
		return apperr.ErrDisputeNotAllowed
	}
	if reason == "" {
		return apperr.ErrReasonRequired
	}
	r.Status = ReviewDisputed
	r.DisputeReason = reason
	r.DisputeUsed = true
	return nil
}

// Counts reports whether the review contributes to the subject's rating.
func (r *Review) Counts() bool { return r.Status == ReviewApproved && !r.Rejected }

// RatingSummary is the aggregate of a user's approved reviews.
type RatingSummary struct {
	UserID  uint64  `json:"user_id"`
	Average float64 `json:"average"`
	Count   int     `json:"count"`
}
