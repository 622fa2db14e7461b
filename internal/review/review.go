// Package review gates post-ride reviews: eligibility on submission,
// employee moderation, and the single dispute cycle open to the
// reviewed user.
package review

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ecoride/carpool/internal/apperr"
	"github.com/ecoride/carpool/internal/logging"
	"github.com/ecoride/carpool/internal/model"
	"github.com/ecoride/carpool/internal/store"
)

type Gate struct {
	store    store.Store
	attempts int
	now      func() time.Time
}

type Option func(*Gate)

func WithClock(now func() time.Time) Option { return func(g *Gate) { g.now = now } }

func WithAttempts(n int) Option { return func(g *Gate) { g.attempts = n } }

func New(s store.Store, opts ...Option) *Gate {
	g := &Gate{store: s, attempts: store.DefaultAttempts, now: time.Now}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Submission is a review about to be written. SubjectID may be left zero
// by a passenger, in which case the driver is reviewed.
type Submission struct {
	SubjectID uint64
	Rating    int
	Comment   string
}

// Submit records a review on a completed ride. Passengers with a
// completed participation review the driver; the driver reviews one of
// those passengers. Any other author, or a second review of the same
// subject for the ride, fails with apperr.ErrNotEligible.
func (g *Gate) Submit(ctx context.Context, authorID, rideID uint64, in Submission) (*model.Review, error) {
	if !model.ValidRating(in.Rating) {
		return nil, apperr.ErrInvalidRating
	}
	var out *model.Review
	err := store.Run(ctx, g.store, g.attempts, func(ctx context.Context, tx store.Tx) error {
		r, err := tx.GetRide(ctx, rideID)
		if errors.Is(err, store.ErrNotFound) {
			return apperr.ErrRideNotFound
		}
		if err != nil {
			return err
		}
		if r.Status != model.RideCompleted {
			return fmt.Errorf("%w: ride %d is %s", apperr.ErrNotEligible, r.ID, r.Status)
		}

		var part *model.Participation
		subject := in.SubjectID
		if authorID == r.DriverID {
			if subject == 0 || subject == authorID {
				return apperr.ErrNotEligible
			}
			if _, err := completedParticipation(ctx, tx, subject, rideID); err != nil {
				return err
			}
		} else {
			if subject == 0 {
				subject = r.DriverID
			}
			if subject != r.DriverID {
				return apperr.ErrNotEligible
			}
			if part, err = completedParticipation(ctx, tx, authorID, rideID); err != nil {
				return err
			}
		}

		now := g.now().UTC()
		rv := &model.Review{
			SubjectID: subject,
			AuthorID:  authorID,
			RideID:    rideID,
			Rating:    in.Rating,
			Comment:   strings.TrimSpace(in.Comment),
			Status:    model.ReviewPending,
			CreatedAt: now,
		}
		if err := tx.CreateReview(ctx, rv); err != nil {
			if errors.Is(err, store.ErrDuplicate) {
				return fmt.Errorf("%w: already reviewed", apperr.ErrNotEligible)
			}
			return err
		}
		if part != nil && !part.ReviewSubmitted {
			part.ReviewSubmitted = true
			if err := tx.UpdateParticipation(ctx, part); err != nil {
				return err
			}
		}
		out = rv
		return tx.Enqueue(ctx, model.NewEvent(model.EventReviewSubmitted, rideID, authorID, now,
			model.EventData{Rating: rv.Rating, ReviewID: rv.ID}, authorID))
	})
	if err != nil {
		return nil, err
	}
	logging.Info(ctx, "review submitted", logging.Component("review"), logging.ReviewID(out.ID), logging.RideID(rideID))
	return out, nil
}

func completedParticipation(ctx context.Context, tx store.ParticipationTx, passengerID, rideID uint64) (*model.Participation, error) {
	p, err := tx.FindParticipation(ctx, passengerID, rideID, model.ParticipationCompleted)
	if errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("%w: no completed participation", apperr.ErrNotEligible)
	}
	return p, err
}

// Decision is an employee verdict on a review.
type Decision struct {
	Approve bool
	Reason  string
}

// Moderate applies an employee decision. Only pending or disputed
// reviews accept one; otherwise apperr.ErrAlreadyModerated.
func (g *Gate) Moderate(ctx context.Context, moderatorID, reviewID uint64, d Decision) (*model.Review, error) {
	var out *model.Review
	err := store.Run(ctx, g.store, g.attempts, func(ctx context.Context, tx store.Tx) error {
		mod, err := tx.GetUser(ctx, moderatorID)
		if errors.Is(err, store.ErrNotFound) {
			return apperr.ErrUserNotFound
		}
		if err != nil {
			return err
		}
		if !mod.Roles.Staff() || mod.Status != model.UserActive {
			return apperr.ErrForbidden
		}
		rv, err := lockReview(ctx, tx, reviewID)
		if err != nil {
			return err
		}
		reason := strings.TrimSpace(d.Reason)
		typ := model.EventReviewApproved
		recipients := []uint64{rv.AuthorID, rv.SubjectID}
		if d.Approve {
			err = rv.Approve(moderatorID)
		} else {
			typ = model.EventReviewRejected
			recipients = []uint64{rv.AuthorID}
			err = rv.Reject(moderatorID, reason)
		}
		if err != nil {
			return err
		}
		if err := tx.UpdateReview(ctx, rv); err != nil {
			return err
		}
		out = rv
		return tx.Enqueue(ctx, model.NewEvent(typ, rv.RideID, moderatorID, g.now(),
			model.EventData{Rating: rv.Rating, ReviewID: rv.ID, Reason: reason}, recipients...))
	})
	if err != nil {
		return nil, err
	}
	logging.Info(ctx, "review moderated", logging.Component("review"), logging.ReviewID(reviewID),
		logging.Status(string(out.Status)))
	return out, nil
}

// Dispute lets the reviewed user send an approved review back to
// moderation, once.
func (g *Gate) Dispute(ctx context.Context, subjectID, reviewID uint64, reason string) (*model.Review, error) {
	var out *model.Review
	err := store.Run(ctx, g.store, g.attempts, func(ctx context.Context, tx store.Tx) error {
		rv, err := lockReview(ctx, tx, reviewID)
		if err != nil {
			return err
		}
		if rv.SubjectID != subjectID {
			return apperr.ErrForbidden
		}
		if err := rv.Dispute(strings.TrimSpace(reason)); err != nil {
			return err
		}
		if err := tx.UpdateReview(ctx, rv); err != nil {
			return err
		}
		out = rv
		return tx.Enqueue(ctx, model.NewEvent(model.EventReviewDisputed, rv.RideID, subjectID, g.now(),
			model.EventData{ReviewID: rv.ID, Reason: rv.DisputeReason}, rv.AuthorID))
	})
	return out, err
}

// Queue lists reviews awaiting moderation, disputes included.
func (g *Gate) Queue(ctx context.Context, limit int) ([]model.Review, error) {
	return g.store.ListReviewsByStatus(ctx, limit, model.ReviewPending, model.ReviewDisputed)
}

// Rating aggregates the approved reviews about a user.
func (g *Gate) Rating(ctx context.Context, userID uint64) (model.RatingSummary, error) {
	if _, err := g.store.FindUser(ctx, userID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return model.RatingSummary{}, apperr.ErrUserNotFound
		}
		return model.RatingSummary{}, err
	}
	return g.store.RatingOf(ctx, userID)
}

func lockReview(ctx context.Context, tx store.ReviewTx, id uint64) (*model.Review, error) {
	rv, err := tx.GetReview(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, apperr.ErrReviewNotFound
	}
	return rv, err
}
