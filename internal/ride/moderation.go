package ride

import (
	"context"
	"strings"

	"github.com/ecoride/carpool/internal/apperr"
	"github.com/ecoride/carpool/internal/logging"
	"github.com/ecoride/carpool/internal/model"
	"github.com/ecoride/carpool/internal/store"
)

// Screener holds the automatic moderation rules applied on publish.
type Screener struct {
	BannedTerms  []string
	PriceCeiling int64 // 0 disables the check
}

// Screen returns the flags raised by r. No flags means the ride may be
// published without an employee.
func (s Screener) Screen(r *model.Ride) []model.Flag {
	var flags []model.Flag
	notes := strings.ToLower(r.Notes)
	for _, term := range s.BannedTerms {
		term = strings.ToLower(strings.TrimSpace(term))
		if term != "" && strings.Contains(notes, term) {
			flags = append(flags, model.BannedTerm{Term: term})
		}
	}
	if s.PriceCeiling > 0 && r.Price > s.PriceCeiling {
		flags = append(flags, model.PriceAboveCeiling{Price: r.Price, Ceiling: s.PriceCeiling})
	}
	return flags
}

// Decision is an employee verdict on a ride awaiting moderation.
type Decision struct {
	Approve bool
	Reason  string
}

// Moderate applies an employee decision to a ride in pending
// moderation. A second decision fails with apperr.ErrAlreadyModerated.
func (m *Manager) Moderate(ctx context.Context, moderatorID, rideID uint64, d Decision) (*model.Ride, error) {
	reason := strings.TrimSpace(d.Reason)
	if !d.Approve && reason == "" {
		return nil, apperr.ErrReasonRequired
	}
	var out *model.Ride
	err := store.Run(ctx, m.store, m.attempts, func(ctx context.Context, tx store.Tx) error {
		if err := requireStaff(ctx, tx, moderatorID); err != nil {
			return err
		}
		r, err := lockRide(ctx, tx, rideID)
		if err != nil {
			return err
		}
		if r.Status != model.RidePendingModeration {
			return apperr.ErrAlreadyModerated
		}
		now := m.now().UTC()
		r.Moderation.ModeratorID = moderatorID
		r.Moderation.DecidedAt = &now
		r.Moderation.Reason = reason
		typ := model.EventRidePublished
		if d.Approve {
			r.Moderation.Decision = model.DecisionApproved
			err = r.TransitionTo(model.RidePublished)
		} else {
			r.Moderation.Decision = model.DecisionRejected
			typ = model.EventRideRejected
			err = r.TransitionTo(model.RideRejected)
		}
		if err != nil {
			return err
		}
		if err := tx.UpdateRide(ctx, r); err != nil {
			return err
		}
		data := model.RideData(r)
		data.Reason = reason
		out = r
		return tx.Enqueue(ctx, model.NewEvent(typ, r.ID, moderatorID, now, data, r.DriverID))
	})
	if err != nil {
		return nil, err
	}
	logging.Info(ctx, "ride moderated", logging.Component("ride"), logging.RideID(rideID),
		logging.UserID(moderatorID), logging.Status(string(out.Status)))
	return out, nil
}

// PendingModeration lists rides awaiting an employee decision.
func (m *Manager) PendingModeration(ctx context.Context, limit int) ([]model.Ride, error) {
	return m.store.ListRidesByStatus(ctx, model.RidePendingModeration, limit)
}

func requireStaff(ctx context.Context, tx store.UserTx, userID uint64) error {
	u, err := tx.GetUser(ctx, userID)
	if err != nil {
		return userErr(err)
	}
	if !u.Roles.Staff() || u.Status != model.UserActive {
		return apperr.ErrForbidden
	}
	return nil
}
