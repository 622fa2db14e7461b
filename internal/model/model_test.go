package model_test

import (
	"errors"
	"testing"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ecoride/carpool/internal/apperr"
	"github.com/ecoride/carpool/internal/model"
)

func TestRideTransitions(t *testing.T) {
	r := &model.Ride{Status: model.RideDraft}

	require.NoError(t, r.TransitionTo(model.RidePendingModeration))
	require.NoError(t, r.TransitionTo(model.RidePublished))
	require.NoError(t, r.TransitionTo(model.RideOngoing))
	require.NoError(t, r.TransitionTo(model.RideCompleted))

	err := r.TransitionTo(model.RideOngoing)
	assert.True(t, errors.Is(err, apperr.ErrInvalidTransition))
	assert.Equal(t, model.RideCompleted, r.Status)
	assert.True(t, r.Status.Terminal())
}

func TestRideCannotSkipModeration(t *testing.T) {
	r := &model.Ride{Status: model.RideDraft}

	err := r.TransitionTo(model.RidePublished)
	assert.True(t, errors.Is(err, apperr.ErrInvalidTransition))
	assert.Equal(t, model.RideDraft, r.Status)
}

func TestSeatAccountingStaysInBounds(t *testing.T) {
	r := &model.Ride{ID: 1, SeatsOffered: 1, SeatsAvailable: 1}

	require.NoError(t, r.TakeSeat())
	assert.Equal(t, 0, r.SeatsAvailable)
	assert.ErrorIs(t, r.TakeSeat(), apperr.ErrSoldOut)
	assert.Equal(t, 0, r.SeatsAvailable)

	require.NoError(t, r.ReturnSeat())
	assert.Equal(t, 1, r.SeatsAvailable)
	assert.ErrorIs(t, r.ReturnSeat(), apperr.ErrSeatAccounting)
	assert.Equal(t, 1, r.SeatsAvailable)
}

func TestRolesSet(t *testing.T) {
	rs := model.ParseRoles("driver, passenger,unknown")

	assert.True(t, rs.Has(model.RolePassenger))
	assert.True(t, rs.Has(model.RoleDriver))
	assert.False(t, rs.Has(model.RoleEmployee))
	assert.False(t, rs.Staff())
	assert.Equal(t, "passenger,driver", rs.String())
	assert.True(t, rs.Add(model.RoleEmployee).Staff())
}

func TestModerationPayloadJSON(t *testing.T) {
	in := model.ModerationPayload{
		Flags: []model.Flag{
			model.BannedTerm{Term: "cash"},
			model.PriceAboveCeiling{Price: 90, Ceiling: 50},
		},
		Decision: model.DecisionRejected,
		Reason:   "off-platform payment",
	}

	b, err := json.Marshal(in)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"flags":[{"kind":"banned_term","term":"cash"},{"kind":"price_above_ceiling","price":90,"ceiling":50}],
		"decision":"rejected","reason":"off-platform payment"}`, string(b))

	var out model.ModerationPayload
	require.NoError(t, json.Unmarshal(b, &out))
	assert.Equal(t, in, out)
}

func TestModerationPayloadRejectsUnknownKind(t *testing.T) {
	var out model.ModerationPayload
	err := json.Unmarshal([]byte(`{"flags":[{"kind":"mystery"}]}`), &out)
	assert.Error(t, err)
}

func TestReviewDisputeCycle(t *testing.T) {
	r := &model.Review{Status: model.ReviewPending}

	assert.ErrorIs(t, r.Dispute("unfair"), apperr.ErrDisputeNotAllowed)
	require.NoError(t, r.Approve(9))
	assert.True(t, r.Counts())
	assert.ErrorIs(t, r.Approve(9), apperr.ErrAlreadyModerated)

	require.NoError(t, r.Dispute("unfair"))
	assert.False(t, r.Counts())
	require.NoError(t, r.Approve(10))

	assert.ErrorIs(t, r.Dispute("again"), apperr.ErrDisputeNotAllowed)
	assert.ErrorIs(t, r.Reject(10, "late"), apperr.ErrAlreadyModerated)
}

func TestReviewRejectNeedsReason(t *testing.T) {
	r := &model.Review{Status: model.ReviewPending}

	assert.ErrorIs(t, r.Reject(3, ""), apperr.ErrReasonRequired)
	require.NoError(t, r.Reject(3, "insulting"))
	assert.True(t, r.Rejected)
	assert.False(t, r.Counts())
}
