package review_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ecoride/carpool/internal/apperr"
	"github.com/ecoride/carpool/internal/model"
	"github.com/ecoride/carpool/internal/review"
	"github.com/ecoride/carpool/internal/store"
	"github.com/ecoride/carpool/internal/store/memstore"
	"github.com/ecoride/carpool/internal/testutil"
)

type env struct {
	s         *memstore.Store
	g         *review.Gate
	driver    model.User
	passenger model.User
	staff     model.User
	ride      model.Ride
}

func newEnv(t *testing.T) env {
	t.Helper()
	s := memstore.New()
	driver := testutil.User(t, s, 0, model.RoleDriver)
	passenger := testutil.User(t, s, 0)
	car := testutil.Vehicle(t, s, driver.ID, 3)
	r := testutil.Ride(t, s, driver.ID, car.ID, 3, testutil.WithStatus(model.RideCompleted))
	participate(t, s, passenger.ID, r.ID, model.ParticipationCompleted)
	return env{
		s:         s,
		g:         review.New(s, review.WithClock(testutil.Clock)),
		driver:    driver,
		passenger: passenger,
		staff:     testutil.User(t, s, 0, model.RoleEmployee),
		ride:      r,
	}
}

func participate(t *testing.T, s *memstore.Store, passengerID, rideID uint64, status model.ParticipationStatus) {
	t.Helper()
	require.NoError(t, s.WithTx(context.Background(), func(ctx context.Context, tx store.Tx) error {
		return tx.CreateParticipation(ctx, &model.Participation{PassengerID: passengerID, RideID: rideID, Status: status})
	}))
}

func TestPassengerReviewsDriver(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	rv, err := e.g.Submit(ctx, e.passenger.ID, e.ride.ID, review.Submission{Rating: 5, Comment: " great "})
	require.NoError(t, err)
	assert.Equal(t, e.driver.ID, rv.SubjectID)
	assert.Equal(t, model.ReviewPending, rv.Status)
	assert.Equal(t, "great", rv.Comment)
	assert.False(t, rv.Validated)

	parts, err := e.s.ListParticipationsByPassenger(ctx, e.passenger.ID)
	require.NoError(t, err)
	assert.True(t, parts[0].ReviewSubmitted)

	_, err = e.g.Submit(ctx, e.passenger.ID, e.ride.ID, review.Submission{Rating: 4})
	assert.ErrorIs(t, err, apperr.ErrNotEligible)
}

func TestDriverReviewsPassenger(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	_, err := e.g.Submit(ctx, e.driver.ID, e.ride.ID, review.Submission{Rating: 4})
	assert.ErrorIs(t, err, apperr.ErrNotEligible)

	rv, err := e.g.Submit(ctx, e.driver.ID, e.ride.ID, review.Submission{SubjectID: e.passenger.ID, Rating: 4})
	require.NoError(t, err)
	assert.Equal(t, e.passenger.ID, rv.SubjectID)
}

func TestDriverReviewsEachPassengerOnce(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	second := testutil.User(t, e.s, 0)
	participate(t, e.s, second.ID, e.ride.ID, model.ParticipationCompleted)

	_, err := e.g.Submit(ctx, e.driver.ID, e.ride.ID, review.Submission{SubjectID: e.passenger.ID, Rating: 4})
	require.NoError(t, err)
	_, err = e.g.Submit(ctx, e.driver.ID, e.ride.ID, review.Submission{SubjectID: second.ID, Rating: 2})
	require.NoError(t, err)

	_, err = e.g.Submit(ctx, e.driver.ID, e.ride.ID, review.Submission{SubjectID: e.passenger.ID, Rating: 5})
	assert.ErrorIs(t, err, apperr.ErrNotEligible)

	outsider := testutil.User(t, e.s, 0)
	_, err = e.g.Submit(ctx, e.driver.ID, e.ride.ID, review.Submission{SubjectID: outsider.ID, Rating: 3})
	assert.ErrorIs(t, err, apperr.ErrNotEligible)
}

func TestIneligibleAuthors(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	stranger := testutil.User(t, e.s, 0)
	_, err := e.g.Submit(ctx, stranger.ID, e.ride.ID, review.Submission{Rating: 3})
	assert.ErrorIs(t, err, apperr.ErrNotEligible)

	quitter := testutil.User(t, e.s, 0)
	participate(t, e.s, quitter.ID, e.ride.ID, model.ParticipationCancelled)
	_, err = e.g.Submit(ctx, quitter.ID, e.ride.ID, review.Submission{Rating: 3})
	assert.ErrorIs(t, err, apperr.ErrNotEligible)

	_, err = e.g.Submit(ctx, e.passenger.ID, e.ride.ID, review.Submission{Rating: 6})
	assert.ErrorIs(t, err, apperr.ErrInvalidRating)
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))

	car := testutil.Vehicle(t, e.s, e.driver.ID, 2)
	open := testutil.Ride(t, e.s, e.driver.ID, car.ID, 2)
	participate(t, e.s, e.passenger.ID, open.ID, model.ParticipationActive)
	_, err = e.g.Submit(ctx, e.passenger.ID, open.ID, review.Submission{Rating: 3})
	assert.ErrorIs(t, err, apperr.ErrNotEligible)
}

func TestModerationAndRating(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	second := testutil.User(t, e.s, 0)
	participate(t, e.s, second.ID, e.ride.ID, model.ParticipationCompleted)

	good, err := e.g.Submit(ctx, e.passenger.ID, e.ride.ID, review.Submission{Rating: 5})
	require.NoError(t, err)
	bad, err := e.g.Submit(ctx, second.ID, e.ride.ID, review.Submission{Rating: 1})
	require.NoError(t, err)

	queue, err := e.g.Queue(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, queue, 2)

	_, err = e.g.Moderate(ctx, e.passenger.ID, good.ID, review.Decision{Approve: true})
	assert.ErrorIs(t, err, apperr.ErrForbidden)

	_, err = e.g.Moderate(ctx, e.staff.ID, good.ID, review.Decision{Approve: true})
	require.NoError(t, err)
	_, err = e.g.Moderate(ctx, e.staff.ID, bad.ID, review.Decision{Reason: "insulting"})
	require.NoError(t, err)

	_, err = e.g.Moderate(ctx, e.staff.ID, good.ID, review.Decision{Reason: "changed my mind"})
	assert.ErrorIs(t, err, apperr.ErrAlreadyModerated)

	sum, err := e.g.Rating(ctx, e.driver.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Count)
	assert.InDelta(t, 5.0, sum.Average, 0.001)
}

func TestSingleDisputeCycle(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	rv, err := e.g.Submit(ctx, e.passenger.ID, e.ride.ID, review.Submission{Rating: 2})
	require.NoError(t, err)

	_, err = e.g.Dispute(ctx, e.driver.ID, rv.ID, "unfair")
	assert.ErrorIs(t, err, apperr.ErrDisputeNotAllowed)

	_, err = e.g.Moderate(ctx, e.staff.ID, rv.ID, review.Decision{Approve: true})
	require.NoError(t, err)

	_, err = e.g.Dispute(ctx, e.passenger.ID, rv.ID, "unfair")
	assert.ErrorIs(t, err, apperr.ErrForbidden)

	got, err := e.g.Dispute(ctx, e.driver.ID, rv.ID, "unfair")
	require.NoError(t, err)
	assert.Equal(t, model.ReviewDisputed, got.Status)

	sum, err := e.g.Rating(ctx, e.driver.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, sum.Count)

	_, err = e.g.Moderate(ctx, e.staff.ID, rv.ID, review.Decision{Approve: true})
	require.NoError(t, err)
	_, err = e.g.Dispute(ctx, e.driver.ID, rv.ID, "again")
	assert.ErrorIs(t, err, apperr.ErrDisputeNotAllowed)
}
