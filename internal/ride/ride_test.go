package ride_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ecoride/carpool/internal/apperr"
	"github.com/ecoride/carpool/internal/booking"
	"github.com/ecoride/carpool/internal/ledger"
	"github.com/ecoride/carpool/internal/model"
	"github.com/ecoride/carpool/internal/ride"
	"github.com/ecoride/carpool/internal/store/memstore"
	"github.com/ecoride/carpool/internal/testutil"
)

type env struct {
	s      *memstore.Store
	m      *ride.Manager
	b      *booking.Coordinator
	clock  *time.Time
	driver model.User
	car    model.Vehicle
}

func newEnv(t *testing.T) *env {
	t.Helper()
	s := memstore.New()
	now := testutil.Now
	e := &env{s: s, clock: &now}
	clock := func() time.Time { return *e.clock }

	l, err := ledger.New(2, ledger.WithClock(clock))
	require.NoError(t, err)
	e.m, err = ride.New(s, l,
		ride.WithClock(clock),
		ride.WithCompletionGrace(6*time.Hour),
		ride.WithScreener(ride.Screener{BannedTerms: []string{"cash only"}, PriceCeiling: 100}),
	)
	require.NoError(t, err)
	e.b, err = booking.New(s, e.m, l, booking.WithClock(clock))
	require.NoError(t, err)
	e.driver = testutil.User(t, s, 0, model.RoleDriver)
	e.car = testutil.Vehicle(t, s, e.driver.ID, 3)
	return e
}

func (e *env) draft(t *testing.T, price int64, notes string) *model.Ride {
	t.Helper()
	r, err := e.m.CreateDraft(context.Background(), e.driver.ID, ride.Draft{
		VehicleID:     e.car.ID,
		DepartureCity: "Nantes",
		ArrivalCity:   "Rennes",
		DepartureAt:   testutil.Now.Add(24 * time.Hour),
		ArrivalAt:     testutil.Now.Add(26 * time.Hour),
		Price:         price,
		Seats:         2,
		Notes:         notes,
	})
	require.NoError(t, err)
	return r
}

func (e *env) eventsOf(typ model.EventType) []model.OutboxRecord {
	var out []model.OutboxRecord
	for _, rec := range e.s.Outbox() {
		if rec.Type == typ {
			out = append(out, rec)
		}
	}
	return out
}

func TestDraftValidation(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	base := ride.Draft{
		VehicleID: e.car.ID, DepartureCity: "A", ArrivalCity: "B",
		DepartureAt: testutil.Now.Add(time.Hour), ArrivalAt: testutil.Now.Add(2 * time.Hour), Seats: 1,
	}

	bad := base
	bad.ArrivalAt = bad.DepartureAt
	_, err := e.m.CreateDraft(ctx, e.driver.ID, bad)
	assert.ErrorIs(t, err, apperr.ErrInvalidSchedule)

	bad = base
	bad.Seats = 4
	_, err = e.m.CreateDraft(ctx, e.driver.ID, bad)
	assert.ErrorIs(t, err, apperr.ErrVehicleTooSmall)

	bad = base
	bad.Price = -1
	_, err = e.m.CreateDraft(ctx, e.driver.ID, bad)
	assert.ErrorIs(t, err, apperr.ErrInvalidAmount)

	stranger := testutil.User(t, e.s, 0)
	_, err = e.m.CreateDraft(ctx, stranger.ID, base)
	assert.ErrorIs(t, err, apperr.ErrForbidden)
}

func TestPublishWithoutFlagsGoesLive(t *testing.T) {
	e := newEnv(t)
	r := e.draft(t, 10, "non smoking")

	got, err := e.m.Publish(context.Background(), e.driver.ID, r.ID)
	require.NoError(t, err)
	assert.Equal(t, model.RidePublished, got.Status)
	assert.Equal(t, model.DecisionAuto, got.Moderation.Decision)
	assert.Len(t, e.eventsOf(model.EventRidePublished), 1)

	_, err = e.m.Publish(context.Background(), e.driver.ID, r.ID)
	assert.ErrorIs(t, err, apperr.ErrInvalidTransition)
}

func TestFlaggedRideWaitsForEmployee(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	staff := testutil.User(t, e.s, 0, model.RoleEmployee)
	r := e.draft(t, 150, "Cash only please")

	got, err := e.m.Publish(ctx, e.driver.ID, r.ID)
	require.NoError(t, err)
	assert.Equal(t, model.RidePendingModeration, got.Status)
	require.Len(t, got.Moderation.Flags, 2)
	assert.Equal(t, model.FlagBannedTerm, got.Moderation.Flags[0].Kind())
	assert.Equal(t, model.FlagPriceCeiling, got.Moderation.Flags[1].Kind())

	queue, err := e.m.PendingModeration(ctx, 10)
	require.NoError(t, err)
	require.Len(t, queue, 1)

	_, err = e.m.Moderate(ctx, e.driver.ID, r.ID, ride.Decision{Approve: true})
	assert.ErrorIs(t, err, apperr.ErrForbidden)

	_, err = e.m.Moderate(ctx, staff.ID, r.ID, ride.Decision{Approve: false})
	assert.ErrorIs(t, err, apperr.ErrReasonRequired)

	got, err = e.m.Moderate(ctx, staff.ID, r.ID, ride.Decision{Approve: false, Reason: "price"})
	require.NoError(t, err)
	assert.Equal(t, model.RideRejected, got.Status)
	assert.Equal(t, "price", got.Moderation.Reason)
	assert.Equal(t, staff.ID, got.Moderation.ModeratorID)

	_, err = e.m.Moderate(ctx, staff.ID, r.ID, ride.Decision{Approve: true})
	assert.ErrorIs(t, err, apperr.ErrAlreadyModerated)
	assert.Len(t, e.eventsOf(model.EventRideRejected), 1)
}

func TestDriverCancelsWithTwoPassengers(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	r := testutil.Ride(t, e.s, e.driver.ID, e.car.ID, 3, testutil.WithPrice(10))
	a := testutil.User(t, e.s, 30)
	b := testutil.User(t, e.s, 30)
	late := testutil.User(t, e.s, 30)

	_, err := e.b.Book(ctx, a.ID, r.ID)
	require.NoError(t, err)
	_, err = e.b.Book(ctx, b.ID, r.ID)
	require.NoError(t, err)

	got, err := e.m.Cancel(ctx, e.driver.ID, r.ID, "car broke down")
	require.NoError(t, err)
	assert.Equal(t, model.RideCancelled, got.Status)
	assert.Equal(t, 3, got.SeatsAvailable)
	assert.Equal(t, int64(30), testutil.Balance(t, e.s, a.ID))
	assert.Equal(t, int64(30), testutil.Balance(t, e.s, b.ID))
	for _, h := range e.s.Holds() {
		assert.Equal(t, model.HoldReleased, h.Status)
	}

	cancelled := e.eventsOf(model.EventRideCancelled)
	require.Len(t, cancelled, 1)
	assert.ElementsMatch(t, []uint64{a.ID, b.ID}, cancelled[0].Recipients)
	assert.Equal(t, "car broke down", cancelled[0].Data.Reason)

	_, err = e.b.Book(ctx, late.ID, r.ID)
	assert.ErrorIs(t, err, apperr.ErrRideNotBookable)
	_, err = e.b.Cancel(ctx, a.ID, r.ID)
	assert.ErrorIs(t, err, apperr.ErrNoActiveParticipation)
}

func TestOnlyDriverOrStaffCancels(t *testing.T) {
	e := newEnv(t)
	r := testutil.Ride(t, e.s, e.driver.ID, e.car.ID, 2)
	other := testutil.User(t, e.s, 0)
	_, err := e.m.Cancel(context.Background(), other.ID, r.ID, "")
	assert.ErrorIs(t, err, apperr.ErrForbidden)

	admin := testutil.User(t, e.s, 0, model.RoleAdmin)
	_, err = e.m.Cancel(context.Background(), admin.ID, r.ID, "fraud")
	assert.NoError(t, err)
}

func TestPassengerConfirmationsCompleteRide(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	r := testutil.Ride(t, e.s, e.driver.ID, e.car.ID, 2, testutil.WithPrice(10))
	a := testutil.User(t, e.s, 10)
	b := testutil.User(t, e.s, 10)
	_, err := e.b.Book(ctx, a.ID, r.ID)
	require.NoError(t, err)
	_, err = e.b.Book(ctx, b.ID, r.ID)
	require.NoError(t, err)

	_, err = e.m.ConfirmArrival(ctx, a.ID, r.ID)
	assert.ErrorIs(t, err, apperr.ErrInvalidTransition)

	_, err = e.m.Start(ctx, e.driver.ID, r.ID)
	require.NoError(t, err)

	done, err := e.m.ConfirmArrival(ctx, a.ID, r.ID)
	require.NoError(t, err)
	assert.False(t, done)
	done, err = e.m.ConfirmArrival(ctx, b.ID, r.ID)
	require.NoError(t, err)
	assert.True(t, done)

	assert.Equal(t, model.RideCompleted, testutil.FetchRide(t, e.s, r.ID).Status)
	assert.Equal(t, int64(16), testutil.Balance(t, e.s, e.driver.ID))
	for _, h := range e.s.Holds() {
		assert.Equal(t, model.HoldCommitted, h.Status)
	}
	parts, err := e.s.ListParticipationsByPassenger(ctx, a.ID)
	require.NoError(t, err)
	require.Len(t, parts, 1)
	assert.Equal(t, model.ParticipationCompleted, parts[0].Status)
	assert.True(t, parts[0].ConfirmedByPassenger)

	_, err = e.m.Cancel(ctx, e.driver.ID, r.ID, "")
	assert.ErrorIs(t, err, apperr.ErrInvalidTransition)
}

func TestSweepStartsAndCompletes(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	r := testutil.Ride(t, e.s, e.driver.ID, e.car.ID, 2, testutil.WithPrice(10))
	a := testutil.User(t, e.s, 10)
	_, err := e.b.Book(ctx, a.ID, r.ID)
	require.NoError(t, err)

	res, err := e.m.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, ride.SweepResult{}, res)

	*e.clock = r.DepartureAt
	res, err = e.m.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Started)
	assert.Equal(t, model.RideOngoing, testutil.FetchRide(t, e.s, r.ID).Status)

	*e.clock = r.ArrivalAt.Add(5 * time.Hour)
	res, err = e.m.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, res.Completed)

	*e.clock = r.ArrivalAt.Add(6 * time.Hour)
	res, err = e.m.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Completed)
	assert.Equal(t, model.RideCompleted, testutil.FetchRide(t, e.s, r.ID).Status)
	assert.Equal(t, int64(8), testutil.Balance(t, e.s, e.driver.ID))
}

func TestSearchListsBookableRides(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	open := testutil.Ride(t, e.s, e.driver.ID, e.car.ID, 1)
	testutil.Ride(t, e.s, e.driver.ID, e.car.ID, 1, testutil.WithStatus(model.RideDraft))
	full := testutil.Ride(t, e.s, e.driver.ID, e.car.ID, 1)
	a := testutil.User(t, e.s, 100)
	_, err := e.b.Book(ctx, a.ID, full.ID)
	require.NoError(t, err)

	got, err := e.m.Search(ctx, model.RideSearch{DepartureCity: "paris", ArrivalCity: "LYON", Date: open.DepartureAt})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, open.ID, got[0].ID)

	got, err = e.m.Search(ctx, model.RideSearch{DepartureCity: "Lille"})
	require.NoError(t, err)
	assert.Empty(t, got)
}
