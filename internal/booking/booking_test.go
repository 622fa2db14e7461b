package booking_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ecoride/carpool/internal/apperr"
	"github.com/ecoride/carpool/internal/booking"
	"github.com/ecoride/carpool/internal/ledger"
	"github.com/ecoride/carpool/internal/model"
	"github.com/ecoride/carpool/internal/ride"
	"github.com/ecoride/carpool/internal/store"
	"github.com/ecoride/carpool/internal/store/memstore"
	"github.com/ecoride/carpool/internal/testutil"
)

type fixture struct {
	s      *memstore.Store
	c      *booking.Coordinator
	driver model.User
	car    model.Vehicle
}

func newFixture(t *testing.T, opts ...booking.Option) fixture {
	t.Helper()
	s := memstore.New()
	l, err := ledger.New(2, ledger.WithClock(testutil.Clock))
	require.NoError(t, err)
	rides, err := ride.New(s, l, ride.WithClock(testutil.Clock))
	require.NoError(t, err)
	c, err := booking.New(s, rides, l, append([]booking.Option{booking.WithClock(testutil.Clock)}, opts...)...)
	require.NoError(t, err)
	driver := testutil.User(t, s, 0, model.RoleDriver)
	return fixture{s: s, c: c, driver: driver, car: testutil.Vehicle(t, s, driver.ID, 4)}
}

func (f fixture) ride(t *testing.T, seats int, opts ...testutil.RideOption) model.Ride {
	return testutil.Ride(t, f.s, f.driver.ID, f.car.ID, seats, opts...)
}

func TestSingleSeatScenario(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	r := f.ride(t, 1, testutil.WithPrice(10))
	a := testutil.User(t, f.s, 25)
	b := testutil.User(t, f.s, 25)

	_, err := f.c.Book(ctx, a.ID, r.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, testutil.FetchRide(t, f.s, r.ID).SeatsAvailable)
	assert.Equal(t, int64(15), testutil.Balance(t, f.s, a.ID))

	_, err = f.c.Book(ctx, b.ID, r.ID)
	assert.ErrorIs(t, err, apperr.ErrSoldOut)
	assert.Equal(t, apperr.KindCapacity, apperr.KindOf(err))
	assert.Equal(t, int64(25), testutil.Balance(t, f.s, b.ID))

	p, err := f.c.Cancel(ctx, a.ID, r.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ParticipationCancelled, p.Status)
	assert.Equal(t, 1, testutil.FetchRide(t, f.s, r.ID).SeatsAvailable)
	assert.Equal(t, int64(25), testutil.Balance(t, f.s, a.ID))

	var types []model.EventType
	for _, rec := range f.s.Outbox() {
		types = append(types, rec.Type)
	}
	assert.Equal(t, []model.EventType{model.EventBookingCreated, model.EventBookingCancelled}, types)
}

func TestConcurrentBookingsOnLastSeat(t *testing.T) {
	f := newFixture(t)
	r := f.ride(t, 1)

	const n = 12
	users := make([]model.User, n)
	for i := range users {
		users[i] = testutil.User(t, f.s, 50)
	}

	errs := make([]error, n)
	var wg sync.WaitGroup
	for i := range users {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.c.Book(context.Background(), users[i].ID, r.ID)
		}(i)
	}
	wg.Wait()

	ok, soldOut := 0, 0
	for _, err := range errs {
		switch {
		case err == nil:
			ok++
		case assert.ErrorIs(t, err, apperr.ErrSoldOut):
			soldOut++
		}
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, n-1, soldOut)
	got := testutil.FetchRide(t, f.s, r.ID)
	assert.Equal(t, 0, got.SeatsAvailable)
	assert.Len(t, f.s.Holds(), 1)
}

func TestInsufficientFundsLeavesNoPartialBooking(t *testing.T) {
	f := newFixture(t)
	r := f.ride(t, 2, testutil.WithPrice(30))
	poor := testutil.User(t, f.s, 10)

	_, err := f.c.Book(context.Background(), poor.ID, r.ID)
	require.ErrorIs(t, err, apperr.ErrInsufficientFunds)

	assert.Equal(t, 2, testutil.FetchRide(t, f.s, r.ID).SeatsAvailable)
	assert.Equal(t, int64(10), testutil.Balance(t, f.s, poor.ID))
	assert.Empty(t, f.s.Holds())
	assert.Empty(t, f.s.Outbox())
	mine, err := f.c.Mine(context.Background(), poor.ID)
	require.NoError(t, err)
	assert.Empty(t, mine)
}

func TestCancelTwice(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	r := f.ride(t, 2)
	a := testutil.User(t, f.s, 20)

	_, err := f.c.Book(ctx, a.ID, r.ID)
	require.NoError(t, err)
	_, err = f.c.Cancel(ctx, a.ID, r.ID)
	require.NoError(t, err)

	before := testutil.FetchRide(t, f.s, r.ID)
	outbox := len(f.s.Outbox())

	_, err = f.c.Cancel(ctx, a.ID, r.ID)
	assert.ErrorIs(t, err, apperr.ErrNoActiveParticipation)
	assert.Equal(t, before.SeatsAvailable, testutil.FetchRide(t, f.s, r.ID).SeatsAvailable)
	assert.Equal(t, int64(20), testutil.Balance(t, f.s, a.ID))
	assert.Len(t, f.s.Outbox(), outbox)

	// a cancelled booking does not block a new one
	_, err = f.c.Book(ctx, a.ID, r.ID)
	assert.NoError(t, err)
}

func TestBookRefusals(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	open := f.ride(t, 3)
	draft := f.ride(t, 3, testutil.WithStatus(model.RidePendingModeration))
	a := testutil.User(t, f.s, 100)

	_, err := f.c.Book(ctx, a.ID, open.ID)
	require.NoError(t, err)
	_, err = f.c.Book(ctx, a.ID, open.ID)
	assert.ErrorIs(t, err, apperr.ErrAlreadyBooked)

	_, err = f.c.Book(ctx, a.ID, draft.ID)
	assert.ErrorIs(t, err, apperr.ErrRideNotBookable)

	_, err = f.c.Book(ctx, f.driver.ID, open.ID)
	assert.ErrorIs(t, err, apperr.ErrSelfBooking)

	_, err = f.c.Book(ctx, a.ID, 9999)
	assert.ErrorIs(t, err, apperr.ErrRideNotFound)

	banned := testutil.User(t, f.s, 100)
	require.NoError(t, f.s.WithTx(ctx, func(ctx context.Context, tx store.Tx) error {
		return tx.UpdateUserStatus(ctx, banned.ID, model.UserBanned)
	}))
	_, err = f.c.Book(ctx, banned.ID, open.ID)
	assert.ErrorIs(t, err, apperr.ErrUserNotAllowed)
	assert.Equal(t, 2, testutil.FetchRide(t, f.s, open.ID).SeatsAvailable)
}

func TestCancelCutoff(t *testing.T) {
	f := newFixture(t, booking.WithCancelCutoff(24*time.Hour))
	ctx := context.Background()
	soon := f.ride(t, 2, testutil.WithDeparture(testutil.Now.Add(12*time.Hour)))
	later := f.ride(t, 2, testutil.WithDeparture(testutil.Now.Add(72*time.Hour)))
	a := testutil.User(t, f.s, 100)

	_, err := f.c.Book(ctx, a.ID, soon.ID)
	require.NoError(t, err)
	_, err = f.c.Book(ctx, a.ID, later.ID)
	require.NoError(t, err)

	_, err = f.c.Cancel(ctx, a.ID, soon.ID)
	assert.ErrorIs(t, err, apperr.ErrTooLateToCancel)
	assert.Equal(t, 1, testutil.FetchRide(t, f.s, soon.ID).SeatsAvailable)

	_, err = f.c.Cancel(ctx, a.ID, later.ID)
	assert.NoError(t, err)
}

func TestBookDepartedRide(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	gone := f.ride(t, 2, testutil.WithDeparture(testutil.Now.Add(-3*time.Hour)))
	now := f.ride(t, 2, testutil.WithDeparture(testutil.Now))
	a := testutil.User(t, f.s, 25)

	_, err := f.c.Book(ctx, a.ID, gone.ID)
	assert.ErrorIs(t, err, apperr.ErrRideNotBookable)
	_, err = f.c.Book(ctx, a.ID, now.ID)
	assert.ErrorIs(t, err, apperr.ErrRideNotBookable)

	assert.Equal(t, int64(25), testutil.Balance(t, f.s, a.ID))
	assert.Equal(t, 2, testutil.FetchRide(t, f.s, gone.ID).SeatsAvailable)
	assert.Empty(t, f.s.Holds())
	assert.Empty(t, f.s.Outbox())
}

func TestBusyAfterRepeatedConflicts(t *testing.T) {
	f := newFixture(t, booking.WithAttempts(2))
	r := f.ride(t, 1)
	a := testutil.User(t, f.s, 100)

	f.s.InjectConflicts(2)
	_, err := f.c.Book(context.Background(), a.ID, r.ID)
	assert.ErrorIs(t, err, apperr.ErrBusy)
	assert.Equal(t, 1, testutil.FetchRide(t, f.s, r.ID).SeatsAvailable)

	f.s.InjectConflicts(1)
	_, err = f.c.Book(context.Background(), a.ID, r.ID)
	assert.NoError(t, err)
}
