package handler

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/ecoride/carpool/internal/account"
	"github.com/ecoride/carpool/internal/apperr"
	"github.com/ecoride/carpool/internal/booking"
	"github.com/ecoride/carpool/internal/config"
	"github.com/ecoride/carpool/internal/ledger"
	"github.com/ecoride/carpool/internal/model"
	"github.com/ecoride/carpool/internal/notify"
	"github.com/ecoride/carpool/internal/registry"
	"github.com/ecoride/carpool/internal/review"
	"github.com/ecoride/carpool/internal/ride"
	"github.com/ecoride/carpool/internal/store/memstore"
	"github.com/ecoride/carpool/internal/testutil"
)

type env struct {
	s        *memstore.Store
	e        *echo.Echo
	rides    *RideHandler
	bookings *BookingHandler
	vehicles *VehicleHandler
	reviews  *ReviewHandler
	feed     *NotificationHandler
	credits  *CreditHandler
	staff    *StaffHandler
	auth     *AuthHandler
}

func newEnv(t *testing.T) env {
	t.Helper()
	s := memstore.New()
	l, err := ledger.New(2, ledger.WithClock(testutil.Clock))
	require.NoError(t, err)
	rm, err := ride.New(s, l, ride.WithClock(testutil.Clock))
	require.NoError(t, err)
	bc, err := booking.New(s, rm, l, booking.WithClock(testutil.Clock))
	require.NoError(t, err)
	gate := review.New(s, review.WithClock(testutil.Clock))
	accounts := account.New(s, l, bcrypt.MinCost, 20, 3)

	e := echo.New()
	e.Validator = NewValidator()
	cfg := config.Config{JWTSecret: "test-secret", AccessTTLMin: 15, RefreshTTLDays: 30}
	return env{
		s:        s,
		e:        e,
		rides:    NewRideHandler(rm),
		bookings: NewBookingHandler(bc),
		vehicles: NewVehicleHandler(registry.New(s, 3)),
		reviews:  NewReviewHandler(gate),
		feed:     NewNotificationHandler(notify.NewFeed(s)),
		credits:  NewCreditHandler(s),
		staff:    NewStaffHandler(rm, gate, accounts),
		auth:     NewAuthHandler(cfg, accounts, s),
	}
}

// as injects the caller the way the JWT middleware does.
func as(u model.User) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			c.Set("user_id", u.ID)
			c.Set("roles", u.Roles)
			return next(c)
		}
	}
}

func do(e *echo.Echo, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func TestStatusOf(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{apperr.ErrInvalidRating, http.StatusBadRequest},
		{apperr.ErrSoldOut, http.StatusConflict},
		{apperr.ErrTooLateToCancel, http.StatusConflict},
		{apperr.ErrInsufficientFunds, http.StatusPaymentRequired},
		{apperr.ErrRideNotFound, http.StatusNotFound},
		{apperr.ErrForbidden, http.StatusForbidden},
		{apperr.ErrUserNotAllowed, http.StatusForbidden},
		{apperr.ErrInvalidCredentials, http.StatusUnauthorized},
		{apperr.ErrBusy, http.StatusServiceUnavailable},
		{context.DeadlineExceeded, http.StatusGatewayTimeout},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, statusOf(tc.err), tc.err.Error())
	}
}

func TestFailHidesInternalErrors(t *testing.T) {
	e := echo.New()
	e.GET("/x", func(c echo.Context) error { return fail(c, errors.New("dsn leaked")) })

	rec := do(e, http.MethodGet, "/x", "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "dsn leaked")
}

func TestBookAndCancel(t *testing.T) {
	env := newEnv(t)
	driver := testutil.User(t, env.s, 0, model.RoleDriver)
	car := testutil.Vehicle(t, env.s, driver.ID, 4)
	r := testutil.Ride(t, env.s, driver.ID, car.ID, 1)
	alice := testutil.User(t, env.s, 50)
	bob := testutil.User(t, env.s, 50)

	env.e.POST("/rides/:id/bookings", env.bookings.Book, as(alice))
	env.e.DELETE("/rides/:id/bookings", env.bookings.Cancel, as(alice))
	env.e.POST("/bob/rides/:id/bookings", env.bookings.Book, as(bob))
	env.e.GET("/bookings", env.bookings.Mine, as(alice))

	rec := do(env.e, http.MethodPost, "/rides/"+itoa(r.ID)+"/bookings", "")
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, "active", decode(t, rec)["status"])
	assert.EqualValues(t, 40, testutil.Balance(t, env.s, alice.ID))

	rec = do(env.e, http.MethodPost, "/bob/rides/"+itoa(r.ID)+"/bookings", "")
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "sold_out", decode(t, rec)["code"])

	rec = do(env.e, http.MethodGet, "/bookings", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode(t, rec)["bookings"], 1)

	rec = do(env.e, http.MethodDelete, "/rides/"+itoa(r.ID)+"/bookings", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "cancelled", decode(t, rec)["status"])
	assert.EqualValues(t, 50, testutil.Balance(t, env.s, alice.ID))
	assert.Equal(t, 1, testutil.FetchRide(t, env.s, r.ID).SeatsAvailable)
}

func TestBookWithoutCredits(t *testing.T) {
	env := newEnv(t)
	driver := testutil.User(t, env.s, 0, model.RoleDriver)
	car := testutil.Vehicle(t, env.s, driver.ID, 4)
	r := testutil.Ride(t, env.s, driver.ID, car.ID, 2)
	poor := testutil.User(t, env.s, 3)

	env.e.POST("/rides/:id/bookings", env.bookings.Book, as(poor))
	rec := do(env.e, http.MethodPost, "/rides/"+itoa(r.ID)+"/bookings", "")
	assert.Equal(t, http.StatusPaymentRequired, rec.Code)
	assert.Equal(t, 2, testutil.FetchRide(t, env.s, r.ID).SeatsAvailable)
}

func TestMissingIdentity(t *testing.T) {
	env := newEnv(t)
	env.e.GET("/bookings", env.bookings.Mine)
	env.e.POST("/rides/:id/bookings", env.bookings.Book)

	assert.Equal(t, http.StatusUnauthorized, do(env.e, http.MethodGet, "/bookings", "").Code)
	assert.Equal(t, http.StatusUnauthorized, do(env.e, http.MethodPost, "/rides/1/bookings", "").Code)
}

func TestSearchAndGet(t *testing.T) {
	env := newEnv(t)
	driver := testutil.User(t, env.s, 0, model.RoleDriver)
	car := testutil.Vehicle(t, env.s, driver.ID, 4)
	r := testutil.Ride(t, env.s, driver.ID, car.ID, 3)
	testutil.Ride(t, env.s, driver.ID, car.ID, 3, testutil.WithStatus(model.RideDraft))
	staff := testutil.User(t, env.s, 0, model.RoleEmployee)
	other := testutil.User(t, env.s, 0)

	env.e.GET("/rides/search", env.rides.Search)
	env.e.GET("/rides/:id", env.rides.Get)
	env.e.GET("/driver/rides/:id", env.rides.Get, as(driver))
	env.e.GET("/staff/rides/:id", env.rides.Get, as(staff))
	env.e.GET("/other/rides/:id", env.rides.Get, as(other))

	day := testutil.Now.Add(48 * time.Hour).Format("2006-01-02")
	rec := do(env.e, http.MethodGet, "/rides/search?from=paris&to=Lyon&date="+day, "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Len(t, decode(t, rec)["rides"], 1)

	rec = do(env.e, http.MethodGet, "/rides/search?date=tomorrow", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	path := "/rides/" + itoa(r.ID)
	_, ok := decode(t, do(env.e, http.MethodGet, path, ""))["moderation"]
	assert.False(t, ok)
	_, ok = decode(t, do(env.e, http.MethodGet, "/other"+path, ""))["moderation"]
	assert.False(t, ok)
	_, ok = decode(t, do(env.e, http.MethodGet, "/driver"+path, ""))["moderation"]
	assert.True(t, ok)
	_, ok = decode(t, do(env.e, http.MethodGet, "/staff"+path, ""))["moderation"]
	assert.True(t, ok)

	assert.Equal(t, http.StatusNotFound, do(env.e, http.MethodGet, "/rides/9999", "").Code)
	assert.Equal(t, http.StatusBadRequest, do(env.e, http.MethodGet, "/rides/abc", "").Code)
}

func TestVehicleCreateValidates(t *testing.T) {
	env := newEnv(t)
	driver := testutil.User(t, env.s, 0, model.RoleDriver)
	env.e.POST("/vehicles", env.vehicles.Create, as(driver))
	env.e.GET("/vehicles", env.vehicles.List, as(driver))

	rec := do(env.e, http.MethodPost, "/vehicles", `{"brand":"Renault","model":"Zoe","plate":"AA-123-BB","seats":0}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "seats")

	rec = do(env.e, http.MethodPost, "/vehicles", `{"brand":"Renault","model":"Zoe","plate":"AA-123-BB","seats":4}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = do(env.e, http.MethodGet, "/vehicles", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode(t, rec)["vehicles"], 1)
}

func TestRideDraftThroughPublish(t *testing.T) {
	env := newEnv(t)
	driver := testutil.User(t, env.s, 0, model.RoleDriver)
	car := testutil.Vehicle(t, env.s, driver.ID, 4)
	env.e.POST("/rides", env.rides.Create, as(driver))
	env.e.POST("/rides/:id/publish", env.rides.Publish, as(driver))

	dep := testutil.Now.Add(72 * time.Hour).Format(time.RFC3339)
	arr := testutil.Now.Add(75 * time.Hour).Format(time.RFC3339)
	body := `{"vehicle_id":` + itoa(car.ID) + `,"departure_city":"Paris","arrival_city":"Lille","departure_at":"` +
		dep + `","arrival_at":"` + arr + `","price":8,"seats":3}`
	rec := do(env.e, http.MethodPost, "/rides", body)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decode(t, rec)
	assert.Equal(t, "draft", created["status"])

	id := uint64(created["id"].(float64))
	rec = do(env.e, http.MethodPost, "/rides/"+itoa(id)+"/publish", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "published", decode(t, rec)["status"])
}

func TestRatingUnknownUser(t *testing.T) {
	env := newEnv(t)
	env.e.GET("/users/:id/rating", env.reviews.Rating)
	assert.Equal(t, http.StatusNotFound, do(env.e, http.MethodGet, "/users/4242/rating", "").Code)
}

func TestStaffDecisionNeedsVerdict(t *testing.T) {
	env := newEnv(t)
	staff := testutil.User(t, env.s, 0, model.RoleEmployee)
	env.e.POST("/staff/reviews/:id/decision", env.staff.DecideReview, as(staff))

	rec := do(env.e, http.MethodPost, "/staff/reviews/1/decision", `{"reason":"x"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "approve")
}

func TestStaffGrantCredits(t *testing.T) {
	env := newEnv(t)
	admin := testutil.User(t, env.s, 0, model.RoleAdmin)
	user := testutil.User(t, env.s, 5)
	env.e.POST("/staff/users/:id/credits", env.staff.GrantCredits, as(admin))
	env.e.GET("/credits", env.credits.Statement, as(user))

	rec := do(env.e, http.MethodPost, "/staff/users/"+itoa(user.ID)+"/credits", `{"amount":15,"note":"goodwill"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = do(env.e, http.MethodGet, "/credits", "")
	require.Equal(t, http.StatusOK, rec.Code)
	st := decode(t, rec)
	assert.EqualValues(t, 20, st["balance"])
	assert.Len(t, st["entries"], 1)
}

func TestNotificationsMarkReadScopedToOwner(t *testing.T) {
	env := newEnv(t)
	user := testutil.User(t, env.s, 0)
	env.e.POST("/notifications/:id/read", env.feed.MarkRead, as(user))
	env.e.GET("/notifications", env.feed.List, as(user))

	assert.Equal(t, http.StatusNotFound, do(env.e, http.MethodPost, "/notifications/77/read", "").Code)
	rec := do(env.e, http.MethodGet, "/notifications", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 0, decode(t, rec)["unread"])
}

func TestAuthRegisterLoginRefresh(t *testing.T) {
	env := newEnv(t)
	env.e.POST("/auth/register", env.auth.Register)
	env.e.POST("/auth/login", env.auth.Login)
	env.e.POST("/auth/refresh", env.auth.Refresh)

	rec := do(env.e, http.MethodPost, "/auth/register", `{"email":"Jo@Example.com","password":"correct horse","pseudo":"jo"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = do(env.e, http.MethodPost, "/auth/register", `{"email":"jo@example.com","password":"correct horse"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "email_taken", decode(t, rec)["code"])

	rec = do(env.e, http.MethodPost, "/auth/login", `{"email":"jo@example.com","password":"wrong password"}`)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = do(env.e, http.MethodPost, "/auth/login", `{"email":"jo@example.com","password":"correct horse"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var login authResp
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &login))
	assert.EqualValues(t, 20, *login.User.Credits)
	require.NotEmpty(t, login.Refresh.Token)

	body := `{"refresh_token":"` + login.Refresh.Token + `"}`
	rec = do(env.e, http.MethodPost, "/auth/refresh", body)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	// The old token was rotated out.
	rec = do(env.e, http.MethodPost, "/auth/refresh", body)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func itoa(n uint64) string { return strconv.FormatUint(n, 10) }
