package handler

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/ecoride/carpool/internal/account"
	"github.com/ecoride/carpool/internal/model"
	"github.com/ecoride/carpool/internal/review"
	"github.com/ecoride/carpool/internal/ride"
)

const defaultQueueSize = 50

// StaffHandler groups the employee and admin endpoints: moderation of
// rides and reviews, account status and credit grants. Routes are
// mounted behind the staff role check; the services check again.
type StaffHandler struct {
	Rides    *ride.Manager
	Reviews  *review.Gate
	Accounts *account.Service
}

func NewStaffHandler(rides *ride.Manager, reviews *review.Gate, accounts *account.Service) *StaffHandler {
	if rides == nil || reviews == nil || accounts == nil {
		panic("nil dependency passed to NewStaffHandler")
	}
	return &StaffHandler{Rides: rides, Reviews: reviews, Accounts: accounts}
}

type decisionReq struct {
	Approve *bool  `json:"approve" validate:"required"`
	Reason  string `json:"reason" validate:"max=255"`
}

type statusReq struct {
	Status string `json:"status" validate:"required,oneof=active suspended banned"`
}

type grantReq struct {
	Amount int64  `json:"amount" validate:"required,gt=0"`
	Note   string `json:"note" validate:"max=255"`
}

func queueSize(c echo.Context) int {
	n := queryInt(c, "limit", defaultQueueSize)
	if n <= 0 {
		return defaultQueueSize
	}
	return n
}

// RideQueue handles GET /v1/staff/rides.
func (h *StaffHandler) RideQueue(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()

	rides, err := h.Rides.PendingModeration(ctx, queueSize(c))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"rides": toRides(rides, true)})
}

// DecideRide handles POST /v1/staff/rides/:id/decision.
func (h *StaffHandler) DecideRide(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return unauthorized(c)
	}
	rideID, ok := paramID(c, "id")
	if !ok {
		return badRequest(c, "invalid ride id")
	}
	var req decisionReq
	if msg, ok := bind(c, &req); !ok {
		return badRequest(c, msg)
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	r, err := h.Rides.Moderate(ctx, uid, rideID, ride.Decision{Approve: *req.Approve, Reason: req.Reason})
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, toRide(r, true))
}

// ReviewQueue handles GET /v1/staff/reviews.
func (h *StaffHandler) ReviewQueue(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()

	rs, err := h.Reviews.Queue(ctx, queueSize(c))
	if err != nil {
		return fail(c, err)
	}
	out := make([]reviewResp, 0, len(rs))
	for i := range rs {
		out = append(out, toReview(&rs[i]))
	}
	return c.JSON(http.StatusOK, echo.Map{"reviews": out})
}

// DecideReview handles POST /v1/staff/reviews/:id/decision.
func (h *StaffHandler) DecideReview(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return unauthorized(c)
	}
	reviewID, ok := paramID(c, "id")
	if !ok {
		return badRequest(c, "invalid review id")
	}
	var req decisionReq
	if msg, ok := bind(c, &req); !ok {
		return badRequest(c, msg)
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	r, err := h.Reviews.Moderate(ctx, uid, reviewID, review.Decision{Approve: *req.Approve, Reason: req.Reason})
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, toReview(r))
}

// SetStatus handles PUT /v1/staff/users/:id/status.
func (h *StaffHandler) SetStatus(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return unauthorized(c)
	}
	userID, ok := paramID(c, "id")
	if !ok {
		return badRequest(c, "invalid user id")
	}
	var req statusReq
	if msg, ok := bind(c, &req); !ok {
		return badRequest(c, msg)
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	u, err := h.Accounts.SetStatus(ctx, uid, userID, model.UserStatus(strings.ToLower(req.Status)))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, toUser(u, false))
}

// GrantCredits handles POST /v1/staff/users/:id/credits.
func (h *StaffHandler) GrantCredits(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return unauthorized(c)
	}
	userID, ok := paramID(c, "id")
	if !ok {
		return badRequest(c, "invalid user id")
	}
	var req grantReq
	if msg, ok := bind(c, &req); !ok {
		return badRequest(c, msg)
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	if err := h.Accounts.GrantCredits(ctx, uid, userID, req.Amount, req.Note); err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"user_id": userID, "granted": req.Amount})
}
