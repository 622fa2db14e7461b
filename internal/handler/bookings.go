package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/ecoride/carpool/internal/booking"
)

// BookingHandler lets passengers book and cancel seats.
type BookingHandler struct {
	Bookings *booking.Coordinator
}

func NewBookingHandler(b *booking.Coordinator) *BookingHandler {
	if b == nil {
		panic("nil coordinator passed to NewBookingHandler")
	}
	return &BookingHandler{Bookings: b}
}

// Book handles POST /v1/rides/:id/bookings.
func (h *BookingHandler) Book(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return unauthorized(c)
	}
	rideID, ok := paramID(c, "id")
	if !ok {
		return badRequest(c, "invalid ride id")
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	p, err := h.Bookings.Book(ctx, uid, rideID)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusCreated, toParticipation(p))
}

// Cancel handles DELETE /v1/rides/:id/bookings.
func (h *BookingHandler) Cancel(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return unauthorized(c)
	}
	rideID, ok := paramID(c, "id")
	if !ok {
		return badRequest(c, "invalid ride id")
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	p, err := h.Bookings.Cancel(ctx, uid, rideID)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, toParticipation(p))
}

// Mine handles GET /v1/bookings.
func (h *BookingHandler) Mine(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return unauthorized(c)
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	ps, err := h.Bookings.Mine(ctx, uid)
	if err != nil {
		return fail(c, err)
	}
	out := make([]participationResp, 0, len(ps))
	for i := range ps {
		out = append(out, toParticipation(&ps[i]))
	}
	return c.JSON(http.StatusOK, echo.Map{"bookings": out})
}
