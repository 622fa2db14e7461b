package handler

import (
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/ecoride/carpool/internal/model"
	"github.com/ecoride/carpool/internal/ride"
)

// RideHandler serves the driver side of the ride lifecycle and the
// public ride search.
type RideHandler struct {
	Rides *ride.Manager
}

func NewRideHandler(rides *ride.Manager) *RideHandler {
	if rides == nil {
		panic("nil ride manager passed to NewRideHandler")
	}
	return &RideHandler{Rides: rides}
}

type rideReq struct {
	VehicleID     uint64    `json:"vehicle_id" validate:"required"`
	DepartureCity string    `json:"departure_city" validate:"required,max=128"`
	ArrivalCity   string    `json:"arrival_city" validate:"required,max=128"`
	DepartureAt   time.Time `json:"departure_at" validate:"required"`
	ArrivalAt     time.Time `json:"arrival_at" validate:"required"`
	Price         int64     `json:"price" validate:"gte=0"`
	Seats         int       `json:"seats" validate:"required,gt=0"`
	Notes         string    `json:"notes" validate:"max=2000"`
}

type reasonReq struct {
	Reason string `json:"reason" validate:"max=255"`
}

// Create handles POST /v1/rides. The ride is stored as a draft.
func (h *RideHandler) Create(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return unauthorized(c)
	}
	var req rideReq
	if msg, ok := bind(c, &req); !ok {
		return badRequest(c, msg)
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	r, err := h.Rides.CreateDraft(ctx, uid, ride.Draft{
		VehicleID:     req.VehicleID,
		DepartureCity: req.DepartureCity,
		ArrivalCity:   req.ArrivalCity,
		DepartureAt:   req.DepartureAt,
		ArrivalAt:     req.ArrivalAt,
		Price:         req.Price,
		Seats:         req.Seats,
		Notes:         req.Notes,
	})
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusCreated, toRide(r, true))
}

// Mine handles GET /v1/rides/mine.
func (h *RideHandler) Mine(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return unauthorized(c)
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	rides, err := h.Rides.ListByDriver(ctx, uid)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"rides": toRides(rides, true)})
}

// transition runs one driver action on the ride named in the path.
func (h *RideHandler) transition(c echo.Context, act func(uid, rideID uint64) (*model.Ride, error)) error {
	uid, err := getUserID(c)
	if err != nil {
		return unauthorized(c)
	}
	rideID, ok := paramID(c, "id")
	if !ok {
		return badRequest(c, "invalid ride id")
	}
	r, err := act(uid, rideID)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, toRide(r, true))
}

// Publish handles POST /v1/rides/:id/publish.
func (h *RideHandler) Publish(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()
	return h.transition(c, func(uid, rideID uint64) (*model.Ride, error) {
		return h.Rides.Publish(ctx, uid, rideID)
	})
}

// Start handles POST /v1/rides/:id/start.
func (h *RideHandler) Start(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()
	return h.transition(c, func(uid, rideID uint64) (*model.Ride, error) {
		return h.Rides.Start(ctx, uid, rideID)
	})
}

// Complete handles POST /v1/rides/:id/complete.
func (h *RideHandler) Complete(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()
	return h.transition(c, func(uid, rideID uint64) (*model.Ride, error) {
		return h.Rides.Complete(ctx, uid, rideID)
	})
}

// Cancel handles POST /v1/rides/:id/cancel. Staff may cancel any ride.
func (h *RideHandler) Cancel(c echo.Context) error {
	var req reasonReq
	if msg, ok := bind(c, &req); !ok {
		return badRequest(c, msg)
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	return h.transition(c, func(uid, rideID uint64) (*model.Ride, error) {
		return h.Rides.Cancel(ctx, uid, rideID, strings.TrimSpace(req.Reason))
	})
}

// Confirm handles POST /v1/rides/:id/confirm: a passenger confirms the
// ride went well. The last confirmation completes the ride.
func (h *RideHandler) Confirm(c echo.Context) error {
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

	completed, err := h.Rides.ConfirmArrival(ctx, uid, rideID)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"ride_id": rideID, "completed": completed})
}

// Get handles GET /v1/rides/:id. The moderation record is only shown to
// the ride's driver and to staff.
func (h *RideHandler) Get(c echo.Context) error {
	rideID, ok := paramID(c, "id")
	if !ok {
		return badRequest(c, "invalid ride id")
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	r, err := h.Rides.Get(ctx, rideID)
	if err != nil {
		return fail(c, err)
	}
	uid, _ := getUserID(c)
	owner := uid != 0 && uid == r.DriverID
	return c.JSON(http.StatusOK, toRide(r, owner || getRoles(c).Staff()))
}

// Search handles GET /v1/rides/search?from=&to=&date=YYYY-MM-DD&page=&page_size=.
func (h *RideHandler) Search(c echo.Context) error {
	q := model.RideSearch{
		DepartureCity: strings.TrimSpace(c.QueryParam("from")),
		ArrivalCity:   strings.TrimSpace(c.QueryParam("to")),
		Page:          queryInt(c, "page", 1),
		PageSize:      queryInt(c, "page_size", ride.DefaultPageSize),
	}
	if d := strings.TrimSpace(c.QueryParam("date")); d != "" {
		day, err := time.Parse("2006-01-02", d)
		if err != nil {
			return badRequest(c, "date must be YYYY-MM-DD")
		}
		q.Date = day
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	rides, err := h.Rides.Search(ctx, q)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"rides": toRides(rides, false), "page": q.Page})
}
