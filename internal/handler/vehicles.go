package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/ecoride/carpool/internal/registry"
)

// VehicleHandler manages the vehicles of the calling driver.
type VehicleHandler struct {
	Registry *registry.Registry
}

func NewVehicleHandler(r *registry.Registry) *VehicleHandler {
	if r == nil {
		panic("nil registry passed to NewVehicleHandler")
	}
	return &VehicleHandler{Registry: r}
}

type vehicleReq struct {
	Brand string `json:"brand" validate:"required,max=64"`
	Model string `json:"model" validate:"required,max=64"`
	Plate string `json:"plate" validate:"required,max=32"`
	Seats int    `json:"seats" validate:"required,gt=0,lte=8"`
}

type seatsReq struct {
	Seats int `json:"seats" validate:"required,gt=0,lte=8"`
}

// Create handles POST /v1/vehicles.
func (h *VehicleHandler) Create(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return unauthorized(c)
	}
	var req vehicleReq
	if msg, ok := bind(c, &req); !ok {
		return badRequest(c, msg)
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	v, err := h.Registry.RegisterVehicle(ctx, uid, registry.VehicleInput{
		Brand: req.Brand,
		Model: req.Model,
		Plate: req.Plate,
		Seats: req.Seats,
	})
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusCreated, toVehicle(v))
}

// List handles GET /v1/vehicles.
func (h *VehicleHandler) List(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return unauthorized(c)
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	vs, err := h.Registry.Vehicles(ctx, uid)
	if err != nil {
		return fail(c, err)
	}
	out := make([]vehicleResp, 0, len(vs))
	for i := range vs {
		out = append(out, toVehicle(&vs[i]))
	}
	return c.JSON(http.StatusOK, echo.Map{"vehicles": out})
}

// UpdateSeats handles PATCH /v1/vehicles/:id.
func (h *VehicleHandler) UpdateSeats(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return unauthorized(c)
	}
	vehicleID, ok := paramID(c, "id")
	if !ok {
		return badRequest(c, "invalid vehicle id")
	}
	var req seatsReq
	if msg, ok := bind(c, &req); !ok {
		return badRequest(c, msg)
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	if err := h.Registry.UpdateSeats(ctx, uid, vehicleID, req.Seats); err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"id": vehicleID, "seats": req.Seats})
}
