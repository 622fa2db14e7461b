package router

import (
	"github.com/labstack/echo/v4"

	"github.com/ecoride/carpool/internal/middleware"
	"github.com/ecoride/carpool/internal/model"
)

// RegisterMember registers the endpoints of signed-in users. Ride
// management additionally requires the driver role; write routes go
// through the rate limiter.
func RegisterMember(e *echo.Echo, h Handlers, jwtSecret string, mw Middleware) {
	g := e.Group("/v1", middleware.JWTAuth(jwtSecret))
	limited := use(mw.RateLimit)
	driver := append([]echo.MiddlewareFunc{middleware.RequireRole(model.RoleDriver)}, limited...)

	// ---- Vehicles ----
	// Registering a vehicle grants the driver role; it shows up in the
	// token after the next refresh.
	g.POST("/vehicles", h.Vehicles.Create, limited...)
	g.GET("/vehicles", h.Vehicles.List)
	g.PATCH("/vehicles/:id", h.Vehicles.UpdateSeats, limited...)

	// ---- Rides (driver) ----
	g.POST("/rides", h.Rides.Create, driver...)
	g.GET("/rides/mine", h.Rides.Mine, middleware.RequireRole(model.RoleDriver))
	g.POST("/rides/:id/publish", h.Rides.Publish, driver...)
	g.POST("/rides/:id/start", h.Rides.Start, driver...)
	g.POST("/rides/:id/complete", h.Rides.Complete, driver...)
	// Cancel is open to staff too; the lifecycle checks the actor.
	g.POST("/rides/:id/cancel", h.Rides.Cancel, limited...)

	// ---- Bookings (passenger) ----
	g.POST("/rides/:id/bookings", h.Bookings.Book, limited...)
	g.DELETE("/rides/:id/bookings", h.Bookings.Cancel, limited...)
	g.GET("/bookings", h.Bookings.Mine)
	g.POST("/rides/:id/confirm", h.Rides.Confirm, limited...)

	// ---- Reviews ----
	g.POST("/rides/:id/reviews", h.Reviews.Submit, limited...)
	g.POST("/reviews/:id/dispute", h.Reviews.Dispute, limited...)

	// ---- Notifications and credits ----
	g.GET("/notifications", h.Notifications.List)
	g.POST("/notifications/read-all", h.Notifications.MarkAllRead)
	g.POST("/notifications/:id/read", h.Notifications.MarkRead)
	g.GET("/credits", h.Credits.Statement)
}
