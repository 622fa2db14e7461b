package router

import (
	"github.com/labstack/echo/v4"

	"github.com/ecoride/carpool/internal/handler"
	"github.com/ecoride/carpool/internal/middleware"
)

// RegisterStaff registers the employee and admin endpoints under
// /v1/staff.
func RegisterStaff(e *echo.Echo, s *handler.StaffHandler, jwtSecret string) {
	g := e.Group("/v1/staff", middleware.JWTAuth(jwtSecret), middleware.RequireStaff())

	g.GET("/rides", s.RideQueue)
	g.POST("/rides/:id/decision", s.DecideRide)
	g.GET("/reviews", s.ReviewQueue)
	g.POST("/reviews/:id/decision", s.DecideReview)
	g.PUT("/users/:id/status", s.SetStatus)
	g.POST("/users/:id/credits", s.GrantCredits)
}
