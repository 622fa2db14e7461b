// Package router registers the HTTP routes of the carpool API.
package router

import (
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	"github.com/ecoride/carpool/internal/handler"
	"github.com/ecoride/carpool/internal/middleware"
)

// Handlers bundles everything the routes dispatch to.
type Handlers struct {
	Auth          *handler.AuthHandler
	Vehicles      *handler.VehicleHandler
	Rides         *handler.RideHandler
	Bookings      *handler.BookingHandler
	Reviews       *handler.ReviewHandler
	Notifications *handler.NotificationHandler
	Credits       *handler.CreditHandler
	Staff         *handler.StaffHandler
	Health        echo.HandlerFunc
}

// Middleware holds the optional Redis-backed layers. Nil entries are
// skipped.
type Middleware struct {
	RateLimit echo.MiddlewareFunc
	Cache     echo.MiddlewareFunc
}

// New builds the echo instance with every route registered.
func New(h Handlers, mw Middleware, jwtSecret string) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.Validator = handler.NewValidator()
	e.Use(echomw.Recover())

	RegisterRoutes(e, h.Health)
	RegisterAuth(e, h.Auth, jwtSecret, mw)
	RegisterPublic(e, h.Rides, h.Reviews, jwtSecret, mw)
	RegisterMember(e, h, jwtSecret, mw)
	RegisterStaff(e, h.Staff, jwtSecret)
	return e
}

func use(mws ...echo.MiddlewareFunc) []echo.MiddlewareFunc {
	out := make([]echo.MiddlewareFunc, 0, len(mws))
	for _, m := range mws {
		if m != nil {
			out = append(out, m)
		}
	}
	return out
}

// RegisterRoutes registers the health check.
func RegisterRoutes(e *echo.Echo, health echo.HandlerFunc) {
	if health == nil {
		health = handler.Health(nil)
	}
	e.GET("/healthz", health)
}

// RegisterAuth registers sign-up, sign-in and token rotation under
// /v1/auth, plus the authenticated /v1/me and logout.
func RegisterAuth(e *echo.Echo, a *handler.AuthHandler, jwtSecret string, mw Middleware) {
	g := e.Group("/v1/auth", use(mw.RateLimit)...)
	g.POST("/register", a.Register)
	g.POST("/login", a.Login)
	g.POST("/refresh", a.Refresh)
	g.POST("/logout", a.Logout, middleware.JWTAuth(jwtSecret))

	e.GET("/v1/me", a.Me, middleware.JWTAuth(jwtSecret))
}

// RegisterPublic registers the browse endpoints. A token is optional; the
// driver of a ride and staff see its moderation record.
func RegisterPublic(e *echo.Echo, r *handler.RideHandler, rv *handler.ReviewHandler, jwtSecret string, mw Middleware) {
	e.GET("/v1/rides/search", r.Search, use(mw.Cache)...)
	e.GET("/v1/rides/:id", r.Get, middleware.OptionalJWT(jwtSecret))
	e.GET("/v1/users/:id/rating", rv.Rating, use(mw.Cache)...)
}
