package middleware

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/ecoride/carpool/internal/model"
)

// RequireRole aborts with 403 unless the caller holds one of roles. It
// runs after JWTAuth, which stores the roles under "roles".
func RequireRole(roles ...model.Role) echo.MiddlewareFunc {
	allowed := model.NewRoles(roles...)
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			have, ok := c.Get("roles").(model.Roles)
			if !ok || have&allowed == 0 {
				return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
			}
			return next(c)
		}
	}
}

// RequireStaff admits employees and admins.
func RequireStaff() echo.MiddlewareFunc {
	return RequireRole(model.RoleEmployee, model.RoleAdmin)
}
