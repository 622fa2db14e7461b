package middleware // middleware provides shared request processing for handlers

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/ecoride/carpool/internal/utils"
)

// bearer returns the raw token of an "Authorization: Bearer" header.
func bearer(c echo.Context) (string, bool) {
	auth := c.Request().Header.Get("Authorization")
	if !strings.HasPrefix(auth, "Bearer ") {
		return "", false
	}
	raw := strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))
	return raw, raw != ""
}

// JWTAuth validates the Bearer access token and stores the caller in the
// context: "user_id" as uint64 and "roles" as model.Roles.
func JWTAuth(secret string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			raw, ok := bearer(c)
			if !ok {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "missing bearer token"})
			}
			uid, roles, err := utils.ParseAccessToken(secret, raw)
			if err != nil {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid token"})
			}
			c.Set("user_id", uid)
			c.Set("roles", roles)
			return next(c)
		}
	}
}

// OptionalJWT identifies the caller when a valid token is present and
// lets anonymous requests through otherwise.
func OptionalJWT(secret string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if raw, ok := bearer(c); ok {
				if uid, roles, err := utils.ParseAccessToken(secret, raw); err == nil {
					c.Set("user_id", uid)
					c.Set("roles", roles)
				}
			}
			return next(c)
		}
	}
}
