package handler // handler defines http handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/ecoride/carpool/internal/apperr"
	"github.com/ecoride/carpool/internal/logging"
	"github.com/ecoride/carpool/internal/model"
)

// requestTimeout bounds the work done for one request.
const requestTimeout = 5 * time.Second

var errNoUser = errors.New("invalid user_id in context")

// getUserID extracts the user_id placed in the context by the JWT middleware.
func getUserID(c echo.Context) (uint64, error) {
	switch t := c.Get("user_id").(type) {
	case uint64:
		if t > 0 {
			return t, nil
		}
	case string:
		if n, err := strconv.ParseUint(t, 10, 64); err == nil && n > 0 {
			return n, nil
		}
	}
	return 0, errNoUser
}

// getRoles returns the caller's roles, empty for anonymous requests.
func getRoles(c echo.Context) model.Roles {
	rs, _ := c.Get("roles").(model.Roles)
	return rs
}

// paramID parses a positive numeric path parameter.
func paramID(c echo.Context, name string) (uint64, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	return id, err == nil && id > 0
}

// queryInt parses an optional integer query parameter.
func queryInt(c echo.Context, name string, def int) int {
	if v := c.QueryParam(name); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func reqCtx(c echo.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request().Context(), requestTimeout)
}

func unauthorized(c echo.Context) error {
	return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
}

func badRequest(c echo.Context, msg string) error {
	return c.JSON(http.StatusBadRequest, echo.Map{"error": msg})
}

// statusOf maps an error kind onto an HTTP status.
func statusOf(err error) int {
	switch {
	case errors.Is(err, apperr.ErrBusy):
		return http.StatusServiceUnavailable
	case errors.Is(err, apperr.ErrUserNotAllowed):
		return http.StatusForbidden
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	}
	switch apperr.KindOf(err) {
	case apperr.KindValidation:
		return http.StatusBadRequest
	case apperr.KindCapacity, apperr.KindConsistency, apperr.KindPolicy:
		return http.StatusConflict
	case apperr.KindFunds:
		return http.StatusPaymentRequired
	case apperr.KindNotFound:
		return http.StatusNotFound
	case apperr.KindForbidden:
		return http.StatusForbidden
	case apperr.KindUnauthorized:
		return http.StatusUnauthorized
	}
	return http.StatusInternalServerError
}

// fail writes err as a JSON error body. Unclassified errors are logged
// and hidden from the client.
func fail(c echo.Context, err error) error {
	status := statusOf(err)
	if status >= http.StatusInternalServerError && status != http.StatusServiceUnavailable {
		logging.Error(c.Request().Context(), "request failed", logging.Component("http"),
			logging.Err(err))
		return c.JSON(status, echo.Map{"error": "internal error", "code": "internal"})
	}
	return c.JSON(status, echo.Map{"error": err.Error(), "code": apperr.CodeOf(err)})
}
