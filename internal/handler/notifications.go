package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/ecoride/carpool/internal/notify"
)

// NotificationHandler serves the caller's notification feed.
type NotificationHandler struct {
	Feed *notify.Feed
}

func NewNotificationHandler(f *notify.Feed) *NotificationHandler {
	if f == nil {
		panic("nil feed passed to NewNotificationHandler")
	}
	return &NotificationHandler{Feed: f}
}

// List handles GET /v1/notifications?limit=.
func (h *NotificationHandler) List(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return unauthorized(c)
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	ns, err := h.Feed.List(ctx, uid, queryInt(c, "limit", 0))
	if err != nil {
		return fail(c, err)
	}
	unread := 0
	for _, n := range ns {
		if !n.Read {
			unread++
		}
	}
	return c.JSON(http.StatusOK, echo.Map{"notifications": ns, "unread": unread})
}

// MarkRead handles POST /v1/notifications/:id/read.
func (h *NotificationHandler) MarkRead(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return unauthorized(c)
	}
	id, ok := paramID(c, "id")
	if !ok {
		return badRequest(c, "invalid notification id")
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	if err := h.Feed.MarkRead(ctx, uid, id); err != nil {
		return fail(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// MarkAllRead handles POST /v1/notifications/read-all.
func (h *NotificationHandler) MarkAllRead(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return unauthorized(c)
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	n, err := h.Feed.MarkAllRead(ctx, uid)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"updated": n})
}
