package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
)

// Pinger is implemented by dependencies that can report readiness, such
// as the MySQL pool.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// PingFunc adapts a function to Pinger.
type PingFunc func(ctx context.Context) error

func (f PingFunc) PingContext(ctx context.Context) error { return f(ctx) }

// Health returns a liveness/readiness handler. With no pingers it only
// reports that the process is up.
func Health(deps map[string]Pinger) echo.HandlerFunc {
	return func(c echo.Context) error {
		if len(deps) == 0 {
			return c.String(http.StatusOK, "ok")
		}
		ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
		defer cancel()

		status := http.StatusOK
		checks := make(map[string]string, len(deps))
		for name, p := range deps {
			if err := p.PingContext(ctx); err != nil {
				checks[name] = err.Error()
				status = http.StatusServiceUnavailable
				continue
			}
			checks[name] = "ok"
		}
		return c.JSON(status, echo.Map{"status": http.StatusText(status), "checks": checks})
	}
}
