package status_api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
)

type Pinger interface {
	Ping(ctx context.Context) error
}

type healthResponse struct {
	Status    string `json:"status"`
	Message   string `json:"message"`
	Timestamp string `json:"timestamp"`
}

const healthTimeout = 3 * time.Second

// HandleHealth pings every dependency; any failure answers 503 so clients
// treat the server as unreachable.
func HandleHealth(deps map[string]Pinger) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx, cancel := context.WithTimeout(c.Request().Context(), healthTimeout)
		defer cancel()

		now := time.Now().UTC().Format(time.RFC3339)
		for name, dep := range deps {
			if err := dep.Ping(ctx); err != nil {
				slog.Warn("health check failed", "dependency", name, "error", err)
				return c.JSON(http.StatusServiceUnavailable, healthResponse{
					Status:    "error",
					Message:   name + " unavailable",
					Timestamp: now,
				})
			}
		}
		return c.JSON(http.StatusOK, healthResponse{
			Status:    "ok",
			Message:   "service is running",
			Timestamp: now,
		})
	}
}
