package status_api

import (
	"context"
	"log/slog"

	"github.com/labstack/echo/v4"
	"thirdcoast.systems/haul/cmd/web/handlers/common"
)

type Controller interface {
	Counter
	Pause(ctx context.Context) error
	Resume(ctx context.Context) error
}

// HandlePause parks waiting jobs so workers stop picking up new captures.
// Jobs already active run to completion.
func HandlePause(b Controller) echo.HandlerFunc {
	return func(c echo.Context) error {
		if err := b.Pause(c.Request().Context()); err != nil {
			slog.Error("pause queue", "error", err)
			return common.ErrUnavailable("queue unavailable")
		}
		slog.Info("queue paused", "request_id", c.Response().Header().Get(echo.HeaderXRequestID))
		return HandleQueueStatus(b)(c)
	}
}

func HandleResume(b Controller) echo.HandlerFunc {
	return func(c echo.Context) error {
		if err := b.Resume(c.Request().Context()); err != nil {
			slog.Error("resume queue", "error", err)
			return common.ErrUnavailable("queue unavailable")
		}
		slog.Info("queue resumed", "request_id", c.Response().Header().Get(echo.HeaderXRequestID))
		return HandleQueueStatus(b)(c)
	}
}
