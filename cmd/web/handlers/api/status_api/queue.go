// Package status_api reports broker counters, liveness and per-item progress.
package status_api

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"
	"thirdcoast.systems/haul/cmd/web/handlers/common"
	"thirdcoast.systems/haul/internal/broker"
)

type Counter interface {
	Counts(ctx context.Context) (broker.Counts, error)
}

type queueStatusResponse struct {
	Waiting   int64            `json:"waiting"`
	Active    int64            `json:"active"`
	Delayed   int64            `json:"delayed"`
	Paused    int64            `json:"paused"`
	Completed int64            `json:"completed"`
	Failed    int64            `json:"failed"`
	Counts    map[string]int64 `json:"counts"`
}

// HandleQueueStatus returns the broker's job counts, flat and as a map.
func HandleQueueStatus(b Counter) echo.HandlerFunc {
	return func(c echo.Context) error {
		counts, err := b.Counts(c.Request().Context())
		if err != nil {
			slog.Error("queue counts", "error", err)
			return common.ErrUnavailable("queue unavailable")
		}
		return c.JSON(http.StatusOK, queueStatusResponse{
			Waiting:   counts.Waiting,
			Active:    counts.Active,
			Delayed:   counts.Delayed,
			Paused:    counts.Paused,
			Completed: counts.Completed,
			Failed:    counts.Failed,
			Counts:    counts.Map(),
		})
	}
}
