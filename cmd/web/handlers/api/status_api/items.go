package status_api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"thirdcoast.systems/haul/cmd/web/handlers/common"
	"thirdcoast.systems/haul/internal/broker"
	"thirdcoast.systems/haul/internal/db"
	"thirdcoast.systems/haul/internal/linkid"
)

type JobStater interface {
	State(ctx context.Context, id string) (broker.State, error)
}

type itemResponse struct {
	ID        string         `json:"id"`
	DeviceID  string         `json:"deviceId"`
	URL       string         `json:"url"`
	Status    db.QueueStatus `json:"status"`
	Error     string         `json:"error,omitempty"`
	JobID     string         `json:"jobId"`
	JobState  broker.State   `json:"jobState"`
	CreatedAt time.Time      `json:"createdAt"`
	UpdatedAt time.Time      `json:"updatedAt"`
}

func toItemResponse(ctx context.Context, jobs JobStater, item *db.QueueItem) itemResponse {
	jobID := linkid.JobIdentity(item.DeviceID, item.URL)
	state, err := jobs.State(ctx, jobID)
	if err != nil {
		slog.Warn("job state lookup failed", "job_id", jobID, "error", err)
		state = broker.StateUnknown
	}
	return itemResponse{
		ID:        item.ID.String(),
		DeviceID:  item.DeviceID,
		URL:       item.URL,
		Status:    item.Status,
		Error:     common.Deref(item.LastError),
		JobID:     jobID,
		JobState:  state,
		CreatedAt: item.CreatedAt,
		UpdatedAt: item.UpdatedAt,
	}
}

// HandleListItems lists queue items, newest first, filtered by ?status=,
// ?deviceId= and ?limit=.
func HandleListItems(store *db.Store, jobs JobStater) echo.HandlerFunc {
	return func(c echo.Context) error {
		filter := db.QueueItemFilter{
			DeviceID: c.QueryParam("deviceId"),
			Status:   db.QueueStatus(c.QueryParam("status")),
		}
		if filter.Status != "" && !filter.Status.Valid() {
			return common.ErrBadRequest("invalid status")
		}
		limit, err := common.QueryLimit(c)
		if err != nil {
			return err
		}
		filter.Limit = limit

		ctx := c.Request().Context()
		items, err := store.Queries().ListQueueItems(ctx, filter)
		if err != nil {
			slog.Error("list queue items", "error", err)
			return common.ErrInternal("failed to list queue items")
		}

		out := make([]itemResponse, 0, len(items))
		for i := range items {
			out = append(out, toItemResponse(ctx, jobs, &items[i]))
		}
		return c.JSON(http.StatusOK, map[string]any{"items": out})
	}
}

// HandleGetItem returns one queue item with its job state.
func HandleGetItem(store *db.Store, jobs JobStater) echo.HandlerFunc {
	return func(c echo.Context) error {
		id, err := common.RequireUUIDParam(c, "id")
		if err != nil {
			return err
		}

		ctx := c.Request().Context()
		item, err := store.Queries().GetQueueItem(ctx, id)
		if errors.Is(err, db.ErrNotFound) {
			return common.ErrNotFound("queue item not found")
		}
		if err != nil {
			slog.Error("get queue item", "id", id, "error", err)
			return common.ErrInternal("failed to load queue item")
		}
		return c.JSON(http.StatusOK, toItemResponse(ctx, jobs, item))
	}
}
