// package capture_api accepts captured links from devices.
package capture_api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"
	"thirdcoast.systems/haul/cmd/web/handlers/common"
	"thirdcoast.systems/haul/internal/ingest"
)

type Submitter interface {
	Submit(ctx context.Context, req ingest.Request) (*ingest.Result, error)
}

type createResponse struct {
	ID        string `json:"id"`
	JobID     string `json:"jobId"`
	Status    string `json:"status"`
	Duplicate bool   `json:"duplicate,omitempty"`
}

// HandleCreate answers 201 for a new capture and 200 with duplicate=true
// when the device already sent this link.
func HandleCreate(svc Submitter) echo.HandlerFunc {
	return func(c echo.Context) error {
		var req ingest.Request
		if err := c.Bind(&req); err != nil {
			return common.ErrBadRequest("invalid json")
		}

		res, err := svc.Submit(c.Request().Context(), req)
		if err != nil {
			if errors.Is(err, ingest.ErrValidation) {
				return common.ErrBadRequest(err.Error())
			}
			slog.Error("capture submit failed", "device_id", req.DeviceID, "url", req.URL, "error", err)
			return common.ErrInternal("failed to enqueue")
		}

		resp := createResponse{
			ID:        res.QueueItemID.String(),
			JobID:     res.JobID,
			Status:    string(res.Status),
			Duplicate: res.Duplicate,
		}
		if res.Duplicate {
			return c.JSON(http.StatusOK, resp)
		}
		return c.JSON(http.StatusCreated, resp)
	}
}
