package common

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"thirdcoast.systems/haul/cmd/web/ctxkeys"
)

const DeviceHeader = "X-Device-ID"

// RequireUUIDParam extracts a UUID route parameter or returns a 400 error.
func RequireUUIDParam(c echo.Context, param string) (uuid.UUID, error) {
	u, err := uuid.Parse(c.Param(param))
	if err != nil {
		return uuid.Nil, echo.NewHTTPError(http.StatusBadRequest, "invalid "+param)
	}
	return u, nil
}

// RequireDevice rejects requests without a device header and stores the id
// on the request context for DeviceID.
func RequireDevice(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		id := strings.TrimSpace(c.Request().Header.Get(DeviceHeader))
		if id == "" {
			return ErrBadRequest("missing device id")
		}
		ctx := context.WithValue(c.Request().Context(), ctxkeys.DeviceID, id)
		c.SetRequest(c.Request().WithContext(ctx))
		return next(c)
	}
}

// DeviceID returns the id stored by RequireDevice.
func DeviceID(c echo.Context) (string, error) {
	id, _ := c.Request().Context().Value(ctxkeys.DeviceID).(string)
	if id == "" {
		return "", ErrBadRequest("missing device id")
	}
	return id, nil
}

// QueryLimit parses ?limit=, returning 0 when absent.
func QueryLimit(c echo.Context) (uint64, error) {
	raw := c.QueryParam("limit")
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.ParseUint(raw, 10, 32)
	if err != nil {
		return 0, ErrBadRequest("invalid limit")
	}
	return n, nil
}
