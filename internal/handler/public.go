package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// These routes need no token and are served through the response cache.
// The calendar carries slot occupancy only, never client data.

// Halls handles GET /v1/halls.
func (h *BookingHandler) Halls(c echo.Context) error {
	ctx, cancel := requestContext(c)
	defer cancel()
	halls, err := h.Bookings.Halls(ctx)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"items": halls})
}

// Calendar handles GET /v1/halls/:id/calendar?year=&month=.  Year and
// month default to the current month.
func (h *BookingHandler) Calendar(c echo.Context) error {
	hallID, ok := paramID(c, "id")
	if !ok {
		return badRequest(c, "invalid hall id")
	}
	year, month, ok := monthParams(c, h.Clock.Now())
	if !ok {
		return badRequest(c, "year and month must be numbers")
	}
	ctx, cancel := requestContext(c)
	defer cancel()
	hall, cal, err := h.Bookings.Calendar(ctx, hallID, year, month)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"hall": hall, "calendar": cal})
}
