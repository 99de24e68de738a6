// Package handler exposes the HTTP API on top of the booking and backup
// services.  Handlers bind and check request shapes, call exactly one
// service operation, and map its error onto a status code.
package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/hall-calendar/internal/backup"
	"github.com/iliyamo/hall-calendar/internal/service"
)

// dbTimeout bounds the database work of one request.
const dbTimeout = 5 * time.Second

func requestContext(c echo.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request().Context(), dbTimeout)
}

// errorStatus maps service and backup errors onto HTTP statuses.
// Anything unrecognized is a 500.
func errorStatus(err error) int {
	var rerr *backup.RestoreError
	switch {
	case errors.Is(err, service.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, service.ErrSlotTaken):
		return http.StatusConflict
	case errors.Is(err, service.ErrAccessDenied):
		return http.StatusForbidden
	case errors.Is(err, service.ErrInvalidPassword):
		return http.StatusUnauthorized
	case errors.Is(err, service.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, backup.ErrInvalidArchive):
		return http.StatusBadRequest
	case errors.As(err, &rerr):
		return http.StatusUnprocessableEntity
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	}
	return http.StatusInternalServerError
}

// writeError renders {"error": ...} and, for validation failures,
// "fields".  Internal errors are logged and answered with a generic
// message.
func writeError(c echo.Context, log *slog.Logger, err error) error {
	status := errorStatus(err)
	body := echo.Map{"error": err.Error()}

	var verr *service.ValidationError
	if errors.As(err, &verr) {
		body["error"] = service.ErrValidation.Error()
		body["fields"] = verr.Fields
	}
	if status >= http.StatusInternalServerError {
		log.ErrorContext(c.Request().Context(), "request failed",
			"method", c.Request().Method, "path", c.Path(), "err", err)
		body["error"] = http.StatusText(status)
	}
	return c.JSON(status, body)
}

func badRequest(c echo.Context, msg string) error {
	return c.JSON(http.StatusBadRequest, echo.Map{"error": msg})
}

// paramID reads a positive numeric path parameter.
func paramID(c echo.Context, name string) (uint64, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	return id, err == nil && id > 0
}

// monthParams reads ?year=&month=, defaulting to the month of now.
func monthParams(c echo.Context, now time.Time) (int, time.Month, bool) {
	year, month := now.Year(), now.Month()
	if v := c.QueryParam("year"); v != "" {
		y, err := strconv.Atoi(v)
		if err != nil {
			return 0, 0, false
		}
		year = y
	}
	if v := c.QueryParam("month"); v != "" {
		m, err := strconv.Atoi(v)
		if err != nil {
			return 0, 0, false
		}
		month = time.Month(m)
	}
	return year, month, true
}
