package handler

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/hall-calendar/internal/clock"
	"github.com/iliyamo/hall-calendar/internal/middleware"
	"github.com/iliyamo/hall-calendar/internal/model"
	"github.com/iliyamo/hall-calendar/internal/report"
	"github.com/iliyamo/hall-calendar/internal/service"
)

// BookingAPI is the part of service.BookingService the HTTP layer uses.
type BookingAPI interface {
	Create(ctx context.Context, actor model.Actor, in service.CreateBookingInput) (model.BookingView, error)
	Get(ctx context.Context, actor model.Actor, id uint64) (model.BookingView, error)
	Update(ctx context.Context, actor model.Actor, id uint64, in service.UpdateBookingInput) (model.BookingView, error)
	Confirm(ctx context.Context, actor model.Actor, id uint64) (model.BookingView, error)
	Delete(ctx context.Context, actor model.Actor, id uint64, password string) error
	Halls(ctx context.Context) ([]model.HallSummary, error)
	Calendar(ctx context.Context, hallID uint64, year int, month time.Month) (model.Hall, report.CalendarMonth, error)
	HallBookings(ctx context.Context, actor model.Actor, hallID uint64, year int, month time.Month, filter model.BookingFilter) ([]model.BookingView, error)
	Search(ctx context.Context, actor model.Actor, query string) ([]model.BookingView, error)
	Export(ctx context.Context, actor model.Actor) ([]model.BookingView, error)
}

// BookingHandler serves the booking endpoints for users and admins.
type BookingHandler struct {
	Bookings BookingAPI
	Clock    clock.Clock
	Log      *slog.Logger
}

func NewBookingHandler(bookings BookingAPI, clk clock.Clock, logger *slog.Logger) *BookingHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &BookingHandler{Bookings: bookings, Clock: clk, Log: logger}
}

type createBookingReq struct {
	Date string `json:"date"`
	Slot string `json:"time_slot"`
	service.BookingDetails
}

// Create handles POST /v1/halls/:id/bookings.
func (h *BookingHandler) Create(c echo.Context) error {
	hallID, ok := paramID(c, "id")
	if !ok {
		return badRequest(c, "invalid hall id")
	}
	var req createBookingReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	in := service.CreateBookingInput{HallID: hallID, Slot: req.Slot, BookingDetails: req.BookingDetails}
	if strings.TrimSpace(req.Date) != "" {
		d, err := model.ParseDate(req.Date)
		if err != nil {
			return writeError(c, h.Log, &service.ValidationError{Fields: map[string]string{"date": "date"}})
		}
		in.Date = d
	}

	ctx, cancel := requestContext(c)
	defer cancel()
	b, err := h.Bookings.Create(ctx, middleware.ActorFrom(c), in)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusCreated, b)
}

// Get handles GET /v1/bookings/:id.
func (h *BookingHandler) Get(c echo.Context) error {
	id, ok := paramID(c, "id")
	if !ok {
		return badRequest(c, "invalid booking id")
	}
	ctx, cancel := requestContext(c)
	defer cancel()
	b, err := h.Bookings.Get(ctx, middleware.ActorFrom(c), id)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, b)
}

// Update handles PUT and PATCH /v1/bookings/:id.  Absent fields keep
// their value.
func (h *BookingHandler) Update(c echo.Context) error {
	id, ok := paramID(c, "id")
	if !ok {
		return badRequest(c, "invalid booking id")
	}
	var in service.UpdateBookingInput
	if err := c.Bind(&in); err != nil {
		return badRequest(c, "invalid body")
	}
	ctx, cancel := requestContext(c)
	defer cancel()
	b, err := h.Bookings.Update(ctx, middleware.ActorFrom(c), id, in)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, b)
}

// Confirm handles POST /v1/bookings/:id/confirm.
func (h *BookingHandler) Confirm(c echo.Context) error {
	id, ok := paramID(c, "id")
	if !ok {
		return badRequest(c, "invalid booking id")
	}
	ctx, cancel := requestContext(c)
	defer cancel()
	b, err := h.Bookings.Confirm(ctx, middleware.ActorFrom(c), id)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, b)
}

// Receipt handles GET /v1/bookings/:id/receipt and answers with a PDF.
func (h *BookingHandler) Receipt(c echo.Context) error {
	id, ok := paramID(c, "id")
	if !ok {
		return badRequest(c, "invalid booking id")
	}
	ctx, cancel := requestContext(c)
	defer cancel()
	b, err := h.Bookings.Get(ctx, middleware.ActorFrom(c), id)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	var buf bytes.Buffer
	if err := report.WriteReceiptPDF(&buf, b); err != nil {
		return writeError(c, h.Log, fmt.Errorf("render receipt: %w", err))
	}
	attachment(c, "booking_"+b.Code+".pdf")
	return c.Blob(http.StatusOK, "application/pdf", buf.Bytes())
}

// HallBookings handles GET /v1/halls/:id/bookings?year=&month=&filter=.
func (h *BookingHandler) HallBookings(c echo.Context) error {
	hallID, ok := paramID(c, "id")
	if !ok {
		return badRequest(c, "invalid hall id")
	}
	year, month, ok := monthParams(c, h.Clock.Now())
	if !ok {
		return badRequest(c, "year and month must be numbers")
	}
	filter, ok := model.ParseBookingFilter(c.QueryParam("filter"))
	if !ok {
		return badRequest(c, "filter must be one of total, confirmed, pending, day, night")
	}
	ctx, cancel := requestContext(c)
	defer cancel()
	items, err := h.Bookings.HallBookings(ctx, middleware.ActorFrom(c), hallID, year, month, filter)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"items": items, "filter": filter})
}

// Search handles GET /v1/search?q=.  The query is a month such as
// "june 2025" or a fragment of a booking code, client name or phone.
func (h *BookingHandler) Search(c echo.Context) error {
	ctx, cancel := requestContext(c)
	defer cancel()
	items, err := h.Bookings.Search(ctx, middleware.ActorFrom(c), c.QueryParam("q"))
	if err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"items": items})
}

func attachment(c echo.Context, name string) {
	c.Response().Header().Set(echo.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", name))
}
