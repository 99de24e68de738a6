package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/hall-calendar/internal/handler"
)

// RegisterBookings registers the endpoints shared by users and admins.
// Ownership of individual bookings is checked by the service, so a user
// reaching another user's booking gets 403.
func RegisterBookings(e *echo.Echo, h *handler.BookingHandler, jwtSecret string) {
	mw := signedIn(jwtSecret)
	g := e.Group("/v1")
	g.POST("/halls/:id/bookings", h.Create, mw...)
	g.GET("/halls/:id/bookings", h.HallBookings, mw...)
	g.GET("/bookings/:id", h.Get, mw...)
	g.PUT("/bookings/:id", h.Update, mw...)
	g.PATCH("/bookings/:id", h.Update, mw...)
	g.POST("/bookings/:id/confirm", h.Confirm, mw...)
	g.GET("/bookings/:id/receipt", h.Receipt, mw...)
	g.GET("/search", h.Search, mw...)
}
