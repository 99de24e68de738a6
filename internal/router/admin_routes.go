package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/hall-calendar/internal/handler"
	"github.com/iliyamo/hall-calendar/internal/middleware"
	"github.com/iliyamo/hall-calendar/internal/policy"
)

// RegisterAdmin registers the administrator endpoints: booking deletion,
// exports, backup and restore.  Each route is gated by the policy
// operation it performs.
func RegisterAdmin(e *echo.Echo, h *handler.AdminHandler, jwtSecret string) {
	jwt := middleware.JWTAuth(jwtSecret)

	e.DELETE("/v1/bookings/:id", h.DeleteBooking, jwt, middleware.RequireOperation(policy.Delete))

	g := e.Group("/v1/admin")
	export := middleware.RequireOperation(policy.Export)
	g.GET("/export.csv", h.ExportCSV, jwt, export)
	g.GET("/export.pdf", h.ExportPDF, jwt, export)

	backups := middleware.RequireOperation(policy.Backup)
	g.GET("/backup", h.Backup, jwt, backups)
	g.POST("/restore", h.Restore, jwt, backups)
}
