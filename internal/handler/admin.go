package handler

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/hall-calendar/internal/backup"
	"github.com/iliyamo/hall-calendar/internal/clock"
	"github.com/iliyamo/hall-calendar/internal/middleware"
	"github.com/iliyamo/hall-calendar/internal/model"
	"github.com/iliyamo/hall-calendar/internal/policy"
	"github.com/iliyamo/hall-calendar/internal/report"
)

// BackupAPI is the part of backup.Service the admin endpoints use.
type BackupAPI interface {
	Backup(ctx context.Context, w io.Writer) (backup.Manifest, error)
	Restore(ctx context.Context, a backup.Archive) (backup.RestoreResult, error)
}

// backupTimeout replaces dbTimeout for whole-database operations.
const backupTimeout = 2 * time.Minute

// maxArchiveBytes caps uploaded restore archives.
const maxArchiveBytes = 64 << 20

// AdminHandler serves the administrator-only endpoints.
type AdminHandler struct {
	Bookings BookingAPI
	Backups  BackupAPI
	Clock    clock.Clock
	Log      *slog.Logger
}

func NewAdminHandler(bookings BookingAPI, backups BackupAPI, clk clock.Clock, logger *slog.Logger) *AdminHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &AdminHandler{Bookings: bookings, Backups: backups, Clock: clk, Log: logger}
}

type deleteReq struct {
	Password string `json:"password"`
}

// DeleteBooking handles DELETE /v1/bookings/:id.  The administrator must
// repeat their password in the body.
func (h *AdminHandler) DeleteBooking(c echo.Context) error {
	id, ok := paramID(c, "id")
	if !ok {
		return badRequest(c, "invalid booking id")
	}
	var req deleteReq
	if err := c.Bind(&req); err != nil || req.Password == "" {
		return badRequest(c, "password required")
	}
	ctx, cancel := requestContext(c)
	defer cancel()
	if err := h.Bookings.Delete(ctx, middleware.ActorFrom(c), id, req.Password); err != nil {
		return writeError(c, h.Log, err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *AdminHandler) exportRows(c echo.Context) ([]model.BookingView, error) {
	ctx, cancel := requestContext(c)
	defer cancel()
	return h.Bookings.Export(ctx, middleware.ActorFrom(c))
}

// ExportCSV handles GET /v1/admin/export.csv.
func (h *AdminHandler) ExportCSV(c echo.Context) error {
	rows, err := h.exportRows(c)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	var buf bytes.Buffer
	if err := report.WriteCSV(&buf, rows); err != nil {
		return writeError(c, h.Log, fmt.Errorf("render csv: %w", err))
	}
	attachment(c, h.fileName("bookings", "csv"))
	return c.Blob(http.StatusOK, "text/csv; charset=utf-8", buf.Bytes())
}

// ExportPDF handles GET /v1/admin/export.pdf.
func (h *AdminHandler) ExportPDF(c echo.Context) error {
	rows, err := h.exportRows(c)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	var buf bytes.Buffer
	if err := report.WriteListingPDF(&buf, rows, h.Clock.Now()); err != nil {
		return writeError(c, h.Log, fmt.Errorf("render pdf: %w", err))
	}
	attachment(c, h.fileName("bookings", "pdf"))
	return c.Blob(http.StatusOK, "application/pdf", buf.Bytes())
}

// Backup handles GET /v1/admin/backup and streams a zip archive.
func (h *AdminHandler) Backup(c echo.Context) error {
	if err := policy.Authorize(middleware.ActorFrom(c), policy.Backup, policy.NoOwner); err != nil {
		return writeError(c, h.Log, err)
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), backupTimeout)
	defer cancel()

	// Buffer first so a failed snapshot still yields a JSON error.
	var buf bytes.Buffer
	m, err := h.Backups.Backup(ctx, &buf)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	c.Response().Header().Set("X-Backup-ID", m.ID)
	attachment(c, h.fileName("backup", "zip"))
	return c.Blob(http.StatusOK, "application/zip", buf.Bytes())
}

// Restore handles POST /v1/admin/restore with the archive in the
// multipart field "archive".  The current content of the backed up
// tables is replaced.
func (h *AdminHandler) Restore(c echo.Context) error {
	if err := policy.Authorize(middleware.ActorFrom(c), policy.Backup, policy.NoOwner); err != nil {
		return writeError(c, h.Log, err)
	}
	fh, err := c.FormFile("archive")
	if err != nil {
		return badRequest(c, "multipart field \"archive\" required")
	}
	if fh.Size > maxArchiveBytes {
		return c.JSON(http.StatusRequestEntityTooLarge, echo.Map{"error": "archive too large"})
	}
	f, err := fh.Open()
	if err != nil {
		return badRequest(c, "cannot read archive")
	}
	defer f.Close()
	body, err := io.ReadAll(io.LimitReader(f, maxArchiveBytes+1))
	if err != nil {
		return badRequest(c, "cannot read archive")
	}
	a, err := backup.ReadArchiveBytes(body)
	if err != nil {
		return writeError(c, h.Log, err)
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), backupTimeout)
	defer cancel()
	res, err := h.Backups.Restore(ctx, a)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	h.Log.InfoContext(ctx, "restore requested", "by", middleware.ActorFrom(c).UserID, "backup_id", a.Manifest.ID)
	return c.JSON(http.StatusOK, res)
}

func (h *AdminHandler) fileName(prefix, ext string) string {
	return fmt.Sprintf("%s_%s.%s", prefix, h.Clock.Now().Format("20060102_150405"), ext)
}
