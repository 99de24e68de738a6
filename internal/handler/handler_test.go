package handler

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/hall-calendar/internal/backup"
	"github.com/iliyamo/hall-calendar/internal/clock"
	"github.com/iliyamo/hall-calendar/internal/config"
	"github.com/iliyamo/hall-calendar/internal/database"
	"github.com/iliyamo/hall-calendar/internal/middleware"
	"github.com/iliyamo/hall-calendar/internal/model"
	"github.com/iliyamo/hall-calendar/internal/repository"
	"github.com/iliyamo/hall-calendar/internal/schema"
	"github.com/iliyamo/hall-calendar/internal/service"
	"github.com/iliyamo/hall-calendar/internal/utils"
)

const testSecret = "handler-secret"

var (
	admin = model.Actor{UserID: 1, Role: model.RoleAdmin}
	alice = model.Actor{UserID: 2, Role: model.RoleUser}
)

type call struct {
	method, route, target string
	body                  io.Reader
	contentType           string
	actor                 model.Actor
}

// do routes one request through a fresh Echo instance.  Authenticated
// actors get a real access token checked by JWTAuth.
func do(t *testing.T, h echo.HandlerFunc, c call) *httptest.ResponseRecorder {
	t.Helper()
	e := echo.New()
	var mws []echo.MiddlewareFunc
	if c.actor.Authenticated() {
		mws = append(mws, middleware.JWTAuth(testSecret))
	}
	e.Add(c.method, c.route, h, mws...)

	req := httptest.NewRequest(c.method, c.target, c.body)
	if c.contentType != "" {
		req.Header.Set(echo.HeaderContentType, c.contentType)
	} else if c.body != nil {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	if c.actor.Authenticated() {
		tok, err := utils.NewAccessToken(testSecret, c.actor.UserID, c.actor.Role, 5)
		if err != nil {
			t.Fatalf("token: %v", err)
		}
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+tok.Token)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestErrorStatus(t *testing.T) {
	t.Parallel()

	tests := []struct {
		err  error
		want int
	}{
		{&service.ValidationError{Fields: map[string]string{"phone": "required"}}, http.StatusBadRequest},
		{service.ErrSlotTaken, http.StatusConflict},
		{service.ErrAccessDenied, http.StatusForbidden},
		{service.ErrInvalidPassword, http.StatusUnauthorized},
		{fmt.Errorf("wrapped: %w", service.ErrNotFound), http.StatusNotFound},
		{backup.ErrInvalidArchive, http.StatusBadRequest},
		{&backup.RestoreError{Phase: backup.PhaseData, Err: errors.New("x")}, http.StatusUnprocessableEntity},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		if got := errorStatus(tt.err); got != tt.want {
			t.Errorf("%v: expected %d, got %d", tt.err, tt.want, got)
		}
	}
}

func TestCreateBooking(t *testing.T) {
	t.Parallel()

	valid := `{"date":"2025-06-14","time_slot":"night","client_name":"Priya","phone":"9999999999","address":"Chennai","total_amount":150000}`
	tests := []struct {
		name           string
		target         string
		body           string
		serviceErr     error
		expectedStatus int
		expectedSubstr string
	}{
		{name: "success", target: "/v1/halls/1/bookings", body: valid, expectedStatus: http.StatusCreated, expectedSubstr: `"code":"042917"`},
		{name: "invalid hall id", target: "/v1/halls/x/bookings", body: valid, expectedStatus: http.StatusBadRequest},
		{name: "invalid json", target: "/v1/halls/1/bookings", body: `{"date":`, expectedStatus: http.StatusBadRequest},
		{name: "impossible date", target: "/v1/halls/1/bookings", body: `{"date":"2025-02-30","time_slot":"day"}`, expectedStatus: http.StatusBadRequest, expectedSubstr: `"fields":{"date":"date"}`},
		{name: "slot taken", target: "/v1/halls/1/bookings", body: valid, serviceErr: service.ErrSlotTaken, expectedStatus: http.StatusConflict},
		{name: "hall missing", target: "/v1/halls/9/bookings", body: valid, serviceErr: service.ErrNotFound, expectedStatus: http.StatusNotFound},
		{name: "internal error", target: "/v1/halls/1/bookings", body: valid, serviceErr: errors.New("db down"), expectedStatus: http.StatusInternalServerError, expectedSubstr: "Internal Server Error"},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			svc := &stubBookings{booking: sampleBooking(), err: tt.serviceErr}
			h := NewBookingHandler(svc, clock.NewFixed(testNow), quiet)
			rec := do(t, h.Create, call{
				method: http.MethodPost, route: "/v1/halls/:id/bookings", target: tt.target,
				body: strings.NewReader(tt.body), actor: alice,
			})
			if rec.Code != tt.expectedStatus {
				t.Fatalf("expected status %d, got %d (%s)", tt.expectedStatus, rec.Code, rec.Body.String())
			}
			if tt.expectedSubstr != "" && !strings.Contains(rec.Body.String(), tt.expectedSubstr) {
				t.Fatalf("expected response to contain %q, got %q", tt.expectedSubstr, rec.Body.String())
			}
			if tt.expectedStatus == http.StatusCreated {
				in := svc.lastCreate
				if in.HallID != 1 || !in.Date.Equal(model.NewDate(2025, 6, 14).Time) || in.Slot != "night" || in.TotalAmount != 150000 {
					t.Fatalf("unexpected input %+v", in)
				}
				if svc.lastActor != alice {
					t.Fatalf("actor not forwarded: %+v", svc.lastActor)
				}
			}
		})
	}
}

func TestValidationErrorBody(t *testing.T) {
	svc := &stubBookings{err: &service.ValidationError{Fields: map[string]string{"phone": "required"}}}
	h := NewBookingHandler(svc, clock.NewFixed(testNow), quiet)
	rec := do(t, h.Update, call{
		method: http.MethodPatch, route: "/v1/bookings/:id", target: "/v1/bookings/5",
		body: strings.NewReader(`{"phone":""}`), actor: alice,
	})
	var body struct {
		Error  string            `json:"error"`
		Fields map[string]string `json:"fields"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if rec.Code != http.StatusBadRequest || body.Error != "validation failed" || body.Fields["phone"] != "required" {
		t.Fatalf("unexpected response %d %+v", rec.Code, body)
	}
}

func TestCalendarDefaultsToCurrentMonth(t *testing.T) {
	svc := &stubBookings{rows: []model.BookingView{sampleBooking()}}
	h := NewBookingHandler(svc, clock.NewFixed(testNow), quiet)
	rec := do(t, h.Calendar, call{method: http.MethodGet, route: "/v1/halls/:id/calendar", target: "/v1/halls/1/calendar"})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if svc.lastYear != 2025 || svc.lastMonth != 6 {
		t.Fatalf("expected June 2025, got %d-%d", svc.lastYear, svc.lastMonth)
	}
	if strings.Contains(rec.Body.String(), "Priya") {
		t.Fatal("calendar must not leak client data")
	}
	if !strings.Contains(rec.Body.String(), `"night":"pending"`) {
		t.Fatalf("expected slot occupancy, got %s", rec.Body.String())
	}

	rec = do(t, h.Calendar, call{method: http.MethodGet, route: "/v1/halls/:id/calendar", target: "/v1/halls/1/calendar?year=twenty"})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for a bad year, got %d", rec.Code)
	}
}

func TestHallBookingsFilter(t *testing.T) {
	svc := &stubBookings{rows: []model.BookingView{sampleBooking()}}
	h := NewBookingHandler(svc, clock.NewFixed(testNow), quiet)
	route := "/v1/halls/:id/bookings"

	rec := do(t, h.HallBookings, call{method: http.MethodGet, route: route, target: "/v1/halls/1/bookings?year=2025&month=7&filter=night", actor: alice})
	if rec.Code != http.StatusOK || svc.lastFilter != model.FilterNight || svc.lastMonth != 7 {
		t.Fatalf("unexpected %d filter=%s month=%d", rec.Code, svc.lastFilter, svc.lastMonth)
	}
	rec = do(t, h.HallBookings, call{method: http.MethodGet, route: route, target: "/v1/halls/1/bookings?filter=cancelled", actor: alice})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown filter, got %d", rec.Code)
	}
}

func TestReceiptIsPDF(t *testing.T) {
	h := NewBookingHandler(&stubBookings{booking: sampleBooking()}, clock.NewFixed(testNow), quiet)
	rec := do(t, h.Receipt, call{method: http.MethodGet, route: "/v1/bookings/:id/receipt", target: "/v1/bookings/5/receipt", actor: alice})
	if rec.Code != http.StatusOK || !bytes.HasPrefix(rec.Body.Bytes(), []byte("%PDF-")) {
		t.Fatalf("expected a PDF, got %d", rec.Code)
	}
	if cd := rec.Header().Get(echo.HeaderContentDisposition); !strings.Contains(cd, "booking_042917.pdf") {
		t.Fatalf("unexpected disposition %q", cd)
	}
}

func TestDeleteBooking(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name           string
		body           string
		serviceErr     error
		expectedStatus int
	}{
		{name: "success", body: `{"password":"admin-pass"}`, expectedStatus: http.StatusNoContent},
		{name: "missing password", body: `{}`, expectedStatus: http.StatusBadRequest},
		{name: "wrong password", body: `{"password":"nope"}`, serviceErr: service.ErrInvalidPassword, expectedStatus: http.StatusUnauthorized},
		{name: "unknown booking", body: `{"password":"admin-pass"}`, serviceErr: service.ErrNotFound, expectedStatus: http.StatusNotFound},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			svc := &stubBookings{err: tt.serviceErr}
			h := NewAdminHandler(svc, &stubBackups{}, clock.NewFixed(testNow), quiet)
			rec := do(t, h.DeleteBooking, call{
				method: http.MethodDelete, route: "/v1/bookings/:id", target: "/v1/bookings/5",
				body: strings.NewReader(tt.body), actor: admin,
			})
			if rec.Code != tt.expectedStatus {
				t.Fatalf("expected status %d, got %d", tt.expectedStatus, rec.Code)
			}
		})
	}
}

func TestExportCSV(t *testing.T) {
	svc := &stubBookings{rows: []model.BookingView{sampleBooking()}}
	h := NewAdminHandler(svc, &stubBackups{}, clock.NewFixed(testNow), quiet)
	rec := do(t, h.ExportCSV, call{method: http.MethodGet, route: "/v1/admin/export.csv", target: "/v1/admin/export.csv", actor: admin})
	if rec.Code != http.StatusOK || !strings.HasPrefix(rec.Header().Get(echo.HeaderContentType), "text/csv") {
		t.Fatalf("unexpected %d %q", rec.Code, rec.Header().Get(echo.HeaderContentType))
	}
	lines := strings.Split(strings.TrimSpace(rec.Body.String()), "\n")
	if len(lines) != 2 || !strings.Contains(lines[1], "042917") {
		t.Fatalf("expected header plus one row, got %q", rec.Body.String())
	}
	if cd := rec.Header().Get(echo.HeaderContentDisposition); !strings.Contains(cd, "bookings_20250610_120000.csv") {
		t.Fatalf("unexpected disposition %q", cd)
	}
}

func TestBackupEndpoint(t *testing.T) {
	backups := &stubBackups{manifest: backup.Manifest{ID: "b-1"}}
	h := NewAdminHandler(&stubBookings{}, backups, clock.NewFixed(testNow), quiet)
	rec := do(t, h.Backup, call{method: http.MethodGet, route: "/v1/admin/backup", target: "/v1/admin/backup", actor: admin})
	if rec.Code != http.StatusOK || rec.Header().Get("X-Backup-ID") != "b-1" || rec.Body.String() != "PK-archive" {
		t.Fatalf("unexpected backup response %d %v", rec.Code, rec.Header())
	}

	rec = do(t, h.Backup, call{method: http.MethodGet, route: "/v1/admin/backup", target: "/v1/admin/backup", actor: alice})
	if rec.Code != http.StatusForbidden {
		t.Fatalf("users must not download backups, got %d", rec.Code)
	}
}

func multipartArchive(t *testing.T, field string, content []byte) (io.Reader, string) {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreateFormFile(field, "backup.zip")
	if err != nil {
		t.Fatalf("form file: %v", err)
	}
	_, _ = part.Write(content)
	if err := w.Close(); err != nil {
		t.Fatalf("close multipart: %v", err)
	}
	return &buf, w.FormDataContentType()
}

func TestRestoreEndpoint(t *testing.T) {
	var zipBuf bytes.Buffer
	err := backup.WriteArchive(&zipBuf, backup.Archive{
		Manifest: backup.Manifest{ID: "b-2", SchemaVersion: schema.Version, Tables: map[string]int{}},
		Schema:   backup.SchemaDoc{Version: schema.Version, Tables: schema.BackupTables},
		Data:     backup.Data{"halls": {{"id": 1, "name": "AR Garden"}}},
	}, database.MySQL)
	if err != nil {
		t.Fatalf("write archive: %v", err)
	}

	tests := []struct {
		name           string
		field          string
		content        []byte
		serviceErr     error
		expectedStatus int
	}{
		{name: "success", field: "archive", content: zipBuf.Bytes(), expectedStatus: http.StatusOK},
		{name: "wrong field", field: "file", content: zipBuf.Bytes(), expectedStatus: http.StatusBadRequest},
		{name: "not a zip", field: "archive", content: []byte("hello"), expectedStatus: http.StatusBadRequest},
		{
			name: "restore failed", field: "archive", content: zipBuf.Bytes(),
			serviceErr:     &backup.RestoreError{Phase: backup.PhaseValidate, Table: "halls", Err: backup.ErrSchemaMismatch},
			expectedStatus: http.StatusUnprocessableEntity,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			backups := &stubBackups{err: tt.serviceErr, result: backup.RestoreResult{Tables: map[string]int{"halls": 1}}}
			h := NewAdminHandler(&stubBookings{}, backups, clock.NewFixed(testNow), quiet)
			body, ct := multipartArchive(t, tt.field, tt.content)
			rec := do(t, h.Restore, call{
				method: http.MethodPost, route: "/v1/admin/restore", target: "/v1/admin/restore",
				body: body, contentType: ct, actor: admin,
			})
			if rec.Code != tt.expectedStatus {
				t.Fatalf("expected status %d, got %d (%s)", tt.expectedStatus, rec.Code, rec.Body.String())
			}
			if tt.expectedStatus == http.StatusOK {
				if backups.restored == nil || backups.restored.Manifest.ID != "b-2" || len(backups.restored.Data["halls"]) != 1 {
					t.Fatalf("archive not forwarded: %+v", backups.restored)
				}
			}
		})
	}
}

func newAuth(t *testing.T) (*AuthHandler, *stubUsers, *stubTokens) {
	t.Helper()
	hash, err := utils.HashPassword("s3cret", 4)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	users := &stubUsers{users: map[string]model.User{
		"admin": {ID: 1, Username: "admin", Name: "Admin", PasswordHash: hash, Role: model.RoleAdmin},
		"alice": {ID: 2, Username: "alice", Name: "Alice", PasswordHash: hash, Role: model.RoleUser},
	}}
	tokens := &stubTokens{valid: map[string]uint64{}}
	cfg := config.Config{JWTSecret: testSecret, AccessTTLMin: 5, RefreshTTLDays: 1, BcryptCost: 4}
	return NewAuthHandler(cfg, users, tokens, quiet), users, tokens
}

func TestLogin(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name           string
		body           string
		expectedStatus int
	}{
		{name: "success", body: `{"username":" Alice ","password":"s3cret"}`, expectedStatus: http.StatusOK},
		{name: "wrong password", body: `{"username":"alice","password":"nope"}`, expectedStatus: http.StatusUnauthorized},
		{name: "unknown user", body: `{"username":"mallory","password":"s3cret"}`, expectedStatus: http.StatusUnauthorized},
		{name: "missing fields", body: `{"username":"alice"}`, expectedStatus: http.StatusBadRequest},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			h, _, tokens := newAuth(t)
			rec := do(t, h.Login, call{method: http.MethodPost, route: "/v1/auth/login", target: "/v1/auth/login", body: strings.NewReader(tt.body)})
			if rec.Code != tt.expectedStatus {
				t.Fatalf("expected status %d, got %d", tt.expectedStatus, rec.Code)
			}
			if tt.expectedStatus != http.StatusOK {
				return
			}
			var resp authResp
			if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
				t.Fatalf("decode: %v", err)
			}
			actor, err := utils.ParseAccessToken(testSecret, resp.Access.Token)
			if err != nil || actor != alice {
				t.Fatalf("unexpected access token actor %+v (%v)", actor, err)
			}
			if tokens.valid[utils.HashRefreshRaw(resp.Refresh.Token)] != 2 {
				t.Fatal("refresh token hash not stored")
			}
		})
	}
}

func TestRefreshRotates(t *testing.T) {
	h, _, tokens := newAuth(t)
	tokens.valid[utils.HashRefreshRaw("old-token")] = 2

	rec := do(t, h.Refresh, call{method: http.MethodPost, route: "/v1/auth/refresh", target: "/v1/auth/refresh", body: strings.NewReader(`{"refresh_token":"old-token"}`)})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if _, ok := tokens.valid[utils.HashRefreshRaw("old-token")]; ok {
		t.Fatal("old refresh token must be revoked")
	}

	rec = do(t, h.Refresh, call{method: http.MethodPost, route: "/v1/auth/refresh", target: "/v1/auth/refresh", body: strings.NewReader(`{"refresh_token":"old-token"}`)})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("reused refresh token must fail, got %d", rec.Code)
	}
}

func TestRefreshStoreErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name           string
		route          string
		storeErr       error
		expectedStatus int
	}{
		{name: "refresh invalid", route: "/v1/auth/refresh", storeErr: repository.ErrRefreshInvalid, expectedStatus: http.StatusUnauthorized},
		{name: "refresh db down", route: "/v1/auth/refresh", storeErr: errors.New("connection reset"), expectedStatus: http.StatusInternalServerError},
		{name: "access invalid", route: "/v1/auth/refresh-access", storeErr: repository.ErrRefreshInvalid, expectedStatus: http.StatusUnauthorized},
		{name: "access db down", route: "/v1/auth/refresh-access", storeErr: errors.New("connection reset"), expectedStatus: http.StatusInternalServerError},
		{name: "logout invalid", route: "/v1/auth/logout", storeErr: repository.ErrRefreshInvalid, expectedStatus: http.StatusUnauthorized},
		{name: "logout db down", route: "/v1/auth/logout", storeErr: errors.New("connection reset"), expectedStatus: http.StatusInternalServerError},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			h, _, tokens := newAuth(t)
			tokens.err = tt.storeErr
			handlers := map[string]echo.HandlerFunc{
				"/v1/auth/refresh":        h.Refresh,
				"/v1/auth/refresh-access": h.RefreshAccess,
				"/v1/auth/logout":         h.Logout,
			}
			rec := do(t, handlers[tt.route], call{
				method: http.MethodPost, route: tt.route, target: tt.route,
				body: strings.NewReader(`{"refresh_token":"some-token"}`),
			})
			if rec.Code != tt.expectedStatus {
				t.Fatalf("expected status %d, got %d (%s)", tt.expectedStatus, rec.Code, rec.Body.String())
			}
		})
	}
}

func TestLogoutAllSessions(t *testing.T) {
	h, _, tokens := newAuth(t)
	rec := do(t, h.Logout, call{method: http.MethodPost, route: "/v1/auth/logout", target: "/v1/auth/logout", actor: alice})
	if rec.Code != http.StatusNoContent || len(tokens.all) != 1 || tokens.all[0] != 2 {
		t.Fatalf("unexpected logout %d %v", rec.Code, tokens.all)
	}
	rec = do(t, h.Logout, call{method: http.MethodPost, route: "/v1/auth/logout", target: "/v1/auth/logout"})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 without credentials, got %d", rec.Code)
	}
}

func TestRegisterIsAdminOnly(t *testing.T) {
	h, users, _ := newAuth(t)
	body := `{"username":"Bob","name":"Bob","password":"pw","role":"user"}`

	rec := do(t, h.Register, call{method: http.MethodPost, route: "/v1/auth/register", target: "/v1/auth/register", body: strings.NewReader(body), actor: alice})
	if rec.Code != http.StatusForbidden {
		t.Fatalf("users must not create accounts, got %d", rec.Code)
	}
	rec = do(t, h.Register, call{method: http.MethodPost, route: "/v1/auth/register", target: "/v1/auth/register", body: strings.NewReader(body), actor: admin})
	if rec.Code != http.StatusCreated || len(users.created) != 1 || users.created[0] != "bob" {
		t.Fatalf("unexpected register %d %v", rec.Code, users.created)
	}
	rec = do(t, h.Register, call{method: http.MethodPost, route: "/v1/auth/register", target: "/v1/auth/register",
		body: strings.NewReader(`{"username":"alice","password":"pw"}`), actor: admin})
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409 for a taken username, got %d", rec.Code)
	}
}

func TestHealth(t *testing.T) {
	rec := do(t, Health{}.Live, call{method: http.MethodGet, route: "/healthz", target: "/healthz"})
	if rec.Code != http.StatusOK || rec.Body.String() != "ok" {
		t.Fatalf("unexpected %d %q", rec.Code, rec.Body.String())
	}
	rec = do(t, Health{DB: failingPinger{}}.Ready, call{method: http.MethodGet, route: "/readyz", target: "/readyz"})
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rec.Code)
	}
}
