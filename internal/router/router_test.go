package router

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/hall-calendar/internal/clock"
	"github.com/iliyamo/hall-calendar/internal/config"
	"github.com/iliyamo/hall-calendar/internal/handler"
	"github.com/iliyamo/hall-calendar/internal/model"
	"github.com/iliyamo/hall-calendar/internal/utils"
)

const secret = "router-secret"

func passThrough(next echo.HandlerFunc) echo.HandlerFunc { return next }

func newServer() *echo.Echo {
	e := echo.New()
	clk := clock.NewFixed(clock.NewSystem().Now())
	bookings := handler.NewBookingHandler(nil, clk, nil)
	RegisterRoutes(e, handler.Health{})
	RegisterAuth(e, handler.NewAuthHandler(config.Config{JWTSecret: secret}, nil, nil, nil), secret, passThrough)
	RegisterPublic(e, bookings, passThrough)
	RegisterBookings(e, bookings, secret)
	RegisterAdmin(e, handler.NewAdminHandler(nil, nil, clk, nil), secret)
	return e
}

func TestRoutesRegistered(t *testing.T) {
	e := newServer()
	have := map[string]bool{}
	for _, r := range e.Routes() {
		have[r.Method+" "+r.Path] = true
	}
	for _, want := range []string{
		"GET /healthz",
		"POST /v1/auth/login",
		"POST /v1/auth/register",
		"GET /v1/me",
		"GET /v1/halls",
		"GET /v1/halls/:id/calendar",
		"POST /v1/halls/:id/bookings",
		"GET /v1/halls/:id/bookings",
		"PATCH /v1/bookings/:id",
		"POST /v1/bookings/:id/confirm",
		"GET /v1/bookings/:id/receipt",
		"DELETE /v1/bookings/:id",
		"GET /v1/search",
		"GET /v1/admin/export.csv",
		"GET /v1/admin/export.pdf",
		"GET /v1/admin/backup",
		"POST /v1/admin/restore",
	} {
		if !have[want] {
			t.Errorf("route %q not registered", want)
		}
	}
}

func TestRouteGating(t *testing.T) {
	t.Parallel()

	userToken, err := utils.NewAccessToken(secret, 2, model.RoleUser, 5)
	if err != nil {
		t.Fatalf("token: %v", err)
	}

	tests := []struct {
		name           string
		method, path   string
		token          string
		expectedStatus int
	}{
		{name: "liveness", method: http.MethodGet, path: "/healthz", expectedStatus: http.StatusOK},
		{name: "booking list needs token", method: http.MethodGet, path: "/v1/halls/1/bookings", expectedStatus: http.StatusUnauthorized},
		{name: "delete needs token", method: http.MethodDelete, path: "/v1/bookings/1", expectedStatus: http.StatusUnauthorized},
		{name: "user cannot delete", method: http.MethodDelete, path: "/v1/bookings/1", token: userToken.Token, expectedStatus: http.StatusForbidden},
		{name: "user cannot export", method: http.MethodGet, path: "/v1/admin/export.csv", token: userToken.Token, expectedStatus: http.StatusForbidden},
		{name: "user cannot back up", method: http.MethodGet, path: "/v1/admin/backup", token: userToken.Token, expectedStatus: http.StatusForbidden},
		{name: "garbage token", method: http.MethodGet, path: "/v1/me", token: "not-a-jwt", expectedStatus: http.StatusUnauthorized},
		{name: "unknown v1 path", method: http.MethodGet, path: "/v1/nope", expectedStatus: http.StatusNotFound},
		{name: "unknown v1 path with token", method: http.MethodGet, path: "/v1/nope", token: userToken.Token, expectedStatus: http.StatusNotFound},
		{name: "unknown admin path", method: http.MethodGet, path: "/v1/admin/nope", expectedStatus: http.StatusNotFound},
		{name: "unknown auth path", method: http.MethodPost, path: "/v1/auth/nope", expectedStatus: http.StatusNotFound},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			e := newServer()
			req := httptest.NewRequest(tt.method, tt.path, nil)
			if tt.token != "" {
				req.Header.Set(echo.HeaderAuthorization, "Bearer "+tt.token)
			}
			rec := httptest.NewRecorder()
			e.ServeHTTP(rec, req)
			if rec.Code != tt.expectedStatus {
				t.Fatalf("expected status %d, got %d (%s)", tt.expectedStatus, rec.Code, rec.Body.String())
			}
		})
	}
}
