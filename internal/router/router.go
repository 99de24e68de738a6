// Package router wires handlers and middleware onto the Echo instance.
package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/hall-calendar/internal/handler"
	"github.com/iliyamo/hall-calendar/internal/middleware"
	"github.com/iliyamo/hall-calendar/internal/model"
)

// RegisterRoutes registers the unauthenticated health endpoints.
func RegisterRoutes(e *echo.Echo, h handler.Health) {
	e.GET("/healthz", h.Live)
	e.GET("/readyz", h.Ready)
}

// RegisterAuth registers the session endpoints.  Login, refresh and logout
// live under /v1/auth without a token; /v1/me and account creation need
// one.  loginLimit guards the login route only.
func RegisterAuth(e *echo.Echo, a *handler.AuthHandler, jwtSecret string, loginLimit echo.MiddlewareFunc) {
	g := e.Group("/v1/auth")
	g.POST("/login", a.Login, loginLimit)
	// Rotates the refresh token.
	g.POST("/refresh", a.Refresh)
	// Keeps the refresh token and only mints a new access token.
	g.POST("/refresh-access", a.RefreshAccess)
	// Accepts a refresh_token body, a bearer token, or both.
	g.POST("/logout", a.Logout)

	// Only administrators create accounts; the handler asks policy.
	g.POST("/register", a.Register, middleware.JWTAuth(jwtSecret))

	e.GET("/v1/me", a.Me, signedIn(jwtSecret)...)

	// Top-level alias for clients that log out outside the auth group.
	e.POST("/v1/logout", a.Logout)
}

// RegisterPublic registers the guest browsing endpoints behind the
// response cache.
func RegisterPublic(e *echo.Echo, b *handler.BookingHandler, cache echo.MiddlewareFunc) {
	g := e.Group("/v1")
	g.GET("/halls", b.Halls, cache)
	g.GET("/halls/:id/calendar", b.Calendar, cache)
}

// signedIn is the middleware chain for routes open to any logged-in
// account.  Middleware is attached per route, never to a /v1 group: group
// middleware makes Echo register a catch-all that would answer unknown
// paths with 401 instead of 404.
func signedIn(jwtSecret string) []echo.MiddlewareFunc {
	return []echo.MiddlewareFunc{
		middleware.JWTAuth(jwtSecret),
		middleware.RequireRole(model.RoleUser, model.RoleAdmin),
	}
}
