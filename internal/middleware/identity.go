package middleware

// identity.go holds the helpers that read the authenticated caller back
// out of the Echo context.

import (
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/hall-calendar/internal/model"
)

const actorKey = "actor"

// ActorFrom returns the caller stored by JWTAuth.  Requests that did not
// pass through JWTAuth yield the anonymous zero Actor.
func ActorFrom(c echo.Context) model.Actor {
	a, _ := c.Get(actorKey).(model.Actor)
	return a
}

// userID renders the caller's id for cache and rate limit keys, or
// "anon" when nobody is logged in.
func userID(c echo.Context) string {
	a := ActorFrom(c)
	if !a.Authenticated() {
		return "anon"
	}
	return strconv.FormatUint(a.UserID, 10)
}
