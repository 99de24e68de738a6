package middleware

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/hall-calendar/internal/model"
	"github.com/iliyamo/hall-calendar/internal/policy"
)

// RequireRole aborts with 403 unless the caller stored by JWTAuth has one
// of roles.  It is a coarse route-level gate; per-record checks still go
// through policy.Authorize in the services.
func RequireRole(roles ...model.Role) echo.MiddlewareFunc {
	allowed := make(map[model.Role]bool, len(roles))
	for _, r := range roles {
		allowed[r] = true
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			a := ActorFrom(c)
			if !a.Authenticated() || !allowed[a.Role] {
				return c.JSON(http.StatusForbidden, echo.Map{"error": policy.ErrAccessDenied.Error()})
			}
			return next(c)
		}
	}
}

// RequireOperation aborts with 403 unless policy allows op for the caller
// on no particular record.  Admin-only route groups use it.
func RequireOperation(op policy.Operation) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if err := policy.Authorize(ActorFrom(c), op, policy.NoOwner); err != nil {
				return c.JSON(http.StatusForbidden, echo.Map{"error": err.Error()})
			}
			return next(c)
		}
	}
}
