package policy

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/medguard/medguard/internal/platform/auth"
)

// Guard builds echo middleware that gates a route on one permission.
type Guard struct {
	resolver *Resolver
}

func NewGuard(resolver *Resolver) *Guard {
	return &Guard{resolver: resolver}
}

// Require allows the request through only when the resolver authorizes
// the authenticated principal for the permission. The denial message is
// deliberately uniform: callers learn nothing about why they were
// refused.
func (g *Guard) Require(permission string) echo.MiddlewareFunc {
	return g.RequireScoped(permission, nil)
}

// RequireScoped is Require with a per-request scope, extracted from the
// request by scopeFn (usually a route parameter naming the resource).
func (g *Guard) RequireScoped(permission string, scopeFn func(echo.Context) string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ctx := c.Request().Context()
			principalID, ok := auth.PrincipalFromContext(ctx)
			if !ok {
				return echo.NewHTTPError(http.StatusUnauthorized, "authentication required")
			}

			scope := ""
			if scopeFn != nil {
				scope = scopeFn(c)
			}

			decision, err := g.resolver.Authorize(ctx, principalID, permission, scope, c.RealIP())
			if err != nil {
				return echo.NewHTTPError(http.StatusInternalServerError, "authorization unavailable")
			}
			if !decision.Allowed {
				return echo.NewHTTPError(http.StatusForbidden, "insufficient permission")
			}

			if decision.GrantID != nil {
				c.Response().Header().Set("X-Break-Glass-Grant", decision.GrantID.String())
			}
			return next(c)
		}
	}
}
