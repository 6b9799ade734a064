package middleware

import (
	"github.com/labstack/echo/v4"

	"github.com/medivex/identity-service/internal/api/metrics"
	"github.com/medivex/identity-service/internal/core/domain"
)

// RequirePermission enforces permission-based access control. The caller must
// be authenticated and hold every one of perms.
func RequirePermission(perms ...string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			p, ok := PrincipalFrom(c)
			if !ok {
				metrics.AuthorizationDeniedTotal.WithLabelValues("unauthenticated").Inc()
				return domain.ErrUnauthenticated
			}
			if !p.Can(perms...) {
				metrics.AuthorizationDeniedTotal.WithLabelValues("forbidden").Inc()
				return domain.ErrForbidden
			}
			return next(c)
		}
	}
}
