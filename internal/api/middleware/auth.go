package middleware

import (
	"context"

	"github.com/labstack/echo/v4"

	"github.com/medivex/identity-service/internal/api/metrics"
	"github.com/medivex/identity-service/internal/core/domain"
	"github.com/medivex/identity-service/internal/core/service"
)

const principalKey = "principal"

type principalCtxKey struct{}

// Guard resolves the caller of a request.
type Guard interface {
	Authenticate(ctx context.Context, path, authorization string) (*domain.Principal, service.GuardOutcome)
}

// Authenticate runs the guard on every request and stores the resulting
// principal, if any. It never rejects a request; RequireAuth and
// RequirePermission do that.
func Authenticate(guard Guard) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			principal, outcome := guard.Authenticate(req.Context(), req.URL.Path, req.Header.Get(echo.HeaderAuthorization))
			metrics.GuardDecisionsTotal.WithLabelValues(string(outcome)).Inc()
			if principal != nil {
				SetPrincipal(c, principal)
			}
			return next(c)
		}
	}
}

// SetPrincipal attaches p to both the echo context and the request context.
func SetPrincipal(c echo.Context, p *domain.Principal) {
	c.Set(principalKey, p)
	req := c.Request()
	c.SetRequest(req.WithContext(context.WithValue(req.Context(), principalCtxKey{}, p)))
}

// PrincipalFrom returns the authenticated caller of c.
func PrincipalFrom(c echo.Context) (*domain.Principal, bool) {
	p, ok := c.Get(principalKey).(*domain.Principal)
	return p, ok && p != nil
}

// PrincipalFromContext returns the authenticated caller carried by ctx.
func PrincipalFromContext(ctx context.Context) (*domain.Principal, bool) {
	p, ok := ctx.Value(principalCtxKey{}).(*domain.Principal)
	return p, ok && p != nil
}

// RequireAuth rejects requests without an authenticated principal.
func RequireAuth() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if _, ok := PrincipalFrom(c); !ok {
				metrics.AuthorizationDeniedTotal.WithLabelValues("unauthenticated").Inc()
				return domain.ErrUnauthenticated
			}
			return next(c)
		}
	}
}
