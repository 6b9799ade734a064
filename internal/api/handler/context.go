package handler

import (
	"github.com/labstack/echo/v4"

	"github.com/medivex/identity-service/internal/api/middleware"
	"github.com/medivex/identity-service/internal/core/domain"
)

// ctxPrincipal returns the caller resolved by the guard middleware. Routes that
// reach a handler through RequireAuth always have one; the check stays so a
// mis-wired route fails with 401 instead of a nil dereference.
func ctxPrincipal(c echo.Context) (*domain.Principal, error) {
	p, ok := middleware.PrincipalFrom(c)
	if !ok {
		return nil, domain.ErrUnauthenticated
	}
	return p, nil
}

// bindAndValidate decodes the request body into req and runs the validator.
func bindAndValidate(c echo.Context, req any) error {
	if err := c.Bind(req); err != nil {
		return domain.Invalid("invalid payload")
	}
	return c.Validate(req)
}

// messageResponse is the body of operations that only confirm success.
type messageResponse struct {
	Message string `json:"message"`
}

func message(c echo.Context, code int, msg string) error {
	return c.JSON(code, messageResponse{Message: msg})
}
