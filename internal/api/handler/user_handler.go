package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/medivex/identity-service/internal/core/domain"
	"github.com/medivex/identity-service/internal/core/ports"
)

// UserHandler serves self-service profile endpoints and identity
// administration.
type UserHandler struct {
	authService  ports.AuthService
	adminService ports.IdentityAdminService
}

func NewUserHandler(authService ports.AuthService, adminService ports.IdentityAdminService) *UserHandler {
	return &UserHandler{authService: authService, adminService: adminService}
}

// Me handles GET /api/users/me.
//
// @Summary      Current user profile
// @Tags         users
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  domain.Profile
// @Failure      401  {object}  errorResponse
// @Router       /api/users/me [get]
func (h *UserHandler) Me(c echo.Context) error {
	p, err := ctxPrincipal(c)
	if err != nil {
		return err
	}
	profile, err := h.authService.Profile(c.Request().Context(), p.IdentityID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, profile)
}

// UpdateMe handles PUT /api/users/me. Changing the email resets its
// verification.
//
// @Summary      Update current user profile
// @Tags         users
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        body  body      updateProfileRequest  true  "Profile fields to change"
// @Success      200   {object}  domain.Profile
// @Failure      400   {object}  errorResponse
// @Failure      409   {object}  errorResponse
// @Router       /api/users/me [put]
func (h *UserHandler) UpdateMe(c echo.Context) error {
	p, err := ctxPrincipal(c)
	if err != nil {
		return err
	}
	var req updateProfileRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	profile, err := h.authService.UpdateProfile(c.Request().Context(), p.IdentityID, req.toDomain())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, profile)
}

// ChangePassword handles POST /api/users/me/change-password.
//
// @Summary      Change password
// @Tags         users
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        body  body      changePasswordRequest  true  "Current and new password"
// @Success      200   {object}  messageResponse
// @Failure      400   {object}  errorResponse
// @Router       /api/users/me/change-password [post]
func (h *UserHandler) ChangePassword(c echo.Context) error {
	p, err := ctxPrincipal(c)
	if err != nil {
		return err
	}
	var req changePasswordRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	err = h.authService.ChangePassword(c.Request().Context(), p.IdentityID, ports.ChangePasswordInput{
		CurrentPassword: req.CurrentPassword,
		NewPassword:     req.NewPassword,
		ConfirmPassword: req.ConfirmPassword,
	})
	if errors.Is(err, domain.ErrInvalidCredentials) {
		// The caller is already authenticated; a wrong current password is bad input.
		return domain.Invalid("current password is incorrect")
	}
	if err != nil {
		return err
	}
	return message(c, http.StatusOK, "password changed successfully")
}

// List handles GET /api/users.
//
// @Summary      List users
// @Tags         users
// @Produce      json
// @Security     BearerAuth
// @Param        search           query     string  false  "Partial match on username, email or name"
// @Param        page             query     int     false  "Page number (1-based)"
// @Param        limit            query     int     false  "Page size (max 100)"
// @Param        include_deleted  query     bool    false  "Include deactivated users"
// @Success      200              {object}  listUsersResponse
// @Failure      400              {object}  errorResponse
// @Failure      403              {object}  errorResponse
// @Router       /api/users [get]
func (h *UserHandler) List(c echo.Context) error {
	filter := ports.ListIdentitiesFilter{Search: c.QueryParam("search")}

	var err error
	if filter.Page, err = queryInt(c, "page"); err != nil {
		return err
	}
	if filter.Limit, err = queryInt(c, "limit"); err != nil {
		return err
	}
	if filter.IncludeDeleted, err = queryBool(c, "include_deleted"); err != nil {
		return err
	}

	items, total, err := h.adminService.List(c.Request().Context(), filter)
	if err != nil {
		return err
	}

	filter = filter.Normalize()
	return c.JSON(http.StatusOK, listUsersResponse{Items: items, Total: total, Page: filter.Page, Limit: filter.Limit})
}

func queryInt(c echo.Context, name string) (int, error) {
	raw := c.QueryParam(name)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, domain.Invalid("%s must be a non-negative integer", name)
	}
	return n, nil
}

// Get handles GET /api/users/:id.
//
// @Summary      Get a user
// @Tags         users
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "User ID"
// @Success      200  {object}  domain.Profile
// @Failure      400  {object}  errorResponse
// @Failure      403  {object}  errorResponse
// @Router       /api/users/{id} [get]
func (h *UserHandler) Get(c echo.Context) error {
	profile, err := h.adminService.Get(c.Request().Context(), c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, profile)
}

// Update handles PUT /api/users/:id.
//
// @Summary      Update a user
// @Tags         users
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id    path      string                true  "User ID"
// @Param        body  body      updateProfileRequest  true  "Profile fields to change"
// @Success      200   {object}  domain.Profile
// @Failure      400   {object}  errorResponse
// @Failure      403   {object}  errorResponse
// @Failure      409   {object}  errorResponse
// @Router       /api/users/{id} [put]
func (h *UserHandler) Update(c echo.Context) error {
	var req updateProfileRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	profile, err := h.adminService.Update(c.Request().Context(), c.Param("id"), req.toDomain())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, profile)
}

// Deactivate handles DELETE /api/users/:id (soft delete).
//
// @Summary      Deactivate a user
// @Tags         users
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "User ID"
// @Success      200  {object}  messageResponse
// @Failure      400  {object}  errorResponse
// @Failure      403  {object}  errorResponse
// @Router       /api/users/{id} [delete]
func (h *UserHandler) Deactivate(c echo.Context) error {
	if err := h.adminService.Deactivate(c.Request().Context(), c.Param("id")); err != nil {
		return err
	}
	return message(c, http.StatusOK, "user deactivated")
}

// Activate handles PUT /api/users/:id/activate.
//
// @Summary      Activate a user
// @Tags         users
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "User ID"
// @Success      200  {object}  messageResponse
// @Failure      400  {object}  errorResponse
// @Failure      403  {object}  errorResponse
// @Failure      409  {object}  errorResponse
// @Router       /api/users/{id}/activate [put]
func (h *UserHandler) Activate(c echo.Context) error {
	if err := h.adminService.Activate(c.Request().Context(), c.Param("id")); err != nil {
		return err
	}
	return message(c, http.StatusOK, "user activated")
}

// AssignRole handles POST /api/users/:id/roles/:roleId.
//
// @Summary      Assign a role to a user
// @Tags         users
// @Produce      json
// @Security     BearerAuth
// @Param        id      path      string  true  "User ID"
// @Param        roleId  path      string  true  "Role ID"
// @Success      200     {object}  messageResponse
// @Failure      400     {object}  errorResponse
// @Failure      403     {object}  errorResponse
// @Router       /api/users/{id}/roles/{roleId} [post]
func (h *UserHandler) AssignRole(c echo.Context) error {
	if err := h.adminService.AssignRole(c.Request().Context(), c.Param("id"), c.Param("roleId")); err != nil {
		return err
	}
	return message(c, http.StatusOK, "role assigned")
}

// RemoveRole handles DELETE /api/users/:id/roles/:roleId.
//
// @Summary      Remove a role from a user
// @Tags         users
// @Produce      json
// @Security     BearerAuth
// @Param        id      path      string  true  "User ID"
// @Param        roleId  path      string  true  "Role ID"
// @Success      200     {object}  messageResponse
// @Failure      400     {object}  errorResponse
// @Failure      403     {object}  errorResponse
// @Router       /api/users/{id}/roles/{roleId} [delete]
func (h *UserHandler) RemoveRole(c echo.Context) error {
	if err := h.adminService.RemoveRole(c.Request().Context(), c.Param("id"), c.Param("roleId")); err != nil {
		return err
	}
	return message(c, http.StatusOK, "role removed")
}
