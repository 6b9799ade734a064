package handler

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/medivex/identity-service/internal/core/domain"
	"github.com/medivex/identity-service/internal/core/ports"
)

// RoleHandler exposes role and permission maintenance.
type RoleHandler struct {
	access ports.AccessControlService
}

func NewRoleHandler(access ports.AccessControlService) *RoleHandler {
	return &RoleHandler{access: access}
}

func queryBool(c echo.Context, name string) (bool, error) {
	raw := c.QueryParam(name)
	if raw == "" {
		return false, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, domain.Invalid("%s must be a boolean", name)
	}
	return v, nil
}

// ListRoles handles GET /api/roles.
//
// @Summary      List roles
// @Tags         roles
// @Produce      json
// @Security     BearerAuth
// @Param        search       query     string  false  "Partial match on name"
// @Param        active_only  query     bool    false  "Only active roles"
// @Success      200          {array}   domain.Role
// @Failure      403          {object}  errorResponse
// @Router       /api/roles [get]
func (h *RoleHandler) ListRoles(c echo.Context) error {
	activeOnly, err := queryBool(c, "active_only")
	if err != nil {
		return err
	}
	roles, err := h.access.ListRoles(c.Request().Context(), ports.ListRolesFilter{
		Search:     c.QueryParam("search"),
		ActiveOnly: activeOnly,
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, roles)
}

// GetRole handles GET /api/roles/:id.
//
// @Summary      Get a role
// @Tags         roles
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "Role ID"
// @Success      200  {object}  domain.Role
// @Failure      400  {object}  errorResponse
// @Router       /api/roles/{id} [get]
func (h *RoleHandler) GetRole(c echo.Context) error {
	role, err := h.access.GetRole(c.Request().Context(), c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, role)
}

// CreateRole handles POST /api/roles. New roles are always CUSTOM.
//
// @Summary      Create a role
// @Tags         roles
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        body  body      createRoleRequest  true  "Role"
// @Success      201   {object}  domain.Role
// @Failure      400   {object}  errorResponse
// @Failure      409   {object}  errorResponse
// @Router       /api/roles [post]
func (h *RoleHandler) CreateRole(c echo.Context) error {
	var req createRoleRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	role, err := h.access.CreateRole(c.Request().Context(), ports.RoleInput{
		Name:        req.Name,
		Description: req.Description,
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, role)
}

// UpdateRole handles PUT /api/roles/:id.
//
// @Summary      Update a role
// @Tags         roles
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id    path      string             true  "Role ID"
// @Param        body  body      updateRoleRequest  true  "Fields to change"
// @Success      200   {object}  domain.Role
// @Failure      400   {object}  errorResponse
// @Failure      409   {object}  errorResponse
// @Router       /api/roles/{id} [put]
func (h *RoleHandler) UpdateRole(c echo.Context) error {
	var req updateRoleRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	role, err := h.access.UpdateRole(c.Request().Context(), c.Param("id"), domain.RoleUpdate{
		Name:        req.Name,
		Description: req.Description,
		IsActive:    req.IsActive,
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, role)
}

// DeleteRole handles DELETE /api/roles/:id. System roles cannot be deleted.
//
// @Summary      Soft-delete a role
// @Tags         roles
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "Role ID"
// @Success      200  {object}  messageResponse
// @Failure      400  {object}  errorResponse
// @Router       /api/roles/{id} [delete]
func (h *RoleHandler) DeleteRole(c echo.Context) error {
	if err := h.access.SoftDeleteRole(c.Request().Context(), c.Param("id")); err != nil {
		return err
	}
	return message(c, http.StatusOK, "role deleted")
}

// AssignPermission handles POST /api/roles/:id/permissions/:permissionId.
//
// @Summary      Grant a permission to a role
// @Tags         roles
// @Produce      json
// @Security     BearerAuth
// @Param        id            path      string  true  "Role ID"
// @Param        permissionId  path      string  true  "Permission ID"
// @Success      200           {object}  messageResponse
// @Failure      400           {object}  errorResponse
// @Router       /api/roles/{id}/permissions/{permissionId} [post]
func (h *RoleHandler) AssignPermission(c echo.Context) error {
	if err := h.access.AssignPermission(c.Request().Context(), c.Param("id"), c.Param("permissionId")); err != nil {
		return err
	}
	return message(c, http.StatusOK, "permission assigned")
}

// RevokePermission handles DELETE /api/roles/:id/permissions/:permissionId.
//
// @Summary      Revoke a permission from a role
// @Tags         roles
// @Produce      json
// @Security     BearerAuth
// @Param        id            path      string  true  "Role ID"
// @Param        permissionId  path      string  true  "Permission ID"
// @Success      200           {object}  messageResponse
// @Failure      400           {object}  errorResponse
// @Router       /api/roles/{id}/permissions/{permissionId} [delete]
func (h *RoleHandler) RevokePermission(c echo.Context) error {
	if err := h.access.RevokePermission(c.Request().Context(), c.Param("id"), c.Param("permissionId")); err != nil {
		return err
	}
	return message(c, http.StatusOK, "permission revoked")
}

// ListPermissions handles GET /api/permissions.
//
// @Summary      List permissions
// @Tags         permissions
// @Produce      json
// @Security     BearerAuth
// @Param        active_only  query     bool  false  "Only active permissions"
// @Success      200          {array}   domain.Permission
// @Failure      403          {object}  errorResponse
// @Router       /api/permissions [get]
func (h *RoleHandler) ListPermissions(c echo.Context) error {
	activeOnly, err := queryBool(c, "active_only")
	if err != nil {
		return err
	}
	perms, err := h.access.ListPermissions(c.Request().Context(), activeOnly)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, perms)
}

// GetPermission handles GET /api/permissions/:id.
//
// @Summary      Get a permission
// @Tags         permissions
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "Permission ID"
// @Success      200  {object}  domain.Permission
// @Failure      400  {object}  errorResponse
// @Router       /api/permissions/{id} [get]
func (h *RoleHandler) GetPermission(c echo.Context) error {
	perm, err := h.access.GetPermission(c.Request().Context(), c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, perm)
}

// CreatePermission handles POST /api/permissions.
//
// @Summary      Create a permission
// @Tags         permissions
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        body  body      createPermissionRequest  true  "Permission"
// @Success      201   {object}  domain.Permission
// @Failure      400   {object}  errorResponse
// @Failure      409   {object}  errorResponse
// @Router       /api/permissions [post]
func (h *RoleHandler) CreatePermission(c echo.Context) error {
	var req createPermissionRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	perm, err := h.access.CreatePermission(c.Request().Context(), ports.PermissionInput{
		Name:        req.Name,
		Description: req.Description,
		Resource:    req.Resource,
		Action:      req.Action,
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, perm)
}

// UpdatePermission handles PUT /api/permissions/:id.
//
// @Summary      Update a permission
// @Tags         permissions
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id    path      string                   true  "Permission ID"
// @Param        body  body      updatePermissionRequest  true  "Fields to change"
// @Success      200   {object}  domain.Permission
// @Failure      400   {object}  errorResponse
// @Failure      409   {object}  errorResponse
// @Router       /api/permissions/{id} [put]
func (h *RoleHandler) UpdatePermission(c echo.Context) error {
	var req updatePermissionRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	perm, err := h.access.UpdatePermission(c.Request().Context(), c.Param("id"), domain.PermissionUpdate{
		Name:        req.Name,
		Description: req.Description,
		Resource:    req.Resource,
		Action:      req.Action,
		IsActive:    req.IsActive,
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, perm)
}

// DeletePermission handles DELETE /api/permissions/:id.
//
// @Summary      Soft-delete a permission
// @Tags         permissions
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "Permission ID"
// @Success      200  {object}  messageResponse
// @Failure      400  {object}  errorResponse
// @Router       /api/permissions/{id} [delete]
func (h *RoleHandler) DeletePermission(c echo.Context) error {
	if err := h.access.SoftDeletePermission(c.Request().Context(), c.Param("id")); err != nil {
		return err
	}
	return message(c, http.StatusOK, "permission deleted")
}
