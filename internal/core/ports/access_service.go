package ports

import (
	"context"

	"github.com/medivex/identity-service/internal/core/domain"
)

// RoleInput carries the fields of a new role.
type RoleInput struct {
	Name        string
	Description string
}

// PermissionInput carries the fields of a new permission.
type PermissionInput struct {
	Name        string
	Description string
	Resource    string
	Action      string
}

// AccessControlService is the role/permission maintenance surface.
type AccessControlService interface {
	ListRoles(ctx context.Context, filter ListRolesFilter) ([]*domain.Role, error)
	GetRole(ctx context.Context, id string) (*domain.Role, error)
	CreateRole(ctx context.Context, in RoleInput) (*domain.Role, error)
	UpdateRole(ctx context.Context, id string, upd domain.RoleUpdate) (*domain.Role, error)
	SoftDeleteRole(ctx context.Context, id string) error
	AssignPermission(ctx context.Context, roleID, permissionID string) error
	RevokePermission(ctx context.Context, roleID, permissionID string) error

	ListPermissions(ctx context.Context, activeOnly bool) ([]*domain.Permission, error)
	GetPermission(ctx context.Context, id string) (*domain.Permission, error)
	CreatePermission(ctx context.Context, in PermissionInput) (*domain.Permission, error)
	UpdatePermission(ctx context.Context, id string, upd domain.PermissionUpdate) (*domain.Permission, error)
	SoftDeletePermission(ctx context.Context, id string) error
}
