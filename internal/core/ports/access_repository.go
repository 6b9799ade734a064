package ports

import (
	"context"

	"github.com/medivex/identity-service/internal/core/domain"
)

// ListRolesFilter narrows role listings.
type ListRolesFilter struct {
	Search     string
	ActiveOnly bool
}

// RoleRepository persists roles. Names are unique case-insensitively.
type RoleRepository interface {
	// CreateRole returns ErrDuplicateName when the name is taken.
	CreateRole(ctx context.Context, role *domain.Role) error
	// UpdateRole returns ErrDuplicateName on a rename collision.
	UpdateRole(ctx context.Context, id string, upd domain.RoleUpdate) (*domain.Role, error)
	FindRoleByID(ctx context.Context, id string) (*domain.Role, error)
	FindRoleByName(ctx context.Context, name string) (*domain.Role, error)
	FindRolesByIDs(ctx context.Context, ids []string) ([]*domain.Role, error)
	FindRolesByNames(ctx context.Context, names []string) ([]*domain.Role, error)
	ListRoles(ctx context.Context, filter ListRolesFilter) ([]*domain.Role, error)
	AddRolePermission(ctx context.Context, roleID, permissionID string) error
	RemoveRolePermission(ctx context.Context, roleID, permissionID string) error
}

// PermissionRepository persists the flat permission catalog.
type PermissionRepository interface {
	CreatePermission(ctx context.Context, perm *domain.Permission) error
	UpdatePermission(ctx context.Context, id string, upd domain.PermissionUpdate) (*domain.Permission, error)
	FindPermissionByID(ctx context.Context, id string) (*domain.Permission, error)
	FindPermissionByName(ctx context.Context, name string) (*domain.Permission, error)
	FindPermissionsByIDs(ctx context.Context, ids []string) ([]*domain.Permission, error)
	ListPermissions(ctx context.Context, activeOnly bool) ([]*domain.Permission, error)
}
