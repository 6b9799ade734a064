package domain

import (
	"slices"
	"strings"
	"time"
)

// RoleType distinguishes seeded roles from administrator-defined ones.
type RoleType string

const (
	RoleTypeSystem RoleType = "SYSTEM"
	RoleTypeCustom RoleType = "CUSTOM"
)

// Seeded role names.
const (
	RoleAdmin        = "ADMIN"
	RolePharmacist   = "PHARMACIST"
	RoleCashier      = "CASHIER"
	RoleDealer       = "DEALER"
	RoleReportViewer = "REPORT_VIEWER"
	RoleSupport      = "SUPPORT"
	RoleUser         = "USER"

	// DefaultRole is attached to every newly registered identity.
	DefaultRole = RoleUser
)

// Role groups permissions. Permissions are referenced by id only.
type Role struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	Description   string    `json:"description,omitempty"`
	Type          RoleType  `json:"role_type"`
	IsSystemRole  bool      `json:"is_system_role"`
	IsActive      bool      `json:"is_active"`
	PermissionIDs []string  `json:"permission_ids"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// HasPermission reports whether permissionID is granted to the role.
func (r *Role) HasPermission(permissionID string) bool {
	return slices.Contains(r.PermissionIDs, permissionID)
}

// Permission is a flat capability: an action over a named resource.
type Permission struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	Resource    string    `json:"resource"`
	Action      string    `json:"action"`
	IsActive    bool      `json:"is_active"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// NameKey is the case-insensitive uniqueness key used for role and
// permission names.
func NameKey(name string) string {
	return strings.ToUpper(strings.TrimSpace(name))
}

// RoleUpdate carries optional role changes; nil fields are left as-is.
type RoleUpdate struct {
	Name        *string
	Description *string
	IsActive    *bool
}

// PermissionUpdate carries optional permission changes.
type PermissionUpdate struct {
	Name        *string
	Description *string
	Resource    *string
	Action      *string
	IsActive    *bool
}
