package service

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/medivex/identity-service/internal/core/domain"
	"github.com/medivex/identity-service/internal/core/ports"
)

// AccessControlGraph owns roles, permissions and the links between them.
type AccessControlGraph struct {
	roles ports.RoleRepository
	perms ports.PermissionRepository
	log   zerolog.Logger
	now   func() time.Time
}

var _ ports.AccessControlService = (*AccessControlGraph)(nil)

func NewAccessControlGraph(roles ports.RoleRepository, perms ports.PermissionRepository, log zerolog.Logger) *AccessControlGraph {
	return &AccessControlGraph{
		roles: roles,
		perms: perms,
		log:   log.With().Str("component", "access_control").Logger(),
		now:   time.Now,
	}
}

// ResolveRoles returns the sorted names of the identity's active roles.
func (g *AccessControlGraph) ResolveRoles(ctx context.Context, identity *domain.Identity) ([]string, error) {
	if len(identity.RoleIDs) == 0 {
		return []string{}, nil
	}
	roles, err := g.roles.FindRolesByIDs(ctx, identity.RoleIDs)
	if err != nil {
		return nil, fmt.Errorf("resolve roles: %w", err)
	}
	names := make([]string, 0, len(roles))
	for _, r := range roles {
		if r.IsActive {
			names = append(names, r.Name)
		}
	}
	slices.Sort(names)
	return slices.Compact(names), nil
}

// EffectivePermissions returns the sorted union of active permission names
// granted to the named active roles.
func (g *AccessControlGraph) EffectivePermissions(ctx context.Context, roleNames []string) ([]string, error) {
	if len(roleNames) == 0 {
		return []string{}, nil
	}
	roles, err := g.roles.FindRolesByNames(ctx, roleNames)
	if err != nil {
		return nil, fmt.Errorf("effective permissions: %w", err)
	}
	var ids []string
	for _, r := range roles {
		if r.IsActive {
			ids = append(ids, r.PermissionIDs...)
		}
	}
	if len(ids) == 0 {
		return []string{}, nil
	}
	slices.Sort(ids)
	perms, err := g.perms.FindPermissionsByIDs(ctx, slices.Compact(ids))
	if err != nil {
		return nil, fmt.Errorf("effective permissions: %w", err)
	}
	names := make([]string, 0, len(perms))
	for _, p := range perms {
		if p.IsActive {
			names = append(names, p.Name)
		}
	}
	slices.Sort(names)
	return slices.Compact(names), nil
}

// FindRoleByName looks a role up case-insensitively.
func (g *AccessControlGraph) FindRoleByName(ctx context.Context, name string) (*domain.Role, error) {
	return g.roles.FindRoleByName(ctx, name)
}

func (g *AccessControlGraph) ListRoles(ctx context.Context, filter ports.ListRolesFilter) ([]*domain.Role, error) {
	return g.roles.ListRoles(ctx, filter)
}

func (g *AccessControlGraph) GetRole(ctx context.Context, id string) (*domain.Role, error) {
	return g.roles.FindRoleByID(ctx, id)
}

// CreateRole adds a CUSTOM role. Names are unique case-insensitively.
func (g *AccessControlGraph) CreateRole(ctx context.Context, in ports.RoleInput) (*domain.Role, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, domain.Invalid("name is required")
	}
	now := g.now().UTC()
	role := &domain.Role{
		ID:            uuid.NewString(),
		Name:          name,
		Description:   strings.TrimSpace(in.Description),
		Type:          domain.RoleTypeCustom,
		IsActive:      true,
		PermissionIDs: []string{},
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := g.roles.CreateRole(ctx, role); err != nil {
		return nil, err
	}
	g.log.Info().Str("role", role.Name).Msg("role created")
	return role, nil
}

// UpdateRole renames, re-describes or toggles a role. System roles keep their
// name and cannot be deactivated.
func (g *AccessControlGraph) UpdateRole(ctx context.Context, id string, upd domain.RoleUpdate) (*domain.Role, error) {
	role, err := g.roles.FindRoleByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if upd.Name != nil {
		name := strings.TrimSpace(*upd.Name)
		if name == "" {
			return nil, domain.Invalid("name is required")
		}
		if role.IsSystemRole && domain.NameKey(name) != domain.NameKey(role.Name) {
			return nil, domain.Invalid("system roles cannot be renamed")
		}
		upd.Name = &name
	}
	if upd.IsActive != nil && !*upd.IsActive && role.IsSystemRole {
		return nil, domain.ErrCannotDeleteSystemRole
	}
	return g.roles.UpdateRole(ctx, id, upd)
}

// SoftDeleteRole deactivates a role. System roles are refused.
func (g *AccessControlGraph) SoftDeleteRole(ctx context.Context, id string) error {
	role, err := g.roles.FindRoleByID(ctx, id)
	if err != nil {
		return err
	}
	if role.IsSystemRole {
		return domain.ErrCannotDeleteSystemRole
	}
	inactive := false
	if _, err := g.roles.UpdateRole(ctx, id, domain.RoleUpdate{IsActive: &inactive}); err != nil {
		return err
	}
	g.log.Info().Str("role", role.Name).Msg("role deactivated")
	return nil
}

// AssignPermission links a permission to a role. Assigning twice is a no-op.
func (g *AccessControlGraph) AssignPermission(ctx context.Context, roleID, permissionID string) error {
	if _, err := g.roles.FindRoleByID(ctx, roleID); err != nil {
		return err
	}
	if _, err := g.perms.FindPermissionByID(ctx, permissionID); err != nil {
		return err
	}
	return g.roles.AddRolePermission(ctx, roleID, permissionID)
}

// RevokePermission unlinks a permission from a role.
func (g *AccessControlGraph) RevokePermission(ctx context.Context, roleID, permissionID string) error {
	if _, err := g.roles.FindRoleByID(ctx, roleID); err != nil {
		return err
	}
	if _, err := g.perms.FindPermissionByID(ctx, permissionID); err != nil {
		return err
	}
	return g.roles.RemoveRolePermission(ctx, roleID, permissionID)
}

func (g *AccessControlGraph) ListPermissions(ctx context.Context, activeOnly bool) ([]*domain.Permission, error) {
	return g.perms.ListPermissions(ctx, activeOnly)
}

func (g *AccessControlGraph) GetPermission(ctx context.Context, id string) (*domain.Permission, error) {
	return g.perms.FindPermissionByID(ctx, id)
}

func (g *AccessControlGraph) CreatePermission(ctx context.Context, in ports.PermissionInput) (*domain.Permission, error) {
	name := strings.TrimSpace(in.Name)
	switch {
	case name == "":
		return nil, domain.Invalid("name is required")
	case strings.TrimSpace(in.Resource) == "":
		return nil, domain.Invalid("resource is required")
	case strings.TrimSpace(in.Action) == "":
		return nil, domain.Invalid("action is required")
	}
	now := g.now().UTC()
	perm := &domain.Permission{
		ID:          uuid.NewString(),
		Name:        name,
		Description: strings.TrimSpace(in.Description),
		Resource:    strings.ToUpper(strings.TrimSpace(in.Resource)),
		Action:      strings.ToUpper(strings.TrimSpace(in.Action)),
		IsActive:    true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := g.perms.CreatePermission(ctx, perm); err != nil {
		return nil, err
	}
	return perm, nil
}

func (g *AccessControlGraph) UpdatePermission(ctx context.Context, id string, upd domain.PermissionUpdate) (*domain.Permission, error) {
	if upd.Name != nil {
		name := strings.TrimSpace(*upd.Name)
		if name == "" {
			return nil, domain.Invalid("name is required")
		}
		upd.Name = &name
	}
	return g.perms.UpdatePermission(ctx, id, upd)
}

func (g *AccessControlGraph) SoftDeletePermission(ctx context.Context, id string) error {
	inactive := false
	_, err := g.perms.UpdatePermission(ctx, id, domain.PermissionUpdate{IsActive: &inactive})
	return err
}

// Seed creates the default permission and role catalogs. Entries that already
// exist are left untouched, so running it again changes nothing. A role only
// receives its default grants when Seed creates it.
func (g *AccessControlGraph) Seed(ctx context.Context) error {
	permIDs := make(map[string]string)
	created := 0
	for _, seed := range domain.DefaultPermissions() {
		perm, err := g.perms.FindPermissionByName(ctx, seed.Name)
		if err == nil {
			permIDs[perm.Name] = perm.ID
			continue
		}
		if !errors.Is(err, domain.ErrNotFound) {
			return fmt.Errorf("seed permission %s: %w", seed.Name, err)
		}
		now := g.now().UTC()
		perm = &domain.Permission{
			ID:          uuid.NewString(),
			Name:        seed.Name,
			Description: seed.Description,
			Resource:    seed.Resource,
			Action:      seed.Action,
			IsActive:    true,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		if err := g.perms.CreatePermission(ctx, perm); err != nil {
			if !errors.Is(err, domain.ErrDuplicateName) {
				return fmt.Errorf("seed permission %s: %w", seed.Name, err)
			}
			// Another instance seeded it first.
			if perm, err = g.perms.FindPermissionByName(ctx, seed.Name); err != nil {
				return fmt.Errorf("seed permission %s: %w", seed.Name, err)
			}
		} else {
			created++
		}
		permIDs[perm.Name] = perm.ID
	}

	for _, seed := range domain.DefaultRoles() {
		_, err := g.roles.FindRoleByName(ctx, seed.Name)
		if err == nil {
			continue
		}
		if !errors.Is(err, domain.ErrNotFound) {
			return fmt.Errorf("seed role %s: %w", seed.Name, err)
		}
		grants := make([]string, 0, len(seed.Permissions))
		for _, name := range seed.Permissions {
			if id, ok := permIDs[name]; ok {
				grants = append(grants, id)
			}
		}
		now := g.now().UTC()
		role := &domain.Role{
			ID:            uuid.NewString(),
			Name:          seed.Name,
			Description:   seed.Description,
			Type:          domain.RoleTypeSystem,
			IsSystemRole:  true,
			IsActive:      true,
			PermissionIDs: grants,
			CreatedAt:     now,
			UpdatedAt:     now,
		}
		if err := g.roles.CreateRole(ctx, role); err != nil {
			if errors.Is(err, domain.ErrDuplicateName) {
				continue
			}
			return fmt.Errorf("seed role %s: %w", seed.Name, err)
		}
		created++
		g.log.Info().Str("role", role.Name).Int("permissions", len(grants)).Msg("seeded role")
	}

	g.log.Info().Int("created", created).Msg("access control catalog seeded")
	return nil
}
