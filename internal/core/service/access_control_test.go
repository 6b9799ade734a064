package service

import (
	"context"
	"errors"
	"slices"
	"testing"

	"github.com/medivex/identity-service/internal/core/domain"
	"github.com/medivex/identity-service/internal/core/ports"
)

func TestAccessControlGraph_SeedIsIdempotent(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	roles := len(env.access.roles)
	perms := len(env.access.perms)
	if roles != len(domain.DefaultRoles()) || perms != len(domain.DefaultPermissions()) {
		t.Fatalf("unexpected seed sizes: %d roles, %d permissions", roles, perms)
	}

	// Grants changed after the first seed must survive a re-seed.
	cashier, _ := env.access.FindRoleByName(ctx, domain.RoleCashier)
	extra, _ := env.access.FindPermissionByName(ctx, "REPORT_EXPORT")
	if err := env.graph.AssignPermission(ctx, cashier.ID, extra.ID); err != nil {
		t.Fatalf("AssignPermission: %v", err)
	}

	if err := env.graph.Seed(ctx); err != nil {
		t.Fatalf("second Seed: %v", err)
	}
	if len(env.access.roles) != roles || len(env.access.perms) != perms {
		t.Fatalf("re-seed created duplicates")
	}
	after, _ := env.access.FindRoleByID(ctx, cashier.ID)
	if !after.HasPermission(extra.ID) {
		t.Fatalf("re-seed dropped a manual grant")
	}
}

func TestAccessControlGraph_SeededRoles(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	perms, err := env.graph.EffectivePermissions(ctx, []string{domain.RoleAdmin})
	if err != nil {
		t.Fatalf("EffectivePermissions: %v", err)
	}
	if len(perms) != len(domain.DefaultPermissions()) {
		t.Fatalf("admin should hold the whole catalog, got %d", len(perms))
	}

	perms, _ = env.graph.EffectivePermissions(ctx, []string{domain.RoleUser})
	if len(perms) != 0 {
		t.Fatalf("USER should hold nothing, got %v", perms)
	}

	perms, _ = env.graph.EffectivePermissions(ctx, []string{domain.RoleDealer, domain.RoleReportViewer})
	want := []string{"DEALER_READ", "INVENTORY_READ", "REPORT_EXPORT", "REPORT_READ"}
	if !slices.Equal(perms, want) {
		t.Fatalf("union = %v, want %v", perms, want)
	}

	admin, _ := env.access.FindRoleByName(ctx, domain.RoleAdmin)
	if !admin.IsSystemRole || admin.Type != domain.RoleTypeSystem {
		t.Fatalf("seeded roles must be system roles: %+v", admin)
	}
}

func TestAccessControlGraph_SoftDeleteSystemRoleFails(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	admin, _ := env.access.FindRoleByName(ctx, domain.RoleAdmin)

	if err := env.graph.SoftDeleteRole(ctx, admin.ID); !errors.Is(err, domain.ErrCannotDeleteSystemRole) {
		t.Fatalf("expected ErrCannotDeleteSystemRole, got %v", err)
	}
	inactive := false
	if _, err := env.graph.UpdateRole(ctx, admin.ID, domain.RoleUpdate{IsActive: &inactive}); !errors.Is(err, domain.ErrCannotDeleteSystemRole) {
		t.Fatalf("expected ErrCannotDeleteSystemRole via update, got %v", err)
	}
	rename := "SUPERUSER"
	if _, err := env.graph.UpdateRole(ctx, admin.ID, domain.RoleUpdate{Name: &rename}); !errors.Is(err, domain.ErrValidationFailed) {
		t.Fatalf("expected validation error on rename, got %v", err)
	}

	stored, _ := env.access.FindRoleByID(ctx, admin.ID)
	if !stored.IsActive {
		t.Fatalf("system role must remain active")
	}
}

func TestAccessControlGraph_CustomRoleLifecycle(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	role, err := env.graph.CreateRole(ctx, ports.RoleInput{Name: "Auditor", Description: "reads everything"})
	if err != nil {
		t.Fatalf("CreateRole: %v", err)
	}
	if role.Type != domain.RoleTypeCustom || role.IsSystemRole || !role.IsActive {
		t.Fatalf("unexpected role: %+v", role)
	}
	if _, err := env.graph.CreateRole(ctx, ports.RoleInput{Name: "auditor"}); !errors.Is(err, domain.ErrDuplicateName) {
		t.Fatalf("expected case-insensitive duplicate, got %v", err)
	}
	if _, err := env.graph.CreateRole(ctx, ports.RoleInput{Name: "  "}); !errors.Is(err, domain.ErrValidationFailed) {
		t.Fatalf("expected validation error, got %v", err)
	}

	perm, _ := env.access.FindPermissionByName(ctx, "REPORT_READ")
	if err := env.graph.AssignPermission(ctx, role.ID, perm.ID); err != nil {
		t.Fatalf("AssignPermission: %v", err)
	}
	if err := env.graph.AssignPermission(ctx, role.ID, perm.ID); err != nil {
		t.Fatalf("second AssignPermission: %v", err)
	}
	stored, _ := env.access.FindRoleByID(ctx, role.ID)
	if len(stored.PermissionIDs) != 1 {
		t.Fatalf("assigning twice must not duplicate, got %v", stored.PermissionIDs)
	}

	if err := env.graph.AssignPermission(ctx, role.ID, "missing"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}

	if err := env.graph.SoftDeleteRole(ctx, role.ID); err != nil {
		t.Fatalf("SoftDeleteRole: %v", err)
	}
	perms, _ := env.graph.EffectivePermissions(ctx, []string{"Auditor"})
	if len(perms) != 0 {
		t.Fatalf("inactive role must grant nothing, got %v", perms)
	}

	identity := &domain.Identity{RoleIDs: []string{role.ID}}
	names, _ := env.graph.ResolveRoles(ctx, identity)
	if len(names) != 0 {
		t.Fatalf("inactive role must not resolve, got %v", names)
	}
}

func TestAccessControlGraph_InactivePermissionNotGranted(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	perm, _ := env.access.FindPermissionByName(ctx, "DEALER_READ")
	if err := env.graph.SoftDeletePermission(ctx, perm.ID); err != nil {
		t.Fatalf("SoftDeletePermission: %v", err)
	}
	perms, _ := env.graph.EffectivePermissions(ctx, []string{domain.RoleDealer})
	if !slices.Equal(perms, []string{"INVENTORY_READ"}) {
		t.Fatalf("unexpected permissions: %v", perms)
	}
}

func TestAccessControlGraph_CreatePermission(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	perm, err := env.graph.CreatePermission(ctx, ports.PermissionInput{Name: "AUDIT_READ", Resource: "audit", Action: "read"})
	if err != nil {
		t.Fatalf("CreatePermission: %v", err)
	}
	if perm.Resource != "AUDIT" || perm.Action != "READ" || !perm.IsActive {
		t.Fatalf("unexpected permission: %+v", perm)
	}
	if _, err := env.graph.CreatePermission(ctx, ports.PermissionInput{Name: "AUDIT_READ", Resource: "AUDIT", Action: "READ"}); !errors.Is(err, domain.ErrDuplicateName) {
		t.Fatalf("expected duplicate, got %v", err)
	}
	if _, err := env.graph.CreatePermission(ctx, ports.PermissionInput{Name: "X"}); !errors.Is(err, domain.ErrValidationFailed) {
		t.Fatalf("expected validation error, got %v", err)
	}
}
