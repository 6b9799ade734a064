package domain

// Permission names referenced by the HTTP layer.
const (
	PermUserCreate = "USER_CREATE"
	PermUserRead   = "USER_READ"
	PermUserUpdate = "USER_UPDATE"
	PermUserDelete = "USER_DELETE"
	PermRoleCreate = "ROLE_CREATE"
	PermRoleRead   = "ROLE_READ"
	PermRoleUpdate = "ROLE_UPDATE"
	PermRoleDelete = "ROLE_DELETE"
)

// PermissionSeed describes one entry of the default permission catalog.
type PermissionSeed struct {
	Name        string
	Description string
	Resource    string
	Action      string
}

// RoleSeed describes one default role and the permissions it is granted when
// it is first created.
type RoleSeed struct {
	Name        string
	Description string
	Permissions []string
}

var crudResources = []struct {
	resource string
	noun     string
}{
	{"USER", "users"},
	{"ROLE", "roles"},
	{"MEDICINE", "medicines"},
	{"INVENTORY", "inventory"},
	{"SALES", "sales"},
	{"CUSTOMER", "customers"},
	{"DEALER", "dealers"},
	{"NOTIFICATION", "notifications"},
}

var crudActions = []struct {
	action string
	verb   string
}{
	{"CREATE", "Create"},
	{"READ", "Read"},
	{"UPDATE", "Update"},
	{"DELETE", "Delete"},
}

// DefaultPermissions returns the permission catalog seeded at startup.
func DefaultPermissions() []PermissionSeed {
	seeds := make([]PermissionSeed, 0, len(crudResources)*len(crudActions)+4)
	for _, r := range crudResources {
		for _, a := range crudActions {
			seeds = append(seeds, PermissionSeed{
				Name:        r.resource + "_" + a.action,
				Description: a.verb + " " + r.noun,
				Resource:    r.resource,
				Action:      a.action,
			})
		}
	}
	return append(seeds,
		PermissionSeed{Name: "REPORT_READ", Description: "Read reports", Resource: "REPORT", Action: "READ"},
		PermissionSeed{Name: "REPORT_EXPORT", Description: "Export reports", Resource: "REPORT", Action: "EXPORT"},
		PermissionSeed{Name: "SYSTEM_ADMIN", Description: "System administration", Resource: "SYSTEM", Action: "ADMIN"},
		PermissionSeed{Name: "SYSTEM_CONFIG", Description: "System configuration", Resource: "SYSTEM", Action: "CONFIG"},
	)
}

// DefaultRoles returns the system roles seeded at startup. ADMIN is granted the
// whole catalog.
func DefaultRoles() []RoleSeed {
	all := make([]string, 0, 40)
	for _, p := range DefaultPermissions() {
		all = append(all, p.Name)
	}
	return []RoleSeed{
		{Name: RoleAdmin, Description: "Full access to all system features and configurations", Permissions: all},
		{Name: RolePharmacist, Description: "Manages medicines, inventory, purchases, and sales", Permissions: []string{
			"MEDICINE_CREATE", "MEDICINE_READ", "MEDICINE_UPDATE", "MEDICINE_DELETE",
			"INVENTORY_CREATE", "INVENTORY_READ", "INVENTORY_UPDATE", "INVENTORY_DELETE",
			"SALES_CREATE", "SALES_READ", "SALES_UPDATE", "CUSTOMER_READ", "REPORT_READ",
		}},
		{Name: RoleCashier, Description: "Handles billing and customer interactions at the counter", Permissions: []string{
			"SALES_CREATE", "SALES_READ", "CUSTOMER_CREATE", "CUSTOMER_READ", "CUSTOMER_UPDATE", "MEDICINE_READ",
		}},
		{Name: RoleDealer, Description: "Supplier role for order tracking", Permissions: []string{
			"DEALER_READ", "INVENTORY_READ",
		}},
		{Name: RoleReportViewer, Description: "View-only dashboard and report access", Permissions: []string{
			"REPORT_READ", "REPORT_EXPORT",
		}},
		{Name: RoleSupport, Description: "Manages notifications and customer support communications", Permissions: []string{
			"NOTIFICATION_CREATE", "NOTIFICATION_READ", "NOTIFICATION_UPDATE", "NOTIFICATION_DELETE", "CUSTOMER_READ",
		}},
		{Name: RoleUser, Description: "Basic user role with limited access"},
	}
}
