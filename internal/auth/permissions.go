package auth

import "sort"

const (
	PermDashboardRead = "dashboard.read"
	PermAnalyticsRead = "analytics.read"
	PermExpertRead    = "expert.read"
	PermTasksRead     = "tasks.read"
	PermTasksWrite    = "tasks.write"
	PermUsersRead     = "users.read"
	PermUsersWrite    = "users.write"
	PermRolesRead     = "roles.read"
	PermRolesWrite    = "roles.write"
	PermConfigsRead   = "configs.read"
	PermOPDRead       = "opd.read"
)

// BuiltinPermissions lists the permission strings the application checks.
// Roles may hold other literals; they simply never match anything.
var BuiltinPermissions = []string{
	PermDashboardRead,
	PermAnalyticsRead,
	PermExpertRead,
	PermTasksRead,
	PermTasksWrite,
	PermUsersRead,
	PermUsersWrite,
	PermRolesRead,
	PermRolesWrite,
	PermConfigsRead,
	PermOPDRead,
}

// PermissionSet is an exact-match set of permission strings.
type PermissionSet map[string]struct{}

func NewPermissionSet(perms ...string) PermissionSet {
	set := make(PermissionSet, len(perms))
	for _, p := range perms {
		if p == "" {
			continue
		}
		set[p] = struct{}{}
	}
	return set
}

func (s PermissionSet) Has(perm string) bool {
	_, ok := s[perm]
	return ok
}

// Sorted returns the members in lexical order.
func (s PermissionSet) Sorted() []string {
	out := make([]string, 0, len(s))
	for k := range s {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
