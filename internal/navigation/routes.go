// Package navigation decides, before a view renders, whether the current
// session may open it or must be sent elsewhere.
package navigation

import "simantu.org/internal/auth"

const (
	LoginPath = "/login"
	RootPath  = "/"
)

// Route describes one view.
type Route struct {
	Path         string
	RequiresAuth bool
	GuestOnly    bool
	// Permission, when set, must be held by the account to open the view.
	Permission string
}

// PermissionRoute pairs a landing view with the permission that unlocks it.
type PermissionRoute struct {
	Path       string
	Permission string
}

// DefaultRoutes lists the application's views.
func DefaultRoutes() []Route {
	return []Route{
		{Path: LoginPath, GuestOnly: true},
		{Path: RootPath, RequiresAuth: true, Permission: auth.PermDashboardRead},
		{Path: "/users", RequiresAuth: true, Permission: auth.PermUsersRead},
		{Path: "/roles", RequiresAuth: true, Permission: auth.PermRolesRead},
		{Path: "/configs", RequiresAuth: true, Permission: auth.PermConfigsRead},
		{Path: "/tasks", RequiresAuth: true, Permission: auth.PermTasksRead},
		{Path: "/opd", RequiresAuth: true, Permission: auth.PermOPDRead},
		{Path: "/analytics", RequiresAuth: true, Permission: auth.PermAnalyticsRead},
		{Path: "/expert-dashboard", RequiresAuth: true, Permission: auth.PermExpertRead},
	}
}

// DefaultPermissionRoutes is the landing order: the first entry whose
// permission the account holds wins.
func DefaultPermissionRoutes() []PermissionRoute {
	return []PermissionRoute{
		{Path: RootPath, Permission: auth.PermDashboardRead},
		{Path: "/analytics", Permission: auth.PermAnalyticsRead},
		{Path: "/expert-dashboard", Permission: auth.PermExpertRead},
		{Path: "/tasks", Permission: auth.PermTasksRead},
		{Path: "/users", Permission: auth.PermUsersRead},
		{Path: "/roles", Permission: auth.PermRolesRead},
		{Path: "/configs", Permission: auth.PermConfigsRead},
		{Path: "/opd", Permission: auth.PermOPDRead},
	}
}
