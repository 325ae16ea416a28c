package auth

// Principal is an authenticated account with its role resolved.
type Principal struct {
	Account     Account
	Permissions PermissionSet
}

// NewPrincipal binds an account to the permission set of its role.
func NewPrincipal(account Account, role Role) Principal {
	if account.RoleName == "" {
		account.RoleName = role.Name
	}
	return Principal{Account: account, Permissions: NewPermissionSet(role.Permissions...)}
}

// HasPermission reports whether the principal can execute action identified by key.
func (p Principal) HasPermission(key string) bool {
	return p.Permissions.Has(key)
}

// Profile renders the principal for clients.
func (p Principal) Profile() Profile {
	return Profile{
		ID:          p.Account.ID,
		Name:        p.Account.Name,
		Email:       p.Account.Email,
		RoleID:      p.Account.RoleID,
		Role:        p.Account.RoleName,
		Permissions: p.Permissions.Sorted(),
		CreatedAt:   p.Account.CreatedAt,
		UpdatedAt:   p.Account.UpdatedAt,
	}
}
