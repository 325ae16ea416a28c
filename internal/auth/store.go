package auth

import "context"

// AccountStore persists accounts. Lookups join the role name.
type AccountStore interface {
	CreateAccount(ctx context.Context, a Account) (Account, error)
	ListAccounts(ctx context.Context) ([]Account, error)
	GetAccount(ctx context.Context, id string) (Account, error)
	// FindAccountByEmail is the only lookup that returns PasswordHash.
	FindAccountByEmail(ctx context.Context, email string) (Account, error)
	UpdateAccount(ctx context.Context, id string, upd AccountUpdate) (Account, error)
	DeleteAccount(ctx context.Context, id string) error
}

// RoleStore persists roles and their permission sets.
type RoleStore interface {
	CreateRole(ctx context.Context, r Role) (Role, error)
	ListRoles(ctx context.Context) ([]Role, error)
	GetRole(ctx context.Context, id string) (Role, error)
	UpdateRole(ctx context.Context, id string, upd RoleUpdate) (Role, error)
	// DeleteRole fails with ErrConflict while any account references the role.
	DeleteRole(ctx context.Context, id string) error
}

// Store is everything the auth service needs from persistence.
type Store interface {
	AccountStore
	RoleStore
}
