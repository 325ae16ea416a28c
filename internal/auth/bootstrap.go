package auth

import (
	"context"
	"errors"
	"fmt"
)

// AdministratorRole is the role created by EnsureAdmin.
const AdministratorRole = "Administrator"

// EnsureAdmin creates the Administrator role with every builtin permission and an
// account bound to it, unless an account with that email already exists.
func (s *Service) EnsureAdmin(ctx context.Context, name, email, password string) (Account, error) {
	existing, err := s.store.FindAccountByEmail(ctx, normalizeEmail(email))
	if err == nil {
		existing.PasswordHash = ""
		return existing, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return Account{}, err
	}

	roleID, err := s.adminRoleID(ctx)
	if err != nil {
		return Account{}, err
	}
	return s.CreateAccount(ctx, AccountInput{
		Name:     name,
		Email:    email,
		Password: password,
		RoleID:   roleID,
	})
}

func (s *Service) adminRoleID(ctx context.Context) (string, error) {
	roles, err := s.store.ListRoles(ctx)
	if err != nil {
		return "", err
	}
	for _, r := range roles {
		if r.Name == AdministratorRole {
			return r.ID, nil
		}
	}
	role, err := s.CreateRole(ctx, RoleInput{
		Name:        AdministratorRole,
		Description: "Full access to every view and resource",
		Permissions: BuiltinPermissions,
	})
	if err != nil {
		return "", fmt.Errorf("create administrator role: %w", err)
	}
	return role.ID, nil
}
