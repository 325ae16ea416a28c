package auth

import (
	"context"
	"fmt"
	"strings"
)

type RoleInput struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Permissions []string `json:"permissions"`
}

type RolePatch struct {
	Name        *string   `json:"name"`
	Description *string   `json:"description"`
	Permissions *[]string `json:"permissions"`
}

func (s *Service) ListRoles(ctx context.Context) ([]Role, error) {
	return s.store.ListRoles(ctx)
}

func (s *Service) GetRole(ctx context.Context, id string) (Role, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return Role{}, fmt.Errorf("%w: role id is required", ErrInvalidInput)
	}
	return s.store.GetRole(ctx, id)
}

func (s *Service) CreateRole(ctx context.Context, in RoleInput) (Role, error) {
	name, err := validateName(in.Name)
	if err != nil {
		return Role{}, err
	}
	desc, err := validateDescription(in.Description)
	if err != nil {
		return Role{}, err
	}
	return s.store.CreateRole(ctx, Role{
		Name:        name,
		Description: desc,
		Permissions: normalizePermissions(in.Permissions),
	})
}

func (s *Service) UpdateRole(ctx context.Context, id string, patch RolePatch) (Role, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return Role{}, fmt.Errorf("%w: role id is required", ErrInvalidInput)
	}
	var upd RoleUpdate
	if patch.Name != nil {
		name, err := validateName(*patch.Name)
		if err != nil {
			return Role{}, err
		}
		upd.Name = &name
	}
	if patch.Description != nil {
		desc, err := validateDescription(*patch.Description)
		if err != nil {
			return Role{}, err
		}
		upd.Description = &desc
	}
	if patch.Permissions != nil {
		perms := normalizePermissions(*patch.Permissions)
		upd.Permissions = &perms
	}
	if upd.Empty() {
		return Role{}, fmt.Errorf("%w: no fields to update", ErrInvalidInput)
	}
	return s.store.UpdateRole(ctx, id, upd)
}

func (s *Service) DeleteRole(ctx context.Context, id string) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return fmt.Errorf("%w: role id is required", ErrInvalidInput)
	}
	return s.store.DeleteRole(ctx, id)
}

func validateDescription(desc string) (string, error) {
	desc = strings.TrimSpace(desc)
	if len([]rune(desc)) > maxDescriptionLength {
		return "", fmt.Errorf("%w: description too long", ErrInvalidInput)
	}
	return desc, nil
}
