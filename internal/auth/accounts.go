package auth

import (
	"context"
	"fmt"
	"strings"
)

// AccountInput is the payload for creating an account.
type AccountInput struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
	RoleID   string `json:"role_id"`
}

// AccountPatch is a partial account update; nil fields are untouched.
type AccountPatch struct {
	Name     *string `json:"name"`
	Email    *string `json:"email"`
	Password *string `json:"password"`
	RoleID   *string `json:"role_id"`
}

func (s *Service) ListAccounts(ctx context.Context) ([]Account, error) {
	return s.store.ListAccounts(ctx)
}

func (s *Service) GetAccount(ctx context.Context, id string) (Account, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return Account{}, fmt.Errorf("%w: account id is required", ErrInvalidInput)
	}
	return s.store.GetAccount(ctx, id)
}

func (s *Service) CreateAccount(ctx context.Context, in AccountInput) (Account, error) {
	name, err := validateName(in.Name)
	if err != nil {
		return Account{}, err
	}
	if !validEmail(in.Email) {
		return Account{}, fmt.Errorf("%w: valid email required", ErrInvalidInput)
	}
	if err := validatePassword(in.Password); err != nil {
		return Account{}, err
	}
	roleID := strings.TrimSpace(in.RoleID)
	if roleID == "" {
		return Account{}, fmt.Errorf("%w: valid role id required", ErrInvalidInput)
	}
	hash, err := HashPassword(in.Password)
	if err != nil {
		return Account{}, err
	}
	return s.store.CreateAccount(ctx, Account{
		Name:         name,
		Email:        normalizeEmail(in.Email),
		PasswordHash: hash,
		RoleID:       roleID,
	})
}

func (s *Service) UpdateAccount(ctx context.Context, id string, patch AccountPatch) (Account, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return Account{}, fmt.Errorf("%w: account id is required", ErrInvalidInput)
	}
	var upd AccountUpdate
	if patch.Name != nil {
		name, err := validateName(*patch.Name)
		if err != nil {
			return Account{}, err
		}
		upd.Name = &name
	}
	if patch.Email != nil {
		if !validEmail(*patch.Email) {
			return Account{}, fmt.Errorf("%w: valid email required", ErrInvalidInput)
		}
		email := normalizeEmail(*patch.Email)
		upd.Email = &email
	}
	if patch.Password != nil {
		if err := validatePassword(*patch.Password); err != nil {
			return Account{}, err
		}
		hash, err := HashPassword(*patch.Password)
		if err != nil {
			return Account{}, err
		}
		upd.PasswordHash = &hash
	}
	if patch.RoleID != nil {
		roleID := strings.TrimSpace(*patch.RoleID)
		if roleID == "" {
			return Account{}, fmt.Errorf("%w: valid role id required", ErrInvalidInput)
		}
		upd.RoleID = &roleID
	}
	if upd.Empty() {
		return Account{}, fmt.Errorf("%w: no fields to update", ErrInvalidInput)
	}
	return s.store.UpdateAccount(ctx, id, upd)
}

// DeleteAccount removes an account. actorID is the account performing the deletion
// and may not delete itself.
func (s *Service) DeleteAccount(ctx context.Context, actorID, id string) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return fmt.Errorf("%w: account id is required", ErrInvalidInput)
	}
	if id == actorID {
		return fmt.Errorf("%w: cannot delete your own account", ErrInvalidInput)
	}
	return s.store.DeleteAccount(ctx, id)
}
