package auth

import (
	"context"
	"errors"
	"time"
)

// Service ties credential checks, token issuance and account/role management together.
type Service struct {
	store  Store
	tokens *TokenService
}

// NewService constructs Service over the given store and token service.
func NewService(store Store, tokens *TokenService) (*Service, error) {
	if store == nil {
		return nil, errors.New("auth store is required")
	}
	if tokens == nil {
		return nil, errors.New("token service is required")
	}
	return &Service{store: store, tokens: tokens}, nil
}

// Tokens exposes the underlying token service.
func (s *Service) Tokens() *TokenService { return s.tokens }

// LoginResult is what a successful login hands back to the client.
type LoginResult struct {
	Token     string
	ExpiresAt time.Time
	Profile   Profile
}

// Login validates credentials, checks them against the store and issues a token.
// Unknown email and wrong password both yield ErrUnauthorized.
func (s *Service) Login(ctx context.Context, creds Credentials) (LoginResult, Principal, error) {
	if err := creds.Validate(); err != nil {
		return LoginResult{}, Principal{}, err
	}
	account, err := s.store.FindAccountByEmail(ctx, normalizeEmail(creds.Email))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return LoginResult{}, Principal{}, ErrUnauthorized
		}
		return LoginResult{}, Principal{}, err
	}
	if err := VerifyPassword(account.PasswordHash, creds.Password); err != nil {
		return LoginResult{}, Principal{}, ErrUnauthorized
	}
	principal, err := s.Principal(ctx, account.ID)
	if err != nil {
		return LoginResult{}, Principal{}, err
	}
	token, exp, err := s.tokens.Issue(account.ID, account.Email)
	if err != nil {
		return LoginResult{}, Principal{}, err
	}
	return LoginResult{Token: token, ExpiresAt: exp, Profile: principal.Profile()}, principal, nil
}

// Authenticate verifies a bearer token and loads the account behind it.
// ErrNotFound is returned when the token is valid but the account is gone.
func (s *Service) Authenticate(ctx context.Context, token string) (Principal, error) {
	accountID, err := s.tokens.Verify(token)
	if err != nil {
		return Principal{}, ErrInvalidToken
	}
	return s.Principal(ctx, accountID)
}

// Principal loads an account with its role permissions.
func (s *Service) Principal(ctx context.Context, accountID string) (Principal, error) {
	account, err := s.store.GetAccount(ctx, accountID)
	if err != nil {
		return Principal{}, err
	}
	var role Role
	if account.RoleID != "" {
		role, err = s.store.GetRole(ctx, account.RoleID)
		if err != nil && !errors.Is(err, ErrNotFound) {
			return Principal{}, err
		}
	}
	account.PasswordHash = ""
	return NewPrincipal(account, role), nil
}
