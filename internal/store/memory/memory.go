// Package memory is a process-local auth.Store used for development runs
// without a database and for tests.
package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"simantu.org/internal/auth"
	"simantu.org/internal/ids"
)

var _ auth.Store = (*Store)(nil)

type Store struct {
	mu       sync.RWMutex
	accounts map[string]auth.Account
	roles    map[string]auth.Role
	now      func() time.Time
}

func New() *Store {
	return &Store{
		accounts: make(map[string]auth.Account),
		roles:    make(map[string]auth.Role),
		now:      time.Now,
	}
}

func (s *Store) CreateAccount(_ context.Context, a auth.Account) (auth.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.emailTaken(a.Email, "") {
		return auth.Account{}, fmt.Errorf("%w: email already exists", auth.ErrConflict)
	}
	if _, ok := s.roles[a.RoleID]; !ok {
		return auth.Account{}, fmt.Errorf("%w: role does not exist", auth.ErrInvalidInput)
	}
	if a.ID == "" {
		a.ID = ids.New()
	}
	now := s.now().UTC()
	a.CreatedAt, a.UpdatedAt = now, now
	s.accounts[a.ID] = a
	return s.view(a), nil
}

func (s *Store) ListAccounts(_ context.Context) ([]auth.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]auth.Account, 0, len(s.accounts))
	for _, a := range s.accounts {
		out = append(out, s.view(a))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (s *Store) GetAccount(_ context.Context, id string) (auth.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.accounts[id]
	if !ok {
		return auth.Account{}, auth.ErrNotFound
	}
	return s.view(a), nil
}

func (s *Store) FindAccountByEmail(_ context.Context, email string) (auth.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, a := range s.accounts {
		if strings.EqualFold(a.Email, email) {
			v := s.view(a)
			v.PasswordHash = a.PasswordHash
			return v, nil
		}
	}
	return auth.Account{}, auth.ErrNotFound
}

func (s *Store) UpdateAccount(_ context.Context, id string, upd auth.AccountUpdate) (auth.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.accounts[id]
	if !ok {
		return auth.Account{}, auth.ErrNotFound
	}
	if upd.Email != nil && s.emailTaken(*upd.Email, id) {
		return auth.Account{}, fmt.Errorf("%w: email already exists", auth.ErrConflict)
	}
	if upd.RoleID != nil {
		if _, ok := s.roles[*upd.RoleID]; !ok {
			return auth.Account{}, fmt.Errorf("%w: role does not exist", auth.ErrInvalidInput)
		}
		a.RoleID = *upd.RoleID
	}
	if upd.Name != nil {
		a.Name = *upd.Name
	}
	if upd.Email != nil {
		a.Email = *upd.Email
	}
	if upd.PasswordHash != nil {
		a.PasswordHash = *upd.PasswordHash
	}
	a.UpdatedAt = s.now().UTC()
	s.accounts[id] = a
	return s.view(a), nil
}

func (s *Store) DeleteAccount(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.accounts[id]; !ok {
		return auth.ErrNotFound
	}
	delete(s.accounts, id)
	return nil
}

func (s *Store) CreateRole(_ context.Context, r auth.Role) (auth.Role, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.roleNameTaken(r.Name, "") {
		return auth.Role{}, fmt.Errorf("%w: role name already exists", auth.ErrConflict)
	}
	if r.ID == "" {
		r.ID = ids.New()
	}
	now := s.now().UTC()
	r.CreatedAt, r.UpdatedAt = now, now
	r.Permissions = append([]string{}, r.Permissions...)
	s.roles[r.ID] = r
	return s.roleView(r), nil
}

func (s *Store) ListRoles(_ context.Context) ([]auth.Role, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]auth.Role, 0, len(s.roles))
	for _, r := range s.roles {
		out = append(out, s.roleView(r))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (s *Store) GetRole(_ context.Context, id string) (auth.Role, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.roles[id]
	if !ok {
		return auth.Role{}, auth.ErrNotFound
	}
	return s.roleView(r), nil
}

func (s *Store) UpdateRole(_ context.Context, id string, upd auth.RoleUpdate) (auth.Role, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.roles[id]
	if !ok {
		return auth.Role{}, auth.ErrNotFound
	}
	if upd.Name != nil {
		if s.roleNameTaken(*upd.Name, id) {
			return auth.Role{}, fmt.Errorf("%w: role name already exists", auth.ErrConflict)
		}
		r.Name = *upd.Name
	}
	if upd.Description != nil {
		r.Description = *upd.Description
	}
	if upd.Permissions != nil {
		r.Permissions = append([]string{}, (*upd.Permissions)...)
	}
	r.UpdatedAt = s.now().UTC()
	s.roles[id] = r
	return s.roleView(r), nil
}

func (s *Store) DeleteRole(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.roles[id]; !ok {
		return auth.ErrNotFound
	}
	if n := s.userCount(id); n > 0 {
		return fmt.Errorf("%w: role is assigned to %d accounts", auth.ErrConflict, n)
	}
	delete(s.roles, id)
	return nil
}

// callers hold s.mu.

func (s *Store) view(a auth.Account) auth.Account {
	a.PasswordHash = ""
	if r, ok := s.roles[a.RoleID]; ok {
		a.RoleName = r.Name
	}
	return a
}

func (s *Store) roleView(r auth.Role) auth.Role {
	r.Permissions = append([]string{}, r.Permissions...)
	r.UserCount = s.userCount(r.ID)
	return r
}

func (s *Store) userCount(roleID string) int {
	n := 0
	for _, a := range s.accounts {
		if a.RoleID == roleID {
			n++
		}
	}
	return n
}

func (s *Store) emailTaken(email, exceptID string) bool {
	for id, a := range s.accounts {
		if id != exceptID && strings.EqualFold(a.Email, email) {
			return true
		}
	}
	return false
}

func (s *Store) roleNameTaken(name, exceptID string) bool {
	for id, r := range s.roles {
		if id != exceptID && r.Name == name {
			return true
		}
	}
	return false
}

// Check always succeeds; it lets the store serve as a readiness probe.
func (s *Store) Check(context.Context) error { return nil }
