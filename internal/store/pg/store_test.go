package pg

import (
	"context"
	"errors"
	"slices"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"

	"simantu.org/internal/auth"
)

var accountCols = []string{"id", "name", "email", "role_id", "role", "created_at", "updated_at"}

func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return New(db), mock
}

func TestCreateAccountJoinsRoleName(t *testing.T) {
	store, mock := newMockStore(t)
	now := time.Now().UTC()

	mock.ExpectQuery("insert into users").
		WithArgs(sqlmock.AnyArg(), "Ann", "ann@example.com", "hash", "role-1").
		WillReturnRows(sqlmock.NewRows(accountCols).AddRow("acc-1", "Ann", "ann@example.com", "role-1", "Operator", now, now))

	created, err := store.CreateAccount(context.Background(), auth.Account{
		Name: "Ann", Email: "ann@example.com", PasswordHash: "hash", RoleID: "role-1",
	})
	if err != nil {
		t.Fatalf("CreateAccount: %v", err)
	}
	if created.ID != "acc-1" || created.RoleName != "Operator" {
		t.Fatalf("unexpected account: %+v", created)
	}
	if created.PasswordHash != "" {
		t.Fatalf("create must not echo the hash")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestCreateAccountMapsConstraintViolations(t *testing.T) {
	cases := []struct {
		code string
		want error
	}{
		{pgErrUniqueViolation, auth.ErrConflict},
		{pgErrForeignKeyViolation, auth.ErrInvalidInput},
	}
	for _, tc := range cases {
		store, mock := newMockStore(t)
		mock.ExpectQuery("insert into users").WillReturnError(&pgconn.PgError{Code: tc.code})

		_, err := store.CreateAccount(context.Background(), auth.Account{Name: "Ann", Email: "a@b.co", PasswordHash: "h", RoleID: "r"})
		if !errors.Is(err, tc.want) {
			t.Fatalf("code %s: expected %v, got %v", tc.code, tc.want, err)
		}
	}
}

func TestGetAccountNotFound(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectQuery("from users u").WithArgs("missing").WillReturnRows(sqlmock.NewRows(accountCols))

	if _, err := store.GetAccount(context.Background(), "missing"); !errors.Is(err, auth.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestFindAccountByEmailReturnsHash(t *testing.T) {
	store, mock := newMockStore(t)
	now := time.Now().UTC()
	cols := append(slices.Clone(accountCols), "password_hash")
	mock.ExpectQuery("where u.email = ").WithArgs("ann@example.com").
		WillReturnRows(sqlmock.NewRows(cols).AddRow("acc-1", "Ann", "ann@example.com", "role-1", "Operator", now, now, "$2a$12$hash"))

	acc, err := store.FindAccountByEmail(context.Background(), "ann@example.com")
	if err != nil {
		t.Fatalf("FindAccountByEmail: %v", err)
	}
	if acc.PasswordHash != "$2a$12$hash" {
		t.Fatalf("expected hash, got %q", acc.PasswordHash)
	}
}

func TestUpdateAccountBuildsSetClause(t *testing.T) {
	store, mock := newMockStore(t)
	now := time.Now().UTC()
	name := "Anna"
	role := "role-2"

	mock.ExpectExec(`update users set name = \$1, role_id = \$2, updated_at = now\(\) where id = \$3`).
		WithArgs("Anna", "role-2", "acc-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery("from users u").WithArgs("acc-1").
		WillReturnRows(sqlmock.NewRows(accountCols).AddRow("acc-1", "Anna", "ann@example.com", "role-2", "Viewer", now, now))

	acc, err := store.UpdateAccount(context.Background(), "acc-1", auth.AccountUpdate{Name: &name, RoleID: &role})
	if err != nil {
		t.Fatalf("UpdateAccount: %v", err)
	}
	if acc.Name != "Anna" || acc.RoleName != "Viewer" {
		t.Fatalf("unexpected account: %+v", acc)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestUpdateAccountMissing(t *testing.T) {
	store, mock := newMockStore(t)
	name := "Anna"
	mock.ExpectExec("update users set").WillReturnResult(sqlmock.NewResult(0, 0))

	if _, err := store.UpdateAccount(context.Background(), "nope", auth.AccountUpdate{Name: &name}); !errors.Is(err, auth.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestDeleteAccount(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectExec("delete from users").WithArgs("acc-1").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("delete from users").WithArgs("acc-1").WillReturnResult(sqlmock.NewResult(0, 0))

	if err := store.DeleteAccount(context.Background(), "acc-1"); err != nil {
		t.Fatalf("DeleteAccount: %v", err)
	}
	if err := store.DeleteAccount(context.Background(), "acc-1"); !errors.Is(err, auth.ErrNotFound) {
		t.Fatalf("expected ErrNotFound on second delete, got %v", err)
	}
}

var roleCols = []string{"id", "name", "description", "permissions", "created_at", "updated_at", "count"}

func TestListRolesDecodesPermissions(t *testing.T) {
	store, mock := newMockStore(t)
	now := time.Now().UTC()
	mock.ExpectQuery("from roles r").WillReturnRows(sqlmock.NewRows(roleCols).
		AddRow("role-2", "Viewer", nil, []byte(`["dashboard.read"]`), now, now, int64(0)).
		AddRow("role-1", "Administrator", "all access", []byte(`["users.read","users.write"]`), now, now, int64(3)))

	roles, err := store.ListRoles(context.Background())
	if err != nil {
		t.Fatalf("ListRoles: %v", err)
	}
	if len(roles) != 2 {
		t.Fatalf("expected 2 roles, got %d", len(roles))
	}
	if roles[1].UserCount != 3 || !slices.Equal(roles[1].Permissions, []string{"users.read", "users.write"}) {
		t.Fatalf("unexpected admin role: %+v", roles[1])
	}
	if roles[0].Description != "" {
		t.Fatalf("null description should decode empty, got %q", roles[0].Description)
	}
}

func TestCreateRoleDuplicateName(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectQuery("insert into roles").WillReturnError(&pgconn.PgError{Code: pgErrUniqueViolation})

	_, err := store.CreateRole(context.Background(), auth.Role{Name: "Viewer"})
	if !errors.Is(err, auth.ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
}

func TestUpdateRoleReplacesPermissions(t *testing.T) {
	store, mock := newMockStore(t)
	now := time.Now().UTC()
	perms := []string{"tasks.read"}

	mock.ExpectExec(`update roles set permissions = \$1, updated_at = now\(\) where id = \$2`).
		WithArgs([]byte(`["tasks.read"]`), "role-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery("where r.id = ").WithArgs("role-1").
		WillReturnRows(sqlmock.NewRows(roleCols).AddRow("role-1", "Tasker", nil, []byte(`["tasks.read"]`), now, now, int64(1)))

	role, err := store.UpdateRole(context.Background(), "role-1", auth.RoleUpdate{Permissions: &perms})
	if err != nil {
		t.Fatalf("UpdateRole: %v", err)
	}
	if !slices.Equal(role.Permissions, perms) {
		t.Fatalf("unexpected permissions: %v", role.Permissions)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestDeleteRoleInUse(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectBegin()
	mock.ExpectQuery("select 1 from roles").WithArgs("role-1").WillReturnRows(sqlmock.NewRows([]string{"?column?"}).AddRow(1))
	mock.ExpectQuery("select count").WithArgs("role-1").WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(2))
	mock.ExpectRollback()

	if err := store.DeleteRole(context.Background(), "role-1"); !errors.Is(err, auth.ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestDeleteRole(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectBegin()
	mock.ExpectQuery("select 1 from roles").WithArgs("role-1").WillReturnRows(sqlmock.NewRows([]string{"?column?"}).AddRow(1))
	mock.ExpectQuery("select count").WithArgs("role-1").WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
	mock.ExpectExec("delete from roles").WithArgs("role-1").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	if err := store.DeleteRole(context.Background(), "role-1"); err != nil {
		t.Fatalf("DeleteRole: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestDeleteRoleMissing(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectBegin()
	mock.ExpectQuery("select 1 from roles").WithArgs("ghost").WillReturnRows(sqlmock.NewRows([]string{"?column?"}))
	mock.ExpectRollback()

	if err := store.DeleteRole(context.Background(), "ghost"); !errors.Is(err, auth.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
