package pg

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"simantu.org/internal/auth"
	"simantu.org/internal/ids"
)

const accountColumns = `u.id, u.name, u.email, u.role_id, coalesce(r.name, ''), u.created_at, u.updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAccount(row rowScanner, extra ...any) (auth.Account, error) {
	var a auth.Account
	dest := append([]any{&a.ID, &a.Name, &a.Email, &a.RoleID, &a.RoleName, &a.CreatedAt, &a.UpdatedAt}, extra...)
	if err := row.Scan(dest...); err != nil {
		return auth.Account{}, err
	}
	return a, nil
}

func accountError(err error) error {
	if pgErr, ok := maybePgError(err); ok {
		switch pgErr.Code {
		case pgErrUniqueViolation:
			return fmt.Errorf("%w: email already exists", auth.ErrConflict)
		case pgErrForeignKeyViolation:
			return fmt.Errorf("%w: role does not exist", auth.ErrInvalidInput)
		}
	}
	return err
}

func (s *Store) CreateAccount(ctx context.Context, a auth.Account) (auth.Account, error) {
	if s.db == nil {
		return auth.Account{}, errNoDB
	}
	if a.ID == "" {
		a.ID = ids.New()
	}
	row := s.db.QueryRowContext(ctx, `
		with u as (
			insert into users (id, name, email, password_hash, role_id)
			values ($1, $2, $3, $4, $5)
			returning id, name, email, role_id, created_at, updated_at
		)
		select `+accountColumns+`
		from u left join roles r on r.id = u.role_id
	`, a.ID, a.Name, a.Email, a.PasswordHash, a.RoleID)
	created, err := scanAccount(row)
	if err != nil {
		return auth.Account{}, accountError(err)
	}
	return created, nil
}

func (s *Store) ListAccounts(ctx context.Context) ([]auth.Account, error) {
	if s.db == nil {
		return nil, errNoDB
	}
	rows, err := s.db.QueryContext(ctx, `
		select `+accountColumns+`
		from users u
		left join roles r on r.id = u.role_id
		order by u.created_at desc, u.id desc
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var accounts []auth.Account
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, a)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return accounts, nil
}

func (s *Store) GetAccount(ctx context.Context, id string) (auth.Account, error) {
	if s.db == nil {
		return auth.Account{}, errNoDB
	}
	row := s.db.QueryRowContext(ctx, `
		select `+accountColumns+`
		from users u
		left join roles r on r.id = u.role_id
		where u.id = $1
	`, id)
	a, err := scanAccount(row)
	if errors.Is(err, sql.ErrNoRows) {
		return auth.Account{}, auth.ErrNotFound
	}
	if err != nil {
		return auth.Account{}, err
	}
	return a, nil
}

func (s *Store) FindAccountByEmail(ctx context.Context, email string) (auth.Account, error) {
	if s.db == nil {
		return auth.Account{}, errNoDB
	}
	row := s.db.QueryRowContext(ctx, `
		select `+accountColumns+`, u.password_hash
		from users u
		left join roles r on r.id = u.role_id
		where u.email = $1
	`, email)
	var hash string
	a, err := scanAccount(row, &hash)
	if errors.Is(err, sql.ErrNoRows) {
		return auth.Account{}, auth.ErrNotFound
	}
	if err != nil {
		return auth.Account{}, err
	}
	a.PasswordHash = hash
	return a, nil
}

func (s *Store) UpdateAccount(ctx context.Context, id string, upd auth.AccountUpdate) (auth.Account, error) {
	if s.db == nil {
		return auth.Account{}, errNoDB
	}
	var (
		sets []string
		args []any
		idx  = 1
	)
	add := func(column string, v any) {
		sets = append(sets, fmt.Sprintf("%s = $%d", column, idx))
		args = append(args, v)
		idx++
	}
	if upd.Name != nil {
		add("name", *upd.Name)
	}
	if upd.Email != nil {
		add("email", *upd.Email)
	}
	if upd.PasswordHash != nil {
		add("password_hash", *upd.PasswordHash)
	}
	if upd.RoleID != nil {
		add("role_id", *upd.RoleID)
	}
	if len(sets) > 0 {
		sets = append(sets, "updated_at = now()")
		query := fmt.Sprintf(`update users set %s where id = $%d`, strings.Join(sets, ", "), idx)
		args = append(args, id)
		res, err := s.db.ExecContext(ctx, query, args...)
		if err != nil {
			return auth.Account{}, accountError(err)
		}
		aff, err := res.RowsAffected()
		if err != nil {
			return auth.Account{}, err
		}
		if aff == 0 {
			return auth.Account{}, auth.ErrNotFound
		}
	}
	return s.GetAccount(ctx, id)
}

func (s *Store) DeleteAccount(ctx context.Context, id string) error {
	if s.db == nil {
		return errNoDB
	}
	res, err := s.db.ExecContext(ctx, `delete from users where id = $1`, id)
	if err != nil {
		return err
	}
	aff, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if aff == 0 {
		return auth.ErrNotFound
	}
	return nil
}
