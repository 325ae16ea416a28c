package pg

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"simantu.org/internal/auth"
	"simantu.org/internal/ids"
)

const roleSelect = `
	select r.id, r.name, r.description, r.permissions, r.created_at, r.updated_at, count(u.id)
	from roles r
	left join users u on u.role_id = r.id
`

func scanRole(row rowScanner) (auth.Role, error) {
	var (
		role  auth.Role
		desc  sql.NullString
		perms []byte
	)
	if err := row.Scan(&role.ID, &role.Name, &desc, &perms, &role.CreatedAt, &role.UpdatedAt, &role.UserCount); err != nil {
		return auth.Role{}, err
	}
	if desc.Valid {
		role.Description = desc.String
	}
	var err error
	if role.Permissions, err = decodePermissions(perms); err != nil {
		return auth.Role{}, fmt.Errorf("decode permissions of role %s: %w", role.ID, err)
	}
	return role, nil
}

func encodePermissions(perms []string) ([]byte, error) {
	if perms == nil {
		perms = []string{}
	}
	return json.Marshal(perms)
}

func decodePermissions(raw []byte) ([]string, error) {
	perms := []string{}
	if len(raw) == 0 {
		return perms, nil
	}
	if err := json.Unmarshal(raw, &perms); err != nil {
		return nil, err
	}
	return perms, nil
}

func roleError(err error) error {
	if pgErr, ok := maybePgError(err); ok {
		switch pgErr.Code {
		case pgErrUniqueViolation:
			return fmt.Errorf("%w: role name already exists", auth.ErrConflict)
		case pgErrForeignKeyViolation:
			return fmt.Errorf("%w: role is assigned to accounts", auth.ErrConflict)
		}
	}
	return err
}

func (s *Store) CreateRole(ctx context.Context, r auth.Role) (auth.Role, error) {
	if s.db == nil {
		return auth.Role{}, errNoDB
	}
	if r.ID == "" {
		r.ID = ids.New()
	}
	perms, err := encodePermissions(r.Permissions)
	if err != nil {
		return auth.Role{}, fmt.Errorf("marshal permissions: %w", err)
	}
	row := s.db.QueryRowContext(ctx, `
		insert into roles (id, name, description, permissions)
		values ($1, $2, $3, $4)
		returning id, name, description, permissions, created_at, updated_at, 0
	`, r.ID, r.Name, nullIfEmpty(r.Description), perms)
	created, err := scanRole(row)
	if err != nil {
		return auth.Role{}, roleError(err)
	}
	return created, nil
}

func (s *Store) ListRoles(ctx context.Context) ([]auth.Role, error) {
	if s.db == nil {
		return nil, errNoDB
	}
	rows, err := s.db.QueryContext(ctx, roleSelect+`
		group by r.id
		order by r.created_at desc, r.id desc
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var roles []auth.Role
	for rows.Next() {
		role, err := scanRole(rows)
		if err != nil {
			return nil, err
		}
		roles = append(roles, role)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return roles, nil
}

func (s *Store) GetRole(ctx context.Context, id string) (auth.Role, error) {
	if s.db == nil {
		return auth.Role{}, errNoDB
	}
	role, err := scanRole(s.db.QueryRowContext(ctx, roleSelect+`
		where r.id = $1
		group by r.id
	`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return auth.Role{}, auth.ErrNotFound
	}
	if err != nil {
		return auth.Role{}, err
	}
	return role, nil
}

func (s *Store) UpdateRole(ctx context.Context, id string, upd auth.RoleUpdate) (auth.Role, error) {
	if s.db == nil {
		return auth.Role{}, errNoDB
	}
	var (
		sets []string
		args []any
		idx  = 1
	)
	if upd.Name != nil {
		sets = append(sets, fmt.Sprintf("name = $%d", idx))
		args = append(args, *upd.Name)
		idx++
	}
	if upd.Description != nil {
		if *upd.Description == "" {
			sets = append(sets, "description = NULL")
		} else {
			sets = append(sets, fmt.Sprintf("description = $%d", idx))
			args = append(args, *upd.Description)
			idx++
		}
	}
	if upd.Permissions != nil {
		perms, err := encodePermissions(*upd.Permissions)
		if err != nil {
			return auth.Role{}, fmt.Errorf("marshal permissions: %w", err)
		}
		sets = append(sets, fmt.Sprintf("permissions = $%d", idx))
		args = append(args, perms)
		idx++
	}
	if len(sets) > 0 {
		sets = append(sets, "updated_at = now()")
		query := fmt.Sprintf(`update roles set %s where id = $%d`, strings.Join(sets, ", "), idx)
		args = append(args, id)
		res, err := s.db.ExecContext(ctx, query, args...)
		if err != nil {
			return auth.Role{}, roleError(err)
		}
		aff, err := res.RowsAffected()
		if err != nil {
			return auth.Role{}, err
		}
		if aff == 0 {
			return auth.Role{}, auth.ErrNotFound
		}
	}
	return s.GetRole(ctx, id)
}

func (s *Store) DeleteRole(ctx context.Context, id string) error {
	if s.db == nil {
		return errNoDB
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	var exists int
	if err := tx.QueryRowContext(ctx, `select 1 from roles where id = $1 for update`, id).Scan(&exists); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return auth.ErrNotFound
		}
		return err
	}
	var users int
	if err := tx.QueryRowContext(ctx, `select count(*) from users where role_id = $1`, id).Scan(&users); err != nil {
		return err
	}
	if users > 0 {
		return fmt.Errorf("%w: role is assigned to %d accounts", auth.ErrConflict, users)
	}
	if _, err := tx.ExecContext(ctx, `delete from roles where id = $1`, id); err != nil {
		return roleError(err)
	}
	return tx.Commit()
}
