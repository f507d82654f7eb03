package pg

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"idgate.org/internal/auth"
)

type roleStore struct {
	db *sql.DB
}

const roleColumns = `id, name, description, is_default, organization_id, created_at, updated_at`

func scanRole(row interface{ Scan(...any) error }) (auth.Role, error) {
	var (
		role  auth.Role
		desc  sql.NullString
		orgID sql.NullInt64
	)
	err := row.Scan(&role.ID, &role.Name, &desc, &role.Default, &orgID, &role.CreatedAt, &role.UpdatedAt)
	if err != nil {
		return auth.Role{}, err
	}
	if desc.Valid {
		role.Description = desc.String
	}
	if orgID.Valid {
		role.OrganizationID = &orgID.Int64
	}
	return role, nil
}

func (s *roleStore) Create(ctx context.Context, r auth.NewRole) (auth.Role, error) {
	row := s.db.QueryRowContext(ctx, `
		insert into roles (name, description, is_default, organization_id)
		values ($1, $2, $3, $4)
		returning `+roleColumns+`
	`, r.Name, nullIfEmpty(r.Description), r.Default, r.OrganizationID)
	role, err := scanRole(row)
	if err != nil {
		if pgErr, ok := maybePgError(err); ok {
			switch pgErr.Code {
			case pgErrUniqueViolation:
				return auth.Role{}, auth.Conflictf("role with this name already exists")
			case pgErrForeignKeyViolation:
				return auth.Role{}, auth.NotFoundf("organization not found")
			}
		}
		return auth.Role{}, err
	}
	return role, nil
}

func (s *roleStore) Find(ctx context.Context, id int64) (auth.Role, error) {
	row := s.db.QueryRowContext(ctx, `select `+roleColumns+` from roles where id = $1`, id)
	role, err := scanRole(row)
	if errors.Is(err, sql.ErrNoRows) {
		return auth.Role{}, auth.NotFoundf("role not found")
	}
	if err != nil {
		return auth.Role{}, err
	}
	role.Permissions, err = s.loadPermissions(ctx, role.ID)
	if err != nil {
		return auth.Role{}, err
	}
	return role, nil
}

func (s *roleStore) loadPermissions(ctx context.Context, roleID int64) ([]auth.Permission, error) {
	rows, err := s.db.QueryContext(ctx, `
		select p.id, p.name, p.code, p.description, p.created_at
		from role_permissions rp
		join permissions p on p.id = rp.permission_id
		where rp.role_id = $1
		order by p.code
	`, roleID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var perms []auth.Permission
	for rows.Next() {
		perm, err := scanPermission(rows)
		if err != nil {
			return nil, err
		}
		perms = append(perms, perm)
	}
	return perms, rows.Err()
}

func (s *roleStore) List(ctx context.Context, limit, offset int) ([]auth.Role, error) {
	rows, err := s.db.QueryContext(ctx, `
		select `+roleColumns+` from roles order by id limit $1 offset $2
	`, limit, offset)
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
	return roles, rows.Err()
}

func (s *roleStore) ListDefault(ctx context.Context) ([]auth.Role, error) {
	rows, err := s.db.QueryContext(ctx, `
		select `+roleColumns+` from roles where is_default order by id
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
	return roles, rows.Err()
}

func (s *roleStore) Update(ctx context.Context, id int64, upd auth.RoleUpdate) (auth.Role, error) {
	var (
		sets []string
		args []any
		idx  = 1
	)
	addSet := func(column string, value any) {
		sets = append(sets, fmt.Sprintf("%s = $%d", column, idx))
		args = append(args, value)
		idx++
	}
	if upd.Name != nil {
		addSet("name", *upd.Name)
	}
	if upd.Description != nil {
		addSet("description", nullIfEmpty(*upd.Description))
	}
	if upd.Default != nil {
		addSet("is_default", *upd.Default)
	}
	if len(sets) > 0 {
		sets = append(sets, "updated_at = now()")
		query := fmt.Sprintf(`update roles set %s where id = $%d`, strings.Join(sets, ", "), idx)
		args = append(args, id)
		res, err := s.db.ExecContext(ctx, query, args...)
		if err != nil {
			if pgErr, ok := maybePgError(err); ok && pgErr.Code == pgErrUniqueViolation {
				return auth.Role{}, auth.Conflictf("role with this name already exists")
			}
			return auth.Role{}, err
		}
		aff, err := res.RowsAffected()
		if err != nil {
			return auth.Role{}, err
		}
		if aff == 0 {
			return auth.Role{}, auth.NotFoundf("role not found")
		}
	}
	return s.Find(ctx, id)
}

func (s *roleStore) Delete(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `delete from roles where id = $1`, id)
	if err != nil {
		return err
	}
	aff, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if aff == 0 {
		return auth.NotFoundf("role not found")
	}
	return nil
}

// SetPermissions replaces the role's permission set atomically. Unknown
// codes fail the whole operation.
func (s *roleStore) SetPermissions(ctx context.Context, roleID int64, codes []string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var exists bool
	if err := tx.QueryRowContext(ctx, `select exists(select 1 from roles where id = $1)`, roleID).Scan(&exists); err != nil {
		return err
	}
	if !exists {
		return auth.NotFoundf("role not found")
	}
	if _, err := tx.ExecContext(ctx, `delete from role_permissions where role_id = $1`, roleID); err != nil {
		return err
	}
	for _, code := range codes {
		res, err := tx.ExecContext(ctx, `
			insert into role_permissions (role_id, permission_id)
			select $1, id from permissions where code = $2
		`, roleID, code)
		if err != nil {
			return err
		}
		aff, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if aff == 0 {
			return auth.NotFoundf("permission %q not found", code)
		}
	}
	return tx.Commit()
}
