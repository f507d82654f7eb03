package pg

import (
	"context"
	"database/sql"

	"idgate.org/internal/auth"
)

type permissionStore struct {
	db *sql.DB
}

const permissionColumns = `id, name, code, description, created_at`

func scanPermission(row interface{ Scan(...any) error }) (auth.Permission, error) {
	var (
		perm auth.Permission
		desc sql.NullString
	)
	err := row.Scan(&perm.ID, &perm.Name, &perm.Code, &desc, &perm.CreatedAt)
	if err != nil {
		return auth.Permission{}, err
	}
	if desc.Valid {
		perm.Description = desc.String
	}
	return perm, nil
}

func (s *permissionStore) Create(ctx context.Context, p auth.NewPermission) (auth.Permission, error) {
	row := s.db.QueryRowContext(ctx, `
		insert into permissions (name, code, description)
		values ($1, $2, $3)
		returning `+permissionColumns+`
	`, p.Name, p.Code, nullIfEmpty(p.Description))
	perm, err := scanPermission(row)
	if err != nil {
		if pgErr, ok := maybePgError(err); ok && pgErr.Code == pgErrUniqueViolation {
			return auth.Permission{}, auth.Conflictf("permission with this code already exists")
		}
		return auth.Permission{}, err
	}
	return perm, nil
}

func (s *permissionStore) List(ctx context.Context) ([]auth.Permission, error) {
	rows, err := s.db.QueryContext(ctx, `select ` + permissionColumns + ` from permissions order by code`)
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

// Ensure inserts any missing catalog entries, leaving existing rows alone.
func (s *permissionStore) Ensure(ctx context.Context, perms []auth.NewPermission) error {
	for _, p := range perms {
		_, err := s.db.ExecContext(ctx, `
			insert into permissions (name, code, description)
			values ($1, $2, $3)
			on conflict (code) do nothing
		`, p.Name, p.Code, nullIfEmpty(p.Description))
		if err != nil {
			return err
		}
	}
	return nil
}
