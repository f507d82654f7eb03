package pg

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"idgate.org/internal/auth"
)

type userStore struct {
	db *sql.DB
}

const userColumns = `id, email, first_name, last_name, hashed_password, is_active, is_superuser,
	organization_id, last_login, password_reset_token, password_reset_expires, created_at, updated_at`

func scanUser(row interface{ Scan(...any) error }) (auth.User, error) {
	var (
		user         auth.User
		orgID        sql.NullInt64
		lastLogin    sql.NullTime
		resetToken   sql.NullString
		resetExpires sql.NullTime
	)
	err := row.Scan(
		&user.ID, &user.Email, &user.FirstName, &user.LastName, &user.PasswordHash,
		&user.Active, &user.Superuser, &orgID, &lastLogin, &resetToken, &resetExpires,
		&user.CreatedAt, &user.UpdatedAt,
	)
	if err != nil {
		return auth.User{}, err
	}
	if orgID.Valid {
		user.OrganizationID = &orgID.Int64
	}
	if lastLogin.Valid {
		t := lastLogin.Time
		user.LastLogin = &t
	}
	if resetToken.Valid {
		v := resetToken.String
		user.ResetToken = &v
	}
	if resetExpires.Valid {
		t := resetExpires.Time
		user.ResetExpires = &t
	}
	return user, nil
}

func (s *userStore) Create(ctx context.Context, u auth.NewUser) (auth.User, error) {
	row := s.db.QueryRowContext(ctx, `
		insert into users (email, first_name, last_name, hashed_password, is_active, is_superuser, organization_id)
		values ($1, $2, $3, $4, $5, $6, $7)
		returning `+userColumns+`
	`, u.Email, u.FirstName, u.LastName, u.PasswordHash, u.Active, u.Superuser, u.OrganizationID)
	user, err := scanUser(row)
	if err != nil {
		if pgErr, ok := maybePgError(err); ok {
			switch pgErr.Code {
			case pgErrUniqueViolation:
				return auth.User{}, auth.Conflictf("email already registered")
			case pgErrForeignKeyViolation:
				return auth.User{}, auth.NotFoundf("organization not found")
			}
		}
		return auth.User{}, err
	}
	return user, nil
}

func (s *userStore) Find(ctx context.Context, id int64) (auth.User, error) {
	row := s.db.QueryRowContext(ctx, `select `+userColumns+` from users where id = $1`, id)
	user, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return auth.User{}, auth.NotFoundf("user not found")
	}
	if err != nil {
		return auth.User{}, err
	}
	user.Roles, err = s.loadRoles(ctx, user.ID)
	if err != nil {
		return auth.User{}, err
	}
	return user, nil
}

func (s *userStore) FindByEmail(ctx context.Context, email string) (auth.User, error) {
	row := s.db.QueryRowContext(ctx, `select `+userColumns+` from users where email = $1`, email)
	user, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return auth.User{}, auth.NotFoundf("user not found")
	}
	if err != nil {
		return auth.User{}, err
	}
	user.Roles, err = s.loadRoles(ctx, user.ID)
	if err != nil {
		return auth.User{}, err
	}
	return user, nil
}

// loadRoles materializes the full role/permission graph in one query so
// the authorization evaluator never touches the database.
func (s *userStore) loadRoles(ctx context.Context, userID int64) ([]auth.Role, error) {
	rows, err := s.db.QueryContext(ctx, `
		select r.id, r.name, r.description, r.is_default, r.organization_id, r.created_at, r.updated_at,
		       p.id, p.name, p.code, p.description, p.created_at
		from user_roles ur
		join roles r on r.id = ur.role_id
		left join role_permissions rp on rp.role_id = r.id
		left join permissions p on p.id = rp.permission_id
		where ur.user_id = $1
		order by r.id, p.id
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var roles []auth.Role
	for rows.Next() {
		var (
			role     auth.Role
			roleDesc sql.NullString
			roleOrg  sql.NullInt64
			permID   sql.NullInt64
			permName sql.NullString
			permCode sql.NullString
			permDesc sql.NullString
			permAt   sql.NullTime
		)
		if err := rows.Scan(
			&role.ID, &role.Name, &roleDesc, &role.Default, &roleOrg, &role.CreatedAt, &role.UpdatedAt,
			&permID, &permName, &permCode, &permDesc, &permAt,
		); err != nil {
			return nil, err
		}
		if roleDesc.Valid {
			role.Description = roleDesc.String
		}
		if roleOrg.Valid {
			role.OrganizationID = &roleOrg.Int64
		}
		if len(roles) == 0 || roles[len(roles)-1].ID != role.ID {
			roles = append(roles, role)
		}
		if permID.Valid {
			perm := auth.Permission{
				ID:   permID.Int64,
				Name: permName.String,
				Code: permCode.String,
			}
			if permDesc.Valid {
				perm.Description = permDesc.String
			}
			if permAt.Valid {
				perm.CreatedAt = permAt.Time
			}
			last := len(roles) - 1
			roles[last].Permissions = append(roles[last].Permissions, perm)
		}
	}
	return roles, rows.Err()
}

func (s *userStore) List(ctx context.Context, limit, offset int) ([]auth.User, error) {
	rows, err := s.db.QueryContext(ctx, `
		select `+userColumns+` from users order by id limit $1 offset $2
	`, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []auth.User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, user)
	}
	return users, rows.Err()
}

func (s *userStore) Update(ctx context.Context, id int64, upd auth.UserUpdate) (auth.User, error) {
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
	if upd.Email != nil {
		addSet("email", *upd.Email)
	}
	if upd.FirstName != nil {
		addSet("first_name", *upd.FirstName)
	}
	if upd.LastName != nil {
		addSet("last_name", *upd.LastName)
	}
	if upd.PasswordHash != nil {
		addSet("hashed_password", *upd.PasswordHash)
	}
	if upd.Active != nil {
		addSet("is_active", *upd.Active)
	}
	if upd.Superuser != nil {
		addSet("is_superuser", *upd.Superuser)
	}
	if upd.OrganizationID != nil {
		addSet("organization_id", *upd.OrganizationID)
	}
	if len(sets) > 0 {
		sets = append(sets, "updated_at = now()")
		query := fmt.Sprintf(`update users set %s where id = $%d`, strings.Join(sets, ", "), idx)
		args = append(args, id)
		res, err := s.db.ExecContext(ctx, query, args...)
		if err != nil {
			if pgErr, ok := maybePgError(err); ok && pgErr.Code == pgErrUniqueViolation {
				return auth.User{}, auth.Conflictf("email already registered")
			}
			return auth.User{}, err
		}
		aff, err := res.RowsAffected()
		if err != nil {
			return auth.User{}, err
		}
		if aff == 0 {
			return auth.User{}, auth.NotFoundf("user not found")
		}
	}
	return s.Find(ctx, id)
}

func (s *userStore) Delete(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `delete from users where id = $1`, id)
	if err != nil {
		return err
	}
	aff, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if aff == 0 {
		return auth.NotFoundf("user not found")
	}
	return nil
}

func (s *userStore) UpdatePassword(ctx context.Context, id int64, passwordHash string) error {
	res, err := s.db.ExecContext(ctx, `
		update users set hashed_password = $1, updated_at = now() where id = $2
	`, passwordHash, id)
	if err != nil {
		return err
	}
	aff, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if aff == 0 {
		return auth.NotFoundf("user not found")
	}
	return nil
}

func (s *userStore) SetLastLogin(ctx context.Context, id int64, at time.Time) error {
	_, err := s.db.ExecContext(ctx, `update users set last_login = $1 where id = $2`, at, id)
	return err
}

func (s *userStore) SetResetToken(ctx context.Context, id int64, token *string, expires *time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		update users set password_reset_token = $1, password_reset_expires = $2 where id = $3
	`, token, expires, id)
	return err
}

func (s *userStore) AssignRole(ctx context.Context, userID, roleID int64) error {
	_, err := s.db.ExecContext(ctx, `
		insert into user_roles (user_id, role_id) values ($1, $2)
		on conflict (user_id, role_id) do nothing
	`, userID, roleID)
	if err != nil {
		if pgErr, ok := maybePgError(err); ok && pgErr.Code == pgErrForeignKeyViolation {
			return auth.NotFoundf("user or role not found")
		}
		return err
	}
	return nil
}

func (s *userStore) RemoveRole(ctx context.Context, userID, roleID int64) error {
	res, err := s.db.ExecContext(ctx, `
		delete from user_roles where user_id = $1 and role_id = $2
	`, userID, roleID)
	if err != nil {
		return err
	}
	aff, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if aff == 0 {
		return auth.NotFoundf("role assignment not found")
	}
	return nil
}
