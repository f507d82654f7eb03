package pg

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"idgate.org/internal/auth"
)

type organizationStore struct {
	db *sql.DB
}

const orgColumns = `id, name, description, website, contact_email, contact_phone, address, is_active, created_at, updated_at`

func scanOrganization(row interface{ Scan(...any) error }) (auth.Organization, error) {
	var (
		org     auth.Organization
		desc    sql.NullString
		website sql.NullString
		email   sql.NullString
		phone   sql.NullString
		addr    sql.NullString
	)
	err := row.Scan(&org.ID, &org.Name, &desc, &website, &email, &phone, &addr, &org.Active, &org.CreatedAt, &org.UpdatedAt)
	if err != nil {
		return auth.Organization{}, err
	}
	org.Description = desc.String
	org.Website = website.String
	org.ContactEmail = email.String
	org.ContactPhone = phone.String
	org.Address = addr.String
	return org, nil
}

func (s *organizationStore) Create(ctx context.Context, o auth.NewOrganization) (auth.Organization, error) {
	row := s.db.QueryRowContext(ctx, `
		insert into organizations (name, description, website, contact_email, contact_phone, address, is_active)
		values ($1, $2, $3, $4, $5, $6, $7)
		returning `+orgColumns+`
	`, o.Name, nullIfEmpty(o.Description), nullIfEmpty(o.Website), nullIfEmpty(o.ContactEmail),
		nullIfEmpty(o.ContactPhone), nullIfEmpty(o.Address), o.Active)
	org, err := scanOrganization(row)
	if err != nil {
		if pgErr, ok := maybePgError(err); ok && pgErr.Code == pgErrUniqueViolation {
			return auth.Organization{}, auth.Conflictf("organization with this name already exists")
		}
		return auth.Organization{}, err
	}
	return org, nil
}

func (s *organizationStore) Find(ctx context.Context, id int64) (auth.Organization, error) {
	row := s.db.QueryRowContext(ctx, `select `+orgColumns+` from organizations where id = $1`, id)
	org, err := scanOrganization(row)
	if errors.Is(err, sql.ErrNoRows) {
		return auth.Organization{}, auth.NotFoundf("organization not found")
	}
	if err != nil {
		return auth.Organization{}, err
	}
	return org, nil
}

func (s *organizationStore) List(ctx context.Context, limit, offset int) ([]auth.Organization, error) {
	rows, err := s.db.QueryContext(ctx, `
		select `+orgColumns+` from organizations order by id limit $1 offset $2
	`, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var orgs []auth.Organization
	for rows.Next() {
		org, err := scanOrganization(rows)
		if err != nil {
			return nil, err
		}
		orgs = append(orgs, org)
	}
	return orgs, rows.Err()
}

func (s *organizationStore) Update(ctx context.Context, id int64, upd auth.OrganizationUpdate) (auth.Organization, error) {
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
	if upd.Website != nil {
		addSet("website", nullIfEmpty(*upd.Website))
	}
	if upd.ContactEmail != nil {
		addSet("contact_email", nullIfEmpty(*upd.ContactEmail))
	}
	if upd.ContactPhone != nil {
		addSet("contact_phone", nullIfEmpty(*upd.ContactPhone))
	}
	if upd.Address != nil {
		addSet("address", nullIfEmpty(*upd.Address))
	}
	if upd.Active != nil {
		addSet("is_active", *upd.Active)
	}
	if len(sets) > 0 {
		sets = append(sets, "updated_at = now()")
		query := fmt.Sprintf(`update organizations set %s where id = $%d`, strings.Join(sets, ", "), idx)
		args = append(args, id)
		res, err := s.db.ExecContext(ctx, query, args...)
		if err != nil {
			if pgErr, ok := maybePgError(err); ok && pgErr.Code == pgErrUniqueViolation {
				return auth.Organization{}, auth.Conflictf("organization with this name already exists")
			}
			return auth.Organization{}, err
		}
		aff, err := res.RowsAffected()
		if err != nil {
			return auth.Organization{}, err
		}
		if aff == 0 {
			return auth.Organization{}, auth.NotFoundf("organization not found")
		}
	}
	return s.Find(ctx, id)
}

func (s *organizationStore) Delete(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `delete from organizations where id = $1`, id)
	if err != nil {
		return err
	}
	aff, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if aff == 0 {
		return auth.NotFoundf("organization not found")
	}
	return nil
}
