package auth

import (
	"context"
	"time"
)

// Store describes persistence operations required by the auth subsystem.
type Store interface {
	Organizations() OrganizationStore
	Users() UserStore
	Roles() RoleStore
	Permissions() PermissionStore
}

// NewUser carries the fields required to create a user record. The
// password arrives already hashed.
type NewUser struct {
	Email          string
	FirstName      string
	LastName       string
	PasswordHash   string
	Active         bool
	Superuser      bool
	OrganizationID *int64
}

// UserUpdate is an explicit per-field update: nil means "leave unchanged".
type UserUpdate struct {
	Email          *string
	FirstName      *string
	LastName       *string
	PasswordHash   *string
	Active         *bool
	Superuser      *bool
	OrganizationID *int64
}

// UserStore manages users. Find and FindByEmail return the user with the
// full role/permission graph materialized.
type UserStore interface {
	Create(ctx context.Context, u NewUser) (User, error)
	Find(ctx context.Context, id int64) (User, error)
	FindByEmail(ctx context.Context, email string) (User, error)
	List(ctx context.Context, limit, offset int) ([]User, error)
	Update(ctx context.Context, id int64, upd UserUpdate) (User, error)
	Delete(ctx context.Context, id int64) error
	UpdatePassword(ctx context.Context, id int64, passwordHash string) error
	SetLastLogin(ctx context.Context, id int64, at time.Time) error
	SetResetToken(ctx context.Context, id int64, token *string, expires *time.Time) error
	AssignRole(ctx context.Context, userID, roleID int64) error
	RemoveRole(ctx context.Context, userID, roleID int64) error
}

// NewRole carries the fields required to create a role record.
type NewRole struct {
	Name           string
	Description    string
	Default        bool
	OrganizationID *int64
}

// RoleUpdate is an explicit per-field update: nil means "leave unchanged".
type RoleUpdate struct {
	Name        *string
	Description *string
	Default     *bool
}

// RoleStore manages roles and their permission sets.
type RoleStore interface {
	Create(ctx context.Context, r NewRole) (Role, error)
	Find(ctx context.Context, id int64) (Role, error)
	List(ctx context.Context, limit, offset int) ([]Role, error)
	ListDefault(ctx context.Context) ([]Role, error)
	Update(ctx context.Context, id int64, upd RoleUpdate) (Role, error)
	Delete(ctx context.Context, id int64) error
	SetPermissions(ctx context.Context, roleID int64, codes []string) error
}

// NewPermission carries the fields required to create a permission record.
type NewPermission struct {
	Name        string
	Code        string
	Description string
}

// PermissionStore manages the permission catalog.
type PermissionStore interface {
	Create(ctx context.Context, p NewPermission) (Permission, error)
	List(ctx context.Context) ([]Permission, error)
	Ensure(ctx context.Context, perms []NewPermission) error
}

// OrganizationUpdate is an explicit per-field update: nil means
// "leave unchanged".
type OrganizationUpdate struct {
	Name         *string
	Description  *string
	Website      *string
	ContactEmail *string
	ContactPhone *string
	Address      *string
	Active       *bool
}

// NewOrganization carries the fields required to create an organization.
type NewOrganization struct {
	Name         string
	Description  string
	Website      string
	ContactEmail string
	ContactPhone string
	Address      string
	Active       bool
}

// OrganizationStore manages organizations.
type OrganizationStore interface {
	Create(ctx context.Context, o NewOrganization) (Organization, error)
	Find(ctx context.Context, id int64) (Organization, error)
	List(ctx context.Context, limit, offset int) ([]Organization, error)
	Update(ctx context.Context, id int64, upd OrganizationUpdate) (Organization, error)
	Delete(ctx context.Context, id int64) error
}
