package auth

import "time"

// Organization is an inert grouping for users and roles.
type Organization struct {
	ID           int64     `json:"id"`
	Name         string    `json:"name"`
	Description  string    `json:"description,omitempty"`
	Website      string    `json:"website,omitempty"`
	ContactEmail string    `json:"contact_email,omitempty"`
	ContactPhone string    `json:"contact_phone,omitempty"`
	Address      string    `json:"address,omitempty"`
	Active       bool      `json:"is_active"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// User is an account subject to authentication and authorization checks.
// Roles carry their permissions eagerly resolved; the authorization
// evaluator never loads anything on demand.
type User struct {
	ID             int64      `json:"id"`
	Email          string     `json:"email"`
	FirstName      string     `json:"first_name"`
	LastName       string     `json:"last_name"`
	PasswordHash   string     `json:"-"`
	Active         bool       `json:"is_active"`
	Superuser      bool       `json:"is_superuser"`
	OrganizationID *int64     `json:"organization_id,omitempty"`
	Roles          []Role     `json:"roles,omitempty"`
	LastLogin      *time.Time `json:"last_login,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`

	// Password reset state, never serialized.
	ResetToken   *string    `json:"-"`
	ResetExpires *time.Time `json:"-"`
}

// FullName joins the user's first and last names.
func (u *User) FullName() string { return u.FirstName + " " + u.LastName }

// Role bundles permissions. Names are unique across the whole system,
// including organization-scoped roles.
type Role struct {
	ID             int64        `json:"id"`
	Name           string       `json:"name"`
	Description    string       `json:"description,omitempty"`
	Default        bool         `json:"is_default"`
	OrganizationID *int64       `json:"organization_id,omitempty"`
	Permissions    []Permission `json:"permissions,omitempty"`
	CreatedAt      time.Time    `json:"created_at"`
	UpdatedAt      time.Time    `json:"updated_at"`
}

// Permission is a fine-grained capability. Code is the stable string
// tested at authorization time.
type Permission struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Code        string    `json:"code"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// TokenPair is the result of a successful login or refresh.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
}
