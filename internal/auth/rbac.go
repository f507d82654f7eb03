package auth

import (
	"context"
	"errors"
	"strings"
)

const (
	defaultListLimit = 100
	maxListLimit     = 500
)

// UserCreate is the administrative input for creating a user.
type UserCreate struct {
	Email          string
	FirstName      string
	LastName       string
	Password       string
	Active         bool
	Superuser      bool
	OrganizationID *int64
}

// UserEdit updates a user; nil fields are left unchanged. Password is
// plaintext and hashed before it reaches the store.
type UserEdit struct {
	Email          *string
	FirstName      *string
	LastName       *string
	Password       *string
	Active         *bool
	Superuser      *bool
	OrganizationID *int64
}

// RoleCreate is the input for creating a role.
type RoleCreate struct {
	Name           string
	Description    string
	Default        bool
	OrganizationID *int64
}

// RoleEdit updates a role; nil fields are left unchanged.
type RoleEdit struct {
	Name        *string
	Description *string
	Default     *bool
}

// OrganizationCreate is the input for creating an organization.
type OrganizationCreate struct {
	Name         string
	Description  string
	Website      string
	ContactEmail string
	ContactPhone string
	Address      string
	Active       bool
}

// OrganizationEdit updates an organization; nil fields are left unchanged.
type OrganizationEdit struct {
	Name         *string
	Description  *string
	Website      *string
	ContactEmail *string
	ContactPhone *string
	Address      *string
	Active       *bool
}

// PermissionCreate is the input for creating a permission.
type PermissionCreate struct {
	Name        string
	Code        string
	Description string
}

// RBACService provides administrative operations over organizations,
// users, roles and permissions. Authorization decisions stay with the
// caller; this service validates input and applies business rules.
type RBACService struct {
	store             Store
	passwordMinLength int
}

// RBACOption configures RBACService behavior.
type RBACOption func(*RBACService)

// WithMinPasswordLength sets the minimum accepted password length for
// administrative user creation and edits.
func WithMinPasswordLength(n int) RBACOption {
	return func(s *RBACService) {
		if n > 0 {
			s.passwordMinLength = n
		}
	}
}

// NewRBACService constructs an RBACService.
func NewRBACService(store Store, opts ...RBACOption) (*RBACService, error) {
	if store == nil {
		return nil, errors.New("auth: rbac store is required")
	}
	s := &RBACService{store: store, passwordMinLength: defaultPasswordMinLength}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// EnsureBuiltins makes sure the builtin permission catalog exists.
func (s *RBACService) EnsureBuiltins(ctx context.Context) error {
	return s.store.Permissions().Ensure(ctx, BuiltinPermissions)
}

func (s *RBACService) validatePassword(password string) error {
	if len(password) < s.passwordMinLength {
		return validationf("password must be at least %d characters", s.passwordMinLength)
	}
	return nil
}

func normalizeEmail(email string) (string, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	if email == "" || !strings.Contains(email, "@") {
		return "", validationf("valid email is required")
	}
	return email, nil
}

func clampRange(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

// CreateUser creates a user with a hashed credential and attaches every
// default role.
func (s *RBACService) CreateUser(ctx context.Context, in UserCreate) (User, error) {
	email, err := normalizeEmail(in.Email)
	if err != nil {
		return User{}, err
	}
	if strings.TrimSpace(in.FirstName) == "" || strings.TrimSpace(in.LastName) == "" {
		return User{}, validationf("first and last name are required")
	}
	if err := s.validatePassword(in.Password); err != nil {
		return User{}, err
	}
	hash, err := HashPassword(in.Password)
	if err != nil {
		return User{}, err
	}
	user, err := s.store.Users().Create(ctx, NewUser{
		Email:          email,
		FirstName:      strings.TrimSpace(in.FirstName),
		LastName:       strings.TrimSpace(in.LastName),
		PasswordHash:   hash,
		Active:         in.Active,
		Superuser:      in.Superuser,
		OrganizationID: in.OrganizationID,
	})
	if err != nil {
		return User{}, err
	}
	defaults, err := s.store.Roles().ListDefault(ctx)
	if err != nil {
		return User{}, err
	}
	for _, role := range defaults {
		if err := s.store.Users().AssignRole(ctx, user.ID, role.ID); err != nil {
			return User{}, err
		}
	}
	if len(defaults) > 0 {
		return s.store.Users().Find(ctx, user.ID)
	}
	return user, nil
}

// ListUsers returns a page of users.
func (s *RBACService) ListUsers(ctx context.Context, limit, offset int) ([]User, error) {
	limit, offset = clampRange(limit, offset)
	return s.store.Users().List(ctx, limit, offset)
}

// GetUser returns a user by ID with roles and permissions resolved.
func (s *RBACService) GetUser(ctx context.Context, id int64) (User, error) {
	return s.store.Users().Find(ctx, id)
}

// UpdateUser applies an explicit field-by-field merge.
func (s *RBACService) UpdateUser(ctx context.Context, id int64, in UserEdit) (User, error) {
	upd := UserUpdate{
		FirstName:      in.FirstName,
		LastName:       in.LastName,
		Active:         in.Active,
		Superuser:      in.Superuser,
		OrganizationID: in.OrganizationID,
	}
	if in.Email != nil {
		email, err := normalizeEmail(*in.Email)
		if err != nil {
			return User{}, err
		}
		upd.Email = &email
	}
	if in.Password != nil {
		if err := s.validatePassword(*in.Password); err != nil {
			return User{}, err
		}
		hash, err := HashPassword(*in.Password)
		if err != nil {
			return User{}, err
		}
		upd.PasswordHash = &hash
	}
	return s.store.Users().Update(ctx, id, upd)
}

// DeleteUser removes a user. A user may never delete its own account,
// superuser or not.
func (s *RBACService) DeleteUser(ctx context.Context, actorID, userID int64) error {
	if actorID == userID {
		return validationf("cannot delete your own account")
	}
	return s.store.Users().Delete(ctx, userID)
}

// AssignRole attaches a role to a user.
func (s *RBACService) AssignRole(ctx context.Context, userID, roleID int64) error {
	return s.store.Users().AssignRole(ctx, userID, roleID)
}

// RemoveRole detaches a role from a user.
func (s *RBACService) RemoveRole(ctx context.Context, userID, roleID int64) error {
	return s.store.Users().RemoveRole(ctx, userID, roleID)
}

// CreateRole creates a role. Role names are unique regardless of
// organization scoping.
func (s *RBACService) CreateRole(ctx context.Context, in RoleCreate) (Role, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return Role{}, validationf("role name is required")
	}
	return s.store.Roles().Create(ctx, NewRole{
		Name:           name,
		Description:    strings.TrimSpace(in.Description),
		Default:        in.Default,
		OrganizationID: in.OrganizationID,
	})
}

// ListRoles returns a page of roles.
func (s *RBACService) ListRoles(ctx context.Context, limit, offset int) ([]Role, error) {
	limit, offset = clampRange(limit, offset)
	return s.store.Roles().List(ctx, limit, offset)
}

// GetRole returns a role with its permissions.
func (s *RBACService) GetRole(ctx context.Context, id int64) (Role, error) {
	return s.store.Roles().Find(ctx, id)
}

// UpdateRole applies an explicit field-by-field merge.
func (s *RBACService) UpdateRole(ctx context.Context, id int64, in RoleEdit) (Role, error) {
	if in.Name != nil {
		name := strings.TrimSpace(*in.Name)
		if name == "" {
			return Role{}, validationf("role name is required")
		}
		in.Name = &name
	}
	return s.store.Roles().Update(ctx, id, RoleUpdate{
		Name:        in.Name,
		Description: in.Description,
		Default:     in.Default,
	})
}

// DeleteRole removes a role. Permission records survive; only the
// role-permission links are detached.
func (s *RBACService) DeleteRole(ctx context.Context, id int64) error {
	return s.store.Roles().Delete(ctx, id)
}

// SetRolePermissions replaces the permission set of a role with the given
// permission codes.
func (s *RBACService) SetRolePermissions(ctx context.Context, roleID int64, codes []string) error {
	return s.store.Roles().SetPermissions(ctx, roleID, dedupeStrings(codes))
}

// CreateOrganization creates an organization.
func (s *RBACService) CreateOrganization(ctx context.Context, in OrganizationCreate) (Organization, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return Organization{}, validationf("organization name is required")
	}
	return s.store.Organizations().Create(ctx, NewOrganization{
		Name:         name,
		Description:  strings.TrimSpace(in.Description),
		Website:      strings.TrimSpace(in.Website),
		ContactEmail: strings.TrimSpace(in.ContactEmail),
		ContactPhone: strings.TrimSpace(in.ContactPhone),
		Address:      strings.TrimSpace(in.Address),
		Active:       in.Active,
	})
}

// ListOrganizations returns a page of organizations.
func (s *RBACService) ListOrganizations(ctx context.Context, limit, offset int) ([]Organization, error) {
	limit, offset = clampRange(limit, offset)
	return s.store.Organizations().List(ctx, limit, offset)
}

// GetOrganization returns an organization by ID.
func (s *RBACService) GetOrganization(ctx context.Context, id int64) (Organization, error) {
	return s.store.Organizations().Find(ctx, id)
}

// UpdateOrganization applies an explicit field-by-field merge.
func (s *RBACService) UpdateOrganization(ctx context.Context, id int64, in OrganizationEdit) (Organization, error) {
	if in.Name != nil {
		name := strings.TrimSpace(*in.Name)
		if name == "" {
			return Organization{}, validationf("organization name is required")
		}
		in.Name = &name
	}
	return s.store.Organizations().Update(ctx, id, OrganizationUpdate(in))
}

// DeleteOrganization removes an organization.
func (s *RBACService) DeleteOrganization(ctx context.Context, id int64) error {
	return s.store.Organizations().Delete(ctx, id)
}

// CreatePermission adds a permission to the catalog.
func (s *RBACService) CreatePermission(ctx context.Context, in PermissionCreate) (Permission, error) {
	name := strings.TrimSpace(in.Name)
	code := strings.TrimSpace(in.Code)
	if name == "" || code == "" {
		return Permission{}, validationf("permission name and code are required")
	}
	return s.store.Permissions().Create(ctx, NewPermission{
		Name:        name,
		Code:        code,
		Description: strings.TrimSpace(in.Description),
	})
}

// ListPermissions returns the permission catalog.
func (s *RBACService) ListPermissions(ctx context.Context) ([]Permission, error) {
	return s.store.Permissions().List(ctx)
}

func dedupeStrings(values []string) []string {
	if len(values) == 0 {
		return nil
	}
	set := make(map[string]struct{}, len(values))
	result := make([]string, 0, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		if _, ok := set[v]; ok {
			continue
		}
		set[v] = struct{}{}
		result = append(result, v)
	}
	return result
}
