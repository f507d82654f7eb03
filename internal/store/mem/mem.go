// Package mem provides an in-memory auth.Store used by tests and local
// development. Semantics mirror the PostgreSQL store, including the
// error kinds returned for conflicts and missing rows.
package mem

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"idgate.org/internal/auth"
)

// Store implements auth.Store over process memory.
type Store struct {
	mu sync.RWMutex

	users         map[int64]*auth.User
	roles         map[int64]*auth.Role
	orgs          map[int64]*auth.Organization
	perms         map[int64]*auth.Permission
	userRoles     map[int64]map[int64]bool
	rolePerms     map[int64]map[int64]bool
	nextUserID    int64
	nextRoleID    int64
	nextOrgID     int64
	nextPermID    int64
}

var _ auth.Store = (*Store)(nil)

// New returns an empty Store.
func New() *Store {
	return &Store{
		users:     make(map[int64]*auth.User),
		roles:     make(map[int64]*auth.Role),
		orgs:      make(map[int64]*auth.Organization),
		perms:     make(map[int64]*auth.Permission),
		userRoles: make(map[int64]map[int64]bool),
		rolePerms: make(map[int64]map[int64]bool),
	}
}

func (s *Store) Organizations() auth.OrganizationStore { return (*orgStore)(s) }
func (s *Store) Users() auth.UserStore                 { return (*userStore)(s) }
func (s *Store) Roles() auth.RoleStore                 { return (*roleStore)(s) }
func (s *Store) Permissions() auth.PermissionStore     { return (*permStore)(s) }

// --- users ---

type userStore Store

func (s *userStore) Create(_ context.Context, u auth.NewUser) (auth.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.users {
		if existing.Email == u.Email {
			return auth.User{}, auth.Conflictf("email already registered")
		}
	}
	if u.OrganizationID != nil {
		if _, ok := s.orgs[*u.OrganizationID]; !ok {
			return auth.User{}, auth.NotFoundf("organization not found")
		}
	}
	s.nextUserID++
	now := time.Now().UTC()
	user := &auth.User{
		ID:             s.nextUserID,
		Email:          u.Email,
		FirstName:      u.FirstName,
		LastName:       u.LastName,
		PasswordHash:   u.PasswordHash,
		Active:         u.Active,
		Superuser:      u.Superuser,
		OrganizationID: u.OrganizationID,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	s.users[user.ID] = user
	return *user, nil
}

func (s *userStore) Find(_ context.Context, id int64) (auth.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	user, ok := s.users[id]
	if !ok {
		return auth.User{}, auth.NotFoundf("user not found")
	}
	out := *user
	out.Roles = (*Store)(s).rolesForUserLocked(id)
	return out, nil
}

func (s *userStore) FindByEmail(_ context.Context, email string) (auth.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, user := range s.users {
		if user.Email == email {
			out := *user
			out.Roles = (*Store)(s).rolesForUserLocked(user.ID)
			return out, nil
		}
	}
	return auth.User{}, auth.NotFoundf("user not found")
}

func (s *userStore) List(_ context.Context, limit, offset int) ([]auth.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]int64, 0, len(s.users))
	for id := range s.users {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	var out []auth.User
	for i, id := range ids {
		if i < offset {
			continue
		}
		if len(out) >= limit {
			break
		}
		out = append(out, *s.users[id])
	}
	return out, nil
}

func (s *userStore) Update(_ context.Context, id int64, upd auth.UserUpdate) (auth.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.users[id]
	if !ok {
		return auth.User{}, auth.NotFoundf("user not found")
	}
	if upd.Email != nil {
		for otherID, other := range s.users {
			if otherID != id && other.Email == *upd.Email {
				return auth.User{}, auth.Conflictf("email already registered")
			}
		}
		user.Email = *upd.Email
	}
	if upd.FirstName != nil {
		user.FirstName = *upd.FirstName
	}
	if upd.LastName != nil {
		user.LastName = *upd.LastName
	}
	if upd.PasswordHash != nil {
		user.PasswordHash = *upd.PasswordHash
	}
	if upd.Active != nil {
		user.Active = *upd.Active
	}
	if upd.Superuser != nil {
		user.Superuser = *upd.Superuser
	}
	if upd.OrganizationID != nil {
		if _, ok := s.orgs[*upd.OrganizationID]; !ok {
			return auth.User{}, auth.NotFoundf("organization not found")
		}
		user.OrganizationID = upd.OrganizationID
	}
	user.UpdatedAt = time.Now().UTC()
	out := *user
	out.Roles = (*Store)(s).rolesForUserLocked(id)
	return out, nil
}

func (s *userStore) Delete(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[id]; !ok {
		return auth.NotFoundf("user not found")
	}
	delete(s.users, id)
	delete(s.userRoles, id)
	return nil
}

func (s *userStore) UpdatePassword(_ context.Context, id int64, passwordHash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.users[id]
	if !ok {
		return auth.NotFoundf("user not found")
	}
	user.PasswordHash = passwordHash
	user.UpdatedAt = time.Now().UTC()
	return nil
}

func (s *userStore) SetLastLogin(_ context.Context, id int64, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.users[id]
	if !ok {
		return auth.NotFoundf("user not found")
	}
	user.LastLogin = &at
	return nil
}

func (s *userStore) SetResetToken(_ context.Context, id int64, token *string, expires *time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.users[id]
	if !ok {
		return auth.NotFoundf("user not found")
	}
	user.ResetToken = token
	user.ResetExpires = expires
	return nil
}

func (s *userStore) AssignRole(_ context.Context, userID, roleID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[userID]; !ok {
		return auth.NotFoundf("user or role not found")
	}
	if _, ok := s.roles[roleID]; !ok {
		return auth.NotFoundf("user or role not found")
	}
	if s.userRoles[userID] == nil {
		s.userRoles[userID] = make(map[int64]bool)
	}
	s.userRoles[userID][roleID] = true
	return nil
}

func (s *userStore) RemoveRole(_ context.Context, userID, roleID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.userRoles[userID][roleID] {
		return auth.NotFoundf("role assignment not found")
	}
	delete(s.userRoles[userID], roleID)
	return nil
}

// rolesForUserLocked assumes at least a read lock is held.
func (s *Store) rolesForUserLocked(userID int64) []auth.Role {
	var out []auth.Role
	ids := make([]int64, 0, len(s.userRoles[userID]))
	for roleID := range s.userRoles[userID] {
		ids = append(ids, roleID)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	for _, roleID := range ids {
		role, ok := s.roles[roleID]
		if !ok {
			continue
		}
		r := *role
		r.Permissions = s.permsForRoleLocked(roleID)
		out = append(out, r)
	}
	return out
}

func (s *Store) permsForRoleLocked(roleID int64) []auth.Permission {
	var out []auth.Permission
	for permID := range s.rolePerms[roleID] {
		if perm, ok := s.perms[permID]; ok {
			out = append(out, *perm)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out
}

// --- roles ---

type roleStore Store

func (s *roleStore) Create(_ context.Context, r auth.NewRole) (auth.Role, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.roles {
		if existing.Name == r.Name {
			return auth.Role{}, auth.Conflictf("role with this name already exists")
		}
	}
	if r.OrganizationID != nil {
		if _, ok := s.orgs[*r.OrganizationID]; !ok {
			return auth.Role{}, auth.NotFoundf("organization not found")
		}
	}
	s.nextRoleID++
	now := time.Now().UTC()
	role := &auth.Role{
		ID:             s.nextRoleID,
		Name:           r.Name,
		Description:    r.Description,
		Default:        r.Default,
		OrganizationID: r.OrganizationID,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	s.roles[role.ID] = role
	return *role, nil
}

func (s *roleStore) Find(_ context.Context, id int64) (auth.Role, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	role, ok := s.roles[id]
	if !ok {
		return auth.Role{}, auth.NotFoundf("role not found")
	}
	out := *role
	out.Permissions = (*Store)(s).permsForRoleLocked(id)
	return out, nil
}

func (s *roleStore) List(_ context.Context, limit, offset int) ([]auth.Role, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]int64, 0, len(s.roles))
	for id := range s.roles {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	var out []auth.Role
	for i, id := range ids {
		if i < offset {
			continue
		}
		if len(out) >= limit {
			break
		}
		out = append(out, *s.roles[id])
	}
	return out, nil
}

func (s *roleStore) ListDefault(_ context.Context) ([]auth.Role, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []auth.Role
	for _, role := range s.roles {
		if role.Default {
			out = append(out, *role)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *roleStore) Update(_ context.Context, id int64, upd auth.RoleUpdate) (auth.Role, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	role, ok := s.roles[id]
	if !ok {
		return auth.Role{}, auth.NotFoundf("role not found")
	}
	if upd.Name != nil {
		for otherID, other := range s.roles {
			if otherID != id && other.Name == *upd.Name {
				return auth.Role{}, auth.Conflictf("role with this name already exists")
			}
		}
		role.Name = *upd.Name
	}
	if upd.Description != nil {
		role.Description = *upd.Description
	}
	if upd.Default != nil {
		role.Default = *upd.Default
	}
	role.UpdatedAt = time.Now().UTC()
	out := *role
	out.Permissions = (*Store)(s).permsForRoleLocked(id)
	return out, nil
}

func (s *roleStore) Delete(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.roles[id]; !ok {
		return auth.NotFoundf("role not found")
	}
	delete(s.roles, id)
	delete(s.rolePerms, id)
	for userID := range s.userRoles {
		delete(s.userRoles[userID], id)
	}
	return nil
}

func (s *roleStore) SetPermissions(_ context.Context, roleID int64, codes []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.roles[roleID]; !ok {
		return auth.NotFoundf("role not found")
	}
	next := make(map[int64]bool, len(codes))
	for _, code := range codes {
		var found bool
		for _, perm := range s.perms {
			if perm.Code == code {
				next[perm.ID] = true
				found = true
				break
			}
		}
		if !found {
			return auth.NotFoundf("permission %q not found", code)
		}
	}
	s.rolePerms[roleID] = next
	return nil
}

// --- organizations ---

type orgStore Store

func (s *orgStore) Create(_ context.Context, o auth.NewOrganization) (auth.Organization, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.orgs {
		if existing.Name == o.Name {
			return auth.Organization{}, auth.Conflictf("organization with this name already exists")
		}
	}
	s.nextOrgID++
	now := time.Now().UTC()
	org := &auth.Organization{
		ID:           s.nextOrgID,
		Name:         o.Name,
		Description:  o.Description,
		Website:      o.Website,
		ContactEmail: o.ContactEmail,
		ContactPhone: o.ContactPhone,
		Address:      o.Address,
		Active:       o.Active,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	s.orgs[org.ID] = org
	return *org, nil
}

func (s *orgStore) Find(_ context.Context, id int64) (auth.Organization, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	org, ok := s.orgs[id]
	if !ok {
		return auth.Organization{}, auth.NotFoundf("organization not found")
	}
	return *org, nil
}

func (s *orgStore) List(_ context.Context, limit, offset int) ([]auth.Organization, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]int64, 0, len(s.orgs))
	for id := range s.orgs {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	var out []auth.Organization
	for i, id := range ids {
		if i < offset {
			continue
		}
		if len(out) >= limit {
			break
		}
		out = append(out, *s.orgs[id])
	}
	return out, nil
}

func (s *orgStore) Update(_ context.Context, id int64, upd auth.OrganizationUpdate) (auth.Organization, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	org, ok := s.orgs[id]
	if !ok {
		return auth.Organization{}, auth.NotFoundf("organization not found")
	}
	if upd.Name != nil {
		for otherID, other := range s.orgs {
			if otherID != id && other.Name == *upd.Name {
				return auth.Organization{}, auth.Conflictf("organization with this name already exists")
			}
		}
		org.Name = *upd.Name
	}
	if upd.Description != nil {
		org.Description = *upd.Description
	}
	if upd.Website != nil {
		org.Website = *upd.Website
	}
	if upd.ContactEmail != nil {
		org.ContactEmail = *upd.ContactEmail
	}
	if upd.ContactPhone != nil {
		org.ContactPhone = *upd.ContactPhone
	}
	if upd.Address != nil {
		org.Address = *upd.Address
	}
	if upd.Active != nil {
		org.Active = *upd.Active
	}
	org.UpdatedAt = time.Now().UTC()
	return *org, nil
}

func (s *orgStore) Delete(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.orgs[id]; !ok {
		return auth.NotFoundf("organization not found")
	}
	delete(s.orgs, id)
	return nil
}

// --- permissions ---

type permStore Store

func (s *permStore) Create(_ context.Context, p auth.NewPermission) (auth.Permission, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.perms {
		if existing.Code == p.Code {
			return auth.Permission{}, auth.Conflictf("permission with this code already exists")
		}
	}
	s.nextPermID++
	perm := &auth.Permission{
		ID:          s.nextPermID,
		Name:        p.Name,
		Code:        p.Code,
		Description: p.Description,
		CreatedAt:   time.Now().UTC(),
	}
	s.perms[perm.ID] = perm
	return *perm, nil
}

func (s *permStore) List(_ context.Context) ([]auth.Permission, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]auth.Permission, 0, len(s.perms))
	for _, perm := range s.perms {
		out = append(out, *perm)
	}
	sort.Slice(out, func(i, j int) bool {
		return strings.Compare(out[i].Code, out[j].Code) < 0
	})
	return out, nil
}

func (s *permStore) Ensure(ctx context.Context, perms []auth.NewPermission) error {
	for _, p := range perms {
		if _, err := s.Create(ctx, p); err != nil && !errors.Is(err, auth.ErrConflict) {
			return err
		}
	}
	return nil
}
