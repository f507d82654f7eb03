package auth

// Principal is an authenticated user with the role/permission graph fully
// materialized. Both predicates are pure functions over already-loaded
// state; the caller guarantees eager loading.
type Principal struct {
	User *User
}

// HasPermission reports whether the principal may perform the action
// identified by code. Superusers pass every check; this is the deliberate
// universal-grant escape hatch.
func (p Principal) HasPermission(code string) bool {
	if p.User == nil {
		return false
	}
	if p.User.Superuser {
		return true
	}
	for _, role := range p.User.Roles {
		for _, perm := range role.Permissions {
			if perm.Code == code {
				return true
			}
		}
	}
	return false
}

// HasRole reports whether the principal holds the named role. Superusers
// pass every check.
func (p Principal) HasRole(name string) bool {
	if p.User == nil {
		return false
	}
	if p.User.Superuser {
		return true
	}
	for _, role := range p.User.Roles {
		if role.Name == name {
			return true
		}
	}
	return false
}
