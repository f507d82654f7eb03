package auth

// Builtin permission codes tested by the HTTP layer.
const (
	PermOrgRead   = "org:read"
	PermOrgWrite  = "org:write"
	PermUserRead  = "user:read"
	PermUserWrite = "user:write"
	PermRoleRead  = "role:read"
	PermRoleWrite = "role:write"
)

// BuiltinPermissions is the catalog ensured at startup.
var BuiltinPermissions = []NewPermission{
	{Name: "Read organizations", Code: PermOrgRead, Description: "List and view organizations"},
	{Name: "Manage organizations", Code: PermOrgWrite, Description: "Create, update and delete organizations"},
	{Name: "Read users", Code: PermUserRead, Description: "List and view user accounts"},
	{Name: "Manage users", Code: PermUserWrite, Description: "Create, update and delete user accounts"},
	{Name: "Read roles", Code: PermRoleRead, Description: "List and view roles and permissions"},
	{Name: "Manage roles", Code: PermRoleWrite, Description: "Create, update and delete roles"},
}
