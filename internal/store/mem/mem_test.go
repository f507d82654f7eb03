package mem

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"idgate.org/internal/auth"
)

func TestUserLifecycle(t *testing.T) {
	s := New()
	ctx := context.Background()

	user, err := s.Users().Create(ctx, auth.NewUser{
		Email:        "a@b.com",
		FirstName:    "First",
		LastName:     "Last",
		PasswordHash: "hash",
		Active:       true,
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if user.ID == 0 {
		t.Fatalf("expected an assigned id")
	}

	if _, err := s.Users().Create(ctx, auth.NewUser{Email: "a@b.com"}); !errors.Is(err, auth.ErrConflict) {
		t.Fatalf("duplicate email: want conflict, got %v", err)
	}

	found, err := s.Users().FindByEmail(ctx, "a@b.com")
	if err != nil || found.ID != user.ID {
		t.Fatalf("FindByEmail: %v %+v", err, found)
	}

	if err := s.Users().Delete(ctx, user.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := s.Users().Find(ctx, user.ID); !errors.Is(err, auth.ErrNotFound) {
		t.Fatalf("want not found after delete, got %v", err)
	}
}

func TestUserListPagination(t *testing.T) {
	s := New()
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		if _, err := s.Users().Create(ctx, auth.NewUser{Email: fmt.Sprintf("u%d@b.com", i)}); err != nil {
			t.Fatalf("Create: %v", err)
		}
	}

	page, err := s.Users().List(ctx, 2, 2)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(page) != 2 {
		t.Fatalf("expected 2 users, got %d", len(page))
	}
	if page[0].Email != "u2@b.com" {
		t.Fatalf("offset not honored: %s", page[0].Email)
	}

	tail, err := s.Users().List(ctx, 10, 4)
	if err != nil || len(tail) != 1 {
		t.Fatalf("tail page: %v, %d users", err, len(tail))
	}
}

func TestRoleAssignmentGraph(t *testing.T) {
	s := New()
	ctx := context.Background()

	user, err := s.Users().Create(ctx, auth.NewUser{Email: "a@b.com"})
	if err != nil {
		t.Fatalf("Create user: %v", err)
	}
	role, err := s.Roles().Create(ctx, auth.NewRole{Name: "ops"})
	if err != nil {
		t.Fatalf("Create role: %v", err)
	}
	if err := s.Permissions().Ensure(ctx, []auth.NewPermission{
		{Name: "User Read", Code: "user:read"},
	}); err != nil {
		t.Fatalf("Ensure: %v", err)
	}
	if err := s.Roles().SetPermissions(ctx, role.ID, []string{"user:read"}); err != nil {
		t.Fatalf("SetPermissions: %v", err)
	}
	if err := s.Users().AssignRole(ctx, user.ID, role.ID); err != nil {
		t.Fatalf("AssignRole: %v", err)
	}
	// A second assignment is a no-op, mirroring on conflict do nothing.
	if err := s.Users().AssignRole(ctx, user.ID, role.ID); err != nil {
		t.Fatalf("repeat AssignRole: %v", err)
	}

	loaded, err := s.Users().Find(ctx, user.ID)
	if err != nil {
		t.Fatalf("Find: %v", err)
	}
	if len(loaded.Roles) != 1 || len(loaded.Roles[0].Permissions) != 1 {
		t.Fatalf("role graph not materialized: %+v", loaded.Roles)
	}
	if loaded.Roles[0].Permissions[0].Code != "user:read" {
		t.Fatalf("unexpected permission: %+v", loaded.Roles[0].Permissions)
	}

	if err := s.Users().RemoveRole(ctx, user.ID, role.ID); err != nil {
		t.Fatalf("RemoveRole: %v", err)
	}
	if err := s.Users().RemoveRole(ctx, user.ID, role.ID); !errors.Is(err, auth.ErrNotFound) {
		t.Fatalf("removing a missing assignment: want not found, got %v", err)
	}
}

func TestAssignRoleUnknownTargets(t *testing.T) {
	s := New()
	ctx := context.Background()

	if err := s.Users().AssignRole(ctx, 1, 1); !errors.Is(err, auth.ErrNotFound) {
		t.Fatalf("want not found, got %v", err)
	}
}

func TestListDefaultRoles(t *testing.T) {
	s := New()
	ctx := context.Background()

	if _, err := s.Roles().Create(ctx, auth.NewRole{Name: "plain"}); err != nil {
		t.Fatalf("Create: %v", err)
	}
	def, err := s.Roles().Create(ctx, auth.NewRole{Name: "member", Default: true})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	defaults, err := s.Roles().ListDefault(ctx)
	if err != nil {
		t.Fatalf("ListDefault: %v", err)
	}
	if len(defaults) != 1 || defaults[0].ID != def.ID {
		t.Fatalf("unexpected defaults: %+v", defaults)
	}
}

func TestDeleteRoleDetachesAssignments(t *testing.T) {
	s := New()
	ctx := context.Background()

	user, _ := s.Users().Create(ctx, auth.NewUser{Email: "a@b.com"})
	role, _ := s.Roles().Create(ctx, auth.NewRole{Name: "ops"})
	if err := s.Users().AssignRole(ctx, user.ID, role.ID); err != nil {
		t.Fatalf("AssignRole: %v", err)
	}
	if err := s.Roles().Delete(ctx, role.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}

	loaded, err := s.Users().Find(ctx, user.ID)
	if err != nil {
		t.Fatalf("Find: %v", err)
	}
	if len(loaded.Roles) != 0 {
		t.Fatalf("deleted role still attached: %+v", loaded.Roles)
	}
}

func TestEnsureIsIdempotent(t *testing.T) {
	s := New()
	ctx := context.Background()

	perms := []auth.NewPermission{
		{Name: "User Read", Code: "user:read"},
		{Name: "User Write", Code: "user:write"},
	}
	for i := 0; i < 2; i++ {
		if err := s.Permissions().Ensure(ctx, perms); err != nil {
			t.Fatalf("Ensure round %d: %v", i, err)
		}
	}
	list, err := s.Permissions().List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("expected 2 permissions, got %d", len(list))
	}
}
