package httpapi

import (
	"context"
	"fmt"
	"net/http"
	"testing"

	"idgate.org/internal/auth"
)

func TestCreateUser(t *testing.T) {
	api := newTestAPI(t)
	api.seedUser("root@b.com", "Secret123", true)
	headers := api.authHeader("root@b.com", "Secret123")

	resp := api.post("/v1/users", map[string]any{
		"email":      "new@b.com",
		"first_name": "New",
		"last_name":  "User",
		"password":   "Fresh1234",
	}, headers)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create status: %d", resp.StatusCode)
	}
	loc := resp.Header.Get("Location")
	created := decode[auth.User](t, resp)
	if loc != fmt.Sprintf("/v1/users/%d", created.ID) {
		t.Fatalf("bad Location header: %q", loc)
	}
	if !created.Active {
		t.Fatalf("users are active unless the request says otherwise")
	}

	// The new account can log in right away.
	pair := api.login("new@b.com", "Fresh1234")
	if pair.AccessToken == "" {
		t.Fatalf("expected a usable access token")
	}
}

func TestCreateUserDuplicateEmail(t *testing.T) {
	api := newTestAPI(t)
	api.seedUser("root@b.com", "Secret123", true)
	api.seedUser("taken@b.com", "Secret123", false)
	headers := api.authHeader("root@b.com", "Secret123")

	resp := api.post("/v1/users", map[string]any{
		"email":      "taken@b.com",
		"first_name": "Dup",
		"last_name":  "User",
		"password":   "Fresh1234",
	}, headers)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("expected 409, got %d", resp.StatusCode)
	}
}

func TestGetAndUpdateUserByID(t *testing.T) {
	api := newTestAPI(t)
	api.seedUser("root@b.com", "Secret123", true)
	target := api.seedUser("target@b.com", "Secret123", false)
	headers := api.authHeader("root@b.com", "Secret123")

	resp := api.get(fmt.Sprintf("/v1/users/%d", target.ID), headers)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("get status: %d", resp.StatusCode)
	}
	got := decode[auth.User](t, resp)
	if got.Email != "target@b.com" {
		t.Fatalf("unexpected user: %s", got.Email)
	}

	resp = api.do(http.MethodPut, fmt.Sprintf("/v1/users/%d", target.ID), map[string]any{
		"first_name": "Renamed",
	}, headers)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("update status: %d", resp.StatusCode)
	}
	updated := decode[auth.User](t, resp)
	if updated.FirstName != "Renamed" {
		t.Fatalf("first name not updated: %s", updated.FirstName)
	}
	if updated.Email != "target@b.com" {
		t.Fatalf("fields absent from the request must not change")
	}
}

func TestGetUnknownUserIs404(t *testing.T) {
	api := newTestAPI(t)
	api.seedUser("root@b.com", "Secret123", true)
	headers := api.authHeader("root@b.com", "Secret123")

	resp := api.get("/v1/users/9999", headers)
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}

	resp = api.get("/v1/users/not-a-number", headers)
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for a malformed id, got %d", resp.StatusCode)
	}
}

func TestDeleteUserGuardsSelf(t *testing.T) {
	api := newTestAPI(t)
	admin := api.seedUser("root@b.com", "Secret123", true)
	victim := api.seedUser("gone@b.com", "Secret123", false)
	headers := api.authHeader("root@b.com", "Secret123")

	resp := api.do(http.MethodDelete, fmt.Sprintf("/v1/users/%d", admin.ID), nil, headers)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("self-delete: expected 400, got %d", resp.StatusCode)
	}

	resp = api.do(http.MethodDelete, fmt.Sprintf("/v1/users/%d", victim.ID), nil, headers)
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("delete: expected 204, got %d", resp.StatusCode)
	}

	resp = api.get(fmt.Sprintf("/v1/users/%d", victim.ID), headers)
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("deleted user still found")
	}
}

func TestCurrentUserProfile(t *testing.T) {
	api := newTestAPI(t)
	api.seedUser("me@b.com", "Secret123", false)
	headers := api.authHeader("me@b.com", "Secret123")

	resp := api.get("/v1/users/me", headers)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("get me status: %d", resp.StatusCode)
	}
	me := decode[auth.User](t, resp)
	if me.Email != "me@b.com" {
		t.Fatalf("unexpected user: %s", me.Email)
	}

	resp = api.do(http.MethodPut, "/v1/users/me", map[string]any{
		"last_name": "Edited",
	}, headers)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("update me status: %d", resp.StatusCode)
	}
	me = decode[auth.User](t, resp)
	if me.LastName != "Edited" {
		t.Fatalf("last name not updated: %s", me.LastName)
	}
}

func TestChangeOwnPassword(t *testing.T) {
	api := newTestAPI(t)
	api.seedUser("me@b.com", "Secret123", false)
	headers := api.authHeader("me@b.com", "Secret123")

	resp := api.post("/v1/users/me/password", map[string]any{
		"current_password": "wrong-password",
		"new_password":     "Another123",
	}, headers)
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("wrong current password: expected 400, got %d", resp.StatusCode)
	}

	resp = api.post("/v1/users/me/password", map[string]any{
		"current_password": "Secret123",
		"new_password":     "Another123",
	}, headers)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("change password status: %d", resp.StatusCode)
	}

	if pair := api.login("me@b.com", "Another123"); pair.AccessToken == "" {
		t.Fatalf("new password does not work")
	}
}

func TestAssignAndRemoveRole(t *testing.T) {
	api := newTestAPI(t)
	api.seedUser("root@b.com", "Secret123", true)
	member := api.seedUser("member@b.com", "Secret123", false)
	headers := api.authHeader("root@b.com", "Secret123")

	role, err := api.rbac.CreateRole(context.Background(), auth.RoleCreate{Name: "auditors"})
	if err != nil {
		t.Fatalf("create role: %v", err)
	}
	if err := api.rbac.SetRolePermissions(context.Background(), role.ID, []string{auth.PermUserRead}); err != nil {
		t.Fatalf("set permissions: %v", err)
	}

	resp := api.post(fmt.Sprintf("/v1/users/%d/roles", member.ID), map[string]any{
		"role_id": role.ID,
	}, headers)
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("assign role: expected 204, got %d", resp.StatusCode)
	}

	// The member can now list users through the granted permission.
	memberHeaders := api.authHeader("member@b.com", "Secret123")
	resp = api.get("/v1/users", memberHeaders)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("granted permission not effective: %d", resp.StatusCode)
	}

	resp = api.do(http.MethodDelete, fmt.Sprintf("/v1/users/%d/roles/%d", member.ID, role.ID), nil, headers)
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("remove role: expected 204, got %d", resp.StatusCode)
	}

	resp = api.do(http.MethodDelete, fmt.Sprintf("/v1/users/%d/roles/%d", member.ID, role.ID), nil, headers)
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("removing a missing assignment: expected 404, got %d", resp.StatusCode)
	}
}
