package httpapi

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"idgate.org/internal/auth"
)

type createUserRequest struct {
	Email          string `json:"email"`
	FirstName      string `json:"first_name"`
	LastName       string `json:"last_name"`
	Password       string `json:"password"`
	Active         *bool  `json:"is_active"`
	Superuser      bool   `json:"is_superuser"`
	OrganizationID *int64 `json:"organization_id"`
}

type updateUserRequest struct {
	Email          *string `json:"email"`
	FirstName      *string `json:"first_name"`
	LastName       *string `json:"last_name"`
	Password       *string `json:"password"`
	Active         *bool   `json:"is_active"`
	Superuser      *bool   `json:"is_superuser"`
	OrganizationID *int64  `json:"organization_id"`
}

type updateProfileRequest struct {
	Email     *string `json:"email"`
	FirstName *string `json:"first_name"`
	LastName  *string `json:"last_name"`
	Password  *string `json:"password"`
}

type changePasswordRequest struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

type assignRoleRequest struct {
	RoleID int64 `json:"role_id"`
}

func (a *API) handleUsers(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		if _, ok := a.requirePermission(w, r, auth.PermUserRead); !ok {
			return
		}
		limit, offset := listRange(r)
		users, err := a.rbac.ListUsers(r.Context(), limit, offset)
		if err != nil {
			handleServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, users)
	case http.MethodPost:
		principal, ok := a.requirePermission(w, r, auth.PermUserWrite)
		if !ok {
			return
		}
		var req createUserRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		active := true
		if req.Active != nil {
			active = *req.Active
		}
		user, err := a.rbac.CreateUser(r.Context(), auth.UserCreate{
			Email:          req.Email,
			FirstName:      req.FirstName,
			LastName:       req.LastName,
			Password:       req.Password,
			Active:         active,
			Superuser:      req.Superuser,
			OrganizationID: req.OrganizationID,
		})
		if err != nil {
			handleServiceError(w, r, err)
			return
		}
		a.audit(r.Context(), "rbac.user.create", map[string]any{
			"actor_id": principal.User.ID,
			"user_id":  user.ID,
			"email":    user.Email,
		})
		w.Header().Set("Location", fmt.Sprintf("/v1/users/%d", user.ID))
		writeJSON(w, http.StatusCreated, user)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPost)
	}
}

func (a *API) handleUserScoped(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/v1/users/")
	path = strings.Trim(path, "/")
	if path == "" {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}
	parts := strings.Split(path, "/")

	if parts[0] == "me" {
		a.handleCurrentUser(w, r, parts[1:])
		return
	}

	id, ok := parseID(w, r, parts[0])
	if !ok {
		return
	}
	switch len(parts) {
	case 1:
		a.handleUserByID(w, r, id)
	case 2:
		if parts[1] != "roles" {
			writeError(w, r, http.StatusNotFound, "resource not found")
			return
		}
		a.handleUserRoles(w, r, id)
	case 3:
		if parts[1] != "roles" {
			writeError(w, r, http.StatusNotFound, "resource not found")
			return
		}
		roleID, ok := parseID(w, r, parts[2])
		if !ok {
			return
		}
		a.handleUserRole(w, r, id, roleID)
	default:
		writeError(w, r, http.StatusNotFound, "resource not found")
	}
}

func (a *API) handleCurrentUser(w http.ResponseWriter, r *http.Request, rest []string) {
	principal, ok := a.currentPrincipal(w, r)
	if !ok {
		return
	}
	if len(rest) == 1 && rest[0] == "password" {
		if r.Method != http.MethodPost {
			methodNotAllowed(w, r, http.MethodPost)
			return
		}
		var req changePasswordRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		if err := a.auth.ChangePassword(r.Context(), *principal.User, req.CurrentPassword, req.NewPassword); err != nil {
			handleServiceError(w, r, err)
			return
		}
		a.audit(r.Context(), "auth.password.changed", map[string]any{
			"user_id": principal.User.ID,
		})
		writeJSON(w, http.StatusOK, map[string]any{
			"message": "password updated successfully",
		})
		return
	}
	if len(rest) != 0 {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}

	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, principal.User)
	case http.MethodPut:
		var req updateProfileRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		user, err := a.rbac.UpdateUser(r.Context(), principal.User.ID, auth.UserEdit{
			Email:     req.Email,
			FirstName: req.FirstName,
			LastName:  req.LastName,
			Password:  req.Password,
		})
		if err != nil {
			handleServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, user)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPut)
	}
}

func (a *API) handleUserByID(w http.ResponseWriter, r *http.Request, id int64) {
	switch r.Method {
	case http.MethodGet:
		if _, ok := a.requirePermission(w, r, auth.PermUserRead); !ok {
			return
		}
		user, err := a.rbac.GetUser(r.Context(), id)
		if err != nil {
			handleServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, user)
	case http.MethodPut:
		principal, ok := a.requirePermission(w, r, auth.PermUserWrite)
		if !ok {
			return
		}
		var req updateUserRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		user, err := a.rbac.UpdateUser(r.Context(), id, auth.UserEdit(req))
		if err != nil {
			handleServiceError(w, r, err)
			return
		}
		a.audit(r.Context(), "rbac.user.update", map[string]any{
			"actor_id": principal.User.ID,
			"user_id":  user.ID,
		})
		writeJSON(w, http.StatusOK, user)
	case http.MethodDelete:
		principal, ok := a.requirePermission(w, r, auth.PermUserWrite)
		if !ok {
			return
		}
		if err := a.rbac.DeleteUser(r.Context(), principal.User.ID, id); err != nil {
			handleServiceError(w, r, err)
			return
		}
		a.audit(r.Context(), "rbac.user.delete", map[string]any{
			"actor_id": principal.User.ID,
			"user_id":  id,
		})
		w.WriteHeader(http.StatusNoContent)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPut, http.MethodDelete)
	}
}

func (a *API) handleUserRoles(w http.ResponseWriter, r *http.Request, userID int64) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	principal, ok := a.requirePermission(w, r, auth.PermUserWrite)
	if !ok {
		return
	}
	var req assignRoleRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if req.RoleID <= 0 {
		writeError(w, r, http.StatusBadRequest, "role_id is required")
		return
	}
	if err := a.rbac.AssignRole(r.Context(), userID, req.RoleID); err != nil {
		handleServiceError(w, r, err)
		return
	}
	a.audit(r.Context(), "rbac.user.assign_role", map[string]any{
		"actor_id": principal.User.ID,
		"user_id":  userID,
		"role_id":  req.RoleID,
	})
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) handleUserRole(w http.ResponseWriter, r *http.Request, userID, roleID int64) {
	if r.Method != http.MethodDelete {
		methodNotAllowed(w, r, http.MethodDelete)
		return
	}
	principal, ok := a.requirePermission(w, r, auth.PermUserWrite)
	if !ok {
		return
	}
	if err := a.rbac.RemoveRole(r.Context(), userID, roleID); err != nil {
		handleServiceError(w, r, err)
		return
	}
	a.audit(r.Context(), "rbac.user.remove_role", map[string]any{
		"actor_id": principal.User.ID,
		"user_id":  userID,
		"role_id":  roleID,
	})
	w.WriteHeader(http.StatusNoContent)
}

func parseID(w http.ResponseWriter, r *http.Request, raw string) (int64, bool) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		writeError(w, r, http.StatusBadRequest, "invalid resource id")
		return 0, false
	}
	return id, true
}

func listRange(r *http.Request) (limit, offset int) {
	q := r.URL.Query()
	limit, _ = strconv.Atoi(q.Get("limit"))
	offset, _ = strconv.Atoi(q.Get("offset"))
	return limit, offset
}
