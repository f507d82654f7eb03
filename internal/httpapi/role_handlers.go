package httpapi

import (
	"fmt"
	"net/http"
	"strings"

	"idgate.org/internal/auth"
)

type createRoleRequest struct {
	Name           string `json:"name"`
	Description    string `json:"description"`
	Default        bool   `json:"is_default"`
	OrganizationID *int64 `json:"organization_id"`
}

type updateRoleRequest struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
	Default     *bool   `json:"is_default"`
}

type setRolePermissionsRequest struct {
	Permissions []string `json:"permissions"`
}

func (a *API) handleRoles(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		if _, ok := a.requirePermission(w, r, auth.PermRoleRead); !ok {
			return
		}
		limit, offset := listRange(r)
		roles, err := a.rbac.ListRoles(r.Context(), limit, offset)
		if err != nil {
			handleServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, roles)
	case http.MethodPost:
		principal, ok := a.requirePermission(w, r, auth.PermRoleWrite)
		if !ok {
			return
		}
		var req createRoleRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		role, err := a.rbac.CreateRole(r.Context(), auth.RoleCreate(req))
		if err != nil {
			handleServiceError(w, r, err)
			return
		}
		a.audit(r.Context(), "rbac.role.create", map[string]any{
			"actor_id": principal.User.ID,
			"role_id":  role.ID,
			"name":     role.Name,
		})
		w.Header().Set("Location", fmt.Sprintf("/v1/roles/%d", role.ID))
		writeJSON(w, http.StatusCreated, role)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPost)
	}
}

func (a *API) handleRoleScoped(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/v1/roles/")
	path = strings.Trim(path, "/")
	if path == "" {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}
	parts := strings.Split(path, "/")
	id, ok := parseID(w, r, parts[0])
	if !ok {
		return
	}
	switch len(parts) {
	case 1:
		a.handleRoleByID(w, r, id)
	case 2:
		if parts[1] != "permissions" {
			writeError(w, r, http.StatusNotFound, "resource not found")
			return
		}
		a.handleRolePermissions(w, r, id)
	default:
		writeError(w, r, http.StatusNotFound, "resource not found")
	}
}

func (a *API) handleRoleByID(w http.ResponseWriter, r *http.Request, id int64) {
	switch r.Method {
	case http.MethodGet:
		if _, ok := a.requirePermission(w, r, auth.PermRoleRead); !ok {
			return
		}
		role, err := a.rbac.GetRole(r.Context(), id)
		if err != nil {
			handleServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, role)
	case http.MethodPut:
		principal, ok := a.requirePermission(w, r, auth.PermRoleWrite)
		if !ok {
			return
		}
		var req updateRoleRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		role, err := a.rbac.UpdateRole(r.Context(), id, auth.RoleEdit(req))
		if err != nil {
			handleServiceError(w, r, err)
			return
		}
		a.audit(r.Context(), "rbac.role.update", map[string]any{
			"actor_id": principal.User.ID,
			"role_id":  role.ID,
		})
		writeJSON(w, http.StatusOK, role)
	case http.MethodDelete:
		principal, ok := a.requirePermission(w, r, auth.PermRoleWrite)
		if !ok {
			return
		}
		if err := a.rbac.DeleteRole(r.Context(), id); err != nil {
			handleServiceError(w, r, err)
			return
		}
		a.audit(r.Context(), "rbac.role.delete", map[string]any{
			"actor_id": principal.User.ID,
			"role_id":  id,
		})
		w.WriteHeader(http.StatusNoContent)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPut, http.MethodDelete)
	}
}

func (a *API) handleRolePermissions(w http.ResponseWriter, r *http.Request, roleID int64) {
	if r.Method != http.MethodPut {
		methodNotAllowed(w, r, http.MethodPut)
		return
	}
	principal, ok := a.requirePermission(w, r, auth.PermRoleWrite)
	if !ok {
		return
	}
	var req setRolePermissionsRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if err := a.rbac.SetRolePermissions(r.Context(), roleID, req.Permissions); err != nil {
		handleServiceError(w, r, err)
		return
	}
	a.audit(r.Context(), "rbac.role.permissions.update", map[string]any{
		"actor_id": principal.User.ID,
		"role_id":  roleID,
		"count":    len(req.Permissions),
	})
	w.WriteHeader(http.StatusNoContent)
}
