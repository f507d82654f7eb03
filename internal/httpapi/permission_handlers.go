package httpapi

import (
	"net/http"

	"idgate.org/internal/auth"
)

type createPermissionRequest struct {
	Name        string `json:"name"`
	Code        string `json:"code"`
	Description string `json:"description"`
}

func (a *API) handlePermissions(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		if _, ok := a.requirePermission(w, r, auth.PermRoleRead); !ok {
			return
		}
		perms, err := a.rbac.ListPermissions(r.Context())
		if err != nil {
			handleServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, perms)
	case http.MethodPost:
		principal, ok := a.requireSuperuser(w, r)
		if !ok {
			return
		}
		var req createPermissionRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		perm, err := a.rbac.CreatePermission(r.Context(), auth.PermissionCreate(req))
		if err != nil {
			handleServiceError(w, r, err)
			return
		}
		a.audit(r.Context(), "rbac.permission.create", map[string]any{
			"actor_id": principal.User.ID,
			"code":     perm.Code,
		})
		writeJSON(w, http.StatusCreated, perm)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPost)
	}
}
