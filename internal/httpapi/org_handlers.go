package httpapi

import (
	"fmt"
	"net/http"
	"strings"

	"idgate.org/internal/auth"
)

type createOrganizationRequest struct {
	Name         string `json:"name"`
	Description  string `json:"description"`
	Website      string `json:"website"`
	ContactEmail string `json:"contact_email"`
	ContactPhone string `json:"contact_phone"`
	Address      string `json:"address"`
	Active       *bool  `json:"is_active"`
}

type updateOrganizationRequest struct {
	Name         *string `json:"name"`
	Description  *string `json:"description"`
	Website      *string `json:"website"`
	ContactEmail *string `json:"contact_email"`
	ContactPhone *string `json:"contact_phone"`
	Address      *string `json:"address"`
	Active       *bool   `json:"is_active"`
}

func (a *API) handleOrganizations(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		if _, ok := a.requirePermission(w, r, auth.PermOrgRead); !ok {
			return
		}
		limit, offset := listRange(r)
		orgs, err := a.rbac.ListOrganizations(r.Context(), limit, offset)
		if err != nil {
			handleServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, orgs)
	case http.MethodPost:
		principal, ok := a.requirePermission(w, r, auth.PermOrgWrite)
		if !ok {
			return
		}
		var req createOrganizationRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		active := true
		if req.Active != nil {
			active = *req.Active
		}
		org, err := a.rbac.CreateOrganization(r.Context(), auth.OrganizationCreate{
			Name:         req.Name,
			Description:  req.Description,
			Website:      req.Website,
			ContactEmail: req.ContactEmail,
			ContactPhone: req.ContactPhone,
			Address:      req.Address,
			Active:       active,
		})
		if err != nil {
			handleServiceError(w, r, err)
			return
		}
		a.audit(r.Context(), "rbac.organization.create", map[string]any{
			"actor_id": principal.User.ID,
			"org_id":   org.ID,
			"name":     org.Name,
		})
		w.Header().Set("Location", fmt.Sprintf("/v1/organizations/%d", org.ID))
		writeJSON(w, http.StatusCreated, org)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPost)
	}
}

func (a *API) handleOrganizationScoped(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/v1/organizations/")
	path = strings.Trim(path, "/")
	if path == "" || strings.Contains(path, "/") {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}
	id, ok := parseID(w, r, path)
	if !ok {
		return
	}
	switch r.Method {
	case http.MethodGet:
		if _, ok := a.requirePermission(w, r, auth.PermOrgRead); !ok {
			return
		}
		org, err := a.rbac.GetOrganization(r.Context(), id)
		if err != nil {
			handleServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, org)
	case http.MethodPut:
		principal, ok := a.requirePermission(w, r, auth.PermOrgWrite)
		if !ok {
			return
		}
		var req updateOrganizationRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		org, err := a.rbac.UpdateOrganization(r.Context(), id, auth.OrganizationEdit(req))
		if err != nil {
			handleServiceError(w, r, err)
			return
		}
		a.audit(r.Context(), "rbac.organization.update", map[string]any{
			"actor_id": principal.User.ID,
			"org_id":   org.ID,
		})
		writeJSON(w, http.StatusOK, org)
	case http.MethodDelete:
		principal, ok := a.requirePermission(w, r, auth.PermOrgWrite)
		if !ok {
			return
		}
		if err := a.rbac.DeleteOrganization(r.Context(), id); err != nil {
			handleServiceError(w, r, err)
			return
		}
		a.audit(r.Context(), "rbac.organization.delete", map[string]any{
			"actor_id": principal.User.ID,
			"org_id":   id,
		})
		w.WriteHeader(http.StatusNoContent)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPut, http.MethodDelete)
	}
}
