package httpapi

import (
	"net/http"
	"strings"

	"idgate.org/internal/obs"
)

type emailLoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type passwordResetRequestRequest struct {
	Email string `json:"email"`
}

type passwordResetRequest struct {
	Token       string `json:"token"`
	NewPassword string `json:"new_password"`
}

type tokenPairResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
}

// handleLogin accepts OAuth2-style form credentials: username carries the
// email address.
func (a *API) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	if err := r.ParseForm(); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid form body")
		return
	}
	a.login(w, r, r.PostFormValue("username"), r.PostFormValue("password"))
}

func (a *API) handleLoginEmail(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	var req emailLoginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	a.login(w, r, req.Email, req.Password)
}

func (a *API) login(w http.ResponseWriter, r *http.Request, email, password string) {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		writeError(w, r, http.StatusBadRequest, "email and password are required")
		return
	}
	pair, user, err := a.auth.Login(r.Context(), email, password)
	if err != nil {
		obs.ObserveLogin("failure")
		handleServiceError(w, r, err)
		return
	}
	obs.ObserveLogin("success")
	a.audit(r.Context(), "auth.login", map[string]any{
		"user_id": user.ID,
		"email":   user.Email,
	})
	writeJSON(w, http.StatusOK, tokenPairResponse{
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		TokenType:    "bearer",
	})
}

func (a *API) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	var req refreshRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	pair, err := a.auth.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		obs.ObserveRefresh("failure")
		handleServiceError(w, r, err)
		return
	}
	obs.ObserveRefresh("success")
	writeJSON(w, http.StatusOK, tokenPairResponse{
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		TokenType:    "bearer",
	})
}

// handleTestToken echoes the authenticated user, proving the access token
// is valid end to end.
func (a *API) handleTestToken(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	principal, ok := a.currentPrincipal(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, principal.User)
}

// handlePasswordResetRequest responds identically whether or not the email
// maps to an account, so it cannot be used to probe for registered users.
func (a *API) handlePasswordResetRequest(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	var req passwordResetRequestRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if strings.TrimSpace(req.Email) == "" {
		writeError(w, r, http.StatusBadRequest, "email is required")
		return
	}
	if _, err := a.auth.RequestPasswordReset(r.Context(), req.Email); err != nil {
		handleServiceError(w, r, err)
		return
	}
	a.audit(r.Context(), "auth.password_reset.requested", map[string]any{
		"email": strings.ToLower(strings.TrimSpace(req.Email)),
	})
	writeJSON(w, http.StatusOK, map[string]any{
		"message": "password reset instructions sent if the account exists",
	})
}

func (a *API) handlePasswordReset(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	var req passwordResetRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if err := a.auth.ResetPassword(r.Context(), req.Token, req.NewPassword); err != nil {
		handleServiceError(w, r, err)
		return
	}
	a.audit(r.Context(), "auth.password_reset.completed", nil)
	writeJSON(w, http.StatusOK, map[string]any{
		"message": "password updated successfully",
	})
}
