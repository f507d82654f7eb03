package httpapi

import (
	"net/http"
	"strings"

	"idgate.org/internal/auth"
	"idgate.org/internal/obs"
)

const (
	authHeader = "Authorization"
	bearer     = "Bearer "
)

var publicPaths = []string{
	"/v1/auth/login",
	"/v1/auth/login/email",
	"/v1/auth/refresh",
	"/v1/auth/password-reset-request",
	"/v1/auth/password-reset",
	"/metrics",
	"/healthz",
	"/readyz",
	"/v1/info",
	"/",
}

// withAuth resolves the bearer token into a principal and puts it on the
// request context. Public paths pass through untouched.
func (a *API) withAuth(next http.Handler) http.Handler {
	if a == nil || a.auth == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodOptions {
			next.ServeHTTP(w, r)
			return
		}

		if isPublicPath(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}

		token, err := extractBearerToken(r.Header.Get(authHeader))
		if err != nil {
			obs.ObserveSessionReject()
			w.Header().Set("WWW-Authenticate", "Bearer")
			writeError(w, r, http.StatusUnauthorized, err.Error())
			return
		}

		principal, err := a.auth.ResolveSession(r.Context(), token)
		if err != nil {
			obs.ObserveSessionReject()
			handleServiceError(w, r, err)
			return
		}

		ctx := auth.ContextWithPrincipal(r.Context(), principal)
		ctx = auth.ContextWithToken(ctx, token)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// currentPrincipal pulls the resolved principal off the context. A missing
// principal on a protected path means the middleware chain was bypassed.
func (a *API) currentPrincipal(w http.ResponseWriter, r *http.Request) (auth.Principal, bool) {
	principal, ok := auth.PrincipalFromContext(r.Context())
	if !ok {
		w.Header().Set("WWW-Authenticate", "Bearer")
		writeError(w, r, http.StatusUnauthorized, "could not validate credentials")
		return auth.Principal{}, false
	}
	return principal, true
}

func (a *API) requirePermission(w http.ResponseWriter, r *http.Request, perm string) (auth.Principal, bool) {
	principal, ok := a.currentPrincipal(w, r)
	if !ok {
		return auth.Principal{}, false
	}
	if !principal.HasPermission(perm) {
		writeError(w, r, http.StatusForbidden, "not authorized to perform this action")
		return auth.Principal{}, false
	}
	return principal, true
}

func (a *API) requireSuperuser(w http.ResponseWriter, r *http.Request) (auth.Principal, bool) {
	principal, ok := a.currentPrincipal(w, r)
	if !ok {
		return auth.Principal{}, false
	}
	if principal.User == nil || !principal.User.Superuser {
		writeError(w, r, http.StatusForbidden, "the user doesn't have enough privileges")
		return auth.Principal{}, false
	}
	return principal, true
}

func extractBearerToken(header string) (string, error) {
	header = strings.TrimSpace(header)
	if header == "" {
		return "", auth.ErrAuthentication
	}
	if !strings.HasPrefix(strings.ToLower(header), strings.ToLower(bearer)) {
		return "", auth.ErrAuthentication
	}
	token := strings.TrimSpace(header[len(bearer):])
	if token == "" {
		return "", auth.ErrAuthentication
	}
	return token, nil
}

func isPublicPath(path string) bool {
	for _, p := range publicPaths {
		if path == p {
			return true
		}
	}
	return false
}
