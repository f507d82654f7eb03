package auth_test

import (
	"context"
	"errors"
	"strconv"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"idgate.org/internal/auth"
	"idgate.org/internal/store/mem"
)

const testSecret = "service-test-secret"

func newTestService(t *testing.T, opts ...auth.ServiceOption) (*auth.Service, *mem.Store) {
	t.Helper()
	store := mem.New()
	codec, err := auth.NewCodec(testSecret, auth.WithIssuer("idgate-test"))
	if err != nil {
		t.Fatalf("NewCodec: %v", err)
	}
	svc, err := auth.NewService(store, codec, opts...)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	return svc, store
}

func seedUser(t *testing.T, store *mem.Store, email, password string, active bool) auth.User {
	t.Helper()
	hash, err := auth.HashPassword(password)
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	user, err := store.Users().Create(context.Background(), auth.NewUser{
		Email:        email,
		FirstName:    "Test",
		LastName:     "User",
		PasswordHash: hash,
		Active:       active,
	})
	if err != nil {
		t.Fatalf("seed user: %v", err)
	}
	return user
}

func TestLoginIssuesTokenPair(t *testing.T) {
	svc, store := newTestService(t)
	seedUser(t, store, "a@b.com", "Secret123", true)

	pair, user, err := svc.Login(context.Background(), "a@b.com", "Secret123")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if pair.AccessToken == "" || pair.RefreshToken == "" {
		t.Fatalf("expected both tokens")
	}
	if pair.AccessToken == pair.RefreshToken {
		t.Fatalf("access and refresh tokens must differ")
	}
	if user.Email != "a@b.com" {
		t.Fatalf("unexpected user: %s", user.Email)
	}

	stored, err := store.Users().Find(context.Background(), user.ID)
	if err != nil {
		t.Fatalf("Find: %v", err)
	}
	if stored.LastLogin == nil {
		t.Fatalf("expected last_login to be stamped")
	}
}

func TestLoginNormalizesEmailCase(t *testing.T) {
	svc, store := newTestService(t)
	seedUser(t, store, "a@b.com", "Secret123", true)

	if _, _, err := svc.Login(context.Background(), "  A@B.COM ", "Secret123"); err != nil {
		t.Fatalf("Login with mixed-case email: %v", err)
	}
}

func TestLoginFailuresAreIndistinguishable(t *testing.T) {
	svc, store := newTestService(t)
	seedUser(t, store, "a@b.com", "Secret123", true)

	_, _, errUnknown := svc.Login(context.Background(), "nobody@b.com", "Secret123")
	_, _, errWrongPw := svc.Login(context.Background(), "a@b.com", "wrong-password")

	if !errors.Is(errUnknown, auth.ErrInvalidCredentials) {
		t.Fatalf("unknown email: got %v", errUnknown)
	}
	if !errors.Is(errWrongPw, auth.ErrInvalidCredentials) {
		t.Fatalf("wrong password: got %v", errWrongPw)
	}
	if errUnknown.Error() != errWrongPw.Error() {
		t.Fatalf("messages must not distinguish causes: %q vs %q", errUnknown, errWrongPw)
	}
}

func TestLoginRejectsInactiveUser(t *testing.T) {
	svc, store := newTestService(t)
	seedUser(t, store, "a@b.com", "Secret123", false)

	_, _, err := svc.Login(context.Background(), "a@b.com", "Secret123")
	if !errors.Is(err, auth.ErrValidation) {
		t.Fatalf("expected validation failure, got %v", err)
	}
}

func TestRefreshRotatesTokens(t *testing.T) {
	svc, store := newTestService(t)
	seedUser(t, store, "a@b.com", "Secret123", true)

	pair, _, err := svc.Login(context.Background(), "a@b.com", "Secret123")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	next, err := svc.Refresh(context.Background(), pair.RefreshToken)
	if err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if next.RefreshToken == pair.RefreshToken {
		t.Fatalf("refresh must rotate the refresh token")
	}
	if next.AccessToken == pair.AccessToken {
		t.Fatalf("refresh must mint a new access token")
	}
}

func TestRefreshRejectsAccessToken(t *testing.T) {
	svc, store := newTestService(t)
	seedUser(t, store, "a@b.com", "Secret123", true)

	pair, _, err := svc.Login(context.Background(), "a@b.com", "Secret123")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if _, err := svc.Refresh(context.Background(), pair.AccessToken); !errors.Is(err, auth.ErrInvalidRefreshToken) {
		t.Fatalf("access token must not refresh: %v", err)
	}
}

func TestRefreshRejectsGarbageAndInactive(t *testing.T) {
	svc, store := newTestService(t)
	user := seedUser(t, store, "a@b.com", "Secret123", true)

	if _, err := svc.Refresh(context.Background(), "not-a-token"); !errors.Is(err, auth.ErrInvalidRefreshToken) {
		t.Fatalf("garbage: got %v", err)
	}

	pair, _, err := svc.Login(context.Background(), "a@b.com", "Secret123")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	inactive := false
	if _, err := store.Users().Update(context.Background(), user.ID, auth.UserUpdate{Active: &inactive}); err != nil {
		t.Fatalf("deactivate: %v", err)
	}
	if _, err := svc.Refresh(context.Background(), pair.RefreshToken); !errors.Is(err, auth.ErrInvalidRefreshToken) {
		t.Fatalf("inactive user: got %v", err)
	}
}

func TestResolveSession(t *testing.T) {
	svc, store := newTestService(t)
	user := seedUser(t, store, "a@b.com", "Secret123", true)

	pair, _, err := svc.Login(context.Background(), "a@b.com", "Secret123")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	principal, err := svc.ResolveSession(context.Background(), pair.AccessToken)
	if err != nil {
		t.Fatalf("ResolveSession: %v", err)
	}
	if principal.User == nil || principal.User.ID != user.ID {
		t.Fatalf("unexpected principal: %+v", principal)
	}
}

func TestResolveSessionRejectsRefreshToken(t *testing.T) {
	svc, store := newTestService(t)
	seedUser(t, store, "a@b.com", "Secret123", true)

	pair, _, err := svc.Login(context.Background(), "a@b.com", "Secret123")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	_, err = svc.ResolveSession(context.Background(), pair.RefreshToken)
	if !errors.Is(err, auth.ErrAuthentication) {
		t.Fatalf("expected authentication failure, got %v", err)
	}
	if err.Error() != "invalid token type" {
		t.Fatalf("unexpected message: %q", err)
	}
}

func TestResolveSessionLocksOutDeactivatedUser(t *testing.T) {
	svc, store := newTestService(t)
	user := seedUser(t, store, "a@b.com", "Secret123", true)

	pair, _, err := svc.Login(context.Background(), "a@b.com", "Secret123")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	inactive := false
	if _, err := store.Users().Update(context.Background(), user.ID, auth.UserUpdate{Active: &inactive}); err != nil {
		t.Fatalf("deactivate: %v", err)
	}
	if _, err := svc.ResolveSession(context.Background(), pair.AccessToken); !errors.Is(err, auth.ErrAuthentication) {
		t.Fatalf("expected lockout, got %v", err)
	}
}

func TestResolveSessionMissingExpiryIsAuthorizationFailure(t *testing.T) {
	svc, store := newTestService(t)
	user := seedUser(t, store, "a@b.com", "Secret123", true)

	raw := jwt.NewWithClaims(jwt.SigningMethodHS256, auth.Claims{
		TokenType: auth.TokenTypeAccess,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:   "idgate-test",
			Subject:  strconv.FormatInt(user.ID, 10),
			IssuedAt: jwt.NewNumericDate(time.Now().UTC()),
		},
	})
	token, err := raw.SignedString([]byte(testSecret))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	_, err = svc.ResolveSession(context.Background(), token)
	if !errors.Is(err, auth.ErrAuthorization) {
		t.Fatalf("expected authorization kind, got %v", err)
	}
}

func TestChangePassword(t *testing.T) {
	svc, store := newTestService(t)
	user := seedUser(t, store, "a@b.com", "Secret123", true)

	if err := svc.ChangePassword(context.Background(), user, "wrong", "NextSecret1"); !errors.Is(err, auth.ErrValidation) {
		t.Fatalf("wrong current password: got %v", err)
	}
	if err := svc.ChangePassword(context.Background(), user, "Secret123", "short"); !errors.Is(err, auth.ErrValidation) {
		t.Fatalf("policy violation: got %v", err)
	}
	if err := svc.ChangePassword(context.Background(), user, "Secret123", "NextSecret1"); err != nil {
		t.Fatalf("ChangePassword: %v", err)
	}
	if _, _, err := svc.Login(context.Background(), "a@b.com", "NextSecret1"); err != nil {
		t.Fatalf("login with new password: %v", err)
	}
	if _, _, err := svc.Login(context.Background(), "a@b.com", "Secret123"); err == nil {
		t.Fatalf("old password must stop working")
	}
}

func TestPasswordResetFlow(t *testing.T) {
	svc, store := newTestService(t)
	seedUser(t, store, "a@b.com", "Secret123", true)

	// Unknown email yields no token and no error.
	token, err := svc.RequestPasswordReset(context.Background(), "nobody@b.com")
	if err != nil || token != "" {
		t.Fatalf("unknown email: token=%q err=%v", token, err)
	}

	token, err = svc.RequestPasswordReset(context.Background(), "a@b.com")
	if err != nil {
		t.Fatalf("RequestPasswordReset: %v", err)
	}
	if token == "" {
		t.Fatalf("expected reset token")
	}

	if err := svc.ResetPassword(context.Background(), token, "BrandNew123"); err != nil {
		t.Fatalf("ResetPassword: %v", err)
	}
	if _, _, err := svc.Login(context.Background(), "a@b.com", "BrandNew123"); err != nil {
		t.Fatalf("login after reset: %v", err)
	}

	// Single use: the consumed token no longer works.
	if err := svc.ResetPassword(context.Background(), token, "AnotherOne123"); !errors.Is(err, auth.ErrValidation) {
		t.Fatalf("expected consumed token to fail, got %v", err)
	}
}

func TestResetPasswordRejectsWrongTokenType(t *testing.T) {
	svc, store := newTestService(t)
	seedUser(t, store, "a@b.com", "Secret123", true)

	pair, _, err := svc.Login(context.Background(), "a@b.com", "Secret123")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if err := svc.ResetPassword(context.Background(), pair.AccessToken, "BrandNew123"); !errors.Is(err, auth.ErrValidation) {
		t.Fatalf("access token must not reset a password: %v", err)
	}
}
