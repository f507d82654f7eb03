package auth

import (
	"context"
	"crypto/subtle"
	"errors"
	"strconv"
	"strings"
	"time"
)

const (
	defaultPasswordMinLength = 8
	defaultResetTTL          = 24 * time.Hour
)

// ErrInvalidCredentials is returned for a failed login. Unknown email and
// wrong password produce the same value to avoid identifier enumeration.
var ErrInvalidCredentials = &Error{Kind: KindAuthentication, Message: "incorrect email or password"}

// ErrInvalidRefreshToken collapses every refresh failure into one outcome
// so internal distinctions cannot be used as an oracle.
var ErrInvalidRefreshToken = &Error{Kind: KindAuthentication, Message: "invalid refresh token"}

// Service implements authentication flows and session resolution on top
// of the token codec, the credential hasher, and the user store.
type Service struct {
	store             Store
	codec             *Codec
	passwordMinLength int
	resetTTL          time.Duration
	now               func() time.Time
}

// ServiceOption configures Service behavior.
type ServiceOption func(*Service)

// WithPasswordMinLength sets the minimum accepted password length.
func WithPasswordMinLength(n int) ServiceOption {
	return func(s *Service) {
		if n > 0 {
			s.passwordMinLength = n
		}
	}
}

// WithResetTTL sets the password reset token lifetime.
func WithResetTTL(ttl time.Duration) ServiceOption {
	return func(s *Service) {
		if ttl > 0 {
			s.resetTTL = ttl
		}
	}
}

// WithClock overrides the time source (useful for tests).
func WithClock(fn func() time.Time) ServiceOption {
	return func(s *Service) {
		if fn != nil {
			s.now = fn
		}
	}
}

// NewService constructs a Service.
func NewService(store Store, codec *Codec, opts ...ServiceOption) (*Service, error) {
	if store == nil {
		return nil, errors.New("auth: store is required")
	}
	if codec == nil {
		return nil, errors.New("auth: codec is required")
	}
	s := &Service{
		store:             store,
		codec:             codec,
		passwordMinLength: defaultPasswordMinLength,
		resetTTL:          defaultResetTTL,
		now:               time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Codec exposes the token codec for callers that only need issuance TTLs.
func (s *Service) Codec() *Codec { return s.codec }

// ValidatePassword enforces the configured password policy.
func (s *Service) ValidatePassword(password string) error {
	if len(password) < s.passwordMinLength {
		return validationf("password must be at least %d characters", s.passwordMinLength)
	}
	return nil
}

// Authenticate verifies an email/password pair against stored credentials.
// Absent user and credential mismatch are indistinguishable to the caller.
func (s *Service) Authenticate(ctx context.Context, email, password string) (User, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	if email == "" || password == "" {
		return User{}, ErrInvalidCredentials
	}
	user, err := s.store.Users().FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return User{}, ErrInvalidCredentials
		}
		return User{}, err
	}
	if err := VerifyPassword(user.PasswordHash, password); err != nil {
		return User{}, ErrInvalidCredentials
	}
	return user, nil
}

// Login authenticates the credentials, stamps last_login, and issues a
// fresh token pair. A deactivated account fails after the credential
// check, so the caller sees a distinct "inactive user" outcome only when
// the password was correct.
func (s *Service) Login(ctx context.Context, email, password string) (TokenPair, User, error) {
	user, err := s.Authenticate(ctx, email, password)
	if err != nil {
		return TokenPair{}, User{}, err
	}
	if !user.Active {
		return TokenPair{}, User{}, validationf("inactive user")
	}
	if err := s.store.Users().SetLastLogin(ctx, user.ID, s.now().UTC()); err != nil {
		return TokenPair{}, User{}, err
	}
	pair, err := s.IssueTokenPair(user)
	if err != nil {
		return TokenPair{}, User{}, err
	}
	return pair, user, nil
}

// IssueTokenPair signs an access and a refresh token for the user.
func (s *Service) IssueTokenPair(user User) (TokenPair, error) {
	subject := strconv.FormatInt(user.ID, 10)
	access, err := s.codec.IssueAccess(subject)
	if err != nil {
		return TokenPair{}, err
	}
	refresh, err := s.codec.IssueRefresh(subject)
	if err != nil {
		return TokenPair{}, err
	}
	return TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}

// Refresh exchanges a valid refresh token for a brand-new pair (rotation:
// the old refresh token string is never re-signed). Every failure mode,
// from a malformed token to an inactive user, collapses to
// ErrInvalidRefreshToken.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (TokenPair, error) {
	claims, err := s.codec.Verify(refreshToken)
	if err != nil {
		return TokenPair{}, ErrInvalidRefreshToken
	}
	if claims.TokenType != TokenTypeRefresh {
		return TokenPair{}, ErrInvalidRefreshToken
	}
	user, err := s.userBySubject(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return TokenPair{}, ErrInvalidRefreshToken
		}
		return TokenPair{}, err
	}
	if !user.Active {
		return TokenPair{}, ErrInvalidRefreshToken
	}
	return s.IssueTokenPair(user)
}

// ResolveSession recovers the acting principal from a bearer token.
// Internally distinct causes collapse to one generic authentication
// failure, with two exceptions: a refresh token presented as a session
// token yields "invalid token type", and a token without an expiry claim
// is an authorization-layer defect rather than an authentication failure.
// The call is read-only and re-checks live user state every time, so
// deactivating a user locks out still-unexpired tokens.
func (s *Service) ResolveSession(ctx context.Context, token string) (Principal, error) {
	claims, err := s.codec.Verify(token)
	if err != nil {
		return Principal{}, ErrAuthentication
	}
	if claims.TokenType != TokenTypeAccess {
		return Principal{}, authenticationf("invalid token type")
	}
	if claims.ExpiresAt == nil {
		return Principal{}, authorizationf("token has no expiration")
	}
	user, err := s.userBySubject(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Principal{}, ErrAuthentication
		}
		return Principal{}, err
	}
	if !user.Active {
		return Principal{}, ErrAuthentication
	}
	return Principal{User: &user}, nil
}

// ChangePassword rotates a user's credential after verifying the current
// one. A wrong current password is a validation failure, not an
// authentication failure: the caller is already authenticated.
func (s *Service) ChangePassword(ctx context.Context, user User, current, next string) error {
	if err := VerifyPassword(user.PasswordHash, current); err != nil {
		return validationf("incorrect password")
	}
	if err := s.ValidatePassword(next); err != nil {
		return err
	}
	hash, err := HashPassword(next)
	if err != nil {
		return err
	}
	return s.store.Users().UpdatePassword(ctx, user.ID, hash)
}

// RequestPasswordReset issues a short-lived reset token and persists it on
// the user record. An unknown email returns an empty token and no error so
// the HTTP layer can stay success-shaped. Delivery is out of scope.
func (s *Service) RequestPasswordReset(ctx context.Context, email string) (string, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	user, err := s.store.Users().FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return "", nil
		}
		return "", err
	}
	token, err := s.codec.Issue(strconv.FormatInt(user.ID, 10), TokenTypeReset, s.resetTTL)
	if err != nil {
		return "", err
	}
	expires := s.now().UTC().Add(s.resetTTL)
	if err := s.store.Users().SetResetToken(ctx, user.ID, &token, &expires); err != nil {
		return "", err
	}
	return token, nil
}

// ResetPassword consumes a reset token and installs a new credential. The
// token must verify, match the persisted copy, and be unexpired; it is
// cleared on success, so each token is single-use.
func (s *Service) ResetPassword(ctx context.Context, token, newPassword string) error {
	claims, err := s.codec.Verify(token)
	if err != nil || claims.TokenType != TokenTypeReset {
		return validationf("invalid or expired token")
	}
	user, err := s.userBySubject(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return validationf("invalid or expired token")
		}
		return err
	}
	if user.ResetToken == nil || user.ResetExpires == nil {
		return validationf("invalid or expired token")
	}
	if subtle.ConstantTimeCompare([]byte(*user.ResetToken), []byte(token)) != 1 {
		return validationf("invalid or expired token")
	}
	if s.now().UTC().After(*user.ResetExpires) {
		return validationf("invalid or expired token")
	}
	if err := s.ValidatePassword(newPassword); err != nil {
		return err
	}
	hash, err := HashPassword(newPassword)
	if err != nil {
		return err
	}
	if err := s.store.Users().UpdatePassword(ctx, user.ID, hash); err != nil {
		return err
	}
	return s.store.Users().SetResetToken(ctx, user.ID, nil, nil)
}

func (s *Service) userBySubject(ctx context.Context, subject string) (User, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(subject), 10, 64)
	if err != nil {
		return User{}, ErrNotFound
	}
	return s.store.Users().Find(ctx, id)
}
