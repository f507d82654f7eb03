package auth

import (
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Token type claims. Access tokens authenticate requests, refresh tokens
// mint new pairs, reset tokens authorize a password reset.
const (
	TokenTypeAccess  = "access"
	TokenTypeRefresh = "refresh"
	TokenTypeReset   = "reset"
)

const (
	defaultAccessTTL  = 8 * 24 * time.Hour
	defaultRefreshTTL = 30 * 24 * time.Hour
)

// Claims is the signed payload of every token issued by the service.
type Claims struct {
	TokenType string `json:"type"`
	jwt.RegisteredClaims
}

// Codec signs and verifies compact self-contained tokens with an HS256
// symmetric secret. It is an immutable value constructed once from
// configuration and shared across requests.
type Codec struct {
	secret     []byte
	issuer     string
	accessTTL  time.Duration
	refreshTTL time.Duration
	now        func() time.Time
}

// CodecOption configures Codec construction.
type CodecOption func(*Codec)

// WithIssuer sets the iss claim stamped into and required from tokens.
func WithIssuer(issuer string) CodecOption {
	return func(c *Codec) { c.issuer = strings.TrimSpace(issuer) }
}

// WithAccessTTL overrides the default access token lifetime.
func WithAccessTTL(ttl time.Duration) CodecOption {
	return func(c *Codec) {
		if ttl > 0 {
			c.accessTTL = ttl
		}
	}
}

// WithRefreshTTL overrides the default refresh token lifetime.
func WithRefreshTTL(ttl time.Duration) CodecOption {
	return func(c *Codec) {
		if ttl > 0 {
			c.refreshTTL = ttl
		}
	}
}

// WithCodecClock overrides the time source (useful for tests).
func WithCodecClock(fn func() time.Time) CodecOption {
	return func(c *Codec) {
		if fn != nil {
			c.now = fn
		}
	}
}

// NewCodec constructs a Codec. The secret is required.
func NewCodec(secret string, opts ...CodecOption) (*Codec, error) {
	secret = strings.TrimSpace(secret)
	if secret == "" {
		return nil, errors.New("auth: signing secret is required")
	}
	c := &Codec{
		secret:     []byte(secret),
		accessTTL:  defaultAccessTTL,
		refreshTTL: defaultRefreshTTL,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// AccessTTL returns the configured access token lifetime.
func (c *Codec) AccessTTL() time.Duration { return c.accessTTL }

// RefreshTTL returns the configured refresh token lifetime.
func (c *Codec) RefreshTTL() time.Duration { return c.refreshTTL }

// Issue signs a token for the given subject and type. The jti claim is a
// random UUID, so two issuances with identical subject and expiry still
// produce distinct token strings.
func (c *Codec) Issue(subject, tokenType string, ttl time.Duration) (string, error) {
	subject = strings.TrimSpace(subject)
	if subject == "" {
		return "", errors.New("subject is required")
	}
	if ttl <= 0 {
		return "", errors.New("ttl must be greater than zero")
	}
	now := c.now().UTC()
	claims := Claims{
		TokenType: tokenType,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    c.issuer,
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			ID:        uuid.NewString(),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(c.secret)
}

// IssueAccess signs an access token with the configured TTL.
func (c *Codec) IssueAccess(subject string) (string, error) {
	return c.Issue(subject, TokenTypeAccess, c.accessTTL)
}

// IssueRefresh signs a refresh token with the configured TTL.
func (c *Codec) IssueRefresh(subject string) (string, error) {
	return c.Issue(subject, TokenTypeRefresh, c.refreshTTL)
}

// Verify checks signature and registered claims. It fails closed on a
// malformed structure, a signature mismatch, an unexpected algorithm, an
// expired exp, or a missing subject. A missing exp claim does NOT fail
// here: it is surfaced as Claims.ExpiresAt == nil so the session resolver
// can treat it as its own branch.
func (c *Codec) Verify(token string) (*Claims, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, ErrInvalidToken
	}
	opts := []jwt.ParserOption{jwt.WithTimeFunc(func() time.Time { return c.now().UTC() })}
	if c.issuer != "" {
		opts = append(opts, jwt.WithIssuer(c.issuer))
	}
	parsed, err := jwt.ParseWithClaims(token, &Claims{}, func(t *jwt.Token) (any, error) {
		if t.Method != jwt.SigningMethodHS256 {
			return nil, ErrInvalidToken
		}
		return c.secret, nil
	}, opts...)
	if err != nil {
		return nil, ErrInvalidToken
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, ErrInvalidToken
	}
	if strings.TrimSpace(claims.Subject) == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
