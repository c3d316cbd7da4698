// Package auth issues and verifies credentials, hashes passwords, and talks
// to the external identity provider.
//
// CREDENTIAL FLAVORS:
// Every credential is an HS256 JWT signed with one server secret. There are
// two flavors and each has its own claim struct:
//
//	session → {id, roleId}       lifetime 30 days, sent as Bearer or "token" cookie
//	reset   → {id, email, jti}   lifetime 15 minutes, embedded in the reset email link
//
// The flavor is written into a "kind" claim. A reset credential never
// verifies as a session and a session never verifies as a reset.
//
// JWT STRUCTURE (three base64-encoded parts separated by dots):
//
//	HEADER.PAYLOAD.SIGNATURE
//	- Header: {"alg":"HS256","typ":"JWT"}
//	- Payload: {"kind":"session","id":"...","roleId":1,"iss":"authors-haven","exp":...}
//	- Signature: HMAC-SHA256(header+"."+payload, secretKey)
//
// Verification is pure: it needs the secret and the clock, nothing else.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/sakif/authors-haven/internal/apperror"
)

const (
	issuer = "authors-haven"

	kindSession = "session"
	kindReset   = "reset"

	DefaultSessionTTL = 30 * 24 * time.Hour
	DefaultResetTTL   = 15 * time.Minute
)

var errWrongKind = errors.New("auth: credential flavor mismatch")

// SessionClaims identify a signed-in user.
type SessionClaims struct {
	Kind   string `json:"kind"`
	UserID string `json:"id"`
	RoleID int    `json:"roleId"`
	jwt.RegisteredClaims
}

// Validate is called by the jwt parser after the registered claims pass.
func (c *SessionClaims) Validate() error {
	if c.Kind != kindSession {
		return errWrongKind
	}
	if c.UserID == "" {
		return errors.New("auth: session credential has no user id")
	}
	return nil
}

// ResetClaims bind a password reset to one user, one email address and one
// issued token id (RegisteredClaims.ID, the "jti" claim).
type ResetClaims struct {
	Kind   string `json:"kind"`
	UserID string `json:"id"`
	Email  string `json:"email"`
	jwt.RegisteredClaims
}

func (c *ResetClaims) Validate() error {
	if c.Kind != kindReset {
		return errWrongKind
	}
	if c.UserID == "" || c.Email == "" || c.ID == "" {
		return errors.New("auth: reset credential is missing id, email or jti")
	}
	return nil
}

// TokenService signs and verifies credentials.
//
// It holds the HMAC secret, the lifetimes of both flavors, and a clock.
// The clock is swappable so expiry can be tested without sleeping.
type TokenService struct {
	secret     []byte
	sessionTTL time.Duration
	resetTTL   time.Duration
	now        func() time.Time
}

// Option customises a TokenService.
type Option func(*TokenService)

// WithSessionTTL overrides the 30 day session lifetime.
func WithSessionTTL(d time.Duration) Option {
	return func(s *TokenService) {
		if d > 0 {
			s.sessionTTL = d
		}
	}
}

// WithResetTTL overrides the 15 minute reset lifetime.
func WithResetTTL(d time.Duration) Option {
	return func(s *TokenService) {
		if d > 0 {
			s.resetTTL = d
		}
	}
}

// WithClock replaces time.Now for issuing and verifying.
func WithClock(now func() time.Time) Option {
	return func(s *TokenService) { s.now = now }
}

// NewTokenService creates a TokenService with the given secret.
// The secret should be at least 32 bytes of random data in production.
// Example: JWT_SECRET=$(openssl rand -hex 32)
func NewTokenService(secret string, opts ...Option) (*TokenService, error) {
	if len(secret) < 16 {
		return nil, errors.New("auth: JWT secret must be at least 16 characters")
	}
	s := &TokenService{
		secret:     []byte(secret),
		sessionTTL: DefaultSessionTTL,
		resetTTL:   DefaultResetTTL,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// ResetTTL reports how long a reset credential stays valid.
func (s *TokenService) ResetTTL() time.Duration { return s.resetTTL }

// SessionTTL reports how long a session credential stays valid.
func (s *TokenService) SessionTTL() time.Duration { return s.sessionTTL }

// IssueSession signs a session credential for the user.
func (s *TokenService) IssueSession(userID string, roleID int) (string, error) {
	c := &SessionClaims{
		Kind:             kindSession,
		UserID:           userID,
		RoleID:           roleID,
		RegisteredClaims: s.registered("", s.sessionTTL),
	}
	return s.sign(c)
}

// IssueReset signs a reset credential. tokenID becomes the jti and must match
// what the user row holds when the reset is committed.
func (s *TokenService) IssueReset(userID, email, tokenID string) (string, error) {
	c := &ResetClaims{
		Kind:             kindReset,
		UserID:           userID,
		Email:            email,
		RegisteredClaims: s.registered(tokenID, s.resetTTL),
	}
	return s.sign(c)
}

// VerifySession returns the claims of a valid session credential.
func (s *TokenService) VerifySession(credential string) (*SessionClaims, error) {
	c := &SessionClaims{}
	if err := s.verify(credential, c); err != nil {
		return nil, err
	}
	return c, nil
}

// VerifyReset returns the claims of a valid reset credential.
func (s *TokenService) VerifyReset(credential string) (*ResetClaims, error) {
	c := &ResetClaims{}
	if err := s.verify(credential, c); err != nil {
		return nil, err
	}
	return c, nil
}

func (s *TokenService) registered(id string, ttl time.Duration) jwt.RegisteredClaims {
	now := s.now()
	return jwt.RegisteredClaims{
		ID:        id,
		Issuer:    issuer,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(ceilSecond(now.Add(ttl))),
	}
}

// ceilSecond rounds t up to a whole second. NumericDate keeps whole
// seconds, so a truncated exp would end the credential before its TTL.
func ceilSecond(t time.Time) time.Time {
	if whole := t.Truncate(time.Second); whole.Before(t) {
		return whole.Add(time.Second)
	}
	return t
}

func (s *TokenService) sign(c jwt.Claims) (string, error) {
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("auth: signing token: %w", err)
	}
	return signed, nil
}

// verify parses credential into c.
//
// VALIDATION CHECKS (performed by the jwt library):
//   - Signature is valid and the algorithm is HS256 (no "none", no RS/HS confusion)
//   - Issuer is "authors-haven"
//   - exp is present and now < exp
//   - c.Validate(): the flavor matches and the required fields are set
//
// Expiry maps to TokenExpired; every other failure maps to TokenInvalid.
func (s *TokenService) verify(credential string, c jwt.Claims) error {
	_, err := jwt.ParseWithClaims(
		credential,
		c,
		func(token *jwt.Token) (any, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("auth: unexpected signing method: %v", token.Header["alg"])
			}
			return s.secret, nil
		},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err == nil {
		return nil
	}
	if errors.Is(err, jwt.ErrTokenExpired) {
		return apperror.TokenExpired()
	}
	if errors.Is(err, errWrongKind) {
		return apperror.TokenInvalid("credential is not valid for this operation")
	}
	return apperror.TokenInvalid("credential is invalid")
}
