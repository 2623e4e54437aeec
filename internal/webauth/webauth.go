// Package webauth verifies control-plane requests via a JWT carried
// either as a session cookie or a bearer token, using one unified
// verifier for both.
//
// Grounded directly on a prior internal/auth.JWTService (HS256 signing,
// RegisteredClaims.Subject as identity), generalized from a per-user
// claims struct into a single-operator Principal since this kernel
// has one control-plane owner rather than a multi-user directory.
package webauth

import (
	"crypto/subtle"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// SessionCookieName is the cookie carrying the session JWT.
const SessionCookieName = "teleton_session"

var (
	// ErrAuthDisabled is returned when no secret is configured.
	ErrAuthDisabled = errors.New("webauth: no signing secret configured")
	// ErrInvalidToken is returned for any malformed, expired, or
	// mis-signed token.
	ErrInvalidToken = errors.New("webauth: invalid token")
)

// Principal identifies the authenticated operator.
type Principal struct {
	Subject string
}

// Claims embeds the registered JWT claims; Subject carries the
// operator identity.
type Claims struct {
	jwt.RegisteredClaims
}

// Verifier issues and validates tokens for both the session cookie
// and bearer-token auth paths.
type Verifier struct {
	secret []byte
	expiry time.Duration
}

// New builds a Verifier. An empty secret disables auth entirely
// (Generate/Validate both return ErrAuthDisabled); this matches the
// "no auth configured" escape hatch for local/dev runs.
func New(secret string, expiry time.Duration) *Verifier {
	return &Verifier{secret: []byte(secret), expiry: expiry}
}

// Generate issues a signed token for subject (the operator's id).
func (v *Verifier) Generate(subject string) (string, error) {
	if len(v.secret) == 0 {
		return "", ErrAuthDisabled
	}
	if strings.TrimSpace(subject) == "" {
		return "", errors.New("webauth: subject required")
	}
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:  subject,
			IssuedAt: jwt.NewNumericDate(time.Now()),
		},
	}
	if v.expiry > 0 {
		claims.ExpiresAt = jwt.NewNumericDate(time.Now().Add(v.expiry))
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(v.secret)
}

// Validate parses and verifies a token, returning its Principal.
func (v *Verifier) Validate(token string) (Principal, error) {
	if len(v.secret) == 0 {
		return Principal{}, ErrAuthDisabled
	}
	parsed, err := jwt.ParseWithClaims(token, &Claims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return v.secret, nil
	})
	if err != nil {
		return Principal{}, ErrInvalidToken
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid || strings.TrimSpace(claims.Subject) == "" {
		return Principal{}, ErrInvalidToken
	}
	return Principal{Subject: claims.Subject}, nil
}

// FromRequest extracts and validates a token from either the session
// cookie or an Authorization: Bearer header, cookie taking priority.
func (v *Verifier) FromRequest(r *http.Request) (Principal, error) {
	if cookie, err := r.Cookie(SessionCookieName); err == nil {
		return v.Validate(cookie.Value)
	}
	header := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if strings.HasPrefix(header, prefix) {
		return v.Validate(strings.TrimPrefix(header, prefix))
	}
	return Principal{}, ErrInvalidToken
}

// ConstantTimeEquals compares two tokens without leaking timing
// information, for API-key style shared-secret checks.
func ConstantTimeEquals(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
