// Package auth verifies the bearer tokens issued by the login flow and turns
// them into the principal whose index a request reads.
package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrMissingToken = errors.New("missing bearer token")
	ErrInvalidToken = errors.New("invalid bearer token")
)

// DevPrincipal is used outside production when a request carries no valid token.
var DevPrincipal = Principal{Email: "dev@localhost", AccessToken: "dev-token"}

type Principal struct {
	Email       string
	AccessToken string
}

type Claims struct {
	Email       string `json:"email"`
	AccessToken string `json:"access_token"`
	jwt.RegisteredClaims
}

type Verifier struct {
	secret    []byte
	devBypass bool
}

// NewVerifier builds a verifier. With devBypass set, Authenticate falls back to
// DevPrincipal instead of failing.
func NewVerifier(secret string, devBypass bool) *Verifier {
	return &Verifier{secret: []byte(secret), devBypass: devBypass}
}

// Issue signs a token for p. The login flow and the CLI use it.
func (v *Verifier) Issue(p Principal, ttl time.Duration, now time.Time) (string, error) {
	if len(v.secret) == 0 {
		return "", errors.New("issue token: no signing secret configured")
	}
	claims := Claims{
		Email:       p.Email,
		AccessToken: p.AccessToken,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   p.Email,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Verify parses and validates a raw token.
func (v *Verifier) Verify(raw string) (Principal, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Principal{}, ErrMissingToken
	}
	if len(v.secret) == 0 {
		return Principal{}, fmt.Errorf("%w: no signing secret configured", ErrInvalidToken)
	}
	var claims Claims
	token, err := jwt.ParseWithClaims(raw, &claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return v.secret, nil
	})
	if err != nil || !token.Valid {
		return Principal{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if claims.Email == "" || claims.AccessToken == "" {
		return Principal{}, fmt.Errorf("%w: missing email or access token claim", ErrInvalidToken)
	}
	return Principal{Email: claims.Email, AccessToken: claims.AccessToken}, nil
}

// Authenticate verifies the value of an Authorization header.
func (v *Verifier) Authenticate(header string) (Principal, error) {
	p, err := v.Verify(strings.TrimPrefix(header, "Bearer "))
	if err != nil && v.devBypass {
		return DevPrincipal, nil
	}
	return p, err
}
