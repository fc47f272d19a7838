// Package session resolves the signed-in user from the session token issued
// by the marketplace auth provider.
package session

import (
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"

	"github.com/ahanafabid01/Next-Youth-sub001/internal/roles"
)

var (
	// ErrInvalidToken is returned for unparsable, expired or unsigned tokens.
	ErrInvalidToken = errors.New("invalid session token")
	// ErrMissingSubject is returned when the token carries no user id.
	ErrMissingSubject = errors.New("session token has no subject")
)

// Claims represents the session JWT claims.
type Claims struct {
	jwt.RegisteredClaims
	Role string `json:"role"`
	Name string `json:"name,omitempty"`
}

// Identity is the current user as seen by the messaging core.
type Identity struct {
	UserID string
	Name   string
	Role   roles.Role
	Token  string
}

// Parse validates token with the shared HMAC secret and returns its claims.
func Parse(token, secret string) (*Claims, error) {
	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(secret), nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !parsed.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// FromToken resolves the Identity carried by token.
func FromToken(token, secret string) (Identity, error) {
	claims, err := Parse(token, secret)
	if err != nil {
		return Identity{}, err
	}
	if claims.Subject == "" {
		return Identity{}, ErrMissingSubject
	}
	role, err := roles.Parse(claims.Role)
	if err != nil {
		return Identity{}, err
	}
	return Identity{
		UserID: claims.Subject,
		Name:   claims.Name,
		Role:   role,
		Token:  token,
	}, nil
}
