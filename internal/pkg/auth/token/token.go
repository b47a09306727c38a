/*
Package token signs and validates the session tokens handed to clients after a
successful login.

A token is an HS256-signed JWT carrying the username, a random token id, and
an expiry. The signature check here is a first gate; the session store keeps
the authoritative record of which tokens are live.
*/
package token

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt"

	"huddle/internal/pkg/randx"
)

const (
	// DefaultSessionTTL is the lifetime of an issued session token.
	DefaultSessionTTL = 24 * time.Hour

	// Issuer identifies tokens minted by this server.
	Issuer = "Huddle-Server"
)

// Generate creates and signs a session token for the given username.
func Generate(username string, secretKey string, ttl time.Duration) (string, error) {
	now := time.Now()

	claims := &Claims{
		StandardClaims: jwt.StandardClaims{
			Id:        randx.TokenID(),
			ExpiresAt: now.Add(ttl).Unix(),
			IssuedAt:  now.Unix(),
			Issuer:    Issuer,
		},
		Username: username,
	}

	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)

	return tok.SignedString([]byte(secretKey))
}

// Parse validates the token signature and expiry and returns its claims.
func Parse(tokenString string, secretKey string) (*Claims, error) {
	claims := &Claims{}

	tok, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return []byte(secretKey), nil
	})

	if err != nil {
		return nil, err
	}

	if !tok.Valid {
		return nil, errors.New("invalid or expired token")
	}

	return claims, nil
}
