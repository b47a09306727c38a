package token

import "github.com/golang-jwt/jwt"

// Claims defines the signed content of a Huddle session token.
// The random token id plus the issued-at claim make every token unique even
// when the same username logs in repeatedly within the same second.
type Claims struct {
	// StandardClaims embeds the JWT standard fields. Id carries the random
	// per-token identifier (jti), ExpiresAt bounds the session lifetime.
	jwt.StandardClaims

	// Username is the account this session was issued to. Resumption only
	// succeeds when the claimed username matches this value.
	Username string `json:"username"`
}
