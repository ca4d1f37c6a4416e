package types

import "github.com/golang-jwt/jwt/v5"

// Claims represents the session token claims. The session id travels in the
// registered "jti" claim and is what logout revokes.
type Claims struct {
	UserID string `json:"user_id"`
	Email  string `json:"email"`
	Role   string `json:"role"`
	jwt.RegisteredClaims
}
