package tokenizer

import "github.com/golang-jwt/jwt/v5"

// SessionClaims are the claims carried by a session credential
type SessionClaims struct {
	jwt.RegisteredClaims
}
