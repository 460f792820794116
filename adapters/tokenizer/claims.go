package tokenizer

import "github.com/golang-jwt/jwt/v5"

// AccessClaims are the claims carried by backend-issued access tokens.
type AccessClaims struct {
	jwt.RegisteredClaims
	UserID int `json:"user_id,omitempty"`
}
