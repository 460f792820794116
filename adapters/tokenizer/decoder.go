// Package tokenizer reads claims out of backend-issued JWTs on the client
// side. Decoding is advisory only: signatures are never verified here, the
// backend stays authoritative on every request.
package tokenizer

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/facilityworks/sessionkit/core"
)

// AccessExpiry decodes the expiry claim of an access token without verifying
// its signature.
func AccessExpiry(tokenStr string) (time.Time, error) {
	claims := &AccessClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(tokenStr, claims); err != nil {
		return time.Time{}, fmt.Errorf("%w: %v", core.ErrInvalidClaims, err)
	}

	if claims.ExpiresAt == nil {
		return time.Time{}, core.ErrNoExpiryClaim
	}

	return claims.ExpiresAt.Time, nil
}
