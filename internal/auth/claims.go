package auth

import (
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

// ErrDecode marks a credential whose payload could not be parsed. Callers
// treat such a credential as expired, never as valid.
var ErrDecode = errors.New("malformed access token")

// Claims are the informational fields the backend embeds in the access
// token. The client decodes them without verifying the signature; integrity
// checking is the backend's job, the client only reads public claims.
type Claims struct {
	jwt.RegisteredClaims
	UserID      int64  `json:"user_id"`
	NamespaceID int64  `json:"name_space_id"`
	Namespace   string `json:"name_space_name"`
}

// DecodeClaims parses the token payload without signature verification.
// A structurally malformed token or one with no expiry claim yields
// ErrDecode.
func DecodeClaims(token string) (Claims, error) {
	var claims Claims
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err != nil {
		return Claims{}, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	if claims.ExpiresAt == nil {
		return Claims{}, fmt.Errorf("%w: missing exp claim", ErrDecode)
	}
	return claims, nil
}
