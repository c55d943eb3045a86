// ABOUTME: JWT credential issuance for kvgate
// ABOUTME: Mints HS256 tokens with fixed subject/issuer and a default three-year expiry

package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Fixed claim values for every issued credential.
const (
	Subject = "user"
	Issuer  = "issuer"
)

// DefaultTokenLifetime is used when Issue is called without an explicit expiry.
const DefaultTokenLifetime = 52 * 3 * 7 * 24 * time.Hour

// ErrInvalidExpiry is returned by Issue when the expiry is not after the issue time.
var ErrInvalidExpiry = errors.New("expiry must be after issue time")

// Claims is the payload carried by a credential.
type Claims = jwt.RegisteredClaims

// now is overridden in tests.
var now = time.Now

// Issue signs a new credential with secret. When expiry is nil the credential
// expires DefaultTokenLifetime from now.
func Issue(secret string, expiry *time.Time) (string, error) {
	issuedAt := now()
	expiresAt := issuedAt.Add(DefaultTokenLifetime)
	if expiry != nil {
		expiresAt = *expiry
	}
	// exp and iat are encoded in whole seconds
	if expiresAt.Unix() <= issuedAt.Unix() {
		return "", ErrInvalidExpiry
	}

	claims := &Claims{
		Subject:   Subject,
		Issuer:    Issuer,
		IssuedAt:  jwt.NewNumericDate(issuedAt),
		ExpiresAt: jwt.NewNumericDate(expiresAt),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}
