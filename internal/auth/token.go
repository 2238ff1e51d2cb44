package auth

import (
	"crypto/sha256"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/mr-tron/base58"
)

// TokenInfo describes a bearer token for display. It is never used for
// authorization decisions: the token is not verified.
type TokenInfo struct {
	Fingerprint string
	Subject     string
	IssuedAt    time.Time
	ExpiresAt   time.Time
	// Opaque is true when the token isn't a JWT, in which case only the
	// fingerprint is populated.
	Opaque bool
}

// Expired reports whether the token carries an expiry that has passed.
func (t TokenInfo) Expired() bool {
	return !t.ExpiresAt.IsZero() && time.Now().After(t.ExpiresAt)
}

// Fingerprint returns the Base58-encoded SHA256 of the token so it can be
// identified without printing it.
func Fingerprint(token string) string {
	hash := sha256.Sum256([]byte(token))
	return base58.Encode(hash[:])
}

// InspectToken extracts unverified claims from token.
func InspectToken(token string) TokenInfo {
	info := TokenInfo{Fingerprint: Fingerprint(token)}

	claims := &jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		info.Opaque = true
		return info
	}

	info.Subject = claims.Subject
	if claims.IssuedAt != nil {
		info.IssuedAt = claims.IssuedAt.Time
	}
	if claims.ExpiresAt != nil {
		info.ExpiresAt = claims.ExpiresAt.Time
	}

	return info
}
