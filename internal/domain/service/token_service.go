package service

import (
	"time"

	"jwtauth/internal/domain/entity"
)

// AccessTokenClaims is the verified content of an access token.
type AccessTokenClaims struct {
	Username  string
	Role      entity.Role
	TokenID   string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// AccessTokenCodec issues and verifies short-lived, self-contained access tokens.
type AccessTokenCodec interface {
	// Issue signs a new access token for the account.
	Issue(account *entity.Account) (string, error)

	// Verify checks the signature first and only then the claims.
	// It fails with ErrTokenInvalid or ErrTokenExpired.
	Verify(token string) (*AccessTokenClaims, error)

	// AccessTokenTTL returns the configured access-token lifetime.
	AccessTokenTTL() time.Duration
}

// RefreshTokenGenerator produces opaque refresh-token secrets.
type RefreshTokenGenerator interface {
	// Generate returns at least 256 random bits encoded URL-safe.
	Generate() (string, error)
}

// TokenHasher derives the at-rest form of a refresh-token secret.
type TokenHasher interface {
	// Hash returns the deterministic digest used for storage and history lookup.
	Hash(raw string) string

	// Matches compares a raw secret with a stored digest in constant time.
	Matches(raw, digest string) bool
}
