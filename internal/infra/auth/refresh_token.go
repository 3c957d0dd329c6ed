package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"

	"jwtauth/internal/domain/service"

	"github.com/pkg/errors"
)

// refreshTokenBytes is the entropy of a refresh secret: 256 bits.
const refreshTokenBytes = 32

type opaqueTokenGenerator struct{}

// NewRefreshTokenGenerator returns a CSPRNG-backed generator of URL-safe refresh secrets.
func NewRefreshTokenGenerator() service.RefreshTokenGenerator {
	return opaqueTokenGenerator{}
}

// Generate returns 32 random bytes encoded as unpadded base64url.
func (opaqueTokenGenerator) Generate() (string, error) {
	raw := make([]byte, refreshTokenBytes)
	if _, err := rand.Read(raw); err != nil {
		return "", errors.Wrap(err, "failed to read random bytes")
	}

	return base64.RawURLEncoding.EncodeToString(raw), nil
}

type sha256TokenHasher struct{}

// NewTokenHasher returns the SHA-256 digest used to store refresh tokens at rest.
func NewTokenHasher() service.TokenHasher {
	return sha256TokenHasher{}
}

// Hash returns the lowercase hex SHA-256 digest of the raw secret.
func (sha256TokenHasher) Hash(raw string) string {
	sum := sha256.Sum256([]byte(raw))

	return hex.EncodeToString(sum[:])
}

// Matches reports whether raw hashes to digest, in constant time.
func (h sha256TokenHasher) Matches(raw, digest string) bool {
	computed := h.Hash(raw)

	return subtle.ConstantTimeCompare([]byte(computed), []byte(digest)) == 1
}
