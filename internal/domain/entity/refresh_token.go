package entity

import (
	"time"

	"github.com/google/uuid"
)

// ActiveRefreshToken is the single live refresh credential of an account.
// Only a digest of the secret is stored.
type ActiveRefreshToken struct {
	Base

	AccountID uuid.UUID // Owning account; at most one active token per account.
	TokenHash string    // Digest of the opaque secret handed to the client.
	ExpiresAt time.Time // After this instant the token can no longer be exchanged.
}

// IsExpired reports whether the token has expired at the given instant.
func (t *ActiveRefreshToken) IsExpired(now time.Time) bool {
	return !now.Before(t.ExpiresAt)
}

// Retire turns the active token into an append-only history entry.
func (t *ActiveRefreshToken) Retire(consumedAt time.Time) *RefreshTokenHistoryEntry {
	return &RefreshTokenHistoryEntry{
		AccountID:  t.AccountID,
		TokenHash:  t.TokenHash,
		ConsumedAt: consumedAt,
		ExpiresAt:  t.ExpiresAt,
	}
}

// RefreshTokenHistoryEntry records a refresh token that was consumed by rotation,
// sign-in or logout. Presenting it again is treated as reuse.
// Entries are never deleted; ReuseCount is the only field that changes.
type RefreshTokenHistoryEntry struct {
	Base

	AccountID  uuid.UUID // Owning account.
	TokenHash  string    // Lookup key, unique across history.
	ConsumedAt time.Time // When the token left the active slot.
	ExpiresAt  time.Time // The original expiry of the token.
	ReuseCount int       // Number of times the retired token was presented again.
}
