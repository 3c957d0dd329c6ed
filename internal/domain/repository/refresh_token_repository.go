package repository

import (
	"context"
	"time"

	"jwtauth/internal/domain/entity"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// Domain-specific errors for refresh token persistence.
var (
	// ErrRefreshTokenNotFound is returned when the account has no active refresh token,
	// or the token to retire is no longer the active one.
	ErrRefreshTokenNotFound = errors.New("refresh token not found")
	// ErrHistoryEntryNotFound is returned when no retired token matches the digest.
	ErrHistoryEntryNotFound = errors.New("refresh token history entry not found")
	// ErrHistoryEntryConflict is returned when the digest is already in history.
	ErrHistoryEntryConflict = errors.New("refresh token history entry already exists")
)

// RefreshTokenRepository manages the single active refresh token of each account.
type RefreshTokenRepository interface {
	// FindActiveByAccount returns the active token of the account, or ErrRefreshTokenNotFound.
	FindActiveByAccount(ctx context.Context, accountID uuid.UUID) (*entity.ActiveRefreshToken, error)

	// ReplaceActive atomically retires the account's current token (if any) into history,
	// stamped with consumedAt, and installs next as the only active token.
	// It returns the retired token, or nil if the account had none.
	ReplaceActive(ctx context.Context, next *entity.ActiveRefreshToken, consumedAt time.Time) (*entity.ActiveRefreshToken, error)

	// RetireActive moves exactly the given token into history. It fails with
	// ErrRefreshTokenNotFound if that token is no longer the active one.
	RetireActive(ctx context.Context, token *entity.ActiveRefreshToken, consumedAt time.Time) error

	// DeleteAllActive removes every active token of the account.
	// It is only used for revocation after reuse has been detected.
	DeleteAllActive(ctx context.Context, accountID uuid.UUID) (int64, error)
}

// RefreshTokenHistoryRepository is the append-only log of retired refresh tokens.
type RefreshTokenHistoryRepository interface {
	// Append records a retired token.
	Append(ctx context.Context, entry *entity.RefreshTokenHistoryEntry) error

	// FindByTokenHash looks a retired token up by its digest, or ErrHistoryEntryNotFound.
	FindByTokenHash(ctx context.Context, tokenHash string) (*entity.RefreshTokenHistoryEntry, error)

	// IncrementReuseCount atomically bumps the reuse counter of the entry and returns the new value.
	IncrementReuseCount(ctx context.Context, id uuid.UUID) (int, error)
}
