package usecase

import (
	"context"

	"jwtauth/internal/domain/entity"
	"jwtauth/internal/domain/service"
)

// TokenRotation owns every state change of refresh tokens.
// An account has at most one active refresh token at any time.
type TokenRotation interface {
	// RotateOnSignIn retires the current token, if any, and issues a fresh pair.
	RotateOnSignIn(ctx context.Context, account *entity.Account) (*TokenPair, error)

	// RotateOnReissue exchanges the presented refresh token for a fresh pair.
	// A token found in history is treated as reuse: every active token of its
	// owner is revoked in a separately committed unit of work and the call
	// fails with ErrRefreshTokenReused.
	RotateOnReissue(ctx context.Context, account *entity.Account, presented string) (*TokenPair, error)

	// Retire moves the presented token into history if it is the active one.
	Retire(ctx context.Context, account *entity.Account, presented string) error
}

// IdentityLinker resolves a provider identity to a local account,
// linking or creating one on first sign-in.
type IdentityLinker interface {
	ResolveOrCreate(ctx context.Context, provider entity.ProviderType, info *service.NormalizedUserInfo) (*entity.Account, error)
}
