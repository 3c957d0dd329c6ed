package usecase

import (
	"context"

	"jwtauth/internal/domain/entity"
)

// UpdateProfileInput defines the mutable display fields of an account.
type UpdateProfileInput struct {
	Nickname        string
	ProfileImageURL *string
}

// AccountUsecase defines read and profile operations on accounts.
type AccountUsecase interface {
	GetAccount(ctx context.Context, username string) (*entity.Account, error)
	UpdateProfile(ctx context.Context, username string, input *UpdateProfileInput) (*entity.Account, error)
}
