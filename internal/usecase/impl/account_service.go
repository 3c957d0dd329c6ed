package impl

import (
	"context"
	"log/slog"

	deliverycontext "jwtauth/internal/delivery/context"
	"jwtauth/internal/domain/entity"
	domainerrors "jwtauth/internal/domain/errors"
	"jwtauth/internal/domain/repository"
	"jwtauth/internal/usecase"

	"github.com/pkg/errors"
	"go.uber.org/fx"
)

// accountService implements the AccountUsecase interface.
type accountService struct {
	accountRepo repository.AccountRepository
	logger      *slog.Logger
}

// AccountServiceParams holds dependencies for AccountService, injected by Fx.
type AccountServiceParams struct {
	fx.In

	AccountRepo repository.AccountRepository
	Logger      *slog.Logger
}

// NewAccountService is the constructor for accountService.
func NewAccountService(params AccountServiceParams) usecase.AccountUsecase {
	return &accountService{
		accountRepo: params.AccountRepo,
		logger:      params.Logger,
	}
}

func (srv *accountService) log(ctx context.Context) *slog.Logger {
	return deliverycontext.GetLoggerOrDefault(ctx, srv.logger)
}

// GetAccount loads an account by username.
func (srv *accountService) GetAccount(ctx context.Context, username string) (*entity.Account, error) {
	account, err := srv.accountRepo.FindByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, repository.ErrAccountNotFound) {
			return nil, errors.Wrap(domainerrors.ErrAccountNotFound, "no account with that username")
		}

		return nil, errors.Wrap(err, "failed to find account")
	}

	return account, nil
}

// UpdateProfile replaces the display fields of the account.
func (srv *accountService) UpdateProfile(ctx context.Context, username string, input *usecase.UpdateProfileInput) (*entity.Account, error) {
	account, err := srv.GetAccount(ctx, username)
	if err != nil {
		return nil, err
	}

	account.UpdateProfile(input.Nickname, input.ProfileImageURL)

	// Single operation - use direct repository instance
	if err := srv.accountRepo.Update(ctx, account); err != nil {
		if errors.Is(err, repository.ErrAccountNotFound) {
			return nil, errors.Wrap(domainerrors.ErrAccountNotFound, "account disappeared during update")
		}

		return nil, errors.Wrap(err, "failed to update account profile")
	}

	srv.log(ctx).Info("Account profile updated", slog.Any("accountID", account.ID))

	return account, nil
}
