package impl

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	deliverycontext "jwtauth/internal/delivery/context"
	"jwtauth/internal/domain/entity"
	domainerrors "jwtauth/internal/domain/errors"
	"jwtauth/internal/domain/repository"
	"jwtauth/internal/domain/service"
	"jwtauth/internal/usecase"

	"github.com/pkg/errors"
	"go.uber.org/fx"
)

// errLinkRace marks a first sign-in that lost a uniqueness race to a
// concurrent sign-in of the same subject or email.
var errLinkRace = errors.New("concurrent identity link")

// identityLinker links provider subjects to accounts through a separate
// identity table. Accounts are matched by email on first sign-in.
type identityLinker struct {
	txManager repository.TransactionManager
	logger    *slog.Logger
}

// IdentityLinkerParams holds dependencies for IdentityLinker, injected by Fx.
type IdentityLinkerParams struct {
	fx.In

	TxManager repository.TransactionManager
	Logger    *slog.Logger
}

// NewIdentityLinker is the constructor for identityLinker.
func NewIdentityLinker(params IdentityLinkerParams) usecase.IdentityLinker {
	return &identityLinker{
		txManager: params.TxManager,
		logger:    params.Logger,
	}
}

func (srv *identityLinker) log(ctx context.Context) *slog.Logger {
	return deliverycontext.GetLoggerOrDefault(ctx, srv.logger)
}

// ResolveOrCreate returns the account linked to the provider subject. On the
// first sign-in of a subject it links the account owning the provider email,
// or creates one. The account and the link are written in one transaction.
func (srv *identityLinker) ResolveOrCreate(ctx context.Context, provider entity.ProviderType, info *service.NormalizedUserInfo) (*entity.Account, error) {
	if info == nil || strings.TrimSpace(info.ID) == "" {
		return nil, errors.Wrap(domainerrors.ErrMissingRequiredProfileField, "provider subject id is missing")
	}

	account, err := srv.resolve(ctx, provider, info)
	if errors.Is(err, errLinkRace) {
		// The winner has committed by now; the retry resolves to its rows.
		srv.log(ctx).Info("Retrying identity link after concurrent sign-in", slog.String("provider", provider.String()))
		account, err = srv.resolve(ctx, provider, info)
	}
	if err != nil {
		if errors.Is(err, errLinkRace) {
			return nil, errors.Wrap(domainerrors.ErrTransactionFailed, "identity link kept conflicting")
		}

		return nil, errors.Wrap(err, "failed to resolve oauth identity")
	}

	return account, nil
}

func (srv *identityLinker) resolve(ctx context.Context, provider entity.ProviderType, info *service.NormalizedUserInfo) (*entity.Account, error) {
	var account *entity.Account

	err := srv.txManager.Execute(ctx, func(repoFactory repository.RepositoryFactory) error {
		identityRepo := repoFactory.OAuthIdentityRepo()
		accountRepo := repoFactory.AccountRepo()
		profile := info.Profile()

		identity, err := identityRepo.FindByProviderAndSubject(ctx, provider, info.ID)
		if err == nil {
			account, err = srv.loadLinkedAccount(ctx, accountRepo, identity)
			if err != nil {
				return err
			}

			if identity.RefreshDisplay(profile) {
				if err := identityRepo.UpdateDisplay(ctx, identity); err != nil {
					return errors.Wrap(err, "failed to refresh identity display fields")
				}
			}

			return nil
		}
		if !errors.Is(err, repository.ErrOAuthIdentityNotFound) {
			return errors.Wrap(err, "failed to find oauth identity")
		}

		email := strings.TrimSpace(info.Email)
		if email == "" {
			return errors.Wrapf(domainerrors.ErrMissingRequiredProfileField, "%s did not release an email", provider)
		}

		account, err = srv.findOrCreateAccount(ctx, accountRepo, provider, info, email)
		if err != nil {
			return err
		}

		newIdentity := &entity.OAuthIdentity{
			AccountID:         account.ID,
			Provider:          provider,
			ProviderSubjectID: info.ID,
		}
		newIdentity.RefreshDisplay(profile)

		if err := identityRepo.Create(ctx, newIdentity); err != nil {
			if errors.Is(err, repository.ErrOAuthIdentityConflict) {
				return errLinkRace
			}

			return errors.Wrap(err, "failed to link oauth identity")
		}

		srv.log(ctx).Info("OAuth identity linked",
			slog.String("provider", provider.String()),
			slog.Any("accountID", account.ID),
		)

		return nil
	})
	if err != nil {
		return nil, err
	}

	return account, nil
}

func (srv *identityLinker) loadLinkedAccount(ctx context.Context, accountRepo repository.AccountRepository, identity *entity.OAuthIdentity) (*entity.Account, error) {
	account, err := accountRepo.FindByID(ctx, identity.AccountID)
	if errors.Is(err, repository.ErrAccountNotFound) {
		return nil, errors.Wrap(domainerrors.ErrAccountNotFound, "linked account is missing")
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to load linked account")
	}

	return account, nil
}

func (srv *identityLinker) findOrCreateAccount(
	ctx context.Context,
	accountRepo repository.AccountRepository,
	provider entity.ProviderType,
	info *service.NormalizedUserInfo,
	email string,
) (*entity.Account, error) {
	account, err := accountRepo.FindByEmail(ctx, email)
	if err == nil {
		return account, nil
	}
	if !errors.Is(err, repository.ErrAccountNotFound) {
		return nil, errors.Wrap(err, "failed to find account by email")
	}

	username, err := srv.pickUsername(ctx, accountRepo, provider, info.ID, email)
	if err != nil {
		return nil, err
	}

	profile := info.Profile()
	profile.Email = email
	account = entity.NewOAuthAccount(username, profile)

	if err := accountRepo.Create(ctx, account); err != nil {
		if errors.Is(err, repository.ErrUsernameConflict) || errors.Is(err, repository.ErrEmailConflict) {
			return nil, errLinkRace
		}

		return nil, errors.Wrap(err, "failed to create account for oauth identity")
	}

	srv.log(ctx).Info("Account created from OAuth sign-in",
		slog.String("provider", provider.String()),
		slog.Any("accountID", account.ID),
	)

	return account, nil
}

// pickUsername prefers the provider email and falls back to a name derived
// from the provider subject.
func (srv *identityLinker) pickUsername(ctx context.Context, accountRepo repository.AccountRepository, provider entity.ProviderType, subjectID, email string) (string, error) {
	candidates := []string{
		email,
		fmt.Sprintf("%s_%s", strings.ToLower(provider.String()), subjectID),
	}

	for _, candidate := range candidates {
		exists, err := accountRepo.ExistsByUsername(ctx, candidate)
		if err != nil {
			return "", errors.Wrap(err, "failed to check username")
		}
		if !exists {
			return candidate, nil
		}
	}

	return "", errors.Wrap(domainerrors.ErrUsernameTaken, "no free username for oauth account")
}
