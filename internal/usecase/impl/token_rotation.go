// Package impl contains the implementation of the application's business logic.
package impl

import (
	"context"
	"log/slog"
	"time"

	"jwtauth/config"
	deliverycontext "jwtauth/internal/delivery/context"
	"jwtauth/internal/domain/entity"
	domainerrors "jwtauth/internal/domain/errors"
	"jwtauth/internal/domain/lifecycle"
	"jwtauth/internal/domain/repository"
	"jwtauth/internal/domain/service"
	"jwtauth/internal/usecase"

	"github.com/pkg/errors"
	"go.uber.org/fx"
)

const (
	revocationAttempts = 3
	revocationBackoff  = 50 * time.Millisecond
)

// errReuseDetected aborts the reissue transaction so the revocation can run
// after the account lock and its connection are released.
var errReuseDetected = errors.New("refresh token found in history")

// tokenRotation implements the refresh-token state machine:
// NONE -> ACTIVE -> RETIRED, where retired tokens live only in history.
type tokenRotation struct {
	txManager  repository.TransactionManager
	codec      service.AccessTokenCodec
	generator  service.RefreshTokenGenerator
	hasher     service.TokenHasher
	refreshTTL time.Duration
	now        func() time.Time
	logger     *slog.Logger
}

// TokenRotationParams holds dependencies for TokenRotation, injected by Fx.
type TokenRotationParams struct {
	fx.In

	TxManager repository.TransactionManager
	Codec     service.AccessTokenCodec
	Generator service.RefreshTokenGenerator
	Hasher    service.TokenHasher
	Config    *config.Config
	Logger    *slog.Logger
}

// NewTokenRotation is the constructor for tokenRotation.
func NewTokenRotation(params TokenRotationParams) usecase.TokenRotation {
	return &tokenRotation{
		txManager:  params.TxManager,
		codec:      params.Codec,
		generator:  params.Generator,
		hasher:     params.Hasher,
		refreshTTL: params.Config.Token.RefreshTTL(),
		now:        time.Now,
		logger:     params.Logger,
	}
}

func (srv *tokenRotation) log(ctx context.Context) *slog.Logger {
	return deliverycontext.GetLoggerOrDefault(ctx, srv.logger)
}

type issuedTokens struct {
	pair   *usecase.TokenPair
	record *entity.ActiveRefreshToken
}

// issue signs an access token and mints a refresh secret. Only the digest of
// the secret goes into the record that will be stored.
func (srv *tokenRotation) issue(account *entity.Account, now time.Time) (*issuedTokens, error) {
	accessToken, err := srv.codec.Issue(account)
	if err != nil {
		return nil, errors.Wrap(err, "failed to issue access token")
	}

	rawRefresh, err := srv.generator.Generate()
	if err != nil {
		return nil, errors.Wrap(err, "failed to generate refresh token")
	}

	expiresAt := now.Add(srv.refreshTTL)

	return &issuedTokens{
		pair: &usecase.TokenPair{
			AccessToken:           accessToken,
			AccessTokenExpiresIn:  srv.codec.AccessTokenTTL(),
			RefreshToken:          rawRefresh,
			RefreshTokenExpiresAt: expiresAt,
		},
		record: &entity.ActiveRefreshToken{
			AccountID: account.ID,
			TokenHash: srv.hasher.Hash(rawRefresh),
			ExpiresAt: expiresAt,
		},
	}, nil
}

// RotateOnSignIn retires any active token of the account and installs a new one.
func (srv *tokenRotation) RotateOnSignIn(ctx context.Context, account *entity.Account) (*usecase.TokenPair, error) {
	now := srv.now()

	issued, err := srv.issue(account, now)
	if err != nil {
		return nil, err
	}

	var retired *entity.ActiveRefreshToken
	err = srv.txManager.Execute(ctx, func(repoFactory repository.RepositoryFactory) error {
		if err := lockAccount(ctx, repoFactory, account); err != nil {
			return err
		}

		var replaceErr error
		retired, replaceErr = repoFactory.RefreshTokenRepo().ReplaceActive(ctx, issued.record, now)
		if replaceErr != nil {
			return mapReplaceError(replaceErr)
		}

		return nil
	})
	if err != nil {
		srv.log(ctx).Warn("Sign-in rotation failed", slog.Any("accountID", account.ID), slog.Any("error", err))

		return nil, errors.Wrap(err, "failed to execute sign-in rotation transaction")
	}

	srv.log(ctx).Debug("Refresh token installed on sign-in",
		slog.Any("accountID", account.ID),
		slog.Bool("retiredPrevious", retired != nil),
	)

	return issued.pair, nil
}

// RotateOnReissue checks history before the active slot: a value that exists
// in history is never compared against the active record.
func (srv *tokenRotation) RotateOnReissue(ctx context.Context, account *entity.Account, presented string) (*usecase.TokenPair, error) {
	if presented == "" {
		return nil, errors.Wrap(domainerrors.ErrRefreshTokenNotFound, "empty refresh token")
	}

	now := srv.now()
	digest := srv.hasher.Hash(presented)

	var (
		issued *issuedTokens
		reused *entity.RefreshTokenHistoryEntry
	)
	err := srv.txManager.Execute(ctx, func(repoFactory repository.RepositoryFactory) error {
		if err := lockAccount(ctx, repoFactory, account); err != nil {
			return err
		}

		entry, err := repoFactory.RefreshTokenHistoryRepo().FindByTokenHash(ctx, digest)
		switch {
		case err == nil:
			reused = entry

			return errReuseDetected
		case !errors.Is(err, repository.ErrHistoryEntryNotFound):
			return errors.Wrap(err, "failed to look up refresh token history")
		}

		active, err := repoFactory.RefreshTokenRepo().FindActiveByAccount(ctx, account.ID)
		if errors.Is(err, repository.ErrRefreshTokenNotFound) {
			return errors.Wrap(domainerrors.ErrRefreshTokenNotFound, "account has no active refresh token")
		}
		if err != nil {
			return errors.Wrap(err, "failed to find active refresh token")
		}

		if !srv.hasher.Matches(presented, active.TokenHash) {
			return errors.Wrap(domainerrors.ErrRefreshTokenNotFound, "refresh token does not match the active token")
		}

		if active.IsExpired(now) {
			return errors.Wrap(domainerrors.ErrRefreshTokenExpired, "active refresh token has expired")
		}

		issued, err = srv.issue(account, now)
		if err != nil {
			return err
		}

		if _, err := repoFactory.RefreshTokenRepo().ReplaceActive(ctx, issued.record, now); err != nil {
			return mapReplaceError(err)
		}

		return nil
	})
	if reused != nil && errors.Is(err, errReuseDetected) {
		return nil, srv.handleReuse(ctx, reused)
	}
	if err != nil {
		srv.log(ctx).Warn("Refresh token reissue rejected", slog.Any("accountID", account.ID), slog.Any("error", err))

		return nil, errors.Wrap(err, "failed to execute reissue transaction")
	}

	srv.log(ctx).Debug("Refresh token rotated", slog.Any("accountID", account.ID))

	return issued.pair, nil
}

// handleReuse bumps the reuse counter and revokes every active token of the
// entry's owner in a detached unit of work, then reports the reuse.
// It must run outside any transaction holding the account lock.
func (srv *tokenRotation) handleReuse(ctx context.Context, entry *entity.RefreshTokenHistoryEntry) error {
	srv.log(ctx).Warn("Refresh token reuse detected",
		slog.Any("accountID", entry.AccountID),
		slog.Any("historyID", entry.ID),
		slog.Time("consumedAt", entry.ConsumedAt),
	)

	if err := srv.revoke(ctx, entry); err != nil {
		srv.log(ctx).Error("Failed to revoke sessions after refresh token reuse",
			slog.Any("accountID", entry.AccountID),
			slog.Any("error", err),
		)

		return errors.Wrapf(domainerrors.ErrRefreshTokenReused, "revocation failed: %v", err)
	}

	return errors.Wrap(domainerrors.ErrRefreshTokenReused, "retired refresh token presented again")
}

// revoke keeps going when the caller goes away; only its own deadline stops it.
func (srv *tokenRotation) revoke(ctx context.Context, entry *entity.RefreshTokenHistoryEntry) error {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), revocationAttempts*lifecycle.DefaultTimeout)
	defer cancel()

	var lastErr error

	for attempt := 1; attempt <= revocationAttempts; attempt++ {
		var (
			reuseCount int
			revoked    int64
		)

		lastErr = srv.txManager.ExecuteDetached(ctx, func(repoFactory repository.RepositoryFactory) error {
			var err error

			reuseCount, err = repoFactory.RefreshTokenHistoryRepo().IncrementReuseCount(ctx, entry.ID)
			if err != nil {
				return errors.Wrap(err, "failed to increment reuse count")
			}

			revoked, err = repoFactory.RefreshTokenRepo().DeleteAllActive(ctx, entry.AccountID)
			if err != nil {
				return errors.Wrap(err, "failed to delete active refresh tokens")
			}

			return nil
		})
		if lastErr == nil {
			srv.log(ctx).Warn("Sessions revoked after refresh token reuse",
				slog.Any("accountID", entry.AccountID),
				slog.Int("reuseCount", reuseCount),
				slog.Int64("revokedTokens", revoked),
			)

			return nil
		}

		srv.log(ctx).Warn("Revocation attempt failed", slog.Int("attempt", attempt), slog.Any("error", lastErr))
		if attempt == revocationAttempts {
			break
		}

		timer := time.NewTimer(time.Duration(attempt) * revocationBackoff)
		select {
		case <-ctx.Done():
			timer.Stop()

			return errors.Wrap(ctx.Err(), "revocation deadline exceeded")
		case <-timer.C:
		}
	}

	return lastErr
}

// Retire moves the presented token into history when it is the active one.
// Anything else is a no-op.
func (srv *tokenRotation) Retire(ctx context.Context, account *entity.Account, presented string) error {
	if presented == "" {
		return nil
	}

	now := srv.now()
	var retired bool

	err := srv.txManager.Execute(ctx, func(repoFactory repository.RepositoryFactory) error {
		if err := lockAccount(ctx, repoFactory, account); err != nil {
			return err
		}

		refreshRepo := repoFactory.RefreshTokenRepo()

		active, err := refreshRepo.FindActiveByAccount(ctx, account.ID)
		if errors.Is(err, repository.ErrRefreshTokenNotFound) {
			return nil
		}
		if err != nil {
			return errors.Wrap(err, "failed to find active refresh token")
		}

		if !srv.hasher.Matches(presented, active.TokenHash) {
			return nil
		}

		if err := refreshRepo.RetireActive(ctx, active, now); err != nil {
			if errors.Is(err, repository.ErrRefreshTokenNotFound) {
				return nil
			}

			return errors.Wrap(err, "failed to retire refresh token")
		}
		retired = true

		return nil
	})
	if err != nil {
		return errors.Wrap(err, "failed to execute logout transaction")
	}

	srv.log(ctx).Debug("Logout processed", slog.Any("accountID", account.ID), slog.Bool("retired", retired))

	return nil
}

func lockAccount(ctx context.Context, repoFactory repository.RepositoryFactory, account *entity.Account) error {
	if err := repoFactory.AccountRepo().LockForUpdate(ctx, account.ID); err != nil {
		if errors.Is(err, repository.ErrAccountNotFound) {
			return errors.Wrap(domainerrors.ErrAccountNotFound, "account disappeared during rotation")
		}

		return errors.Wrap(err, "failed to lock account")
	}

	return nil
}

// mapReplaceError turns a lost race on the active slot into RefreshTokenNotFound.
func mapReplaceError(err error) error {
	if errors.Is(err, repository.ErrRefreshTokenNotFound) {
		return errors.Wrap(domainerrors.ErrRefreshTokenNotFound, "active refresh token was replaced concurrently")
	}

	return errors.Wrap(err, "failed to replace active refresh token")
}
