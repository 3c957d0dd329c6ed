package impl

import (
	"context"
	"log/slog"
	"strings"
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

// authService implements the AuthUsecase interface.
type authService struct {
	txManager       repository.TransactionManager
	hasher          service.PasswordHasher
	rotation        usecase.TokenRotation
	linker          usecase.IdentityLinker
	gateway         service.OAuthProviderGateway
	idTokenVerifier service.IDTokenVerifier
	stateStore      service.OAuthStateStore
	stateGenerator  service.RefreshTokenGenerator
	oauthTimeout    time.Duration
	stateTTL        time.Duration
	logger          *slog.Logger
}

// AuthServiceParams holds dependencies for AuthService, injected by Fx.
type AuthServiceParams struct {
	fx.In

	TxManager       repository.TransactionManager
	Hasher          service.PasswordHasher
	Rotation        usecase.TokenRotation
	Linker          usecase.IdentityLinker
	Gateway         service.OAuthProviderGateway
	IDTokenVerifier service.IDTokenVerifier
	StateStore      service.OAuthStateStore
	StateGenerator  service.RefreshTokenGenerator
	Config          *config.Config
	Logger          *slog.Logger
}

// NewAuthService is the constructor for authService.
func NewAuthService(params AuthServiceParams) usecase.AuthUsecase {
	oauthTimeout := params.Config.OAuth.Timeout
	if oauthTimeout <= 0 {
		oauthTimeout = lifecycle.DefaultTimeout
	}

	return &authService{
		txManager:       params.TxManager,
		hasher:          params.Hasher,
		rotation:        params.Rotation,
		linker:          params.Linker,
		gateway:         params.Gateway,
		idTokenVerifier: params.IDTokenVerifier,
		stateStore:      params.StateStore,
		stateGenerator:  params.StateGenerator,
		oauthTimeout:    oauthTimeout,
		stateTTL:        params.Config.OAuth.StateTTL,
		logger:          params.Logger,
	}
}

// log returns a request-scoped logger if available, otherwise falls back to the service's logger.
func (srv *authService) log(ctx context.Context) *slog.Logger {
	return deliverycontext.GetLoggerOrDefault(ctx, srv.logger)
}

// SignUp registers a local account with a hashed password.
func (srv *authService) SignUp(ctx context.Context, input *usecase.SignUpInput) (*entity.Account, error) {
	srv.log(ctx).Info("Starting sign-up", slog.String("username", input.Username))

	role := input.Role
	if role == "" {
		role = entity.RoleUser
	}
	if !role.IsValid() {
		return nil, errors.Wrapf(domainerrors.ErrValidationFailed, "unknown role %q", role)
	}

	// bcrypt is CPU-bound; keep it out of the transaction.
	passwordHash, err := srv.hasher.Hash(input.Password)
	if err != nil {
		srv.log(ctx).Error("Failed to hash password during sign-up", slog.Any("error", err))

		return nil, errors.Wrap(domainerrors.ErrPasswordHashFailed, err.Error())
	}

	account := &entity.Account{
		Username:     input.Username,
		PasswordHash: &passwordHash,
		Nickname:     input.Nickname,
		Role:         role,
	}
	if email := strings.TrimSpace(input.Email); email != "" {
		account.Email = &email
	}
	if account.Nickname == "" {
		account.Nickname = input.Username
	}

	err = srv.txManager.Execute(ctx, func(repoFactory repository.RepositoryFactory) error {
		accountRepo := repoFactory.AccountRepo()

		exists, err := accountRepo.ExistsByUsername(ctx, input.Username)
		if err != nil {
			return errors.Wrap(err, "failed to check username")
		}
		if exists {
			return errors.Wrap(domainerrors.ErrUsernameTaken, "username already registered")
		}

		if account.Email != nil {
			if _, err := accountRepo.FindByEmail(ctx, *account.Email); err == nil {
				return errors.Wrap(domainerrors.ErrEmailTaken, "email already registered")
			} else if !errors.Is(err, repository.ErrAccountNotFound) {
				return errors.Wrap(err, "failed to check email")
			}
		}

		if err := accountRepo.Create(ctx, account); err != nil {
			switch {
			case errors.Is(err, repository.ErrUsernameConflict):
				return errors.Wrap(domainerrors.ErrUsernameTaken, "username already registered")
			case errors.Is(err, repository.ErrEmailConflict):
				return errors.Wrap(domainerrors.ErrEmailTaken, "email already registered")
			default:
				return errors.Wrap(err, "failed to create account")
			}
		}

		return nil
	})
	if err != nil {
		srv.log(ctx).Warn("Sign-up failed", slog.String("username", input.Username), slog.Any("error", err))

		return nil, errors.Wrap(err, "failed to execute sign-up transaction")
	}

	srv.log(ctx).Info("Account created", slog.Any("accountID", account.ID), slog.String("role", account.Role.String()))

	return account, nil
}

// SignIn checks the password and starts a new session.
func (srv *authService) SignIn(ctx context.Context, input *usecase.SignInInput) (*usecase.LoginOutput, error) {
	srv.log(ctx).Debug("Starting sign-in", slog.String("username", input.Username))

	account, err := srv.loadAccount(ctx, input.Username)
	if err != nil {
		srv.log(ctx).Warn("Sign-in failed", slog.String("username", input.Username), slog.Any("error", err))

		return nil, err
	}

	if !account.HasPassword() || !srv.hasher.Check(input.Password, *account.PasswordHash) {
		srv.log(ctx).Warn("Sign-in failed", slog.String("username", input.Username), slog.Any("error", domainerrors.ErrInvalidCredentials))

		return nil, errors.Wrap(domainerrors.ErrInvalidCredentials, "sign-in failed")
	}

	tokens, err := srv.rotation.RotateOnSignIn(ctx, account)
	if err != nil {
		return nil, errors.Wrap(err, "failed to start session")
	}

	srv.log(ctx).Debug("Signed in", slog.Any("accountID", account.ID))

	return &usecase.LoginOutput{Tokens: tokens, Account: account}, nil
}

// Reissue exchanges a refresh token for a fresh pair.
func (srv *authService) Reissue(ctx context.Context, input *usecase.ReissueInput) (*usecase.TokenPair, error) {
	account, err := srv.loadAccount(ctx, input.Username)
	if err != nil {
		return nil, err
	}

	tokens, err := srv.rotation.RotateOnReissue(ctx, account, input.RefreshToken)
	if err != nil {
		return nil, errors.Wrap(err, "failed to reissue tokens")
	}

	return tokens, nil
}

// Logout retires the presented refresh token. Unknown accounts and tokens are ignored.
func (srv *authService) Logout(ctx context.Context, input *usecase.LogoutInput) error {
	account, err := srv.loadAccount(ctx, input.Username)
	if errors.Is(err, domainerrors.ErrAccountNotFound) {
		srv.log(ctx).Debug("Logout for unknown account", slog.String("username", input.Username))

		return nil
	}
	if err != nil {
		return err
	}

	if err := srv.rotation.Retire(ctx, account, input.RefreshToken); err != nil {
		srv.log(ctx).Error("Failed to retire refresh token", slog.Any("accountID", account.ID), slog.Any("error", err))

		return errors.Wrap(err, "failed to log out")
	}

	return nil
}

// BeginOAuth issues a one-time state and returns the provider consent URL bound to it.
func (srv *authService) BeginOAuth(ctx context.Context, provider entity.ProviderType) (*usecase.BeginOAuthOutput, error) {
	if !provider.IsValid() {
		return nil, errors.Wrapf(domainerrors.ErrUnsupportedProvider, "provider %q", provider)
	}

	state, err := srv.stateGenerator.Generate()
	if err != nil {
		return nil, errors.Wrap(err, "failed to generate oauth state")
	}

	authorizationURL, err := srv.gateway.AuthorizationURL(provider, state)
	if err != nil {
		return nil, errors.Wrap(err, "failed to build authorization url")
	}

	if err := srv.stateStore.Save(ctx, state, provider, srv.stateTTL); err != nil {
		return nil, errors.Wrap(err, "failed to store oauth state")
	}

	return &usecase.BeginOAuthOutput{AuthorizationURL: authorizationURL, State: state}, nil
}

// OAuthLogin exchanges the authorization code, resolves the identity and
// always starts a fresh session, like a password sign-in.
func (srv *authService) OAuthLogin(ctx context.Context, input *usecase.OAuthLoginInput) (*usecase.LoginOutput, error) {
	provider := input.Provider
	if !provider.IsValid() {
		return nil, errors.Wrapf(domainerrors.ErrUnsupportedProvider, "provider %q", provider)
	}

	srv.log(ctx).Info("Handling OAuth login", slog.String("provider", provider.String()))

	if input.State != "" {
		ok, err := srv.stateStore.Consume(ctx, input.State, provider)
		if err != nil {
			return nil, errors.Wrap(err, "failed to consume oauth state")
		}
		if !ok {
			return nil, errors.Wrap(domainerrors.ErrOAuthStateInvalid, "unknown or used oauth state")
		}
	}

	info, err := srv.fetchProviderUser(ctx, provider, input.AuthorizationCode)
	if err != nil {
		srv.log(ctx).Warn("OAuth provider call failed", slog.String("provider", provider.String()), slog.Any("error", err))

		return nil, err
	}

	return srv.completeOAuthLogin(ctx, provider, info)
}

// OAuthLoginWithIDToken verifies a Google ID token and then continues like OAuthLogin.
func (srv *authService) OAuthLoginWithIDToken(ctx context.Context, input *usecase.IDTokenLoginInput) (*usecase.LoginOutput, error) {
	if input.Provider != entity.ProviderTypeGoogle {
		return nil, errors.Wrapf(domainerrors.ErrUnsupportedProvider, "id token sign-in is not available for %q", input.Provider)
	}

	info, err := srv.idTokenVerifier.Verify(ctx, input.IDToken)
	if err != nil {
		srv.log(ctx).Warn("ID token sign-in rejected", slog.Any("error", err))

		return nil, errors.Wrap(err, "failed to verify id token")
	}

	return srv.completeOAuthLogin(ctx, input.Provider, info)
}

// fetchProviderUser bounds both provider round trips with one deadline.
func (srv *authService) fetchProviderUser(ctx context.Context, provider entity.ProviderType, code string) (*service.NormalizedUserInfo, error) {
	ctx, cancel := context.WithTimeout(ctx, srv.oauthTimeout)
	defer cancel()

	accessToken, err := srv.gateway.ExchangeCode(ctx, provider, code)
	if err != nil {
		return nil, errors.Wrap(srv.gatewayError(ctx, err), "failed to exchange authorization code")
	}

	info, err := srv.gateway.FetchUserInfo(ctx, provider, accessToken)
	if err != nil {
		return nil, errors.Wrap(srv.gatewayError(ctx, err), "failed to fetch provider user info")
	}

	return info, nil
}

// gatewayError keeps domain errors from the gateway and classifies anything else.
func (srv *authService) gatewayError(ctx context.Context, err error) error {
	var appErr domainerrors.AppError
	if errors.As(err, &appErr) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return errors.Wrap(domainerrors.ErrOAuthGatewayTimeout, err.Error())
	}

	return errors.Wrap(domainerrors.ErrOAuthGatewayError, err.Error())
}

func (srv *authService) completeOAuthLogin(ctx context.Context, provider entity.ProviderType, info *service.NormalizedUserInfo) (*usecase.LoginOutput, error) {
	account, err := srv.linker.ResolveOrCreate(ctx, provider, info)
	if err != nil {
		srv.log(ctx).Warn("OAuth identity resolution failed", slog.String("provider", provider.String()), slog.Any("error", err))

		return nil, errors.Wrap(err, "failed to resolve oauth account")
	}

	tokens, err := srv.rotation.RotateOnSignIn(ctx, account)
	if err != nil {
		return nil, errors.Wrap(err, "failed to start session")
	}

	srv.log(ctx).Info("OAuth login completed", slog.String("provider", provider.String()), slog.Any("accountID", account.ID))

	return &usecase.LoginOutput{Tokens: tokens, Account: account}, nil
}

func (srv *authService) loadAccount(ctx context.Context, username string) (*entity.Account, error) {
	var account *entity.Account

	// Read from the primary inside a short transaction to avoid stale replica reads.
	err := srv.txManager.Execute(ctx, func(repoFactory repository.RepositoryFactory) error {
		var findErr error
		account, findErr = repoFactory.AccountRepo().FindByUsername(ctx, username)

		return findErr
	})
	if errors.Is(err, repository.ErrAccountNotFound) {
		return nil, errors.Wrap(domainerrors.ErrAccountNotFound, "no account with that username")
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to load account")
	}

	return account, nil
}
