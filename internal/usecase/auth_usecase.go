// Package usecase contains the application-specific business rules.
// It orchestrates the domain layer to perform tasks.
package usecase

import (
	"context"
	"time"

	"jwtauth/internal/domain/entity"
)

// --- Input DTOs ---

// SignUpInput defines the data required to register a local account.
type SignUpInput struct {
	Username string
	Password string
	Email    string
	Nickname string
	Role     entity.Role
}

// SignInInput defines the data required for a local password sign-in.
type SignInInput struct {
	Username string
	Password string
}

// ReissueInput carries a refresh token to exchange for a new token pair.
type ReissueInput struct {
	Username     string
	RefreshToken string
}

// OAuthLoginInput carries an authorization code returned by a provider.
// State is optional; when present it must match a state issued by BeginOAuth.
type OAuthLoginInput struct {
	Provider          entity.ProviderType
	AuthorizationCode string
	State             string
}

// IDTokenLoginInput carries a provider-issued ID token (Google Sign-In).
type IDTokenLoginInput struct {
	Provider entity.ProviderType
	IDToken  string
}

// LogoutInput identifies the refresh token to retire.
type LogoutInput struct {
	Username     string
	RefreshToken string
}

// --- Output DTOs ---

// TokenPair is the credential set handed out by every successful authentication.
type TokenPair struct {
	AccessToken           string
	AccessTokenExpiresIn  time.Duration
	RefreshToken          string
	RefreshTokenExpiresAt time.Time
}

// LoginOutput returns the generated tokens and the authenticated account.
type LoginOutput struct {
	Tokens  *TokenPair
	Account *entity.Account
}

// BeginOAuthOutput is the consent-screen URL and the state bound to it.
type BeginOAuthOutput struct {
	AuthorizationURL string
	State            string
}

// AuthUsecase defines the authentication entry points.
// This is the contract that the delivery layer (e.g., API handlers) will depend on.
type AuthUsecase interface {
	SignUp(ctx context.Context, input *SignUpInput) (*entity.Account, error)
	SignIn(ctx context.Context, input *SignInInput) (*LoginOutput, error)
	Reissue(ctx context.Context, input *ReissueInput) (*TokenPair, error)
	OAuthLogin(ctx context.Context, input *OAuthLoginInput) (*LoginOutput, error)
	OAuthLoginWithIDToken(ctx context.Context, input *IDTokenLoginInput) (*LoginOutput, error)
	BeginOAuth(ctx context.Context, provider entity.ProviderType) (*BeginOAuthOutput, error)
	Logout(ctx context.Context, input *LogoutInput) error
}
