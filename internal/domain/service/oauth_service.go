package service

import (
	"context"
	"time"

	"jwtauth/internal/domain/entity"
)

// NormalizedUserInfo is a provider user-info payload reduced to the fields the
// identity linker needs. Provider-specific shapes never cross this boundary.
type NormalizedUserInfo struct {
	ID        string // Provider subject identifier.
	Email     string // Empty when the provider did not release it.
	Nickname  string
	AvatarURL string
}

// Profile returns the display part of the user info.
func (u *NormalizedUserInfo) Profile() entity.ProviderProfile {
	return entity.ProviderProfile{
		Email:     u.Email,
		Nickname:  u.Nickname,
		AvatarURL: u.AvatarURL,
	}
}

// OAuthProviderGateway talks to the external OAuth providers.
// Implementations fail with ErrOAuthGatewayTimeout when ctx expires and
// ErrOAuthGatewayError for any other transport or provider failure.
type OAuthProviderGateway interface {
	// ExchangeCode trades an authorization code for a provider access token.
	ExchangeCode(ctx context.Context, provider entity.ProviderType, code string) (string, error)

	// FetchUserInfo loads and normalizes the user profile for a provider access token.
	FetchUserInfo(ctx context.Context, provider entity.ProviderType, accessToken string) (*NormalizedUserInfo, error)

	// AuthorizationURL builds the consent-screen URL for the provider.
	AuthorizationURL(provider entity.ProviderType, state string) (string, error)
}

// IDTokenVerifier verifies provider-issued ID tokens (Google Sign-In).
type IDTokenVerifier interface {
	Verify(ctx context.Context, idToken string) (*NormalizedUserInfo, error)
}

// OAuthStateStore keeps one-time OAuth state values used for CSRF protection.
type OAuthStateStore interface {
	// Save stores the state for the provider until ttl elapses.
	Save(ctx context.Context, state string, provider entity.ProviderType, ttl time.Duration) error

	// Consume deletes the state and reports whether it existed for the provider.
	Consume(ctx context.Context, state string, provider entity.ProviderType) (bool, error)
}
