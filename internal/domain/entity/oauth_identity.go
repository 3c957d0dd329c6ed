package entity

import "github.com/google/uuid"

// ProviderProfile is the provider-independent view of an OAuth user-info payload.
type ProviderProfile struct {
	Email     string
	Nickname  string
	AvatarURL string
}

// OAuthIdentity links an account to a subject at an external provider.
// (Provider, ProviderSubjectID) is unique across all identities.
type OAuthIdentity struct {
	Base

	AccountID         uuid.UUID    // Owning account.
	Provider          ProviderType // The provider that authenticated the subject.
	ProviderSubjectID string       // The subject identifier issued by the provider.
	ProviderEmail     string       // Email reported by the provider at the last sign-in.
	ProviderNickname  string       // Nickname reported by the provider at the last sign-in.
	ProviderAvatarURL string       // Avatar reported by the provider at the last sign-in.
}

// RefreshDisplay copies the provider's display fields onto the identity.
// The owning account and the subject never change after the link is created.
func (i *OAuthIdentity) RefreshDisplay(profile ProviderProfile) bool {
	changed := i.ProviderEmail != profile.Email ||
		i.ProviderNickname != profile.Nickname ||
		i.ProviderAvatarURL != profile.AvatarURL

	i.ProviderEmail = profile.Email
	i.ProviderNickname = profile.Nickname
	i.ProviderAvatarURL = profile.AvatarURL

	return changed
}
