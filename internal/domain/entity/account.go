package entity

import "strings"

// Account is the local identity every credential and session belongs to.
// An account is never physically deleted.
type Account struct {
	Base

	Username        string  // Unique login name. OAuth-created accounts use the provider email.
	PasswordHash    *string // bcrypt hash; nil for accounts that only sign in through OAuth.
	Email           *string // Unique when present.
	Nickname        string  // Display name.
	ProfileImageURL *string // Optional avatar location.
	Role            Role    // Authority level carried in access tokens.
}

// HasPassword reports whether the account can sign in with a local password.
func (a *Account) HasPassword() bool {
	return a.PasswordHash != nil && *a.PasswordHash != ""
}

// UpdateProfile replaces the mutable display fields of the account.
// An empty nickname keeps the current one.
func (a *Account) UpdateProfile(nickname string, profileImageURL *string) {
	if nickname = strings.TrimSpace(nickname); nickname != "" {
		a.Nickname = nickname
	}
	a.ProfileImageURL = profileImageURL
}

// NewOAuthAccount builds an account for a first-time OAuth sign-in.
// The account gets the USER role and no password.
func NewOAuthAccount(username string, info ProviderProfile) *Account {
	account := &Account{
		Username: username,
		Nickname: info.Nickname,
		Role:     RoleUser,
	}
	if info.Email != "" {
		email := info.Email
		account.Email = &email
	}
	if info.AvatarURL != "" {
		avatar := info.AvatarURL
		account.ProfileImageURL = &avatar
	}
	if account.Nickname == "" {
		account.Nickname = username
	}

	return account
}
