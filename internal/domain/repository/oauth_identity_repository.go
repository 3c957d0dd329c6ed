package repository

import (
	"context"

	"jwtauth/internal/domain/entity"

	"github.com/pkg/errors"
)

// Domain-specific errors for OAuth identity persistence.
var (
	// ErrOAuthIdentityNotFound is returned when no identity matches (provider, subject).
	ErrOAuthIdentityNotFound = errors.New("oauth identity not found")
	// ErrOAuthIdentityConflict is returned when (provider, subject) is already linked.
	ErrOAuthIdentityConflict = errors.New("oauth identity already linked")
)

// OAuthIdentityRepository persists the links between accounts and provider subjects.
type OAuthIdentityRepository interface {
	// FindByProviderAndSubject retrieves the identity for a provider subject.
	FindByProviderAndSubject(ctx context.Context, provider entity.ProviderType, subjectID string) (*entity.OAuthIdentity, error)

	// Create links a new provider subject to an account.
	Create(ctx context.Context, identity *entity.OAuthIdentity) error

	// UpdateDisplay stores refreshed provider display fields. The owner and subject are not touched.
	UpdateDisplay(ctx context.Context, identity *entity.OAuthIdentity) error
}
