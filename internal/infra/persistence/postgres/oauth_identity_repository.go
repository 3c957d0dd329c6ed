package postgres

import (
	"context"

	"jwtauth/internal/domain/entity"
	domainerrors "jwtauth/internal/domain/errors"
	"jwtauth/internal/domain/repository"
	"jwtauth/internal/infra/persistence/model"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"gorm.io/gorm"
)

// oauthIdentityRepository implements the repository.OAuthIdentityRepository interface.
type oauthIdentityRepository struct {
	db *gorm.DB
}

// NewOAuthIdentityRepository is the constructor for oauthIdentityRepository.
func NewOAuthIdentityRepository(db *gorm.DB) repository.OAuthIdentityRepository {
	return &oauthIdentityRepository{db: db}
}

// FindByProviderAndSubject retrieves the identity for a provider subject.
func (repo *oauthIdentityRepository) FindByProviderAndSubject(ctx context.Context, provider entity.ProviderType, subjectID string) (*entity.OAuthIdentity, error) {
	var identityM model.OAuthIdentityModel

	err := repo.db.WithContext(ctx).
		Where("provider = ? AND provider_subject_id = ?", provider.String(), subjectID).
		Take(&identityM).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, repository.ErrOAuthIdentityNotFound
		}

		return nil, errors.Wrap(err, "failed to find oauth identity")
	}

	return toOAuthIdentityDomain(&identityM), nil
}

// Create links a new provider subject to an account.
func (repo *oauthIdentityRepository) Create(ctx context.Context, identity *entity.OAuthIdentity) error {
	if identity.ID == uuid.Nil {
		id, err := uuid.NewV7()
		if err != nil {
			return errors.Wrap(err, "failed to generate oauth identity id")
		}
		identity.ID = id
	}

	identityM := fromOAuthIdentityDomain(identity)

	err := withSavepoint(ctx, repo.db, func(tx *gorm.DB) error {
		return tx.Create(identityM).Error
	})
	if err != nil {
		if isUniqueConstraintViolation(err) {
			return repository.ErrOAuthIdentityConflict
		}
		if isForeignKeyConstraintViolation(err) {
			return repository.ErrAccountNotFound
		}

		return domainerrors.NewDatabaseExecuteError(err, "failed to create oauth identity")
	}

	identity.CreatedAt = identityM.CreatedAt
	identity.UpdatedAt = identityM.UpdatedAt

	return nil
}

// UpdateDisplay stores refreshed provider display fields only.
func (repo *oauthIdentityRepository) UpdateDisplay(ctx context.Context, identity *entity.OAuthIdentity) error {
	result := repo.db.WithContext(ctx).
		Model(&model.OAuthIdentityModel{}).
		Where("id = ?", identity.ID).
		Updates(map[string]any{
			"provider_email":      identity.ProviderEmail,
			"provider_nickname":   identity.ProviderNickname,
			"provider_avatar_url": identity.ProviderAvatarURL,
		})
	if result.Error != nil {
		return domainerrors.NewDatabaseExecuteError(result.Error, "failed to update oauth identity")
	}
	if result.RowsAffected == 0 {
		return repository.ErrOAuthIdentityNotFound
	}

	return nil
}

// --- Mapper Functions ---

func toOAuthIdentityDomain(data *model.OAuthIdentityModel) *entity.OAuthIdentity {
	if data == nil {
		return nil
	}

	return &entity.OAuthIdentity{
		Base: entity.Base{
			ID:        data.ID,
			CreatedAt: data.CreatedAt,
			UpdatedAt: data.UpdatedAt,
		},
		AccountID:         data.AccountID,
		Provider:          entity.ProviderType(data.Provider),
		ProviderSubjectID: data.ProviderSubjectID,
		ProviderEmail:     data.ProviderEmail,
		ProviderNickname:  data.ProviderNickname,
		ProviderAvatarURL: data.ProviderAvatarURL,
	}
}

func fromOAuthIdentityDomain(data *entity.OAuthIdentity) *model.OAuthIdentityModel {
	if data == nil {
		return nil
	}

	return &model.OAuthIdentityModel{
		ID:                data.ID,
		AccountID:         data.AccountID,
		Provider:          data.Provider.String(),
		ProviderSubjectID: data.ProviderSubjectID,
		ProviderEmail:     data.ProviderEmail,
		ProviderNickname:  data.ProviderNickname,
		ProviderAvatarURL: data.ProviderAvatarURL,
		CreatedAt:         data.CreatedAt,
		UpdatedAt:         data.UpdatedAt,
	}
}
