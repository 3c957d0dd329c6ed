package postgres

import (
	"context"
	"time"

	"jwtauth/internal/domain/entity"
	domainerrors "jwtauth/internal/domain/errors"
	"jwtauth/internal/domain/repository"
	"jwtauth/internal/infra/persistence/model"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// refreshTokenRepository implements the repository.RefreshTokenRepository interface.
type refreshTokenRepository struct {
	db *gorm.DB
}

// NewRefreshTokenRepository is the constructor for refreshTokenRepository.
func NewRefreshTokenRepository(db *gorm.DB) repository.RefreshTokenRepository {
	return &refreshTokenRepository{db: db}
}

// FindActiveByAccount returns the active token of the account.
func (repo *refreshTokenRepository) FindActiveByAccount(ctx context.Context, accountID uuid.UUID) (*entity.ActiveRefreshToken, error) {
	var tokenM model.RefreshTokenModel

	err := repo.db.WithContext(ctx).
		Where("account_id = ?", accountID).
		Take(&tokenM).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, repository.ErrRefreshTokenNotFound
		}

		return nil, errors.Wrap(err, "failed to find active refresh token")
	}

	return toRefreshTokenDomain(&tokenM), nil
}

// ReplaceActive retires the current token into history and installs next, all in one savepoint.
func (repo *refreshTokenRepository) ReplaceActive(ctx context.Context, next *entity.ActiveRefreshToken, consumedAt time.Time) (*entity.ActiveRefreshToken, error) {
	if next.ID == uuid.Nil {
		id, err := uuid.NewV7()
		if err != nil {
			return nil, errors.Wrap(err, "failed to generate refresh token id")
		}
		next.ID = id
	}

	var retired *entity.ActiveRefreshToken

	err := withSavepoint(ctx, repo.db, func(tx *gorm.DB) error {
		var current model.RefreshTokenModel

		findErr := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("account_id = ?", next.AccountID).
			Take(&current).Error
		switch {
		case findErr == nil:
			retired = toRefreshTokenDomain(&current)
			if err := retire(tx, retired, consumedAt); err != nil {
				return err
			}
		case !errors.Is(findErr, gorm.ErrRecordNotFound):
			return errors.Wrap(findErr, "failed to load active refresh token")
		}

		nextM := fromRefreshTokenDomain(next)
		if err := tx.Create(nextM).Error; err != nil {
			if isUniqueConstraintViolation(err) {
				// Another rotation for this account won the race.
				return repository.ErrRefreshTokenNotFound
			}

			return domainerrors.NewDatabaseExecuteError(err, "failed to install refresh token")
		}
		next.CreatedAt = nextM.CreatedAt
		next.UpdatedAt = nextM.UpdatedAt

		return nil
	})
	if err != nil {
		return nil, err
	}

	return retired, nil
}

// RetireActive moves exactly the given token into history.
func (repo *refreshTokenRepository) RetireActive(ctx context.Context, token *entity.ActiveRefreshToken, consumedAt time.Time) error {
	return withSavepoint(ctx, repo.db, func(tx *gorm.DB) error {
		return retire(tx, token, consumedAt)
	})
}

// retire deletes the token only if it is still the active row (compare-and-delete)
// and then appends it to history.
func retire(tx *gorm.DB, token *entity.ActiveRefreshToken, consumedAt time.Time) error {
	result := tx.Where("id = ? AND token_hash = ?", token.ID, token.TokenHash).
		Delete(&model.RefreshTokenModel{})
	if result.Error != nil {
		return errors.Wrap(result.Error, "failed to delete active refresh token")
	}
	if result.RowsAffected == 0 {
		return repository.ErrRefreshTokenNotFound
	}

	entry := token.Retire(consumedAt)

	return appendHistory(tx, entry)
}

// DeleteAllActive removes every active token of the account.
func (repo *refreshTokenRepository) DeleteAllActive(ctx context.Context, accountID uuid.UUID) (int64, error) {
	result := repo.db.WithContext(ctx).
		Where("account_id = ?", accountID).
		Delete(&model.RefreshTokenModel{})
	if result.Error != nil {
		return 0, errors.Wrap(result.Error, "failed to revoke refresh tokens")
	}

	return result.RowsAffected, nil
}

// --- Mapper Functions ---

// toRefreshTokenDomain converts a GORM RefreshTokenModel to a domain ActiveRefreshToken entity.
func toRefreshTokenDomain(data *model.RefreshTokenModel) *entity.ActiveRefreshToken {
	if data == nil {
		return nil
	}

	return &entity.ActiveRefreshToken{
		Base: entity.Base{
			ID:        data.ID,
			CreatedAt: data.CreatedAt,
			UpdatedAt: data.UpdatedAt,
		},
		AccountID: data.AccountID,
		TokenHash: data.TokenHash,
		ExpiresAt: data.ExpiresAt,
	}
}

// fromRefreshTokenDomain converts a domain ActiveRefreshToken entity to a GORM RefreshTokenModel.
func fromRefreshTokenDomain(data *entity.ActiveRefreshToken) *model.RefreshTokenModel {
	if data == nil {
		return nil
	}

	return &model.RefreshTokenModel{
		ID:        data.ID,
		AccountID: data.AccountID,
		TokenHash: data.TokenHash,
		ExpiresAt: data.ExpiresAt,
		CreatedAt: data.CreatedAt,
		UpdatedAt: data.UpdatedAt,
	}
}
