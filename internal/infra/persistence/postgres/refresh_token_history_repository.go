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
	"gorm.io/gorm/clause"
)

// refreshTokenHistoryRepository implements the repository.RefreshTokenHistoryRepository interface.
type refreshTokenHistoryRepository struct {
	db *gorm.DB
}

// NewRefreshTokenHistoryRepository is the constructor for refreshTokenHistoryRepository.
func NewRefreshTokenHistoryRepository(db *gorm.DB) repository.RefreshTokenHistoryRepository {
	return &refreshTokenHistoryRepository{db: db}
}

// Append records a retired token.
func (repo *refreshTokenHistoryRepository) Append(ctx context.Context, entry *entity.RefreshTokenHistoryEntry) error {
	return withSavepoint(ctx, repo.db, func(tx *gorm.DB) error {
		return appendHistory(tx, entry)
	})
}

func appendHistory(tx *gorm.DB, entry *entity.RefreshTokenHistoryEntry) error {
	if entry.ID == uuid.Nil {
		id, err := uuid.NewV7()
		if err != nil {
			return errors.Wrap(err, "failed to generate history id")
		}
		entry.ID = id
	}

	entryM := fromHistoryDomain(entry)
	if err := tx.Create(entryM).Error; err != nil {
		if isUniqueConstraintViolation(err) {
			return repository.ErrHistoryEntryConflict
		}

		return domainerrors.NewDatabaseExecuteError(err, "failed to append refresh token history")
	}

	entry.CreatedAt = entryM.CreatedAt
	entry.UpdatedAt = entryM.UpdatedAt

	return nil
}

// FindByTokenHash looks a retired token up by its digest.
func (repo *refreshTokenHistoryRepository) FindByTokenHash(ctx context.Context, tokenHash string) (*entity.RefreshTokenHistoryEntry, error) {
	var entryM model.RefreshTokenHistoryModel

	err := repo.db.WithContext(ctx).
		Where("token_hash = ?", tokenHash).
		Take(&entryM).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, repository.ErrHistoryEntryNotFound
		}

		return nil, errors.Wrap(err, "failed to find refresh token history")
	}

	return toHistoryDomain(&entryM), nil
}

// IncrementReuseCount bumps the counter in a single UPDATE ... RETURNING statement.
func (repo *refreshTokenHistoryRepository) IncrementReuseCount(ctx context.Context, id uuid.UUID) (int, error) {
	var entryM model.RefreshTokenHistoryModel

	result := repo.db.WithContext(ctx).
		Model(&entryM).
		Clauses(clause.Returning{Columns: []clause.Column{{Name: "reuse_count"}}}).
		Where("id = ?", id).
		UpdateColumn("reuse_count", gorm.Expr("reuse_count + ?", 1))
	if result.Error != nil {
		return 0, errors.Wrap(result.Error, "failed to increment reuse count")
	}
	if result.RowsAffected == 0 {
		return 0, repository.ErrHistoryEntryNotFound
	}

	return entryM.ReuseCount, nil
}

// --- Mapper Functions ---

func toHistoryDomain(data *model.RefreshTokenHistoryModel) *entity.RefreshTokenHistoryEntry {
	if data == nil {
		return nil
	}

	return &entity.RefreshTokenHistoryEntry{
		Base: entity.Base{
			ID:        data.ID,
			CreatedAt: data.CreatedAt,
			UpdatedAt: data.UpdatedAt,
		},
		AccountID:  data.AccountID,
		TokenHash:  data.TokenHash,
		ConsumedAt: data.ConsumedAt,
		ExpiresAt:  data.ExpiresAt,
		ReuseCount: data.ReuseCount,
	}
}

func fromHistoryDomain(data *entity.RefreshTokenHistoryEntry) *model.RefreshTokenHistoryModel {
	if data == nil {
		return nil
	}

	return &model.RefreshTokenHistoryModel{
		ID:         data.ID,
		AccountID:  data.AccountID,
		TokenHash:  data.TokenHash,
		ConsumedAt: data.ConsumedAt,
		ExpiresAt:  data.ExpiresAt,
		ReuseCount: data.ReuseCount,
		CreatedAt:  data.CreatedAt,
		UpdatedAt:  data.UpdatedAt,
	}
}
