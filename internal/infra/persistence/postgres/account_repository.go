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

const (
	accountUsernameIndex = "idx_accounts_username"
	accountEmailIndex    = "idx_accounts_email"
)

// accountRepository implements the repository.AccountRepository interface using GORM.
type accountRepository struct {
	db *gorm.DB
}

// NewAccountRepository is the constructor for accountRepository.
// It returns the repository as a repository.AccountRepository interface, adhering to dependency inversion.
func NewAccountRepository(db *gorm.DB) repository.AccountRepository {
	return &accountRepository{db: db}
}

// FindByID retrieves a single account by its unique ID.
func (repo *accountRepository) FindByID(ctx context.Context, id uuid.UUID) (*entity.Account, error) {
	return repo.findOne(ctx, "find account by id", "id = ?", id)
}

// FindByUsername retrieves a single account by its username.
func (repo *accountRepository) FindByUsername(ctx context.Context, username string) (*entity.Account, error) {
	return repo.findOne(ctx, "find account by username", "username = ?", username)
}

// FindByEmail retrieves a single account by its email address.
func (repo *accountRepository) FindByEmail(ctx context.Context, email string) (*entity.Account, error) {
	return repo.findOne(ctx, "find account by email", "email = ?", email)
}

func (repo *accountRepository) findOne(ctx context.Context, op string, query string, args ...any) (*entity.Account, error) {
	var accountM model.AccountModel

	err := repo.db.WithContext(ctx).Where(query, args...).Take(&accountM).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, repository.ErrAccountNotFound
		}

		return nil, errors.Wrapf(err, "failed to %s", op)
	}

	return toAccountDomain(&accountM), nil
}

// ExistsByUsername reports whether an account already uses the username.
func (repo *accountRepository) ExistsByUsername(ctx context.Context, username string) (bool, error) {
	var count int64

	if err := repo.db.WithContext(ctx).
		Model(&model.AccountModel{}).
		Where("username = ?", username).
		Count(&count).Error; err != nil {
		return false, errors.Wrap(err, "failed to check username")
	}

	return count > 0, nil
}

// Create persists a new account. Unique violations are reported as
// repository.ErrUsernameConflict or repository.ErrEmailConflict.
func (repo *accountRepository) Create(ctx context.Context, account *entity.Account) error {
	if account.ID == uuid.Nil {
		id, err := uuid.NewV7()
		if err != nil {
			return errors.Wrap(err, "failed to generate account id")
		}
		account.ID = id
	}

	accountM := fromAccountDomain(account)

	err := withSavepoint(ctx, repo.db, func(tx *gorm.DB) error {
		return tx.Omit(clause.Associations).Create(accountM).Error
	})
	if err != nil {
		if isUniqueConstraintViolation(err) {
			return repo.classifyUniqueViolation(ctx, err, account.Username)
		}
		if isNotNullConstraintViolation(err) {
			return domainerrors.ErrValidationFailed.WrapMessage("missing required account information")
		}

		return domainerrors.NewDatabaseExecuteError(err, "failed to create account")
	}

	account.CreatedAt = accountM.CreatedAt
	account.UpdatedAt = accountM.UpdatedAt

	return nil
}

// classifyUniqueViolation tells username and email conflicts apart. The savepoint
// was rolled back, so the follow-up query is safe inside the caller's transaction.
func (repo *accountRepository) classifyUniqueViolation(ctx context.Context, err error, username string) error {
	switch {
	case violatesIndex(err, accountUsernameIndex):
		return repository.ErrUsernameConflict
	case violatesIndex(err, accountEmailIndex):
		return repository.ErrEmailConflict
	}

	exists, lookupErr := repo.ExistsByUsername(ctx, username)
	if lookupErr != nil {
		return errors.Wrap(lookupErr, "failed to classify unique violation")
	}
	if exists {
		return repository.ErrUsernameConflict
	}

	return repository.ErrEmailConflict
}

// Update modifies the mutable profile fields of an existing account.
func (repo *accountRepository) Update(ctx context.Context, account *entity.Account) error {
	result := repo.db.WithContext(ctx).
		Model(&model.AccountModel{}).
		Where("id = ?", account.ID).
		Updates(map[string]any{
			"nickname":          account.Nickname,
			"profile_image_url": account.ProfileImageURL,
		})
	if result.Error != nil {
		return domainerrors.NewDatabaseExecuteError(result.Error, "failed to update account")
	}
	if result.RowsAffected == 0 {
		return repository.ErrAccountNotFound
	}

	return nil
}

// LockForUpdate takes a row lock on the account until the transaction ends.
func (repo *accountRepository) LockForUpdate(ctx context.Context, id uuid.UUID) error {
	var accountM model.AccountModel

	err := repo.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Select("id").
		Where("id = ?", id).
		Take(&accountM).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return repository.ErrAccountNotFound
		}

		return errors.Wrap(err, "failed to lock account")
	}

	return nil
}

// --- Mapper Functions ---

// toAccountDomain converts a GORM AccountModel to a domain Account entity.
func toAccountDomain(data *model.AccountModel) *entity.Account {
	if data == nil {
		return nil
	}

	return &entity.Account{
		Base: entity.Base{
			ID:        data.ID,
			CreatedAt: data.CreatedAt,
			UpdatedAt: data.UpdatedAt,
		},
		Username:        data.Username,
		PasswordHash:    data.PasswordHash,
		Email:           data.Email,
		Nickname:        data.Nickname,
		ProfileImageURL: data.ProfileImageURL,
		Role:            entity.Role(data.Role),
	}
}

// fromAccountDomain converts a domain Account entity to a GORM AccountModel.
func fromAccountDomain(data *entity.Account) *model.AccountModel {
	if data == nil {
		return nil
	}

	return &model.AccountModel{
		ID:              data.ID,
		Username:        data.Username,
		PasswordHash:    data.PasswordHash,
		Email:           data.Email,
		Nickname:        data.Nickname,
		ProfileImageURL: data.ProfileImageURL,
		Role:            data.Role.String(),
		CreatedAt:       data.CreatedAt,
		UpdatedAt:       data.UpdatedAt,
	}
}
