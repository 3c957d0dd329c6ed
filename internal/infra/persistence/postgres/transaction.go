// Package postgres contains the concrete implementation of the persistence layer using GORM and PostgreSQL.
package postgres

import (
	"context"

	"jwtauth/internal/domain/lifecycle"
	"jwtauth/internal/domain/repository"

	"github.com/pkg/errors"
	"gorm.io/gorm"
)

// gormTransactionManager implements the domain's TransactionManager interface using GORM.
type gormTransactionManager struct {
	db *gorm.DB
}

// gormRepositoryFactory implements the domain's RepositoryFactory interface.
// It holds a specific GORM transaction object and uses it to create
// repository instances that are bound to that single transaction.
type gormRepositoryFactory struct {
	tx *gorm.DB
}

// AccountRepo creates an account repository bound to the transaction.
func (f *gormRepositoryFactory) AccountRepo() repository.AccountRepository {
	return NewAccountRepository(f.tx)
}

// OAuthIdentityRepo creates an OAuth identity repository bound to the transaction.
func (f *gormRepositoryFactory) OAuthIdentityRepo() repository.OAuthIdentityRepository {
	return NewOAuthIdentityRepository(f.tx)
}

// RefreshTokenRepo creates a refresh token repository bound to the transaction.
func (f *gormRepositoryFactory) RefreshTokenRepo() repository.RefreshTokenRepository {
	return NewRefreshTokenRepository(f.tx)
}

// RefreshTokenHistoryRepo creates a refresh token history repository bound to the transaction.
func (f *gormRepositoryFactory) RefreshTokenHistoryRepo() repository.RefreshTokenHistoryRepository {
	return NewRefreshTokenHistoryRepository(f.tx)
}

// NewTransactionManager is the constructor for gormTransactionManager.
// This function will be used as an Fx provider.
func NewTransactionManager(db *gorm.DB) repository.TransactionManager {
	return &gormTransactionManager{db: db}
}

// Execute runs the given function within a single database transaction.
func (tm *gormTransactionManager) Execute(ctx context.Context, fn func(repoFactory repository.RepositoryFactory) error) error {
	return tm.run(ctx, fn)
}

// ExecuteDetached runs fn in a transaction on its own connection from the pool.
// It never joins a transaction the caller may hold, and the caller's cancellation
// does not reach it; lifecycle.DefaultTimeout bounds it instead.
func (tm *gormTransactionManager) ExecuteDetached(ctx context.Context, fn func(repoFactory repository.RepositoryFactory) error) error {
	detachedCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), lifecycle.DefaultTimeout)
	defer cancel()

	return tm.run(detachedCtx, fn)
}

func (tm *gormTransactionManager) run(ctx context.Context, fn func(repoFactory repository.RepositoryFactory) error) error {
	tx := tm.db.WithContext(ctx).Begin()
	if tx.Error != nil {
		return errors.Wrap(tx.Error, "failed to begin transaction")
	}

	// Roll back on panic and re-panic so Fx or the recover middleware can handle it.
	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
			panic(r)
		}
	}()

	factory := &gormRepositoryFactory{tx: tx}

	if err := fn(factory); err != nil {
		if rbErr := tx.Rollback().Error; rbErr != nil {
			// Keep the business error as the cause; the rollback failure is context.
			return errors.Wrapf(err, "transaction rollback failed: %v", rbErr)
		}

		return err
	}

	if err := tx.Commit().Error; err != nil {
		return errors.Wrap(err, "failed to commit transaction")
	}

	return nil
}
