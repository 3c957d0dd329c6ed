// Package repository defines the interfaces for the persistence layer.
// These interfaces act as a contract between the domain/application layers and the infrastructure layer.
package repository

import (
	"context"

	"jwtauth/internal/domain/entity"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// Domain-specific errors for account persistence.
var (
	// ErrAccountNotFound is returned when no account matches the lookup.
	ErrAccountNotFound = errors.New("account not found")
	// ErrUsernameConflict is returned when the username is already registered.
	ErrUsernameConflict = errors.New("username already exists")
	// ErrEmailConflict is returned when the email is already registered to another account.
	ErrEmailConflict = errors.New("email already exists")
)

// AccountRepository defines the standard operations for account persistence.
// Accounts are never deleted through this contract.
type AccountRepository interface {
	// FindByID retrieves a single account by its unique ID.
	FindByID(ctx context.Context, id uuid.UUID) (*entity.Account, error)

	// FindByUsername retrieves a single account by its username.
	FindByUsername(ctx context.Context, username string) (*entity.Account, error)

	// FindByEmail retrieves a single account by its email address.
	FindByEmail(ctx context.Context, email string) (*entity.Account, error)

	// ExistsByUsername reports whether an account already uses the username.
	ExistsByUsername(ctx context.Context, username string) (bool, error)

	// Create persists a new account and fills in its generated ID and timestamps.
	Create(ctx context.Context, account *entity.Account) error

	// Update modifies the mutable profile fields of an existing account.
	Update(ctx context.Context, account *entity.Account) error

	// LockForUpdate takes a row lock on the account for the rest of the transaction.
	// Token rotation uses it to serialize concurrent sign-ins and reissues of one account.
	LockForUpdate(ctx context.Context, id uuid.UUID) error
}
