package postgres

import (
	"context"
	"strings"

	"github.com/pkg/errors"
	"gorm.io/gorm"
)

// Helper functions for PostgreSQL error checking.
// TranslateError turns most violations into gorm sentinels; the SQLSTATE codes
// cover connections where translation is off.
func isUniqueConstraintViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}

	errMsg := strings.ToLower(err.Error())

	return strings.Contains(errMsg, "sqlstate 23505") ||
		strings.Contains(errMsg, "duplicate key value")
}

func isForeignKeyConstraintViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrForeignKeyViolated) {
		return true
	}

	return strings.Contains(strings.ToLower(err.Error()), "sqlstate 23503")
}

func isNotNullConstraintViolation(err error) bool {
	if err == nil {
		return false
	}

	errMsg := strings.ToLower(err.Error())

	return strings.Contains(errMsg, "null value") ||
		strings.Contains(errMsg, "23502") // PostgreSQL not_null_violation error code
}

// violatesIndex reports whether a raw driver error names the given index.
// It only works when gorm did not translate the error.
func violatesIndex(err error, index string) bool {
	return err != nil && strings.Contains(err.Error(), index)
}

// withSavepoint runs fn in a nested transaction. Inside an outer transaction gorm
// issues SAVEPOINT/ROLLBACK TO, so a failed statement does not poison the outer one.
func withSavepoint(ctx context.Context, db *gorm.DB, fn func(tx *gorm.DB) error) error {
	return db.WithContext(ctx).Transaction(fn)
}
