package model

import (
	"time"

	"github.com/google/uuid"
)

// RefreshTokenModel mirrors the 'refresh_tokens' table, holding the active token of each account.
// The unique account_id index enforces one active token per account.
type RefreshTokenModel struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey"`
	AccountID uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_refresh_tokens_account_id"`
	TokenHash string    `gorm:"type:varchar(128);not null;uniqueIndex:idx_refresh_tokens_token_hash"`
	ExpiresAt time.Time `gorm:"not null"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

// TableName explicitly sets the table name for GORM.
func (RefreshTokenModel) TableName() string {
	return "refresh_tokens"
}

// RefreshTokenHistoryModel mirrors the append-only 'refresh_token_histories' table.
type RefreshTokenHistoryModel struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey"`
	AccountID  uuid.UUID `gorm:"type:uuid;not null;index:idx_refresh_token_histories_account_id"`
	TokenHash  string    `gorm:"type:varchar(128);not null;uniqueIndex:idx_refresh_token_histories_token_hash"`
	ConsumedAt time.Time `gorm:"not null"`
	ExpiresAt  time.Time `gorm:"not null"`
	ReuseCount int       `gorm:"not null;default:0"`
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// TableName explicitly sets the table name for GORM.
func (RefreshTokenHistoryModel) TableName() string {
	return "refresh_token_histories"
}

// All lists every persistence model, in dependency order, for schema migration.
func All() []any {
	return []any{
		&AccountModel{},
		&OAuthIdentityModel{},
		&RefreshTokenModel{},
		&RefreshTokenHistoryModel{},
	}
}
