// Package model holds the GORM persistence models. They mirror the database schema
// and never leave the persistence layer; repositories map them to domain entities.
package model

import (
	"time"

	"github.com/google/uuid"
)

// AccountModel mirrors the 'accounts' table.
type AccountModel struct {
	ID              uuid.UUID `gorm:"type:uuid;primaryKey"`
	Username        string    `gorm:"type:varchar(255);not null;uniqueIndex:idx_accounts_username"`
	PasswordHash    *string   `gorm:"type:varchar(255)"`
	Email           *string   `gorm:"type:varchar(255);uniqueIndex:idx_accounts_email"`
	Nickname        string    `gorm:"type:varchar(100);not null"`
	ProfileImageURL *string   `gorm:"type:text"`
	Role            string    `gorm:"type:varchar(20);not null;default:USER"`
	CreatedAt       time.Time
	UpdatedAt       time.Time

	OAuthIdentities []OAuthIdentityModel `gorm:"foreignKey:AccountID"`
}

// TableName explicitly sets the table name for GORM.
func (AccountModel) TableName() string {
	return "accounts"
}

// OAuthIdentityModel mirrors the 'oauth_identities' table.
// (provider, provider_subject_id) is unique.
type OAuthIdentityModel struct {
	ID                uuid.UUID `gorm:"type:uuid;primaryKey"`
	AccountID         uuid.UUID `gorm:"type:uuid;not null;index:idx_oauth_identities_account_id"`
	Provider          string    `gorm:"type:varchar(20);not null;uniqueIndex:idx_oauth_identities_provider_subject"`
	ProviderSubjectID string    `gorm:"type:varchar(255);not null;uniqueIndex:idx_oauth_identities_provider_subject"`
	ProviderEmail     string    `gorm:"type:varchar(255)"`
	ProviderNickname  string    `gorm:"type:varchar(100)"`
	ProviderAvatarURL string    `gorm:"type:text"`
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// TableName explicitly sets the table name for GORM.
func (OAuthIdentityModel) TableName() string {
	return "oauth_identities"
}
