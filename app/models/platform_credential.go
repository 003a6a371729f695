package models

import "time"

// PlatformCredential stores an organization's connection to one external
// platform. Token columns hold ciphertext produced by the token cipher;
// decryption happens in the credential store, never here.
type PlatformCredential struct {
	ID             uint   `gorm:"primaryKey" json:"id"`
	OrganizationID uint   `gorm:"not null;index:ux_credentials_org_platform,unique,priority:1" json:"organization_id"`
	Platform       string `gorm:"type:varchar(50);not null;index:ux_credentials_org_platform,unique,priority:2" json:"platform"`

	AccessTokenEnc  string     `gorm:"type:text" json:"-"`
	RefreshTokenEnc string     `gorm:"type:text" json:"-"`
	ExpiresAt       *time.Time `gorm:"type:timestamp;default:null" json:"expires_at,omitempty"`

	// Platform-side identifiers: page id, organization URN, zoom user id, ...
	AccountID   string `gorm:"type:varchar(191);default:''" json:"account_id"`
	AccountName string `gorm:"type:varchar(255);default:''" json:"account_name"`
	// Free-form platform metadata as JSON (selected page name, scopes, ...)
	MetadataJSON string `gorm:"type:text" json:"-"`

	IsValid         bool       `gorm:"default:true" json:"is_valid"`
	LastValidatedAt *time.Time `gorm:"type:timestamp;default:null" json:"last_validated_at,omitempty"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}
