package models

import (
	"crypto/sha256"
	"encoding/hex"
	"time"

	"gorm.io/gorm"
)

// Organization owns canonical events and platform connections
type Organization struct {
	ID      uint   `gorm:"primaryKey" json:"id"`
	Name    string `gorm:"type:varchar(150)" json:"name" validate:"required,min=2,max=150"`
	Slug    string `gorm:"uniqueIndex;type:varchar(150)" json:"slug" validate:"required,min=2,max=150"`
	Tier    string `gorm:"type:varchar(50);default:'free'" json:"tier" validate:"oneof=free basic pro business enterprise"`
	Email   string `gorm:"type:varchar(200)" json:"email" validate:"omitempty,email,max=200"`
	Website string `gorm:"type:varchar(255);default:null" json:"website" validate:"max=255"`

	// Only the hash of the API key is stored; the plaintext key is shown
	// once at creation.
	APIKeyHash string `gorm:"type:varchar(64);index;default:null" json:"-"`

	CreatedAt time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

// HashAPIKey returns the hex SHA-256 digest an API key is stored under.
func HashAPIKey(key string) string {
	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:])
}
