package repository

import (
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/eventcastapp/eventcast/app/models"
)

// credentialRepository implements the CredentialRepository interface
type credentialRepository struct {
	db *gorm.DB
}

// NewCredentialRepository creates a new credential repository instance
func NewCredentialRepository(db *gorm.DB) CredentialRepository {
	return &credentialRepository{db: db}
}

func (r *credentialRepository) GetByOrgAndPlatform(orgID uint, platform string) (*models.PlatformCredential, error) {
	var cred models.PlatformCredential
	err := r.db.Where("organization_id = ? AND platform = ?", orgID, platform).First(&cred).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &cred, nil
}

// Upsert creates or replaces the credential row for (organization, platform).
// The composite unique index guarantees at most one row survives.
func (r *credentialRepository) Upsert(cred *models.PlatformCredential) error {
	if err := r.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "organization_id"},
			{Name: "platform"},
		},
		DoUpdates: clause.AssignmentColumns([]string{
			"access_token_enc",
			"refresh_token_enc",
			"expires_at",
			"account_id",
			"account_name",
			"metadata_json",
			"is_valid",
			"last_validated_at",
			"updated_at",
		}),
	}).Create(cred).Error; err != nil {
		return err
	}

	// Ensure ID is populated after upsert.
	return r.db.Where("organization_id = ? AND platform = ?", cred.OrganizationID, cred.Platform).
		First(cred).Error
}

func (r *credentialRepository) Invalidate(orgID uint, platform string) error {
	return r.db.Model(&models.PlatformCredential{}).
		Where("organization_id = ? AND platform = ?", orgID, platform).
		Updates(map[string]interface{}{
			"is_valid":   false,
			"updated_at": time.Now(),
		}).Error
}

func (r *credentialRepository) Delete(orgID uint, platform string) error {
	return r.db.Where("organization_id = ? AND platform = ?", orgID, platform).
		Delete(&models.PlatformCredential{}).Error
}

func (r *credentialRepository) ListByOrganization(orgID uint) ([]models.PlatformCredential, error) {
	var creds []models.PlatformCredential
	err := r.db.Where("organization_id = ?", orgID).Find(&creds).Error
	return creds, err
}
