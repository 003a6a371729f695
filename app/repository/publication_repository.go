package repository

import (
	"errors"

	"gorm.io/gorm"

	"github.com/eventcastapp/eventcast/app/models"
)

// publicationRepository implements the PublicationRepository interface
type publicationRepository struct {
	db *gorm.DB
}

// NewPublicationRepository creates a new publication repository instance
func NewPublicationRepository(db *gorm.DB) PublicationRepository {
	return &publicationRepository{db: db}
}

func (r *publicationRepository) Create(pub *models.EventPublication) error {
	return r.db.Create(pub).Error
}

func (r *publicationRepository) Update(pub *models.EventPublication) error {
	return r.db.Save(pub).Error
}

func (r *publicationRepository) GetByPublicationID(publicationID string) (*models.EventPublication, error) {
	var pub models.EventPublication
	err := r.db.Where("publication_id = ?", publicationID).First(&pub).Error
	if err != nil {
		return nil, err
	}
	return &pub, nil
}

func (r *publicationRepository) GetLatestByEventAndPlatform(eventID uint, platform string) (*models.EventPublication, error) {
	var pub models.EventPublication
	err := r.db.Where("event_id = ? AND platform = ?", eventID, platform).
		Order("created_at DESC").
		First(&pub).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &pub, nil
}

func (r *publicationRepository) ListByEvent(eventID uint) ([]models.EventPublication, error) {
	var pubs []models.EventPublication
	err := r.db.Where("event_id = ?", eventID).Order("created_at DESC").Find(&pubs).Error
	return pubs, err
}

// ListRetryable returns failed publications flagged retryable. A future retry
// worker will consume this; nothing schedules retries today.
func (r *publicationRepository) ListRetryable(limit int) ([]models.EventPublication, error) {
	var pubs []models.EventPublication
	err := r.db.Where("status = ? AND retryable = ?", models.PUBLICATION_STATUS_FAILED, true).
		Order("updated_at ASC").
		Limit(limit).
		Find(&pubs).Error
	return pubs, err
}
