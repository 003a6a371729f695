package repository

import (
	"errors"

	"gorm.io/gorm"

	"github.com/eventcastapp/eventcast/app/models"
)

// eventRepository implements the EventRepository interface
type eventRepository struct {
	db *gorm.DB
}

// NewEventRepository creates a new event repository instance
func NewEventRepository(db *gorm.DB) EventRepository {
	return &eventRepository{db: db}
}

func (r *eventRepository) GetByID(id uint) (*models.CanonicalEvent, error) {
	var event models.CanonicalEvent
	err := r.db.First(&event, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &event, nil
}

func (r *eventRepository) GetByOrganization(orgID uint, offset, limit int) ([]models.CanonicalEvent, error) {
	var events []models.CanonicalEvent
	err := r.db.Where("organization_id = ?", orgID).
		Order("start_time ASC").
		Offset(offset).Limit(limit).
		Find(&events).Error
	return events, err
}

func (r *eventRepository) Count() (int64, error) {
	var count int64
	err := r.db.Model(&models.CanonicalEvent{}).Count(&count).Error
	return count, err
}

// organizationRepository implements the OrganizationRepository interface
type organizationRepository struct {
	db *gorm.DB
}

// NewOrganizationRepository creates a new organization repository instance
func NewOrganizationRepository(db *gorm.DB) OrganizationRepository {
	return &organizationRepository{db: db}
}

func (r *organizationRepository) GetByID(id uint) (*models.Organization, error) {
	var org models.Organization
	err := r.db.First(&org, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &org, nil
}

func (r *organizationRepository) GetBySlug(slug string) (*models.Organization, error) {
	var org models.Organization
	err := r.db.Where("slug = ?", slug).First(&org).Error
	if err != nil {
		return nil, err
	}
	return &org, nil
}

func (r *organizationRepository) GetByAPIKeyHash(hash string) (*models.Organization, error) {
	var org models.Organization
	err := r.db.Where("api_key_hash = ?", hash).First(&org).Error
	if err != nil {
		return nil, err
	}
	return &org, nil
}
