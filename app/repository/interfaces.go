package repository

import (
	"github.com/eventcastapp/eventcast/app/models"
	"gorm.io/gorm"
)

// EventRepository defines read access to canonical events. The adapter layer
// never writes events; CRUD lives outside this service.
type EventRepository interface {
	GetByID(id uint) (*models.CanonicalEvent, error)
	GetByOrganization(orgID uint, offset, limit int) ([]models.CanonicalEvent, error)
	Count() (int64, error)
}

// CredentialRepository defines database operations for platform credentials
type CredentialRepository interface {
	GetByOrgAndPlatform(orgID uint, platform string) (*models.PlatformCredential, error)
	Upsert(cred *models.PlatformCredential) error
	Invalidate(orgID uint, platform string) error
	Delete(orgID uint, platform string) error
	ListByOrganization(orgID uint) ([]models.PlatformCredential, error)
}

// OrganizationRepository defines read access to organizations
type OrganizationRepository interface {
	GetByID(id uint) (*models.Organization, error)
	GetBySlug(slug string) (*models.Organization, error)
	GetByAPIKeyHash(hash string) (*models.Organization, error)
}

// PublicationRepository defines database operations for publication records
type PublicationRepository interface {
	Create(pub *models.EventPublication) error
	Update(pub *models.EventPublication) error
	GetByPublicationID(publicationID string) (*models.EventPublication, error)
	GetLatestByEventAndPlatform(eventID uint, platform string) (*models.EventPublication, error)
	ListByEvent(eventID uint) ([]models.EventPublication, error)
	ListRetryable(limit int) ([]models.EventPublication, error)
}

// Repositories struct holds all repository instances
type Repositories struct {
	Event        EventRepository
	Credential   CredentialRepository
	Organization OrganizationRepository
	Publication  PublicationRepository
}

// NewRepositories creates a new instance of all repositories
func NewRepositories(db *gorm.DB) *Repositories {
	return &Repositories{
		Event:        NewEventRepository(db),
		Credential:   NewCredentialRepository(db),
		Organization: NewOrganizationRepository(db),
		Publication:  NewPublicationRepository(db),
	}
}
