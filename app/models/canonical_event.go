package models

import (
	"time"

	"github.com/go-playground/validator/v10"
	"gorm.io/gorm"
)

const (
	EVENT_STATUS_DRAFT     = "draft"
	EVENT_STATUS_SCHEDULED = "scheduled"
	EVENT_STATUS_PUBLISHED = "published"
	EVENT_STATUS_CANCELLED = "cancelled"

	EVENT_VISIBILITY_PUBLIC   = "public"
	EVENT_VISIBILITY_PRIVATE  = "private"
	EVENT_VISIBILITY_UNLISTED = "unlisted"
)

// CanonicalEvent is the single platform-agnostic representation of an event.
// The adapter layer reads it and never writes it.
type CanonicalEvent struct {
	ID             uint   `gorm:"primaryKey" json:"id"`
	OrganizationID uint   `gorm:"index;not null" json:"organization_id" validate:"required"`
	Title          string `gorm:"type:varchar(255)" json:"title" validate:"required,min=3,max=255"`
	Description    string `gorm:"type:text" json:"description" validate:"max=20000"`

	StartTime time.Time `gorm:"not null" json:"start_time" validate:"required"`
	EndTime   time.Time `gorm:"not null" json:"end_time" validate:"required,gtfield=StartTime"`
	// IANA timezone identifier, e.g. "Europe/Berlin". Never a UTC offset.
	Timezone string `gorm:"type:varchar(64);default:'UTC'" json:"timezone" validate:"required"`

	// IsVirtual selects which location fields are authoritative. Physical
	// fields may still carry informative values for a virtual event.
	IsVirtual    bool   `gorm:"default:false" json:"is_virtual"`
	VirtualURL   string `gorm:"type:varchar(512);default:null" json:"virtual_url" validate:"omitempty,url,max=512"`
	VenueName    string `gorm:"type:varchar(255);default:null" json:"venue_name" validate:"max=255"`
	VenueAddress string `gorm:"type:varchar(255);default:null" json:"venue_address" validate:"max=255"`
	VenueCity    string `gorm:"type:varchar(100);default:null" json:"venue_city" validate:"max=100"`
	VenueCountry string `gorm:"type:varchar(100);default:null" json:"venue_country" validate:"max=100"`

	CoverImageURL   string `gorm:"type:varchar(512);default:null" json:"cover_image_url" validate:"omitempty,url,max=512"`
	TicketURL       string `gorm:"type:varchar(512);default:null" json:"ticket_url" validate:"omitempty,url,max=512"`
	RequiresTickets bool   `gorm:"default:false" json:"requires_tickets"`
	Category        string `gorm:"type:varchar(100);default:null" json:"category" validate:"max=100"`

	OrganizerName  string `gorm:"type:varchar(150);default:null" json:"organizer_name" validate:"max=150"`
	OrganizerEmail string `gorm:"type:varchar(200);default:null" json:"organizer_email" validate:"omitempty,email,max=200"`

	Status     string `gorm:"type:varchar(50);default:'draft'" json:"status" validate:"oneof=draft scheduled published cancelled"`
	Visibility string `gorm:"type:varchar(50);default:'public'" json:"visibility" validate:"oneof=public private unlisted"`

	CreatedAt time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

func (e *CanonicalEvent) Validate() error {
	v := validator.New()

	return v.Struct(e)
}
