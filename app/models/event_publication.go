package models

import "time"

const (
	PUBLICATION_STATUS_PUBLISHED = "published"
	PUBLICATION_STATUS_FAILED    = "failed"
	PUBLICATION_STATUS_DELETED   = "deleted"
)

// EventPublication records the outcome of pushing one canonical event to one
// platform. Retry bookkeeping fields exist for future use; no retry loop
// consumes them yet.
type EventPublication struct {
	ID             uint   `gorm:"primaryKey" json:"id"`
	PublicationID  string `gorm:"type:varchar(36);uniqueIndex" json:"publication_id"`
	EventID        uint   `gorm:"not null;index:ix_publications_event_platform,priority:1" json:"event_id"`
	OrganizationID uint   `gorm:"not null;index" json:"organization_id"`
	Platform       string `gorm:"type:varchar(50);not null;index:ix_publications_event_platform,priority:2" json:"platform"`

	// Text, not varchar: the calendar export platform stores its whole
	// rendered artifact here.
	ExternalID  string `gorm:"type:text" json:"external_id"`
	ExternalURL string `gorm:"type:varchar(512);default:''" json:"external_url"`

	Status       string `gorm:"type:varchar(50);not null" json:"status"`
	ErrorCode    string `gorm:"type:varchar(100);default:''" json:"error_code,omitempty"`
	ErrorMessage string `gorm:"type:text" json:"error_message,omitempty"`
	Retryable    bool   `gorm:"default:false" json:"retryable"`
	AttemptCount int    `gorm:"default:1" json:"attempt_count"`

	PublishedAt *time.Time `gorm:"type:timestamp;default:null" json:"published_at,omitempty"`
	CreatedAt   time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}
