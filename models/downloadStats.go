// models/download_event.go
package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// DownloadEvent records one successful token redemption.
type DownloadEvent struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey"`
	FileID    uuid.UUID `gorm:"type:uuid;not null"`
	Token     string
	IPAddress string
	UserAgent string
	CreatedAt time.Time

	File File `gorm:"foreignKey:FileID;constraint:OnDelete:CASCADE"`
}

func (e *DownloadEvent) BeforeCreate(tx *gorm.DB) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	return nil
}
