package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// File is the metadata row for one uploaded document. Size and type are
// recorded at upload time and never change afterwards.
type File struct {
	ID           uuid.UUID `gorm:"type:uuid;primaryKey"`
	OriginalName string    `gorm:"not null"`
	StorageKey   string    `gorm:"not null"`
	FileSize     int64     `gorm:"not null"`
	FileType     string    `gorm:"type:varchar(10);not null"`
	UploadedByID uuid.UUID `gorm:"type:uuid;not null"`
	CreatedAt    time.Time

	UploadedBy User `gorm:"foreignKey:UploadedByID"`
}

func (f *File) BeforeCreate(tx *gorm.DB) error {
	if f.ID == uuid.Nil {
		f.ID = uuid.New()
	}
	return nil
}
