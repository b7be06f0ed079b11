package models

import (
	"time"

	"github.com/google/uuid"
)

// DownloadToken is a one-time bearer capability for a single file.
// The token string itself is the primary key; possession of it is the
// only credential the redemption endpoint checks.
type DownloadToken struct {
	Token     string    `gorm:"primaryKey"`
	FileID    uuid.UUID `gorm:"type:uuid;not null;index"`
	UserID    uuid.UUID `gorm:"type:uuid;not null"`
	CreatedAt time.Time
	ExpiresAt time.Time `gorm:"not null;index"`
	Redeemed  bool      `gorm:"not null;default:false"`

	File File `gorm:"foreignKey:FileID;constraint:OnDelete:CASCADE"`
	User User `gorm:"foreignKey:UserID"`
}

func (t *DownloadToken) IsExpired(now time.Time) bool {
	return now.After(t.ExpiresAt)
}
