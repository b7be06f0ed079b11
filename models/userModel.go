package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Role decides what a user may do: operations users upload documents,
// client users browse them and request download links.
type Role string

const (
	RoleOps    Role = "ops"
	RoleClient Role = "client"
)

type User struct {
	ID           uuid.UUID `gorm:"type:uuid;primaryKey"`
	Username     string    `gorm:"uniqueIndex;not null"`
	Email        string    `gorm:"uniqueIndex;not null"`
	PasswordHash string    `gorm:"not null" json:"-"`
	Role         Role      `gorm:"type:varchar(10);not null"`
	CreatedAt    time.Time
	UpdatedAt    time.Time

	IsEmailVerified        bool    `gorm:"default:false"`
	EmailVerificationToken *string `gorm:"uniqueIndex" json:"-"`

	GoogleID *string `gorm:"uniqueIndex" json:"google_id,omitempty"`
	GitHubID *string `gorm:"uniqueIndex" json:"github_id,omitempty"`
	Provider *string `json:"provider,omitempty"`
}

func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	return nil
}
