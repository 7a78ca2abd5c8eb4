package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type UserTestAccess struct {
	ID                uuid.UUID `gorm:"type:uuid;primary_key" json:"id"`
	UserID            uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_access_user_package" json:"user_id"`
	PackageID         uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_access_user_package" json:"package_id"`
	RemainingAttempts int       `gorm:"not null" json:"remaining_attempts"`
	ExpiresAt         time.Time `gorm:"not null" json:"expires_at"`
	IsActive          bool      `gorm:"not null;default:true" json:"is_active"`

	Package TestPackage `gorm:"foreignKey:PackageID" json:"package"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (a *UserTestAccess) BeforeCreate(tx *gorm.DB) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	return nil
}

func (a UserTestAccess) HasAccess(now time.Time) bool {
	return a.IsActive && a.RemainingAttempts > 0 && now.Before(a.ExpiresAt)
}
