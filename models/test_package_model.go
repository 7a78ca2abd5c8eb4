package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// TestPackage is a purchasable bundle of attempts on one topic.
type TestPackage struct {
	ID            uuid.UUID `gorm:"type:uuid;primary_key" json:"id"`
	Name          string    `gorm:"size:255;not null" json:"name"`
	Description   *string   `gorm:"type:text" json:"description"`
	Price         float64   `gorm:"type:numeric(10,2);not null" json:"price"`
	QuestionCount int       `gorm:"not null" json:"question_count"`
	DurationDays  int       `gorm:"not null" json:"duration_days"`
	MaxAttempts   int       `gorm:"not null" json:"max_attempts"`
	Topic         string    `gorm:"size:100;not null;index" json:"topic"`
	IsActive      bool      `gorm:"not null;default:true" json:"is_active"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (p *TestPackage) BeforeCreate(tx *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}
