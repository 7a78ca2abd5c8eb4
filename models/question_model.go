package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Question struct {
	ID            uuid.UUID                   `gorm:"type:uuid;primary_key" json:"id"`
	QuestionText  string                      `gorm:"type:text;not null" json:"question_text"`
	Options       datatypes.JSONSlice[string] `json:"options"`
	CorrectAnswer string                      `gorm:"type:text;not null" json:"correct_answer"`
	Explanation   *string                     `gorm:"type:text" json:"explanation"`
	Topic         string                      `gorm:"size:100;not null;index" json:"topic"`
	ImagePath     *string                     `gorm:"size:255" json:"image_path"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (q *Question) BeforeCreate(tx *gorm.DB) error {
	if q.ID == uuid.Nil {
		q.ID = uuid.New()
	}
	return nil
}
