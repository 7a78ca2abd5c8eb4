package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type UserAnswer struct {
	ID             uuid.UUID `gorm:"type:uuid;primary_key" json:"id"`
	UserID         uuid.UUID `gorm:"type:uuid;not null;index" json:"user_id"`
	TestSessionID  uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_answer_session_question" json:"test_session_id"`
	QuestionID     uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_answer_session_question" json:"question_id"`
	SelectedAnswer string    `gorm:"type:text;not null" json:"selected_answer"`
	IsCorrect      bool      `gorm:"not null" json:"is_correct"`
	Position       int       `gorm:"not null" json:"position"`
	AnsweredAt     time.Time `gorm:"not null" json:"answered_at"`

	Question Question `gorm:"foreignKey:QuestionID" json:"-"`
}

func (a *UserAnswer) BeforeCreate(tx *gorm.DB) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	return nil
}
