package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type TestSession struct {
	ID              uuid.UUID                      `gorm:"type:uuid;primary_key" json:"id"`
	UserID          uuid.UUID                      `gorm:"type:uuid;not null;index" json:"user_id"`
	PackageID       *uuid.UUID                     `gorm:"type:uuid" json:"package_id"`
	Topic           string                         `gorm:"size:100;not null" json:"topic"`
	TotalQuestions  int                            `gorm:"not null" json:"total_questions"`
	DurationMinutes int                            `gorm:"not null" json:"duration_minutes"`
	StartedAt       time.Time                      `gorm:"not null;index" json:"started_at"`
	ExpiresAt       time.Time                      `gorm:"not null;index" json:"expires_at"`
	FinishedAt      *time.Time                     `json:"finished_at"`
	Score           int                            `gorm:"not null;default:0" json:"score"`
	CorrectCount    int                            `gorm:"not null;default:0" json:"correct_count"`
	WrongCount      int                            `gorm:"not null;default:0" json:"wrong_count"`
	Status          SessionStatus                  `gorm:"size:20;not null;index" json:"status"`
	Version         int                            `gorm:"not null;default:0" json:"-"`
	QuestionIDs     datatypes.JSONSlice[uuid.UUID] `json:"-"`

	Answers []UserAnswer `gorm:"foreignKey:TestSessionID" json:"-"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (s *TestSession) BeforeCreate(tx *gorm.DB) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	return nil
}

func (s TestSession) IsExpired(now time.Time) bool {
	return s.Status == SessionInProgress && now.After(s.ExpiresAt)
}

func (s TestSession) HasQuestion(id uuid.UUID) bool {
	for _, qid := range s.QuestionIDs {
		if qid == id {
			return true
		}
	}
	return false
}

// Complete moves the session to COMPLETED with the given tallies.
func (s *TestSession) Complete(correct, wrong int, at time.Time) error {
	if !s.Status.CanTransitionTo(SessionCompleted) {
		return ErrInvalidTransition
	}
	s.Status = SessionCompleted
	s.Score = correct
	s.CorrectCount = correct
	s.WrongCount = wrong
	s.FinishedAt = &at
	return nil
}

func (s *TestSession) Abandon(at time.Time) error {
	if !s.Status.CanTransitionTo(SessionAbandoned) {
		return ErrInvalidTransition
	}
	s.Status = SessionAbandoned
	s.FinishedAt = &at
	return nil
}
