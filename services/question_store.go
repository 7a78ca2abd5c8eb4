package services

import (
	"context"
	"fmt"

	"github.com/anjiri1684/drivesmart/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type QuestionStore struct {
	db *gorm.DB
}

func NewQuestionStore(db *gorm.DB) *QuestionStore {
	return &QuestionStore{db: db}
}

func (s *QuestionStore) withTx(tx *gorm.DB) *QuestionStore {
	return &QuestionStore{db: tx}
}

// RandomByTopic draws up to n distinct questions of a topic uniformly at random.
func (s *QuestionStore) RandomByTopic(ctx context.Context, topic string, n int) ([]models.Question, error) {
	var questions []models.Question
	err := s.db.WithContext(ctx).
		Where("topic = ?", topic).
		Order("RANDOM()").
		Limit(n).
		Find(&questions).Error
	if err != nil {
		return nil, fmt.Errorf("draw questions for topic %q: %w", topic, err)
	}
	return questions, nil
}

func (s *QuestionStore) FindByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]models.Question, error) {
	out := make(map[uuid.UUID]models.Question, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	var questions []models.Question
	if err := s.db.WithContext(ctx).Where("id IN ?", ids).Find(&questions).Error; err != nil {
		return nil, fmt.Errorf("load questions: %w", err)
	}
	for _, q := range questions {
		out[q.ID] = q
	}
	return out, nil
}

func (s *QuestionStore) Topics(ctx context.Context) ([]string, error) {
	var topics []string
	err := s.db.WithContext(ctx).
		Model(&models.Question{}).
		Distinct().
		Order("topic").
		Pluck("topic", &topics).Error
	if err != nil {
		return nil, fmt.Errorf("list topics: %w", err)
	}
	return topics, nil
}
