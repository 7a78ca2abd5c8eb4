package services

import (
	"sort"
	"time"

	"github.com/anjiri1684/drivesmart/models"
	"github.com/google/uuid"
)

type QuestionView struct {
	ID            uuid.UUID `json:"id"`
	QuestionText  string    `json:"question_text"`
	Options       []string  `json:"options"`
	ImageURL      *string   `json:"image_url"`
	CorrectAnswer string    `json:"correct_answer"`
	Explanation   *string   `json:"explanation"`
}

type StartedSession struct {
	SessionID       uuid.UUID      `json:"session_id"`
	Topic           string         `json:"topic"`
	TotalQuestions  int            `json:"total_questions"`
	DurationMinutes int            `json:"duration_minutes"`
	StartedAt       time.Time      `json:"started_at"`
	ExpiresAt       time.Time      `json:"expires_at"`
	Questions       []QuestionView `json:"questions"`
}

type AnswerDetail struct {
	QuestionID     uuid.UUID `json:"question_id"`
	QuestionText   string    `json:"question_text"`
	Options        []string  `json:"options"`
	SelectedAnswer string    `json:"selected_answer"`
	CorrectAnswer  string    `json:"correct_answer"`
	Explanation    *string   `json:"explanation"`
	IsCorrect      bool      `json:"is_correct"`
	ImageURL       *string   `json:"image_url"`
}

type DetailedResult struct {
	SessionID       uuid.UUID      `json:"session_id"`
	Topic           string         `json:"topic"`
	TotalQuestions  int            `json:"total_questions"`
	CorrectCount    int            `json:"correct_count"`
	WrongCount      int            `json:"wrong_count"`
	Score           int            `json:"score"`
	Percentage      float64        `json:"percentage"`
	Passed          bool           `json:"passed"`
	StartedAt       time.Time      `json:"started_at"`
	FinishedAt      time.Time      `json:"finished_at"`
	DurationSeconds int64          `json:"duration_seconds"`
	AnswerDetails   []AnswerDetail `json:"answer_details"`
}

type SessionSummary struct {
	SessionID      uuid.UUID            `json:"session_id"`
	Topic          string               `json:"topic"`
	TotalQuestions int                  `json:"total_questions"`
	Score          int                  `json:"score"`
	CorrectCount   int                  `json:"correct_count"`
	WrongCount     int                  `json:"wrong_count"`
	Status         models.SessionStatus `json:"status"`
	StartedAt      time.Time            `json:"started_at"`
	FinishedAt     *time.Time           `json:"finished_at"`
}

// normalizeTime gives both the fresh and the reloaded result the same
// representation regardless of how the driver hands timestamps back.
func normalizeTime(t time.Time) time.Time {
	return t.UTC().Truncate(time.Microsecond)
}

func toQuestionView(q models.Question, images ImageResolver) QuestionView {
	return QuestionView{
		ID:            q.ID,
		QuestionText:  q.QuestionText,
		Options:       optionsOf(q),
		ImageURL:      resolveImage(images, q.ImagePath),
		CorrectAnswer: q.CorrectAnswer,
		Explanation:   q.Explanation,
	}
}

func optionsOf(q models.Question) []string {
	if q.Options == nil {
		return []string{}
	}
	return append([]string(nil), q.Options...)
}

// BuildDetailedResult renders a completed session. It is the only place the
// result shape is produced, for submission and for later re-reads alike.
func BuildDetailedResult(session models.TestSession, answers []models.UserAnswer, questions map[uuid.UUID]models.Question, images ImageResolver) DetailedResult {
	ordered := append([]models.UserAnswer(nil), answers...)
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].Position < ordered[j].Position })

	score := scoreFromCounts(session.TotalQuestions, session.CorrectCount)

	startedAt := normalizeTime(session.StartedAt)
	var finishedAt time.Time
	if session.FinishedAt != nil {
		finishedAt = normalizeTime(*session.FinishedAt)
	}

	details := make([]AnswerDetail, 0, len(ordered))
	for _, a := range ordered {
		q := questions[a.QuestionID]
		details = append(details, AnswerDetail{
			QuestionID:     a.QuestionID,
			QuestionText:   q.QuestionText,
			Options:        optionsOf(q),
			SelectedAnswer: a.SelectedAnswer,
			CorrectAnswer:  q.CorrectAnswer,
			Explanation:    q.Explanation,
			IsCorrect:      a.IsCorrect,
			ImageURL:       resolveImage(images, q.ImagePath),
		})
	}

	return DetailedResult{
		SessionID:       session.ID,
		Topic:           session.Topic,
		TotalQuestions:  session.TotalQuestions,
		CorrectCount:    session.CorrectCount,
		WrongCount:      session.WrongCount,
		Score:           session.Score,
		Percentage:      score.Percentage,
		Passed:          score.Passed,
		StartedAt:       startedAt,
		FinishedAt:      finishedAt,
		DurationSeconds: int64(finishedAt.Sub(startedAt) / time.Second),
		AnswerDetails:   details,
	}
}

func ToSessionSummary(s models.TestSession) SessionSummary {
	out := SessionSummary{
		SessionID:      s.ID,
		Topic:          s.Topic,
		TotalQuestions: s.TotalQuestions,
		Score:          s.Score,
		CorrectCount:   s.CorrectCount,
		WrongCount:     s.WrongCount,
		Status:         s.Status,
		StartedAt:      normalizeTime(s.StartedAt),
	}
	if s.FinishedAt != nil {
		f := normalizeTime(*s.FinishedAt)
		out.FinishedAt = &f
	}
	return out
}
