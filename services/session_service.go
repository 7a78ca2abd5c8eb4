package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/anjiri1684/drivesmart/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	DefaultDurationMinutes = 30
	MaxQuestionsPerSession = 50
	maxTopicLength         = 100
)

const (
	EventSessionStarted   = "session.started"
	EventSessionCompleted = "session.completed"
	EventSessionAbandoned = "session.abandoned"
	EventSessionExpired   = "session.expired"
)

var errStaleSession = errors.New("session changed concurrently")

type SessionEvent struct {
	Type      string               `json:"type"`
	UserID    uuid.UUID            `json:"-"`
	SessionID uuid.UUID            `json:"session_id"`
	Topic     string               `json:"topic"`
	Status    models.SessionStatus `json:"status"`
	At        time.Time            `json:"at"`
}

// EventPublisher receives lifecycle events after the owning transaction commits.
type EventPublisher interface {
	Publish(SessionEvent)
}

type nopPublisher struct{}

func (nopPublisher) Publish(SessionEvent) {}

type AnswerInput struct {
	QuestionID     uuid.UUID
	SelectedAnswer string
}

type SessionDeps struct {
	Questions       *QuestionStore
	Users           *UserDirectory
	Access          *AccessService
	Images          ImageResolver
	Events          EventPublisher
	DurationMinutes int
}

type SessionService struct {
	db        *gorm.DB
	questions *QuestionStore
	users     *UserDirectory
	access    *AccessService
	images    ImageResolver
	events    EventPublisher
	duration  int

	Now func() time.Time
}

func NewSessionService(db *gorm.DB, deps SessionDeps) *SessionService {
	s := &SessionService{
		db:        db,
		questions: deps.Questions,
		users:     deps.Users,
		access:    deps.Access,
		images:    deps.Images,
		events:    deps.Events,
		duration:  deps.DurationMinutes,
		Now:       time.Now,
	}
	if s.questions == nil {
		s.questions = NewQuestionStore(db)
	}
	if s.users == nil {
		s.users = NewUserDirectory(db)
	}
	if s.access == nil {
		s.access = NewAccessService(db)
	}
	if s.images == nil {
		s.images = LocalImageResolver{BasePath: "/api/images/"}
	}
	if s.events == nil {
		s.events = nopPublisher{}
	}
	if s.duration <= 0 {
		s.duration = DefaultDurationMinutes
	}
	return s
}

func (s *SessionService) now() time.Time {
	return normalizeTime(s.Now())
}

func (s *SessionService) publish(eventType string, session models.TestSession, at time.Time) {
	s.events.Publish(SessionEvent{
		Type:      eventType,
		UserID:    session.UserID,
		SessionID: session.ID,
		Topic:     session.Topic,
		Status:    session.Status,
		At:        at,
	})
}

// Start opens a timed session. Access consumption, the question draw and the
// session insert commit together or not at all.
func (s *SessionService) Start(ctx context.Context, userID uuid.UUID, topic string, questionCount int) (*StartedSession, error) {
	topic = strings.TrimSpace(topic)
	if topic == "" {
		return nil, ValidationError("topic is required")
	}
	if utf8.RuneCountInString(topic) > maxTopicLength {
		return nil, ValidationError("topic must be at most 100 characters")
	}
	if questionCount < 1 || questionCount > MaxQuestionsPerSession {
		return nil, ValidationError("question count must be between 1 and 50")
	}

	log.Printf("[session] start user=%s topic=%q count=%d", userID, topic, questionCount)
	now := s.now()

	var session models.TestSession
	var questions []models.Question
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := s.users.withTx(tx).FindActive(ctx, userID); err != nil {
			return err
		}

		pkgID, err := s.access.withTx(tx).consumeForTopic(ctx, userID, topic, questionCount, now)
		if err != nil {
			return err
		}

		questions, err = s.questions.withTx(tx).RandomByTopic(ctx, topic, questionCount)
		if err != nil {
			return err
		}
		if len(questions) < questionCount {
			return ErrInsufficientQuestions
		}

		ids := make([]uuid.UUID, len(questions))
		for i, q := range questions {
			ids[i] = q.ID
		}
		session = models.TestSession{
			UserID:          userID,
			PackageID:       pkgID,
			Topic:           topic,
			TotalQuestions:  questionCount,
			DurationMinutes: s.duration,
			StartedAt:       now,
			ExpiresAt:       now.Add(time.Duration(s.duration) * time.Minute),
			Status:          models.SessionInProgress,
			QuestionIDs:     ids,
		}
		return tx.Omit(clause.Associations).Create(&session).Error
	})
	if err != nil {
		return nil, wrapErr("start session", err)
	}

	log.Printf("[session] started id=%s user=%s", session.ID, userID)
	s.publish(EventSessionStarted, session, now)

	views := make([]QuestionView, len(questions))
	for i, q := range questions {
		views[i] = toQuestionView(q, s.images)
	}
	return &StartedSession{
		SessionID:       session.ID,
		Topic:           session.Topic,
		TotalQuestions:  session.TotalQuestions,
		DurationMinutes: session.DurationMinutes,
		StartedAt:       session.StartedAt,
		ExpiresAt:       session.ExpiresAt,
		Questions:       views,
	}, nil
}

// SubmitAnswers grades the single answer set of a session. Resubmitting a
// completed session returns the stored result unchanged.
func (s *SessionService) SubmitAnswers(ctx context.Context, userID, sessionID uuid.UUID, answers []AnswerInput) (*DetailedResult, error) {
	if len(answers) == 0 {
		return nil, ValidationError("answers are required")
	}
	for _, a := range answers {
		if a.QuestionID == uuid.Nil {
			return nil, ValidationError("question id is required for every answer")
		}
		if strings.TrimSpace(a.SelectedAnswer) == "" {
			return nil, ValidationError("selected answer is required for every answer")
		}
	}

	log.Printf("[session] submit id=%s user=%s answers=%d", sessionID, userID, len(answers))
	now := s.now()

	var (
		result    *DetailedResult
		session   *models.TestSession
		expired   bool
		completed bool
	)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		session, err = s.findOwned(ctx, tx, userID, sessionID, true)
		if err != nil {
			return err
		}

		switch session.Status {
		case models.SessionCompleted:
			result, err = s.loadResult(ctx, tx, *session)
			return err
		case models.SessionAbandoned:
			return &Error{Kind: KindInvalidState, Message: "test session has been abandoned"}
		}

		if session.IsExpired(now) {
			if err := s.abandon(ctx, tx, session, now); err != nil {
				return err
			}
			expired = true
			return nil
		}

		var existing int64
		if err := tx.Model(&models.UserAnswer{}).Where("test_session_id = ?", session.ID).Count(&existing).Error; err != nil {
			return err
		}
		if existing > 0 {
			return ErrAlreadySubmitted
		}

		unique := dedupeAnswers(answers)
		ids := make([]uuid.UUID, len(unique))
		for i, a := range unique {
			if !session.HasQuestion(a.QuestionID) {
				return ErrQuestionNotFound
			}
			ids[i] = a.QuestionID
		}
		questions, err := s.questions.withTx(tx).FindByIDs(ctx, ids)
		if err != nil {
			return err
		}

		rows := make([]models.UserAnswer, len(unique))
		for i, a := range unique {
			q, ok := questions[a.QuestionID]
			if !ok {
				return ErrQuestionNotFound
			}
			rows[i] = models.UserAnswer{
				UserID:         session.UserID,
				TestSessionID:  session.ID,
				QuestionID:     a.QuestionID,
				SelectedAnswer: strings.TrimSpace(a.SelectedAnswer),
				IsCorrect:      GradeAnswer(q, a.SelectedAnswer),
				Position:       i,
				AnsweredAt:     now,
			}
		}
		if err := tx.Omit(clause.Associations).Create(&rows).Error; err != nil {
			if isUniqueViolation(err) {
				return ErrAlreadySubmitted
			}
			return err
		}

		score := ScoreSession(session.TotalQuestions, rows)
		version := session.Version
		if err := session.Complete(score.Correct, score.Wrong, now); err != nil {
			return ErrInvalidState
		}
		if err := s.saveTransition(ctx, tx, session, version, now); err != nil {
			if errors.Is(err, errStaleSession) {
				return ErrAlreadySubmitted
			}
			return err
		}

		res := BuildDetailedResult(*session, rows, questions, s.images)
		result = &res
		completed = true
		return nil
	})
	if err != nil {
		return nil, wrapErr("submit answers", err)
	}

	if expired {
		log.Printf("[session] expired on submit id=%s", sessionID)
		s.publish(EventSessionExpired, *session, now)
		return nil, ErrTestExpired
	}
	if completed {
		log.Printf("[session] completed id=%s correct=%d/%d", sessionID, result.CorrectCount, result.TotalQuestions)
		s.publish(EventSessionCompleted, *session, now)
	}
	return result, nil
}

func (s *SessionService) Abandon(ctx context.Context, userID, sessionID uuid.UUID) error {
	now := s.now()
	var session *models.TestSession
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		session, err = s.findOwned(ctx, tx, userID, sessionID, true)
		if err != nil {
			return err
		}
		if !session.Status.CanTransitionTo(models.SessionAbandoned) {
			return ErrInvalidState
		}
		if err := s.abandon(ctx, tx, session, now); err != nil {
			if errors.Is(err, errStaleSession) {
				return ErrInvalidState
			}
			return err
		}
		return nil
	})
	if err != nil {
		return wrapErr("abandon session", err)
	}
	log.Printf("[session] abandoned id=%s user=%s", sessionID, userID)
	s.publish(EventSessionAbandoned, *session, now)
	return nil
}

// GetResult returns the detailed result of a completed session. An overdue
// in-progress session is closed out as abandoned on the way.
func (s *SessionService) GetResult(ctx context.Context, userID, sessionID uuid.UUID) (*DetailedResult, error) {
	now := s.now()
	var (
		result  *DetailedResult
		session *models.TestSession
		expired bool
	)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		session, err = s.findOwned(ctx, tx, userID, sessionID, false)
		if err != nil {
			return err
		}
		if session.Status == models.SessionCompleted {
			result, err = s.loadResult(ctx, tx, *session)
			return err
		}
		if session.IsExpired(now) {
			err := s.abandon(ctx, tx, session, now)
			if err != nil && !errors.Is(err, errStaleSession) {
				return err
			}
			expired = err == nil
		}
		return nil
	})
	if err != nil {
		return nil, wrapErr("get result", err)
	}
	if expired {
		log.Printf("[session] expired on read id=%s", sessionID)
		s.publish(EventSessionExpired, *session, now)
	}
	if result == nil {
		return nil, ErrTestNotFinished
	}
	return result, nil
}

func (s *SessionService) GetHistory(ctx context.Context, userID uuid.UUID) ([]SessionSummary, error) {
	now := s.now()
	if err := s.expireForUser(ctx, userID, now); err != nil {
		return nil, wrapErr("reconcile history", err)
	}

	var sessions []models.TestSession
	err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("started_at DESC").
		Find(&sessions).Error
	if err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}
	out := make([]SessionSummary, len(sessions))
	for i, session := range sessions {
		out[i] = ToSessionSummary(session)
	}
	return out, nil
}

// ExpireOverdue abandons up to limit in-progress sessions whose time is up.
func (s *SessionService) ExpireOverdue(ctx context.Context, limit int) (int, error) {
	now := s.now()
	var overdue []models.TestSession
	err := s.db.WithContext(ctx).
		Where("status = ? AND expires_at < ?", models.SessionInProgress, now).
		Order("expires_at").
		Limit(limit).
		Find(&overdue).Error
	if err != nil {
		return 0, fmt.Errorf("find overdue sessions: %w", err)
	}
	return s.expireSessions(ctx, overdue, now)
}

func (s *SessionService) expireForUser(ctx context.Context, userID uuid.UUID, now time.Time) error {
	var open []models.TestSession
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND status = ?", userID, models.SessionInProgress).
		Find(&open).Error
	if err != nil {
		return err
	}
	overdue := open[:0]
	for _, session := range open {
		if session.IsExpired(now) {
			overdue = append(overdue, session)
		}
	}
	_, err = s.expireSessions(ctx, overdue, now)
	return err
}

func (s *SessionService) expireSessions(ctx context.Context, sessions []models.TestSession, now time.Time) (int, error) {
	expired := 0
	for i := range sessions {
		session := sessions[i]
		err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			return s.abandon(ctx, tx, &session, now)
		})
		if errors.Is(err, errStaleSession) {
			continue
		}
		if err != nil {
			return expired, fmt.Errorf("expire session %s: %w", session.ID, err)
		}
		expired++
		s.publish(EventSessionExpired, session, now)
	}
	return expired, nil
}

func (s *SessionService) findOwned(ctx context.Context, tx *gorm.DB, userID, sessionID uuid.UUID, lock bool) (*models.TestSession, error) {
	q := tx.WithContext(ctx)
	if lock {
		q = q.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	var session models.TestSession
	err := q.Where("id = ? AND user_id = ?", sessionID, userID).First(&session).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &session, nil
}

func (s *SessionService) abandon(ctx context.Context, tx *gorm.DB, session *models.TestSession, now time.Time) error {
	version := session.Version
	if err := session.Abandon(now); err != nil {
		return errStaleSession
	}
	return s.saveTransition(ctx, tx, session, version, now)
}

// saveTransition writes a status change only if nobody else moved the row
// since it was read at fromVersion.
func (s *SessionService) saveTransition(ctx context.Context, tx *gorm.DB, session *models.TestSession, fromVersion int, now time.Time) error {
	res := tx.WithContext(ctx).
		Model(&models.TestSession{}).
		Where("id = ? AND version = ? AND status = ?", session.ID, fromVersion, models.SessionInProgress).
		Updates(map[string]interface{}{
			"status":        session.Status,
			"finished_at":   session.FinishedAt,
			"score":         session.Score,
			"correct_count": session.CorrectCount,
			"wrong_count":   session.WrongCount,
			"version":       fromVersion + 1,
			"updated_at":    now,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return errStaleSession
	}
	session.Version = fromVersion + 1
	return nil
}

func (s *SessionService) loadResult(ctx context.Context, tx *gorm.DB, session models.TestSession) (*DetailedResult, error) {
	var answers []models.UserAnswer
	err := tx.WithContext(ctx).
		Where("test_session_id = ?", session.ID).
		Order("position").
		Find(&answers).Error
	if err != nil {
		return nil, err
	}
	ids := make([]uuid.UUID, len(answers))
	for i, a := range answers {
		ids[i] = a.QuestionID
	}
	questions, err := s.questions.withTx(tx).FindByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	res := BuildDetailedResult(session, answers, questions, s.images)
	return &res, nil
}

// dedupeAnswers keeps the first answer given for each question.
func dedupeAnswers(answers []AnswerInput) []AnswerInput {
	seen := make(map[uuid.UUID]struct{}, len(answers))
	out := make([]AnswerInput, 0, len(answers))
	for _, a := range answers {
		if _, ok := seen[a.QuestionID]; ok {
			continue
		}
		seen[a.QuestionID] = struct{}{}
		out = append(out, a)
	}
	return out
}

func wrapErr(op string, err error) error {
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return fmt.Errorf("%s: %w", op, err)
}
