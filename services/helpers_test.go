package services

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/anjiri1684/drivesmart/models"
	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var baseTime = time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)

type recordingPublisher struct {
	mu     sync.Mutex
	events []SessionEvent
}

func (p *recordingPublisher) Publish(ev SessionEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
}

func (p *recordingPublisher) ofType(t string) []SessionEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []SessionEvent
	for _, ev := range p.events {
		if ev.Type == t {
			out = append(out, ev)
		}
	}
	return out
}

type fixture struct {
	db       *gorm.DB
	clock    time.Time
	events   *recordingPublisher
	access   *AccessService
	sessions *SessionService
	user     models.User
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		SkipDefaultTransaction:                   true,
		DisableForeignKeyConstraintWhenMigrating: true,
		TranslateError:                           true,
		Logger:                                   logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(
		&models.User{},
		&models.Question{},
		&models.TestPackage{},
		&models.UserTestAccess{},
		&models.TestSession{},
		&models.UserAnswer{},
	))
	return db
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := newTestDB(t)
	f := &fixture{db: db, clock: baseTime, events: &recordingPublisher{}}

	f.access = NewAccessService(db)
	f.access.Now = f.now
	f.sessions = NewSessionService(db, SessionDeps{
		Access: f.access,
		Images: LocalImageResolver{BasePath: "/api/images/"},
		Events: f.events,
	})
	f.sessions.Now = f.now
	f.user = f.addUser(t, "Ali Valiyev")
	return f
}

func (f *fixture) now() time.Time { return f.clock }

func (f *fixture) advance(d time.Duration) { f.clock = f.clock.Add(d) }

func (f *fixture) addUser(t *testing.T, name string) models.User {
	t.Helper()
	u := models.User{
		FullName: name,
		Email:    uuid.NewString() + "@example.com",
		Password: "x",
		IsActive: true,
	}
	require.NoError(t, f.db.Create(&u).Error)
	return u
}

// addQuestions creates n questions whose correct answer is always "A".
func (f *fixture) addQuestions(t *testing.T, topic string, n int) []models.Question {
	t.Helper()
	out := make([]models.Question, n)
	for i := range out {
		explanation := fmt.Sprintf("explanation %d", i)
		out[i] = models.Question{
			QuestionText:  fmt.Sprintf("%s question %d", topic, i),
			Options:       []string{"A", "B", "C", "D"},
			CorrectAnswer: "A",
			Explanation:   &explanation,
			Topic:         topic,
		}
		require.NoError(t, f.db.Create(&out[i]).Error)
	}
	return out
}

func (f *fixture) addPackage(t *testing.T, topic string, questionCount, maxAttempts int) models.TestPackage {
	t.Helper()
	p := models.TestPackage{
		Name:          topic + " package",
		Price:         10,
		QuestionCount: questionCount,
		DurationDays:  30,
		MaxAttempts:   maxAttempts,
		Topic:         topic,
		IsActive:      true,
	}
	require.NoError(t, f.db.Create(&p).Error)
	return p
}

func (f *fixture) reloadSession(t *testing.T, id uuid.UUID) models.TestSession {
	t.Helper()
	var s models.TestSession
	require.NoError(t, f.db.First(&s, "id = ?", id).Error)
	return s
}

func (f *fixture) answerCount(t *testing.T, sessionID uuid.UUID) int64 {
	t.Helper()
	var n int64
	require.NoError(t, f.db.Model(&models.UserAnswer{}).Where("test_session_id = ?", sessionID).Count(&n).Error)
	return n
}

func answersFor(started *StartedSession, selected ...string) []AnswerInput {
	out := make([]AnswerInput, len(selected))
	for i, s := range selected {
		out[i] = AnswerInput{QuestionID: started.Questions[i].ID, SelectedAnswer: s}
	}
	return out
}

func requireTerminalInvariant(t *testing.T, s models.TestSession) {
	t.Helper()
	require.Equal(t, s.Status.IsTerminal(), s.FinishedAt != nil, "finished_at must be set exactly for terminal sessions")
	if s.Status == models.SessionCompleted {
		require.Equal(t, s.TotalQuestions, s.CorrectCount+s.WrongCount)
	}
}
