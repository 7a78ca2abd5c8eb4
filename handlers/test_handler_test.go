package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/anjiri1684/drivesmart/database"
	"github.com/anjiri1684/drivesmart/handlers"
	"github.com/anjiri1684/drivesmart/models"
	"github.com/anjiri1684/drivesmart/routes"
	"github.com/anjiri1684/drivesmart/services"
	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

const testSecret = "test-secret"

type fakeRenderer struct{}

func (fakeRenderer) Render(ctx context.Context, html string) ([]byte, error) {
	return []byte("%PDF-1.4 " + html[:10]), nil
}

type envelope struct {
	Code      int             `json:"code"`
	Status    string          `json:"status"`
	ErrorCode string          `json:"error_code"`
	Message   string          `json:"message"`
	Data      json.RawMessage `json:"data"`
}

type testServer struct {
	app     *fiber.App
	db      *gorm.DB
	student models.User
	admin   models.User
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	db, err := database.Open("sqlite", fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString()))
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })
	require.NoError(t, database.AutoMigrate(db))

	questions := services.NewQuestionStore(db)
	users := services.NewUserDirectory(db)
	access := services.NewAccessService(db)
	sessions := services.NewSessionService(db, services.SessionDeps{
		Questions: questions,
		Users:     users,
		Access:    access,
		Images:    services.LocalImageResolver{BasePath: "/api/images/"},
	})
	certificates := services.NewCertificateService(sessions, users, fakeRenderer{})

	app := fiber.New()
	routes.TestRoutes(app, handlers.NewTestHandler(sessions, questions, certificates), testSecret)
	routes.AccessRoutes(app, handlers.NewAccessHandler(access), testSecret)

	srv := &testServer{app: app, db: db}
	srv.student = srv.addUser(t, "student")
	srv.admin = srv.addUser(t, "admin")
	for i := 0; i < 5; i++ {
		q := models.Question{
			QuestionText:  fmt.Sprintf("question %d", i),
			Options:       []string{"A", "B", "C"},
			CorrectAnswer: "A",
			Topic:         "Signs",
		}
		require.NoError(t, db.Create(&q).Error)
	}
	return srv
}

func (s *testServer) addUser(t *testing.T, role string) models.User {
	t.Helper()
	u := models.User{FullName: "Test " + role, Email: uuid.NewString() + "@example.com", Password: "x", Role: role, IsActive: true}
	require.NoError(t, s.db.Create(&u).Error)
	return u
}

func token(t *testing.T, user models.User) string {
	t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id": user.ID.String(),
		"role":    user.Role,
		"exp":     time.Now().Add(time.Hour).Unix(),
	})
	signed, err := tok.SignedString([]byte(testSecret))
	require.NoError(t, err)
	return signed
}

func (s *testServer) do(t *testing.T, method, path string, user *models.User, body interface{}) (*http.Response, envelope) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if user != nil {
		req.Header.Set("Authorization", "Bearer "+token(t, *user))
	}
	resp, err := s.app.Test(req, -1)
	require.NoError(t, err)

	var env envelope
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	if resp.Header.Get("Content-Type") != "application/pdf" && len(raw) > 0 {
		require.NoError(t, json.Unmarshal(raw, &env), string(raw))
	}
	return resp, env
}

func (s *testServer) start(t *testing.T, user models.User, count int) services.StartedSession {
	t.Helper()
	resp, env := s.do(t, http.MethodPost, "/api/v1/tests/start", &user, fiber.Map{"topic": "Signs", "question_count": count})
	require.Equal(t, fiber.StatusCreated, resp.StatusCode, env.Message)
	var started services.StartedSession
	require.NoError(t, json.Unmarshal(env.Data, &started))
	return started
}

func TestStartSubmitAndReadResult(t *testing.T) {
	srv := newTestServer(t)
	started := srv.start(t, srv.student, 2)
	require.Len(t, started.Questions, 2)

	body := fiber.Map{
		"session_id": started.SessionID.String(),
		"answers": []fiber.Map{
			{"question_id": started.Questions[0].ID.String(), "selected_answer": "a"},
			{"question_id": started.Questions[1].ID.String(), "selected_answer": "B"},
		},
	}
	resp, env := srv.do(t, http.MethodPost, "/api/v1/tests/submit", &srv.student, body)
	require.Equal(t, fiber.StatusOK, resp.StatusCode, env.Message)
	var submitted services.DetailedResult
	require.NoError(t, json.Unmarshal(env.Data, &submitted))
	assert.Equal(t, 1, submitted.CorrectCount)
	assert.Equal(t, 50.0, submitted.Percentage)
	assert.False(t, submitted.Passed)

	resp, env = srv.do(t, http.MethodGet, "/api/v1/tests/"+started.SessionID.String()+"/result", &srv.student, nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	var read services.DetailedResult
	require.NoError(t, json.Unmarshal(env.Data, &read))
	assert.Equal(t, submitted, read)

	resp, env = srv.do(t, http.MethodGet, "/api/v1/tests/history", &srv.student, nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	var history []services.SessionSummary
	require.NoError(t, json.Unmarshal(env.Data, &history))
	require.Len(t, history, 1)
	assert.Equal(t, models.SessionCompleted, history[0].Status)
}

func TestErrorKindsMapToStatusCodes(t *testing.T) {
	srv := newTestServer(t)
	started := srv.start(t, srv.student, 1)
	intruder := srv.addUser(t, "student")

	resp, env := srv.do(t, http.MethodPost, "/api/v1/tests/start", &srv.student, fiber.Map{"topic": "Signs", "question_count": 50})
	assert.Equal(t, fiber.StatusUnprocessableEntity, resp.StatusCode)
	assert.Equal(t, "INSUFFICIENT_QUESTIONS", env.ErrorCode)

	resp, env = srv.do(t, http.MethodGet, "/api/v1/tests/"+started.SessionID.String()+"/result", &srv.student, nil)
	assert.Equal(t, fiber.StatusConflict, resp.StatusCode)
	assert.Equal(t, "TEST_NOT_FINISHED", env.ErrorCode)

	resp, env = srv.do(t, http.MethodGet, "/api/v1/tests/"+started.SessionID.String()+"/result", &intruder, nil)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "NOT_FOUND", env.ErrorCode)

	resp, _ = srv.do(t, http.MethodGet, "/api/v1/tests/not-a-uuid/result", &srv.student, nil)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)

	resp, _ = srv.do(t, http.MethodDelete, "/api/v1/tests/"+started.SessionID.String()+"/abandon", &srv.student, nil)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	resp, env = srv.do(t, http.MethodDelete, "/api/v1/tests/"+started.SessionID.String()+"/abandon", &srv.student, nil)
	assert.Equal(t, fiber.StatusConflict, resp.StatusCode)
	assert.Equal(t, "INVALID_STATE", env.ErrorCode)

	resp, env = srv.do(t, http.MethodPost, "/api/v1/tests/start", &srv.student, fiber.Map{"topic": "Signs", "question_count": 0})
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "VALIDATION", env.ErrorCode)

	resp, _ = srv.do(t, http.MethodGet, "/api/v1/tests/history", nil, nil)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestStartOnPaidTopicNeedsAccess(t *testing.T) {
	srv := newTestServer(t)
	pkg := models.TestPackage{Name: "Signs pro", Price: 10, QuestionCount: 2, DurationDays: 7, MaxAttempts: 1, Topic: "Signs", IsActive: true}
	require.NoError(t, srv.db.Create(&pkg).Error)

	resp, env := srv.do(t, http.MethodPost, "/api/v1/tests/start", &srv.student, fiber.Map{"topic": "Signs", "question_count": 2})
	assert.Equal(t, fiber.StatusForbidden, resp.StatusCode)
	assert.Equal(t, "ACCESS_DENIED", env.ErrorCode)

	grant := fiber.Map{"user_id": srv.student.ID.String(), "package_id": pkg.ID.String()}
	resp, _ = srv.do(t, http.MethodPost, "/api/v1/admin/access/grant", &srv.student, grant)
	assert.Equal(t, fiber.StatusForbidden, resp.StatusCode)
	resp, _ = srv.do(t, http.MethodPost, "/api/v1/admin/access/grant", &srv.admin, grant)
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)

	resp, env = srv.do(t, http.MethodGet, "/api/v1/access/me", &srv.student, nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	var views []services.AccessView
	require.NoError(t, json.Unmarshal(env.Data, &views))
	require.Len(t, views, 1)
	assert.Equal(t, 1, views[0].RemainingAttempts)

	srv.start(t, srv.student, 2)

	resp, env = srv.do(t, http.MethodPost, "/api/v1/tests/start", &srv.student, fiber.Map{"topic": "Signs", "question_count": 2})
	assert.Equal(t, fiber.StatusForbidden, resp.StatusCode)
	assert.Equal(t, "ACCESS_DENIED", env.ErrorCode)
}

func TestCertificateOnlyForPassedTests(t *testing.T) {
	srv := newTestServer(t)

	passed := srv.start(t, srv.student, 1)
	body := fiber.Map{
		"session_id": passed.SessionID.String(),
		"answers":    []fiber.Map{{"question_id": passed.Questions[0].ID.String(), "selected_answer": "A"}},
	}
	resp, _ := srv.do(t, http.MethodPost, "/api/v1/tests/submit", &srv.student, body)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	resp, _ = srv.do(t, http.MethodGet, "/api/v1/tests/"+passed.SessionID.String()+"/certificate", &srv.student, nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/pdf", resp.Header.Get("Content-Type"))

	failed := srv.start(t, srv.student, 1)
	body = fiber.Map{
		"session_id": failed.SessionID.String(),
		"answers":    []fiber.Map{{"question_id": failed.Questions[0].ID.String(), "selected_answer": "C"}},
	}
	resp, _ = srv.do(t, http.MethodPost, "/api/v1/tests/submit", &srv.student, body)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	resp, env := srv.do(t, http.MethodGet, "/api/v1/tests/"+failed.SessionID.String()+"/certificate", &srv.student, nil)
	assert.Equal(t, fiber.StatusConflict, resp.StatusCode)
	assert.Equal(t, "INVALID_STATE", env.ErrorCode)
}

func TestListTopics(t *testing.T) {
	srv := newTestServer(t)
	resp, env := srv.do(t, http.MethodGet, "/api/v1/tests/topics", &srv.student, nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	var topics []string
	require.NoError(t, json.Unmarshal(env.Data, &topics))
	assert.Equal(t, []string{"Signs"}, topics)
}

func TestPackageCatalogue(t *testing.T) {
	srv := newTestServer(t)
	signs := models.TestPackage{Name: "Signs pro", Price: 10, QuestionCount: 2, DurationDays: 7, MaxAttempts: 1, Topic: "Signs", IsActive: true}
	rules := models.TestPackage{Name: "Rules pro", Price: 5, QuestionCount: 2, DurationDays: 7, MaxAttempts: 1, Topic: "Rules", IsActive: true}
	retired := models.TestPackage{Name: "Signs old", Price: 1, QuestionCount: 2, DurationDays: 7, MaxAttempts: 1, Topic: "Signs", IsActive: true}
	for _, p := range []*models.TestPackage{&signs, &rules, &retired} {
		require.NoError(t, srv.db.Create(p).Error)
	}
	require.NoError(t, srv.db.Model(&retired).Update("is_active", false).Error)

	resp, env := srv.do(t, http.MethodGet, "/api/v1/packages", nil, nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	var all []models.TestPackage
	require.NoError(t, json.Unmarshal(env.Data, &all))
	assert.Len(t, all, 2)

	resp, env = srv.do(t, http.MethodGet, "/api/v1/packages?topic=Signs", nil, nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	var bySigns []models.TestPackage
	require.NoError(t, json.Unmarshal(env.Data, &bySigns))
	require.Len(t, bySigns, 1)
	assert.Equal(t, signs.ID, bySigns[0].ID)

	resp, env = srv.do(t, http.MethodGet, "/api/v1/packages/"+rules.ID.String(), nil, nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	var one models.TestPackage
	require.NoError(t, json.Unmarshal(env.Data, &one))
	assert.Equal(t, "Rules pro", one.Name)

	resp, env = srv.do(t, http.MethodGet, "/api/v1/packages/"+retired.ID.String(), nil, nil)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "NOT_FOUND", env.ErrorCode)

	resp, _ = srv.do(t, http.MethodGet, "/api/v1/packages/not-a-uuid", nil, nil)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
}

func TestCheckAccess(t *testing.T) {
	srv := newTestServer(t)
	pkg := models.TestPackage{Name: "Signs pro", Price: 10, QuestionCount: 2, DurationDays: 7, MaxAttempts: 1, Topic: "Signs", IsActive: true}
	require.NoError(t, srv.db.Create(&pkg).Error)
	path := "/api/v1/access/" + pkg.ID.String() + "/check"

	check := func() bool {
		t.Helper()
		resp, env := srv.do(t, http.MethodGet, path, &srv.student, nil)
		require.Equal(t, fiber.StatusOK, resp.StatusCode)
		var out struct {
			PackageID string `json:"package_id"`
			HasAccess bool   `json:"has_access"`
		}
		require.NoError(t, json.Unmarshal(env.Data, &out))
		assert.Equal(t, pkg.ID.String(), out.PackageID)
		return out.HasAccess
	}

	assert.False(t, check())

	grant := fiber.Map{"user_id": srv.student.ID.String(), "package_id": pkg.ID.String()}
	resp, _ := srv.do(t, http.MethodPost, "/api/v1/admin/access/grant", &srv.admin, grant)
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)
	assert.True(t, check())

	srv.start(t, srv.student, 2)
	assert.False(t, check(), "the only attempt was spent")

	resp, _ = srv.do(t, http.MethodGet, path, nil, nil)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}
