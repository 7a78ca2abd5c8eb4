package handlers

import (
	"fmt"

	"github.com/anjiri1684/drivesmart/middleware"
	"github.com/anjiri1684/drivesmart/services"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

type TestHandler struct {
	sessions     *services.SessionService
	questions    *services.QuestionStore
	certificates *services.CertificateService
}

func NewTestHandler(sessions *services.SessionService, questions *services.QuestionStore, certificates *services.CertificateService) *TestHandler {
	return &TestHandler{sessions: sessions, questions: questions, certificates: certificates}
}

type StartTestRequest struct {
	Topic         string `json:"topic" validate:"required,max=100"`
	QuestionCount int    `json:"question_count" validate:"required,min=1,max=50"`
}

type AnswerRequest struct {
	QuestionID     string `json:"question_id" validate:"required,uuid"`
	SelectedAnswer string `json:"selected_answer" validate:"required"`
}

type SubmitAnswersRequest struct {
	SessionID string          `json:"session_id" validate:"required,uuid"`
	Answers   []AnswerRequest `json:"answers" validate:"required,min=1,dive"`
}

func (h *TestHandler) StartTest(c *fiber.Ctx) error {
	userID, err := middleware.UserID(c)
	if err != nil {
		return serviceError(c, err)
	}

	var req StartTestRequest
	if err := c.BodyParser(&req); err != nil {
		return fail(c, fiber.StatusBadRequest, string(services.KindValidation), "Cannot parse JSON")
	}
	if err := validate.Struct(req); err != nil {
		return validationFailed(c, err)
	}

	started, err := h.sessions.Start(c.UserContext(), userID, req.Topic, req.QuestionCount)
	if err != nil {
		return serviceError(c, err)
	}
	return success(c, fiber.StatusCreated, "Test started", started)
}

func (h *TestHandler) SubmitTest(c *fiber.Ctx) error {
	userID, err := middleware.UserID(c)
	if err != nil {
		return serviceError(c, err)
	}

	var req SubmitAnswersRequest
	if err := c.BodyParser(&req); err != nil {
		return fail(c, fiber.StatusBadRequest, string(services.KindValidation), "Cannot parse JSON")
	}
	if err := validate.Struct(req); err != nil {
		return validationFailed(c, err)
	}

	sessionID := uuid.MustParse(req.SessionID)
	answers := make([]services.AnswerInput, len(req.Answers))
	for i, a := range req.Answers {
		answers[i] = services.AnswerInput{
			QuestionID:     uuid.MustParse(a.QuestionID),
			SelectedAnswer: a.SelectedAnswer,
		}
	}

	result, err := h.sessions.SubmitAnswers(c.UserContext(), userID, sessionID, answers)
	if err != nil {
		return serviceError(c, err)
	}
	return success(c, fiber.StatusOK, "Test submitted successfully", result)
}

func (h *TestHandler) GetResult(c *fiber.Ctx) error {
	userID, sessionID, err := h.owner(c)
	if err != nil {
		return serviceError(c, err)
	}
	result, err := h.sessions.GetResult(c.UserContext(), userID, sessionID)
	if err != nil {
		return serviceError(c, err)
	}
	return success(c, fiber.StatusOK, "Test result", result)
}

func (h *TestHandler) GetHistory(c *fiber.Ctx) error {
	userID, err := middleware.UserID(c)
	if err != nil {
		return serviceError(c, err)
	}
	history, err := h.sessions.GetHistory(c.UserContext(), userID)
	if err != nil {
		return serviceError(c, err)
	}
	return success(c, fiber.StatusOK, "Test history", history)
}

func (h *TestHandler) AbandonTest(c *fiber.Ctx) error {
	userID, sessionID, err := h.owner(c)
	if err != nil {
		return serviceError(c, err)
	}
	if err := h.sessions.Abandon(c.UserContext(), userID, sessionID); err != nil {
		return serviceError(c, err)
	}
	return success(c, fiber.StatusOK, "Test abandoned", nil)
}

func (h *TestHandler) ListTopics(c *fiber.Ctx) error {
	topics, err := h.questions.Topics(c.UserContext())
	if err != nil {
		return serviceError(c, err)
	}
	return success(c, fiber.StatusOK, "Topics", topics)
}

func (h *TestHandler) DownloadCertificate(c *fiber.Ctx) error {
	userID, sessionID, err := h.owner(c)
	if err != nil {
		return serviceError(c, err)
	}
	pdf, err := h.certificates.Generate(c.UserContext(), userID, sessionID)
	if err != nil {
		return serviceError(c, err)
	}
	c.Set(fiber.HeaderContentType, "application/pdf")
	c.Set(fiber.HeaderContentDisposition, fmt.Sprintf(`attachment; filename="certificate-%s.pdf"`, sessionID))
	return c.Status(fiber.StatusOK).Send(pdf)
}

// owner resolves the caller and the :sessionId param. A malformed id is
// reported the same way as a missing session.
func (h *TestHandler) owner(c *fiber.Ctx) (uuid.UUID, uuid.UUID, error) {
	userID, err := middleware.UserID(c)
	if err != nil {
		return uuid.Nil, uuid.Nil, err
	}
	sessionID, err := uuid.Parse(c.Params("sessionId"))
	if err != nil {
		return uuid.Nil, uuid.Nil, services.ErrNotFound
	}
	return userID, sessionID, nil
}
