package handlers

import (
	"errors"
	"log"

	"github.com/anjiri1684/drivesmart/middleware"
	"github.com/anjiri1684/drivesmart/services"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
)

var validate = validator.New()

func success(c *fiber.Ctx, code int, message string, data interface{}) error {
	return c.Status(code).JSON(fiber.Map{
		"code":    code,
		"status":  "success",
		"message": message,
		"data":    data,
	})
}

func fail(c *fiber.Ctx, code int, errorCode, message string) error {
	return c.Status(code).JSON(fiber.Map{
		"code":       code,
		"status":     "error",
		"error_code": errorCode,
		"message":    message,
	})
}

func validationFailed(c *fiber.Ctx, err error) error {
	var ve validator.ValidationErrors
	if !errors.As(err, &ve) {
		return fail(c, fiber.StatusBadRequest, string(services.KindValidation), "Invalid input")
	}
	fields := make(map[string]string, len(ve))
	for _, fe := range ve {
		fields[fe.Field()] = fe.Tag()
	}
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
		"code":       fiber.StatusBadRequest,
		"status":     "error",
		"error_code": string(services.KindValidation),
		"message":    "Validation failed",
		"errors":     fields,
	})
}

func statusFor(kind services.ErrorKind) int {
	switch kind {
	case services.KindNotFound, services.KindUserNotFound, services.KindQuestionNotFound:
		return fiber.StatusNotFound
	case services.KindInvalidState, services.KindAlreadySubmitted, services.KindTestNotFinished:
		return fiber.StatusConflict
	case services.KindTestExpired:
		return fiber.StatusGone
	case services.KindAccessDenied:
		return fiber.StatusForbidden
	case services.KindInsufficientQuestions:
		return fiber.StatusUnprocessableEntity
	case services.KindValidation:
		return fiber.StatusBadRequest
	}
	return fiber.StatusInternalServerError
}

// serviceError writes a session-engine error. Anything outside the known
// taxonomy is logged and reported without detail.
func serviceError(c *fiber.Ctx, err error) error {
	var e *services.Error
	if errors.As(err, &e) {
		return fail(c, statusFor(e.Kind), string(e.Kind), e.Message)
	}
	if errors.Is(err, middleware.ErrInvalidToken) {
		return fail(c, fiber.StatusUnauthorized, "UNAUTHORIZED", "Invalid or expired JWT")
	}
	log.Printf("[ERROR] %v | Path: %s | Method: %s", err, c.Path(), c.Method())
	return fail(c, fiber.StatusInternalServerError, "INTERNAL", "Something went wrong, please try again later")
}
