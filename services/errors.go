package services

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

type ErrorKind string

const (
	KindNotFound              ErrorKind = "NOT_FOUND"
	KindUserNotFound          ErrorKind = "USER_NOT_FOUND"
	KindInvalidState          ErrorKind = "INVALID_STATE"
	KindTestExpired           ErrorKind = "TEST_EXPIRED"
	KindAlreadySubmitted      ErrorKind = "ALREADY_SUBMITTED"
	KindAccessDenied          ErrorKind = "ACCESS_DENIED"
	KindInsufficientQuestions ErrorKind = "INSUFFICIENT_QUESTIONS"
	KindQuestionNotFound      ErrorKind = "QUESTION_NOT_FOUND"
	KindTestNotFinished       ErrorKind = "TEST_NOT_FINISHED"
	KindValidation            ErrorKind = "VALIDATION"
)

// Error is the user-safe failure returned by the session engine.
// Two errors match under errors.Is when their kinds are equal.
type Error struct {
	Kind    ErrorKind
	Message string
}

func (e *Error) Error() string { return e.Message }

func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

func newError(kind ErrorKind, msg string) *Error {
	return &Error{Kind: kind, Message: msg}
}

var (
	ErrNotFound              = newError(KindNotFound, "test session not found")
	ErrUserNotFound          = newError(KindUserNotFound, "user not found")
	ErrInvalidState          = newError(KindInvalidState, "operation is not allowed in the current session state")
	ErrTestExpired           = newError(KindTestExpired, "test time has expired")
	ErrAlreadySubmitted      = newError(KindAlreadySubmitted, "answers have already been submitted for this test")
	ErrAccessDenied          = newError(KindAccessDenied, "no active access to this test; purchase a package first")
	ErrInsufficientQuestions = newError(KindInsufficientQuestions, "not enough questions for this topic")
	ErrQuestionNotFound      = newError(KindQuestionNotFound, "question not found")
	ErrTestNotFinished       = newError(KindTestNotFinished, "test is not finished yet")
)

func ValidationError(msg string) *Error {
	return newError(KindValidation, msg)
}

func KindOf(err error) (ErrorKind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return "", false
}

// isUniqueViolation reports a Postgres or SQLite unique-constraint failure.
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	// dialects translate their own codes when gorm.Config.TranslateError is set
	return errors.Is(err, gorm.ErrDuplicatedKey)
}
