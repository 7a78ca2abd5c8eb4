package services

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"gorm.io/gorm"
)

func TestIsUniqueViolation(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want bool
	}{
		{"postgres unique violation", &pgconn.PgError{Code: "23505"}, true},
		{"wrapped postgres unique violation", fmt.Errorf("insert answers: %w", &pgconn.PgError{Code: "23505"}), true},
		{"postgres foreign key violation", &pgconn.PgError{Code: "23503"}, false},
		{"translated duplicate key", gorm.ErrDuplicatedKey, true},
		{"wrapped translated duplicate key", fmt.Errorf("insert answers: %w", gorm.ErrDuplicatedKey), true},
		{"other error", errors.New("connection reset"), false},
		{"nil", nil, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, isUniqueViolation(tc.err))
		})
	}
}

func TestErrorKindMatching(t *testing.T) {
	err := fmt.Errorf("submit: %w", ErrAlreadySubmitted)
	assert.ErrorIs(t, err, ErrAlreadySubmitted)
	assert.NotErrorIs(t, err, ErrInvalidState)

	kind, ok := KindOf(err)
	assert.True(t, ok)
	assert.Equal(t, KindAlreadySubmitted, kind)
}
