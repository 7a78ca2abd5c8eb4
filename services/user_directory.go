package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/anjiri1684/drivesmart/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type UserDirectory struct {
	db *gorm.DB
}

func NewUserDirectory(db *gorm.DB) *UserDirectory {
	return &UserDirectory{db: db}
}

func (d *UserDirectory) withTx(tx *gorm.DB) *UserDirectory {
	return &UserDirectory{db: tx}
}

func (d *UserDirectory) FindActive(ctx context.Context, userID uuid.UUID) (*models.User, error) {
	var user models.User
	err := d.db.WithContext(ctx).
		Where("id = ? AND is_active = ?", userID, true).
		First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find user %s: %w", userID, err)
	}
	return &user, nil
}
