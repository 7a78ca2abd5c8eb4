package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"time"

	"github.com/anjiri1684/drivesmart/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var ErrPackageNotFound = newError(KindNotFound, "test package not found")

type AccessView struct {
	AccessID          uuid.UUID `json:"access_id"`
	PackageID         uuid.UUID `json:"package_id"`
	PackageName       string    `json:"package_name"`
	Topic             string    `json:"topic"`
	RemainingAttempts int       `json:"remaining_attempts"`
	ExpiresAt         time.Time `json:"expires_at"`
	HasAccess         bool      `json:"has_access"`
}

// AccessService is the per-user, per-package ledger of purchased attempts.
type AccessService struct {
	db  *gorm.DB
	Now func() time.Time
}

func NewAccessService(db *gorm.DB) *AccessService {
	return &AccessService{db: db, Now: time.Now}
}

func (s *AccessService) withTx(tx *gorm.DB) *AccessService {
	return &AccessService{db: tx, Now: s.Now}
}

func (s *AccessService) now() time.Time {
	return normalizeTime(s.Now())
}

func (s *AccessService) HasAccess(ctx context.Context, userID, packageID uuid.UUID) (bool, error) {
	var access models.UserTestAccess
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND package_id = ?", userID, packageID).
		First(&access).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("load access: %w", err)
	}
	return access.HasAccess(s.now()), nil
}

// ConsumeAttempt takes exactly one attempt. The row is locked and re-checked
// at the moment of use, and the decrement itself is conditional.
func (s *AccessService) ConsumeAttempt(ctx context.Context, userID, packageID uuid.UUID) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return s.withTx(tx).consumeAttempt(ctx, userID, packageID, s.now())
	})
}

func (s *AccessService) consumeAttempt(ctx context.Context, userID, packageID uuid.UUID, now time.Time) error {
	var access models.UserTestAccess
	err := s.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("user_id = ? AND package_id = ?", userID, packageID).
		First(&access).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrAccessDenied
	}
	if err != nil {
		return fmt.Errorf("lock access: %w", err)
	}
	if !access.HasAccess(now) {
		return ErrAccessDenied
	}

	res := s.db.WithContext(ctx).
		Model(&models.UserTestAccess{}).
		Where("id = ? AND remaining_attempts > 0 AND is_active = ? AND expires_at > ?", access.ID, true, now).
		Updates(map[string]interface{}{
			"remaining_attempts": gorm.Expr("remaining_attempts - 1"),
			"updated_at":         now,
		})
	if res.Error != nil {
		return fmt.Errorf("consume attempt: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrAccessDenied
	}
	log.Printf("[access] attempt consumed user=%s package=%s remaining=%d", userID, packageID, access.RemainingAttempts-1)
	return nil
}

func (s *AccessService) ActivePackagesForTopic(ctx context.Context, topic string) ([]models.TestPackage, error) {
	var pkgs []models.TestPackage
	err := s.db.WithContext(ctx).
		Where("topic = ? AND is_active = ?", topic, true).
		Order("price").
		Find(&pkgs).Error
	if err != nil {
		return nil, fmt.Errorf("load packages for topic %q: %w", topic, err)
	}
	return pkgs, nil
}

// ActivePackages lists the purchasable catalogue, optionally narrowed to one topic.
func (s *AccessService) ActivePackages(ctx context.Context, topic string) ([]models.TestPackage, error) {
	if topic != "" {
		return s.ActivePackagesForTopic(ctx, topic)
	}
	var pkgs []models.TestPackage
	err := s.db.WithContext(ctx).
		Where("is_active = ?", true).
		Order("topic, price").
		Find(&pkgs).Error
	if err != nil {
		return nil, fmt.Errorf("load packages: %w", err)
	}
	return pkgs, nil
}

func (s *AccessService) Package(ctx context.Context, packageID uuid.UUID) (*models.TestPackage, error) {
	var pkg models.TestPackage
	err := s.db.WithContext(ctx).
		Where("id = ? AND is_active = ?", packageID, true).
		First(&pkg).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrPackageNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load package: %w", err)
	}
	return &pkg, nil
}

// consumeForTopic spends one attempt on a package covering the topic. A topic
// without active packages is free and returns a nil package id.
func (s *AccessService) consumeForTopic(ctx context.Context, userID uuid.UUID, topic string, questionCount int, now time.Time) (*uuid.UUID, error) {
	pkgs, err := s.ActivePackagesForTopic(ctx, topic)
	if err != nil {
		return nil, err
	}
	if len(pkgs) == 0 {
		return nil, nil
	}

	byID := make(map[uuid.UUID]models.TestPackage, len(pkgs))
	ids := make([]uuid.UUID, 0, len(pkgs))
	for _, p := range pkgs {
		byID[p.ID] = p
		ids = append(ids, p.ID)
	}

	var rows []models.UserTestAccess
	err = s.db.WithContext(ctx).
		Where("user_id = ? AND package_id IN ?", userID, ids).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("load access rows: %w", err)
	}

	usable := rows[:0]
	for _, r := range rows {
		if r.HasAccess(now) {
			usable = append(usable, r)
		}
	}
	// exact question-count match first, then whichever expires soonest
	sort.SliceStable(usable, func(i, j int) bool {
		mi := byID[usable[i].PackageID].QuestionCount == questionCount
		mj := byID[usable[j].PackageID].QuestionCount == questionCount
		if mi != mj {
			return mi
		}
		return usable[i].ExpiresAt.Before(usable[j].ExpiresAt)
	})

	for _, r := range usable {
		err := s.consumeAttempt(ctx, userID, r.PackageID, now)
		if errors.Is(err, ErrAccessDenied) {
			continue
		}
		if err != nil {
			return nil, err
		}
		pkgID := r.PackageID
		return &pkgID, nil
	}
	return nil, ErrAccessDenied
}

func (s *AccessService) ActiveAccess(ctx context.Context, userID uuid.UUID) ([]AccessView, error) {
	now := s.now()
	var rows []models.UserTestAccess
	err := s.db.WithContext(ctx).
		Preload("Package").
		Where("user_id = ? AND is_active = ? AND expires_at > ? AND remaining_attempts > 0", userID, true, now).
		Order("expires_at").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("load active access: %w", err)
	}
	views := make([]AccessView, 0, len(rows))
	for _, r := range rows {
		views = append(views, AccessView{
			AccessID:          r.ID,
			PackageID:         r.PackageID,
			PackageName:       r.Package.Name,
			Topic:             r.Package.Topic,
			RemainingAttempts: r.RemainingAttempts,
			ExpiresAt:         normalizeTime(r.ExpiresAt),
			HasAccess:         r.HasAccess(now),
		})
	}
	return views, nil
}

// Grant credits a package to a user, as a confirmed purchase does. Buying the
// same package again adds its attempts and pushes the expiry out.
func (s *AccessService) Grant(ctx context.Context, userID, packageID uuid.UUID) (*models.UserTestAccess, error) {
	now := s.now()
	var out models.UserTestAccess
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var pkg models.TestPackage
		if err := tx.Where("id = ? AND is_active = ?", packageID, true).First(&pkg).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrPackageNotFound
			}
			return err
		}
		expiresAt := now.AddDate(0, 0, pkg.DurationDays)

		var access models.UserTestAccess
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("user_id = ? AND package_id = ?", userID, packageID).
			First(&access).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			access = models.UserTestAccess{
				UserID:            userID,
				PackageID:         packageID,
				RemainingAttempts: pkg.MaxAttempts,
				ExpiresAt:         expiresAt,
				IsActive:          true,
			}
			if err := tx.Omit(clause.Associations).Create(&access).Error; err != nil {
				return err
			}
		case err != nil:
			return err
		default:
			if access.HasAccess(now) {
				access.RemainingAttempts += pkg.MaxAttempts
			} else {
				access.RemainingAttempts = pkg.MaxAttempts
			}
			if expiresAt.After(access.ExpiresAt) {
				access.ExpiresAt = expiresAt
			}
			access.IsActive = true
			if err := tx.Omit(clause.Associations).Save(&access).Error; err != nil {
				return err
			}
		}
		out = access
		out.Package = pkg
		return nil
	})
	if err != nil {
		var e *Error
		if errors.As(err, &e) {
			return nil, err
		}
		return nil, fmt.Errorf("grant access: %w", err)
	}
	log.Printf("[access] granted user=%s package=%s attempts=%d", userID, packageID, out.RemainingAttempts)
	return &out, nil
}
