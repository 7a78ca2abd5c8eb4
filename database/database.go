package database

import (
	"fmt"
	"log"
	"time"

	config "github.com/anjiri1684/drivesmart/configs"
	"github.com/anjiri1684/drivesmart/models"
	"github.com/glebarez/sqlite"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func Open(driver, dsn string) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch driver {
	case "postgres", "":
		dialector = postgres.Open(dsn)
	case "sqlite":
		if dsn == "" {
			dsn = "drivesmart.db"
		}
		dialector = sqlite.Open(dsn)
	default:
		return nil, fmt.Errorf("unsupported DB_DRIVER %q", driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		PrepareStmt:                              false,
		SkipDefaultTransaction:                   true,
		DisableForeignKeyConstraintWhenMigrating: true,
		TranslateError:                           true,
		Logger:                                   logger.Default.LogMode(logger.Warn),
		NowFunc: func() time.Time {
			return time.Now().UTC().Truncate(time.Microsecond)
		},
	})
	if err != nil {
		return nil, err
	}
	if err := TunePool(db, driver); err != nil {
		return nil, err
	}
	return db, nil
}

// TunePool sizes the connection pool. SQLite gets a single connection so
// writers queue up instead of failing with "database is locked".
func TunePool(db *gorm.DB, driver string) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	if driver == "sqlite" {
		sqlDB.SetMaxOpenConns(1)
		return nil
	}
	sqlDB.SetMaxOpenConns(20)
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetConnMaxIdleTime(60 * time.Second)
	sqlDB.SetConnMaxLifetime(10 * time.Minute)
	return nil
}

func ConnectDB(cfg config.AppConfig) *gorm.DB {
	db, err := Open(cfg.DBDriver, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("🔥 Failed to connect to database: %v", err)
	}
	fmt.Println("✅ Database connected successfully")
	return db
}

func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.User{},
		&models.Question{},
		&models.TestPackage{},
		&models.UserTestAccess{},
		&models.TestSession{},
		&models.UserAnswer{},
	)
}

func Migrate(db *gorm.DB) {
	if err := AutoMigrate(db); err != nil {
		log.Fatalf("🔥 Failed to migrate database: %v", err)
	}
	fmt.Println("✅ Database migration successful")
}

func SeedAdmin(db *gorm.DB, cfg config.AppConfig) {
	if cfg.AdminEmail == "" || cfg.AdminPassword == "" {
		log.Println("ADMIN_EMAIL/ADMIN_PASSWORD not set, skipping admin seed.")
		return
	}
	created, err := ensureUser(db, cfg.AdminFullName, cfg.AdminEmail, cfg.AdminPassword, "admin")
	if err != nil {
		log.Fatalf("🔥 Failed to seed admin user: %v", err)
	}
	if !created {
		log.Println("Admin user already exists.")
		return
	}
	log.Println("✅ Admin user seeded successfully")
}

func ensureUser(db *gorm.DB, fullName, email, password, role string) (bool, error) {
	var count int64
	if err := db.Model(&models.User{}).Where("email = ?", email).Count(&count).Error; err != nil {
		return false, err
	}
	if count > 0 {
		return false, nil
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return false, err
	}
	user := models.User{
		FullName: fullName,
		Email:    email,
		Password: string(hashedPassword),
		Role:     role,
		IsActive: true,
	}
	if err := db.Create(&user).Error; err != nil {
		return false, err
	}
	return true, nil
}
