package config

import (
	"log"
	"os"
	"strconv"
	"sync"

	"github.com/joho/godotenv"
)

var loadOnce sync.Once

func loadDotEnv() {
	loadOnce.Do(func() {
		if err := godotenv.Load(".env"); err != nil {
			log.Println("Warning: .env file not found, reading from system environment variables")
		}
	})
}

// AppConfig is read once at startup from .env and the process environment.
type AppConfig struct {
	Port                   string
	DBDriver               string
	DatabaseURL            string
	JWTSecret              string
	SessionDurationMinutes int
	ExpirySweepSpec        string
	CloudinaryURL          string
	ImageBasePath          string
	SeedDemoData           bool
	AdminEmail             string
	AdminPassword          string
	AdminFullName          string
	LogTimeZone            string
}

func Load() AppConfig {
	loadDotEnv()
	return AppConfig{
		Port:                   getOr("APP_PORT", "8080"),
		DBDriver:               getOr("DB_DRIVER", "postgres"),
		DatabaseURL:            os.Getenv("DATABASE_URL"),
		JWTSecret:              os.Getenv("JWT_SECRET"),
		SessionDurationMinutes: getInt("SESSION_DURATION_MINUTES", 30),
		ExpirySweepSpec:        getOr("EXPIRY_SWEEP_SPEC", "*/5 * * * *"),
		CloudinaryURL:          os.Getenv("CLOUDINARY_URL"),
		ImageBasePath:          getOr("IMAGE_BASE_PATH", "/api/images/"),
		SeedDemoData:           getBool("SEED_DEMO_DATA", false),
		AdminEmail:             os.Getenv("ADMIN_EMAIL"),
		AdminPassword:          os.Getenv("ADMIN_PASSWORD"),
		AdminFullName:          getOr("ADMIN_FULL_NAME", "Administrator"),
		LogTimeZone:            getOr("LOG_TIMEZONE", "Africa/Nairobi"),
	}
}

func getOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		log.Printf("Warning: invalid %s=%q, using %d", key, v, def)
		return def
	}
	return n
}

func getBool(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		log.Printf("Warning: invalid %s=%q, using %t", key, v, def)
		return def
	}
	return b
}
