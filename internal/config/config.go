package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	NodeEnv    string
	Port       string
	JWTSecret  string
	StorageDir string
	Database   DatabaseConfig
	Integrity  IntegrityConfig
	Alerts     AlertConfig
	Lifecycle  LifecycleConfig
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Host     string
	Port     string
	Username string
	Password string
	Database string
	Silent   bool
}

// IntegrityConfig holds the integrity checker cadence and retry policy
type IntegrityConfig struct {
	IncrementalInterval time.Duration
	FullInterval        time.Duration
	RetryAttempts       int
	RetryBackoff        time.Duration
	BatchSize           int
	Parallelism         int
}

// AlertConfig holds alert notification configuration
type AlertConfig struct {
	Enabled     bool
	SMTPHost    string
	SMTPPort    string
	SMTPUser    string
	SMTPPass    string
	EmailFrom   string
	AdminEmails []string
}

// LifecycleConfig holds transition-table tuning knobs
type LifecycleConfig struct {
	// BOLRequireVerify controls whether paying an invoice (completing the
	// transaction) requires the BOL to be auditor-verified or accepts a
	// merely received BOL.
	BOLRequireVerify bool
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	jwtSecret := os.Getenv("JWT_SECRET")
	if jwtSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}

	adminEmails := []string{}
	for _, e := range strings.Split(os.Getenv("ADMIN_ALERT_EMAILS"), ",") {
		if e = strings.TrimSpace(e); e != "" {
			adminEmails = append(adminEmails, e)
		}
	}

	return &Config{
		NodeEnv:    getEnv("NODE_ENV", "development"),
		Port:       getEnv("PORT", "3001"),
		JWTSecret:  jwtSecret,
		StorageDir: getEnv("STORAGE_DIR", "./uploaded_files"),
		Database: DatabaseConfig{
			Host:     getEnv("PG_HOST", "localhost"),
			Port:     getEnv("PG_PORT", "5432"),
			Username: getEnv("PG_USERNAME", "postgres"),
			Password: os.Getenv("PG_PASSWORD"),
			Database: getEnv("PG_DATABASE", "tradefin"),
			Silent:   getEnv("DB_SILENT", "false") == "true",
		},
		Integrity: IntegrityConfig{
			IncrementalInterval: time.Duration(getEnvInt("INTEGRITY_INCREMENTAL_MINUTES", 60)) * time.Minute,
			FullInterval:        time.Duration(getEnvInt("INTEGRITY_FULL_HOURS", 24)) * time.Hour,
			RetryAttempts:       getEnvInt("INTEGRITY_RETRY_ATTEMPTS", 3),
			RetryBackoff:        time.Duration(getEnvInt("INTEGRITY_RETRY_BACKOFF_MS", 250)) * time.Millisecond,
			BatchSize:           getEnvInt("INTEGRITY_BATCH_SIZE", 100),
			Parallelism:         getEnvInt("INTEGRITY_PARALLELISM", 4),
		},
		Alerts: AlertConfig{
			Enabled:     getEnv("ALERTS_ENABLED", "false") == "true",
			SMTPHost:    getEnv("SMTP_HOST", "smtp.gmail.com"),
			SMTPPort:    getEnv("SMTP_PORT", "587"),
			SMTPUser:    os.Getenv("SMTP_USER"),
			SMTPPass:    os.Getenv("SMTP_PASSWORD"),
			EmailFrom:   getEnv("ALERT_EMAIL_FROM", "alerts@tradefin.local"),
			AdminEmails: adminEmails,
		},
		Lifecycle: LifecycleConfig{
			BOLRequireVerify: getEnv("BOL_REQUIRE_VERIFY", "false") == "true",
		},
	}, nil
}

// getEnv gets environment variable with default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt gets an integer environment variable with default value
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}
