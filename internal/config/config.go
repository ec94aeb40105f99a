package config

import (
	"encoding/hex"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Guard policies of the loan application workflow
const (
	GuardsPermissive = "permissive"
	GuardsStrict     = "strict"
)

// Config holds application configuration
type Config struct {
	Port            string
	DBDriver        string
	DBConn          string
	LogLevel        string
	JWTSecret       string
	CBRURL          string
	HMACSecret      string
	EncryptionKey   []byte
	DefaultCurrency string
	WorkflowGuards  string

	SMTPHost     string
	SMTPPort     string
	SMTPUsername string
	SMTPPassword string
	SenderEmail  string

	RabbitMQURL      string
	RabbitMQExchange string

	ReminderCron       string
	ReminderWindowDays int
}

// NewConfig loads configuration from environment variables
func NewConfig() (*Config, error) {
	cfg := &Config{
		Port:            getEnv("PORT", "8080"),
		DBDriver:        getEnv("DB_DRIVER", "postgres"),
		DBConn:          getEnv("DB_CONN", "host=localhost port=5436 user=test password=test dbname=bank sslmode=disable"),
		LogLevel:        getEnv("LOG_LEVEL", "INFO"),
		JWTSecret:       getEnv("JWT_SECRET", "secret"),
		CBRURL:          getEnv("CBR_URL", "https://www.cbr.ru/DailyInfoWebServ/DailyInfo.asmx"),
		HMACSecret:      getEnv("HMAC_SECRET", "a1b2c3d4e5f6a7b8c9d0e1f2a3b4c5d6a1b2c3d4e5f6a7b8c9d0e1f2a3b4c5d6"),
		DefaultCurrency: strings.ToUpper(getEnv("DEFAULT_CURRENCY", "RUB")),
		WorkflowGuards:  strings.ToLower(getEnv("WORKFLOW_GUARDS", GuardsPermissive)),

		SMTPHost:     getEnv("SMTP_HOST", ""),
		SMTPPort:     getEnv("SMTP_PORT", "587"),
		SMTPUsername: getEnv("SMTP_USERNAME", ""),
		SMTPPassword: getEnv("SMTP_PASSWORD", ""),
		SenderEmail:  getEnv("SENDER_EMAIL", "noreply@bank.local"),

		RabbitMQURL:      getEnv("RABBITMQ_URL", ""),
		RabbitMQExchange: getEnv("RABBITMQ_EXCHANGE", "bank.loans"),

		ReminderCron: getEnv("REMINDER_CRON", "0 8 * * *"),
	}

	if cfg.DBConn == "" {
		return nil, fmt.Errorf("DB_CONN is required")
	}
	if cfg.DBDriver != "postgres" && cfg.DBDriver != "sqlite3" {
		return nil, fmt.Errorf("DB_DRIVER must be postgres or sqlite3, got %q", cfg.DBDriver)
	}
	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}
	if cfg.HMACSecret == "" {
		return nil, fmt.Errorf("HMAC_SECRET is required")
	}
	if len(cfg.DefaultCurrency) != 3 {
		return nil, fmt.Errorf("DEFAULT_CURRENCY must be a 3 letter code, got %q", cfg.DefaultCurrency)
	}
	if cfg.WorkflowGuards != GuardsPermissive && cfg.WorkflowGuards != GuardsStrict {
		return nil, fmt.Errorf("WORKFLOW_GUARDS must be %s or %s, got %q", GuardsPermissive, GuardsStrict, cfg.WorkflowGuards)
	}

	key, err := hex.DecodeString(getEnv("ENCRYPTION_KEY", "a1b2c3d4e5f6a7b8c9d0e1f2a3b4c5d6a1b2c3d4e5f6a7b8c9d0e1f2a3b4c5d6"))
	if err != nil {
		return nil, fmt.Errorf("ENCRYPTION_KEY must be hex encoded: %w", err)
	}
	if len(key) != 16 && len(key) != 24 && len(key) != 32 {
		return nil, fmt.Errorf("ENCRYPTION_KEY must decode to 16, 24 or 32 bytes, got %d", len(key))
	}
	cfg.EncryptionKey = key

	days, err := strconv.Atoi(getEnv("REMINDER_WINDOW_DAYS", "3"))
	if err != nil || days < 0 {
		return nil, fmt.Errorf("REMINDER_WINDOW_DAYS must be a non-negative integer")
	}
	cfg.ReminderWindowDays = days

	return cfg, nil
}

// EmailEnabled reports whether an SMTP server is configured
func (c *Config) EmailEnabled() bool {
	return c.SMTPHost != ""
}

// EventsEnabled reports whether a message broker is configured
func (c *Config) EventsEnabled() bool {
	return c.RabbitMQURL != ""
}

func getEnv(key, defaultVal string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultVal
}
