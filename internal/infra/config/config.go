package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// AppConfig holds all configuration for the dispatcher.
type AppConfig struct {
	DatabaseURL string
	HTTPPort    int
	BaseURL     string
	LogLevel    string
	Environment string

	// CronSpecDispatch triggers one batch dispatch cycle per firing.
	CronSpecDispatch  string
	EventBatchSize    int
	DeliveryBatchSize int

	// SMTP relay. When any of host/port/from is empty the email transport
	// runs in no-op mode.
	SMTPHost     string
	SMTPPort     string
	SMTPUsername string
	SMTPPassword string
	SMTPFrom     string

	// WhatsApp provider. When credentials are absent, or WhatsAppBypass is
	// set, the transport runs in no-op mode.
	WhatsAppAccountSID string
	WhatsAppAuthToken  string
	WhatsAppFrom       string
	WhatsAppAPIBase    string
	WhatsAppBypass     bool
}

// Load reads configuration from environment variables and .env file (if present).
func Load() (*AppConfig, error) {
	// Attempt to load .env file. Errors are ignored if the file doesn't exist.
	// godotenv.Load will not override existing env variables.
	_ = godotenv.Load()

	cfg := &AppConfig{}
	var err error

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is not set")
	}

	cfg.HTTPPort, err = getEnvInt("HTTP_PORT", 8080)
	if err != nil {
		return nil, fmt.Errorf("invalid HTTP_PORT: %w", err)
	}

	cfg.BaseURL = os.Getenv("BASE_URL")
	if cfg.BaseURL == "" {
		cfg.BaseURL = "http://localhost:8080"
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")

	cfg.LogLevel = strings.ToLower(os.Getenv("LOG_LEVEL"))
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}

	cfg.Environment = strings.ToLower(os.Getenv("ENVIRONMENT"))
	if cfg.Environment == "" {
		cfg.Environment = "development"
	}

	cfg.CronSpecDispatch = os.Getenv("CRON_SPEC_DISPATCH")
	if cfg.CronSpecDispatch == "" {
		cfg.CronSpecDispatch = "*/5 * * * *" // Default: every 5 minutes
	}

	cfg.EventBatchSize, err = getEnvInt("EVENT_BATCH_SIZE", 20)
	if err != nil {
		return nil, fmt.Errorf("invalid EVENT_BATCH_SIZE: %w", err)
	}
	cfg.DeliveryBatchSize, err = getEnvInt("DELIVERY_BATCH_SIZE", 25)
	if err != nil {
		return nil, fmt.Errorf("invalid DELIVERY_BATCH_SIZE: %w", err)
	}

	cfg.SMTPHost = os.Getenv("SMTP_HOST")
	cfg.SMTPPort = os.Getenv("SMTP_PORT")
	cfg.SMTPUsername = os.Getenv("SMTP_USERNAME")
	cfg.SMTPPassword = os.Getenv("SMTP_PASSWORD")
	cfg.SMTPFrom = os.Getenv("SMTP_FROM")

	cfg.WhatsAppAccountSID = os.Getenv("WHATSAPP_ACCOUNT_SID")
	cfg.WhatsAppAuthToken = os.Getenv("WHATSAPP_AUTH_TOKEN")
	cfg.WhatsAppFrom = os.Getenv("WHATSAPP_FROM")
	cfg.WhatsAppAPIBase = os.Getenv("WHATSAPP_API_BASE")
	if cfg.WhatsAppAPIBase == "" {
		cfg.WhatsAppAPIBase = "https://api.twilio.com/2010-04-01"
	}
	cfg.WhatsAppBypass = os.Getenv("WHATSAPP_BYPASS") == "true"

	return cfg, nil
}

func getEnvInt(key string, defaultValue int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	return strconv.Atoi(value)
}
