package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type AppConfig struct {
	Port            string
	LogLevel        string
	LogFormat       string
	ListingsCSVPath string
	DatabasePath    string
	MapArtifactPath string

	// Snapshot API (data-collection service) settings.
	TokenPath       string
	TriggerURL      string
	SnapshotURL     string
	InitialDelay    time.Duration
	PollInterval    time.Duration
	MaxPollAttempts int

	// HistoryCacheTTL of 0 means cached retrievals never expire.
	HistoryCacheTTL time.Duration

	AlertServiceProvider string
	MailgunDomain        string
	MailgunPrivateAPIKey string
	AlertRecipient       string
	SenderEmail          string
	SenderName           string
}

var Cfg *AppConfig

func LoadConfig() {
	errEnv := godotenv.Load()
	if errEnv != nil {
		log.Println("Info: No .env file found or error loading .env file. Relying on OS environment variables and defaults. Error (if any):", errEnv)
	} else {
		log.Println(".env file loaded successfully.")
	}

	log.Println("Loading application configuration...")

	maxPollAttempts := getEnvAsInt("MAX_POLL_ATTEMPTS", 30)
	if maxPollAttempts < 1 {
		log.Printf("WARNING: MAX_POLL_ATTEMPTS must be at least 1, got %d. Using 1.", maxPollAttempts)
		maxPollAttempts = 1
	}

	Cfg = &AppConfig{
		Port:            getEnv("PORT", "8080"),
		LogLevel:        getEnv("LOG_LEVEL", "info"),
		LogFormat:       getEnv("LOG_FORMAT", "json"),
		ListingsCSVPath: getEnv("LISTINGS_CSV_PATH", "data/zillow_memphistn.csv"),
		DatabasePath:    getEnv("DATABASE_PATH", "./yieldmap.db"),
		MapArtifactPath: getEnv("MAP_ARTIFACT_PATH", "templates/properties_map.html"),

		TokenPath:       getEnv("TOKEN_PATH", "TOKEN"),
		TriggerURL:      getEnv("TRIGGER_URL", "https://api.brightdata.com/datasets/v3/trigger?dataset_id=gd_lxu1cz9r88uiqsosl"),
		SnapshotURL:     getEnv("SNAPSHOT_URL", "https://api.brightdata.com/datasets/v3/snapshots"),
		InitialDelay:    getEnvAsDuration("INITIAL_DELAY", 5*time.Second),
		PollInterval:    getEnvAsDuration("POLL_INTERVAL", 10*time.Second),
		MaxPollAttempts: maxPollAttempts,

		HistoryCacheTTL: getEnvAsDuration("HISTORY_CACHE_TTL", 0),

		AlertServiceProvider: getEnv("ALERT_SERVICE_PROVIDER", "none"),
		MailgunDomain:        getEnv("MAILGUN_DOMAIN", ""),
		MailgunPrivateAPIKey: getEnv("MAILGUN_PRIVATE_API_KEY", ""),
		AlertRecipient:       getEnv("ALERT_RECIPIENT", ""),
		SenderEmail:          getEnv("SENDER_EMAIL", "noreply@example.com"),
		SenderName:           getEnv("SENDER_NAME", "Yieldmap App"),
	}

	if Cfg.AlertServiceProvider == "mailgun" {
		if Cfg.MailgunDomain == "" || Cfg.MailgunPrivateAPIKey == "" {
			log.Fatalf("FATAL: MAILGUN_DOMAIN and MAILGUN_PRIVATE_API_KEY are required when ALERT_SERVICE_PROVIDER is 'mailgun'.")
		}
		if Cfg.AlertRecipient == "" {
			log.Fatalf("FATAL: ALERT_RECIPIENT is required when ALERT_SERVICE_PROVIDER is 'mailgun'.")
		}
	}

	log.Printf("Configuration loaded: Port=%s, LogLevel=%s, DBPath=%s, ListingsCSV=%s, AlertProvider=%s",
		Cfg.Port, Cfg.LogLevel, Cfg.DatabasePath, Cfg.ListingsCSVPath, Cfg.AlertServiceProvider)
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	log.Printf("Environment variable %s not set, using default: %s", key, fallback)
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		log.Printf("Integer value for %s not set or empty, using default: %d", key, fallback)
		return fallback
	}
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	log.Printf("Invalid integer value for %s ('%s'), using default: %d", key, valueStr, fallback)
	return fallback
}

func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		log.Printf("Duration value for %s not set or empty, using default: %s", key, fallback.String())
		return fallback
	}
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	log.Printf("Invalid duration value for %s ('%s'), using default: %s", key, valueStr, fallback.String())
	return fallback
}
