package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"chat-trigger-engine/internal/logger"
)

var log = logger.Get("config")

type Config struct {
	Port                      string
	VerifyToken               string
	WhatsAppToken             string
	PhoneNumberID             string
	WhatsAppBusinessAccountID string

	DBDriver   string // sqlite or postgres
	DBPath     string
	DBHost     string
	DBUser     string
	DBPassword string
	DBName     string
	DBPort     string
	DBSSLMode  string

	OpenAIAPIKey string
	OpenAIModel  string

	// EngineFile is a YAML file with accounts, persona, knowledge, rules and trigger configs.
	EngineFile        string
	IntentTimeout     time.Duration
	ReplyTimeout      time.Duration
	SendRatePerMinute int

	// StatsFlushInterval is how often trigger stats are written back to the database.
	StatsFlushInterval time.Duration

	LogLevel string
	LogDir   string
	LogJSON  bool
}

func LoadConfig() *Config {
	err := godotenv.Load()
	if err != nil {
		log.Println("Warning: Error loading .env file")
	}

	return &Config{
		Port:                      getEnv("PORT", "8080"),
		VerifyToken:               getEnv("VERIFY_TOKEN", ""),
		WhatsAppToken:             getEnv("WHATSAPP_TOKEN", ""),
		PhoneNumberID:             getEnv("PHONE_NUMBER_ID", ""),
		WhatsAppBusinessAccountID: getEnv("WABA_ID", ""),

		DBDriver:   getEnv("DB_DRIVER", "sqlite"),
		DBPath:     getEnv("DB_PATH", "./engine.db"),
		DBHost:     getEnv("DB_HOST", "localhost"),
		DBUser:     getEnv("DB_USER", "postgres"),
		DBPassword: getEnv("DB_PASSWORD", ""),
		DBName:     getEnv("DB_NAME", "trigger_engine"),
		DBPort:     getEnv("DB_PORT", "5432"),
		DBSSLMode:  getEnv("DB_SSLMODE", "disable"),

		OpenAIAPIKey: getEnv("OPENAI_API_KEY", ""),
		OpenAIModel:  getEnv("OPENAI_MODEL", ""),

		EngineFile:        getEnv("ENGINE_FILE", ""),
		IntentTimeout:     getDuration("INTENT_TIMEOUT", 5*time.Second),
		ReplyTimeout:      getDuration("REPLY_TIMEOUT", 10*time.Second),
		SendRatePerMinute: getInt("SEND_RATE_PER_MINUTE", 20),

		StatsFlushInterval: getDuration("STATS_FLUSH_INTERVAL", 10*time.Second),

		LogLevel: getEnv("LOG_LEVEL", "info"),
		LogDir:   getEnv("LOG_DIR", ""),
		LogJSON:  getEnv("LOG_FORMAT", "text") == "json",
	}
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) time.Duration {
	raw := getEnv(key, "")
	if raw == "" {
		return fallback
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		log.Printf("Warning: invalid %s=%q, using %s", key, raw, fallback)
		return fallback
	}
	return d
}

func getInt(key string, fallback int) int {
	raw := getEnv(key, "")
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		log.Printf("Warning: invalid %s=%q, using %d", key, raw, fallback)
		return fallback
	}
	return n
}
