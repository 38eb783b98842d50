package config

import (
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

// Config holds all application configuration
type Config struct {
	OpenAIAPIKey     string `env:"OPENAI_API_KEY" envDefault:"-"`
	OpenAIModel      string `env:"OPENAI_MODEL" envDefault:"gpt-4o"`
	HTTPAddr         string `env:"HTTP_ADDR" envDefault:":8001"`
	DBDriver         string `env:"DB_DRIVER" envDefault:"badger"` // badger or postgres
	DBPath           string `env:"DB_PATH" envDefault:"./data/betty"`
	DBHost           string `env:"DB_HOST" envDefault:"localhost"`
	DBPort           string `env:"DB_PORT" envDefault:"5432"`
	DBUser           string `env:"DB_USER" envDefault:"betty"`
	DBPassword       string `env:"DB_PASSWORD" envDefault:"-"`
	DBName           string `env:"DB_NAME" envDefault:"betty"`
	DBSSLMode        string `env:"DB_SSLMODE" envDefault:"disable"`
	TelegramBotToken string `env:"TELEGRAM_BOT_TOKEN" envDefault:"-"`
	TelegramChatID   int64  `env:"TELEGRAM_CHAT_ID" envDefault:"0"`
	LogLevel         string `env:"LOG_LEVEL" envDefault:"info"`
	RequestTimeout   int    `env:"REQUEST_TIMEOUT" envDefault:"30"` // seconds
	RequestsPerSec   int    `env:"REQUESTS_PER_SEC" envDefault:"5"`
	CacheTTLMinutes  int    `env:"CACHE_TTL_MINUTES" envDefault:"5"`
	GenerateCron     string `env:"GENERATE_CRON" envDefault:"0 9 * * 1"`
	EvaluateCron     string `env:"EVALUATE_CRON" envDefault:"0 8 * * 1"`
}

// Load initializes configuration from environment variables
func Load() (*Config, error) {
	// Load environment variables from .env file if present
	if err := godotenv.Load(); err != nil {
		log.Warn().Msg(".env file not found, relying on actual environment variables")
	}

	var cfg Config

	cfg.OpenAIAPIKey = os.Getenv("OPENAI_API_KEY")
	cfg.OpenAIModel = getEnvWithDefault("OPENAI_MODEL", "gpt-4o")
	cfg.HTTPAddr = getEnvWithDefault("HTTP_ADDR", ":8001")
	cfg.DBDriver = getEnvWithDefault("DB_DRIVER", "badger")
	cfg.DBPath = getEnvWithDefault("DB_PATH", "./data/betty")
	cfg.DBHost = getEnvWithDefault("DB_HOST", "localhost")
	cfg.DBPort = getEnvWithDefault("DB_PORT", "5432")
	cfg.DBUser = getEnvWithDefault("DB_USER", "betty")
	cfg.DBPassword = os.Getenv("DB_PASSWORD")
	cfg.DBName = getEnvWithDefault("DB_NAME", "betty")
	cfg.DBSSLMode = getEnvWithDefault("DB_SSLMODE", "disable")
	cfg.TelegramBotToken = os.Getenv("TELEGRAM_BOT_TOKEN")
	cfg.TelegramChatID = getEnvInt64WithDefault("TELEGRAM_CHAT_ID", 0)
	cfg.LogLevel = getEnvWithDefault("LOG_LEVEL", "info")
	cfg.RequestTimeout = getEnvIntWithDefault("REQUEST_TIMEOUT", 30)
	cfg.RequestsPerSec = getEnvIntWithDefault("REQUESTS_PER_SEC", 5)
	cfg.CacheTTLMinutes = getEnvIntWithDefault("CACHE_TTL_MINUTES", 5)
	cfg.GenerateCron = getEnvWithDefault("GENERATE_CRON", "0 9 * * 1")
	cfg.EvaluateCron = getEnvWithDefault("EVALUATE_CRON", "0 8 * * 1")

	return &cfg, nil
}

// Helper functions for environment variable handling
func getEnvWithDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntWithDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvInt64WithDefault(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intValue
		}
	}
	return defaultValue
}
