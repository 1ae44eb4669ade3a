package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds everything read from the environment at process start.
// It is constructed once and passed in explicitly so adapters stay testable
// with fake credentials.
type Config struct {
	Port         string
	DBPath       string
	OpenAIAPIKey string
	GeminiAPIKey string
	JWTSecret    string
	TokenTTL     time.Duration
	WebhookURL   string // empty disables webhook delivery
}

// requiredEnvVars lists the environment variables that must be set for the
// server to run.
var requiredEnvVars = []string{"OPENAI_API_KEY", "GEMINI_API_KEY", "JWT_SECRET"}

// LoadEnvFile loads environment variables from a .env file in the working
// directory. Errors are ignored since the file may not exist.
func LoadEnvFile() {
	_ = godotenv.Load()
}

// CheckRequired returns the names of any required variables that are unset.
func CheckRequired() []string {
	var missing []string
	for _, v := range requiredEnvVars {
		if os.Getenv(v) == "" {
			missing = append(missing, v)
		}
	}
	return missing
}

// Load reads the configuration from the environment.
func Load() (*Config, error) {
	cfg := &Config{
		Port:         getenvDefault("PORT", "8001"),
		DBPath:       getenvDefault("DB_PATH", "currency-lens.db"),
		OpenAIAPIKey: os.Getenv("OPENAI_API_KEY"),
		GeminiAPIKey: os.Getenv("GEMINI_API_KEY"),
		JWTSecret:    os.Getenv("JWT_SECRET"),
		WebhookURL:   os.Getenv("WEBHOOK_URL"),
	}

	ttlMinutes := getenvDefault("ACCESS_TOKEN_EXPIRE_MINUTES", "30")
	minutes, err := strconv.Atoi(ttlMinutes)
	if err != nil {
		return nil, fmt.Errorf("invalid ACCESS_TOKEN_EXPIRE_MINUTES %q: %w", ttlMinutes, err)
	}
	cfg.TokenTTL = time.Duration(minutes) * time.Minute

	return cfg, nil
}

func getenvDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
