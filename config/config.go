package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Server     ServerConfig
	Firebase   FirebaseConfig
	Generation GenerationConfig
	Redis      RedisConfig
	Database   DatabaseConfig
	App        AppConfig
}

type ServerConfig struct {
	Port           string
	AllowedOrigins []string
}

type FirebaseConfig struct {
	ProjectID       string
	CredentialsPath string
}

type GenerationConfig struct {
	BaseURL   string
	APIKey    string
	Model     string
	MaxTokens int
	// Requests per minute allowed per user on the generate endpoint.
	RatePerMinute int
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// DatabaseConfig is the optional Postgres audit log. Leave DSN empty to
// run without it.
type DatabaseConfig struct {
	DSN string
}

type AppConfig struct {
	Environment  string
	Version      string
	PublishDelay time.Duration
	// Domain used to synthesize published URLs, e.g. "appforge.app".
	PublishDomain string
}

func Load() (*Config, error) {
	// Load .env file if it exists (ignore error in production)
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	cfg := &Config{
		Server: ServerConfig{
			Port:           getEnv("PORT", "8080"),
			AllowedOrigins: []string{getEnv("FRONTEND_ORIGIN", "http://localhost:3000")},
		},
		Firebase: FirebaseConfig{
			ProjectID:       getEnv("FIREBASE_PROJECT_ID", ""),
			CredentialsPath: getEnv("FIREBASE_CREDENTIALS_PATH", ""),
		},
		Generation: GenerationConfig{
			BaseURL:       getEnv("OPENAI_BASE_URL", "https://api.openai.com/v1"),
			APIKey:        getEnv("OPENAI_API_KEY", ""),
			Model:         getEnv("OPENAI_MODEL", "gpt-4o"),
			MaxTokens:     getEnvAsInt("OPENAI_MAX_TOKENS", 4000),
			RatePerMinute: getEnvAsInt("GENERATE_RATE_PER_MINUTE", 10),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", ""),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
		},
		Database: DatabaseConfig{
			DSN: getEnv("DB_DSN", ""),
		},
		App: AppConfig{
			Environment:   getEnv("APP_ENV", "development"),
			Version:       getEnv("APP_VERSION", "1.0.0"),
			PublishDelay:  time.Duration(getEnvAsInt("PUBLISH_DELAY_MS", 2000)) * time.Millisecond,
			PublishDomain: getEnv("PUBLISH_DOMAIN", "appforge.app"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("PORT is required")
	}

	if c.Firebase.CredentialsPath == "" {
		return fmt.Errorf("FIREBASE_CREDENTIALS_PATH is required")
	}

	if c.Generation.APIKey == "" {
		log.Println("Warning: OPENAI_API_KEY is not set, generation requests will fail")
	}

	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		log.Printf("Warning: Invalid integer for %s, using default: %d", key, defaultValue)
		return defaultValue
	}

	return value
}
