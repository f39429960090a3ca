package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds every setting the service reads from the environment
type Config struct {
	Port     string
	BasePath string
	GinMode  string
	LogLevel string

	// Gemini
	GoogleAPIKey     string
	StoryModel       string
	ImageModel       string
	ModelTimeout     time.Duration
	MaxIllustrations int
	SummaryMaxChars  int

	// Optional infrastructure; empty hosts disable the feature
	Database DatabaseConfig
	RabbitMQ RabbitMQConfig
	Redis    RedisConfig

	RateLimit          RateLimitConfig
	APIKeyHashes       []string
	SentryDSN          string
	StoryRetentionDays int
	ExportsDir         string
	CORSAllowedOrigins []string
}

type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	Name     string
	SSLMode  string
}

// Enabled reports whether all connection parameters are present
func (c DatabaseConfig) Enabled() bool {
	return c.Host != "" && c.Port != "" && c.User != "" && c.Password != "" && c.Name != ""
}

// DSN builds the postgres connection string
func (c DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode)
}

type RabbitMQConfig struct {
	Host string
	Port string
	User string
	Pass string
}

func (c RabbitMQConfig) Enabled() bool {
	return c.Host != ""
}

// URL builds the AMQP url (guest user automatically uses / vhost)
func (c RabbitMQConfig) URL() string {
	return fmt.Sprintf("amqp://%s:%s@%s:%s/", c.User, c.Pass, c.Host, c.Port)
}

type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
}

func (c RedisConfig) Enabled() bool {
	return c.Host != ""
}

func (c RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%s", c.Host, c.Port)
}

type RateLimitConfig struct {
	Enabled  bool
	Requests int
	Window   time.Duration
}

// Load reads the configuration from environment variables
func Load() *Config {
	apiKey := getEnv("GOOGLE_API_KEY", "")
	if apiKey == "" {
		apiKey = getEnv("GEMINI_API_KEY", "")
	}

	return &Config{
		Port:     getEnv("PORT", "5000"),
		BasePath: getEnv("BASE_PATH", "/"),
		GinMode:  getEnv("GIN_MODE", "release"),
		LogLevel: getEnv("LOG_LEVEL", "info"),

		GoogleAPIKey:     apiKey,
		StoryModel:       getEnv("STORY_MODEL", "gemini-2.0-flash"),
		ImageModel:       getEnv("IMAGE_MODEL", "gemini-2.0-flash-exp-image-generation"),
		ModelTimeout:     getEnvAsDuration("MODEL_TIMEOUT", 2*time.Minute),
		MaxIllustrations: getEnvAsInt("MAX_ILLUSTRATIONS", 5),
		SummaryMaxChars:  getEnvAsInt("SUMMARY_MAX_CHARS", 300),

		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", ""),
			Port:     getEnv("DB_PORT", ""),
			User:     getEnv("DB_USER", ""),
			Password: getEnv("DB_PASSWORD", ""),
			Name:     getEnv("DB_NAME", ""),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		RabbitMQ: RabbitMQConfig{
			Host: getEnv("RABBITMQ_HOST", ""),
			Port: getEnv("RABBITMQ_PORT", "5672"),
			User: getEnv("RABBITMQ_USER", "guest"),
			Pass: getEnv("RABBITMQ_PASS", "guest"),
		},
		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", ""),
			Port:     getEnv("REDIS_PORT", "6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
		},

		RateLimit: RateLimitConfig{
			Enabled:  getEnvAsBool("RATE_LIMIT_ENABLED", true),
			Requests: getEnvAsInt("RATE_LIMIT_REQUESTS", 10),
			Window:   getEnvAsDuration("RATE_LIMIT_WINDOW", time.Minute),
		},
		APIKeyHashes:       getEnvAsList("API_KEY_HASHES"),
		SentryDSN:          getEnv("SENTRY_DSN", ""),
		StoryRetentionDays: getEnvAsInt("STORY_RETENTION_DAYS", 30),
		ExportsDir:         getEnv("EXPORTS_DIR", "./exports"),
		CORSAllowedOrigins: defaultList(getEnvAsList("CORS_ALLOWED_ORIGINS"), []string{"*"}),
	}
}

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	value, err := strconv.Atoi(strings.TrimSpace(getEnv(key, "")))
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	value, err := strconv.ParseBool(strings.TrimSpace(getEnv(key, "")))
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	value, err := time.ParseDuration(strings.TrimSpace(getEnv(key, "")))
	if err != nil || value <= 0 {
		return defaultValue
	}
	return value
}

// getEnvAsList splits a comma separated variable, dropping empty items
func getEnvAsList(key string) []string {
	raw := getEnv(key, "")
	if raw == "" {
		return nil
	}
	var items []string
	for _, item := range strings.Split(raw, ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	return items
}

func defaultList(values, fallback []string) []string {
	if len(values) == 0 {
		return fallback
	}
	return values
}
