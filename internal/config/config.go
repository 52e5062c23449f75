// Package config reads all process configuration from the environment in
// one place.
package config

import (
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all configuration for the application.
type Config struct {
	Port string

	UsersTable   string
	ChatsTable   string
	AnswersTable string

	// DynamoDBEndpoint points at a local endpoint during development;
	// empty means the SDK default.
	DynamoDBEndpoint string
	AWSRegion        string

	// Provider selects the model backend: "openai" or "bedrock".
	Provider       string
	OpenAIBaseURL  string
	OpenAIModel    string
	BedrockModelID string

	// APISecretParam and OpenAIKeyParam are SSM parameter names.
	APISecretParam string
	OpenAIKeyParam string
	SecretCacheTTL time.Duration

	AllowedOrigins []string

	QuotaLimit  int
	QuotaWindow time.Duration

	LogLevel string
}

// Load reads configuration from environment variables, applying defaults
// for everything optional. Required values go through MustEnv at the call
// sites that need them.
func Load() *Config {
	return &Config{
		Port:             getEnv("PORT", "8080"),
		UsersTable:       getEnv("USERS_TABLE", "Users"),
		ChatsTable:       getEnv("CHATS_TABLE", "Chats"),
		AnswersTable:     getEnv("ANSWERS_TABLE", "Answers"),
		DynamoDBEndpoint: getEnv("DYNAMODB_ENDPOINT", ""),
		AWSRegion:        getEnv("AWS_REGION", "us-east-1"),
		Provider:         getEnv("LLM_PROVIDER", "openai"),
		OpenAIBaseURL:    getEnv("OPENAI_BASE_URL", ""),
		OpenAIModel:      getEnv("OPENAI_MODEL", ""),
		BedrockModelID:   getEnv("BEDROCK_MODEL_ID", ""),
		APISecretParam:   getEnv("API_SECRET_PARAM", "/chatbot/api-secret"),
		OpenAIKeyParam:   getEnv("OPENAI_KEY_PARAM", "/chatbot/openai-key"),
		SecretCacheTTL:   getDuration("SECRET_CACHE_TTL", 5*time.Minute),
		AllowedOrigins:   getList("ALLOWED_ORIGINS", []string{"http://localhost:3000"}),
		QuotaLimit:       getInt("MESSAGE_QUOTA_LIMIT", 100),
		QuotaWindow:      getDuration("MESSAGE_QUOTA_WINDOW", 24*time.Hour),
		LogLevel:         getEnv("LOG_LEVEL", "info"),
	}
}

// MustEnv reads a required environment variable and exits when it is
// missing.
func MustEnv(key string) string {
	v := os.Getenv(key)
	if v == "" {
		slog.Error("required environment variable is not set", "key", key)
		os.Exit(1)
	}
	return v
}

// SlogLevel maps the configured log level onto slog's levels.
func (c *Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func getDuration(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def
	}
	return d
}

func getList(key string, def []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return def
	}
	return out
}
