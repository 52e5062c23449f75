package config

import (
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"PORT", "USERS_TABLE", "CHATS_TABLE", "ANSWERS_TABLE",
		"DYNAMODB_ENDPOINT", "AWS_REGION", "LLM_PROVIDER",
		"OPENAI_BASE_URL", "OPENAI_MODEL", "BEDROCK_MODEL_ID",
		"API_SECRET_PARAM", "OPENAI_KEY_PARAM", "SECRET_CACHE_TTL",
		"ALLOWED_ORIGINS", "MESSAGE_QUOTA_LIMIT", "MESSAGE_QUOTA_WINDOW",
		"LOG_LEVEL",
	} {
		t.Setenv(key, "")
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)

	cfg := Load()

	require.Equal(t, "8080", cfg.Port)
	require.Equal(t, "Users", cfg.UsersTable)
	require.Equal(t, "Chats", cfg.ChatsTable)
	require.Equal(t, "Answers", cfg.AnswersTable)
	require.Empty(t, cfg.DynamoDBEndpoint)
	require.Equal(t, "us-east-1", cfg.AWSRegion)
	require.Equal(t, "openai", cfg.Provider)
	require.Equal(t, "/chatbot/api-secret", cfg.APISecretParam)
	require.Equal(t, "/chatbot/openai-key", cfg.OpenAIKeyParam)
	require.Equal(t, 5*time.Minute, cfg.SecretCacheTTL)
	require.Equal(t, []string{"http://localhost:3000"}, cfg.AllowedOrigins)
	require.Equal(t, 100, cfg.QuotaLimit)
	require.Equal(t, 24*time.Hour, cfg.QuotaWindow)
	require.Equal(t, "info", cfg.LogLevel)
}

func TestLoad_Environment(t *testing.T) {
	clearEnv(t)
	t.Setenv("PORT", "9000")
	t.Setenv("CHATS_TABLE", "ChatsDev")
	t.Setenv("DYNAMODB_ENDPOINT", "http://localhost:8000")
	t.Setenv("LLM_PROVIDER", "bedrock")
	t.Setenv("BEDROCK_MODEL_ID", "anthropic.claude-3-haiku-20240307-v1:0")
	t.Setenv("SECRET_CACHE_TTL", "90s")
	t.Setenv("ALLOWED_ORIGINS", "https://chat.example.com, https://staging.example.com")
	t.Setenv("MESSAGE_QUOTA_LIMIT", "25")
	t.Setenv("MESSAGE_QUOTA_WINDOW", "1h")

	cfg := Load()

	require.Equal(t, "9000", cfg.Port)
	require.Equal(t, "ChatsDev", cfg.ChatsTable)
	require.Equal(t, "http://localhost:8000", cfg.DynamoDBEndpoint)
	require.Equal(t, "bedrock", cfg.Provider)
	require.Equal(t, "anthropic.claude-3-haiku-20240307-v1:0", cfg.BedrockModelID)
	require.Equal(t, 90*time.Second, cfg.SecretCacheTTL)
	require.Equal(t, []string{"https://chat.example.com", "https://staging.example.com"}, cfg.AllowedOrigins)
	require.Equal(t, 25, cfg.QuotaLimit)
	require.Equal(t, time.Hour, cfg.QuotaWindow)
}

func TestLoad_MalformedValuesFallBack(t *testing.T) {
	clearEnv(t)
	t.Setenv("MESSAGE_QUOTA_LIMIT", "lots")
	t.Setenv("SECRET_CACHE_TTL", "soon")
	t.Setenv("ALLOWED_ORIGINS", " , ,")

	cfg := Load()

	require.Equal(t, 100, cfg.QuotaLimit)
	require.Equal(t, 5*time.Minute, cfg.SecretCacheTTL)
	require.Equal(t, []string{"http://localhost:3000"}, cfg.AllowedOrigins)
}

func TestSlogLevel(t *testing.T) {
	tests := []struct {
		level string
		want  slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"WARN", slog.LevelWarn},
		{"error", slog.LevelError},
		{"verbose", slog.LevelInfo},
	}
	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			cfg := &Config{LogLevel: tt.level}
			require.Equal(t, tt.want, cfg.SlogLevel())
		})
	}
}
