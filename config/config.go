package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	// Server
	Port string // default: 8080

	// Database
	PostgresDSN string

	// Cache
	RedisAddr string

	// AI providers
	AIConfigPath string // default: configs/ai.yaml
	AI           AIConfig

	// Audio
	ElevenLabsAPIKey  string
	ElevenLabsBaseURL string // default: https://api.elevenlabs.io

	// Auth
	JWTSecret string

	// Logging
	LogLevel  string // default: info
	LogFormat string // "json" or "console"

	// Observability
	OTELExporterType     string  // "stdout", "otlp" or "none"
	OTELExporterEndpoint string  // default: "localhost:4317"
	OTELSampleRatio      float64 // fraction of root traces kept, default: 1

	// Rate Limiting
	DefaultRateLimitRPM int64 // requests per minute per user, default: 60
}

// Load reads the full server configuration.
func Load() (*Config, error) {
	cfg, err := LoadClient()
	if err != nil {
		return nil, err
	}

	if cfg.PostgresDSN == "" {
		return nil, fmt.Errorf("POSTGRES_DSN is required")
	}
	if cfg.RedisAddr == "" {
		return nil, fmt.Errorf("REDIS_ADDR is required")
	}
	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}
	return cfg, nil
}

// LoadClient reads the configuration needed to drive the AI service
// without the database, cache and auth requirements of the server.
func LoadClient() (*Config, error) {
	// Load .env file if present (non-fatal if missing)
	_ = godotenv.Load()

	cfg := &Config{
		Port:                 getEnv("PORT", "8080"),
		PostgresDSN:          os.Getenv("POSTGRES_DSN"),
		RedisAddr:            os.Getenv("REDIS_ADDR"),
		AIConfigPath:         getEnv("AI_CONFIG_PATH", "configs/ai.yaml"),
		ElevenLabsAPIKey:     os.Getenv("ELEVENLABS_API_KEY"),
		ElevenLabsBaseURL:    getEnv("ELEVENLABS_BASE_URL", "https://api.elevenlabs.io"),
		JWTSecret:            os.Getenv("JWT_SECRET"),
		LogLevel:             getEnv("LOG_LEVEL", "info"),
		LogFormat:            getEnv("LOG_FORMAT", "json"),
		OTELExporterType:     getEnv("OTEL_EXPORTER_TYPE", "stdout"),
		OTELExporterEndpoint: getEnv("OTEL_EXPORTER_ENDPOINT", "localhost:4317"),
	}

	rpmStr := getEnv("DEFAULT_RATE_LIMIT_RPM", "60")
	rpm, err := strconv.ParseInt(rpmStr, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid DEFAULT_RATE_LIMIT_RPM: %w", err)
	}
	cfg.DefaultRateLimitRPM = rpm

	ratio, err := strconv.ParseFloat(getEnv("OTEL_SAMPLE_RATIO", "1"), 64)
	if err != nil || ratio < 0 || ratio > 1 {
		return nil, fmt.Errorf("invalid OTEL_SAMPLE_RATIO: must be between 0 and 1")
	}
	cfg.OTELSampleRatio = ratio

	openAIKey := os.Getenv("OPENAI_API_KEY")
	anthropicKey := os.Getenv("ANTHROPIC_API_KEY")
	geminiKey := os.Getenv("GEMINI_API_KEY")

	ai, found, err := LoadAIConfig(cfg.AIConfigPath)
	if err != nil {
		return nil, err
	}
	if found {
		ai.overrideKey(ProviderOpenAI, openAIKey)
		ai.overrideKey(ProviderAnthropic, anthropicKey)
		ai.overrideKey(ProviderGemini, geminiKey)
	} else {
		ai = DefaultAIConfig(openAIKey, anthropicKey, geminiKey)
	}
	if name := os.Getenv("AI_DEFAULT_PROVIDER"); name != "" {
		ai.DefaultProvider = strings.ToLower(strings.TrimSpace(name))
	}
	cfg.AI = ai

	if cfg.ElevenLabsAPIKey == "" {
		return nil, fmt.Errorf("ELEVENLABS_API_KEY is required")
	}
	return cfg, nil
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}
