package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

const (
	ProviderGateway = "gateway"
	ProviderGemini  = "gemini"
)

type Config struct {
	// Server
	Port          string
	Env           string
	AllowedOrigin string

	// Database
	DatabaseURL      string
	DatabaseMaxConns int

	// Redis
	RedisURL string

	// JWT secret the BaaS signs publishable keys with
	JWTSecret string

	// Upstream LLM
	LLMProvider           string
	LLMGatewayURL         string
	LLMGatewayAPIKey      string
	LLMModel              string
	GeminiAPIKey          string
	GeminiModel           string
	LLMConcurrentRequests int

	// Help chat
	ChatStreamIdleTimeout time.Duration
	RateLimitBackend      string
	RateLimitPerMinute    int

	// Transcripts
	TranscriptWorkers       int
	TranscriptRetentionDays int

	// Logging
	LogLevel  string
	LogFormat string
	LogFile   string
}

func Load() *Config {
	// Load .env file if it exists
	godotenv.Load()

	cfg := &Config{
		Port:                    getEnvOrDefault("PORT", "8080"),
		Env:                     getEnvOrDefault("ENV", "development"),
		AllowedOrigin:           getEnvOrDefault("ALLOWED_ORIGIN", "*"),
		DatabaseURL:             mustGetEnv("DATABASE_URL"),
		DatabaseMaxConns:        getEnvAsIntOrDefault("DATABASE_MAX_CONNS", 10),
		RedisURL:                mustGetEnv("REDIS_URL"),
		JWTSecret:               mustGetEnv("JWT_SECRET"),
		LLMProvider:             getEnvOrDefault("LLM_PROVIDER", ProviderGateway),
		LLMGatewayURL:           getEnvOrDefault("LLM_GATEWAY_URL", "https://ai.gateway.lovable.dev/v1"),
		LLMModel:                getEnvOrDefault("LLM_MODEL", "google/gemini-2.5-flash"),
		GeminiModel:             getEnvOrDefault("GEMINI_MODEL", "gemini-2.5-flash"),
		LLMConcurrentRequests:   getEnvAsIntOrDefault("LLM_CONCURRENT_REQUESTS", 5),
		ChatStreamIdleTimeout:   getEnvAsDurationOrDefault("CHAT_STREAM_IDLE_TIMEOUT", 30*time.Second),
		RateLimitBackend:        getEnvOrDefault("RATE_LIMIT_BACKEND", "redis"),
		RateLimitPerMinute:      getEnvAsIntOrDefault("RATE_LIMIT_PER_MINUTE", 20),
		TranscriptWorkers:       getEnvAsIntOrDefault("TRANSCRIPT_WORKERS", 2),
		TranscriptRetentionDays: getEnvAsIntOrDefault("TRANSCRIPT_RETENTION_DAYS", 30),
		LogLevel:                getEnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:               getEnvOrDefault("LOG_FORMAT", "json"),
		LogFile:                 getEnvOrDefault("LOG_FILE", ""),
	}

	switch cfg.LLMProvider {
	case ProviderGateway:
		cfg.LLMGatewayAPIKey = mustGetEnv("LLM_GATEWAY_API_KEY")
	case ProviderGemini:
		cfg.GeminiAPIKey = mustGetEnv("GEMINI_API_KEY")
	default:
		panic(fmt.Sprintf("unsupported LLM_PROVIDER %q (want %q or %q)", cfg.LLMProvider, ProviderGateway, ProviderGemini))
	}

	return cfg
}

// LoadLogging reads only the LOG_* variables, for tools that do not need the
// server's database, Redis or upstream settings.
func LoadLogging(defaultLevel, defaultFormat string) *Config {
	godotenv.Load()

	return &Config{
		LogLevel:  getEnvOrDefault("LOG_LEVEL", defaultLevel),
		LogFormat: getEnvOrDefault("LOG_FORMAT", defaultFormat),
		LogFile:   getEnvOrDefault("LOG_FILE", ""),
	}
}

// UpstreamModel returns the model name of the selected provider.
func (c *Config) UpstreamModel() string {
	if c.LLMProvider == ProviderGemini {
		return c.GeminiModel
	}
	return c.LLMModel
}

func mustGetEnv(key string) string {
	val := os.Getenv(key)
	if val == "" {
		panic(fmt.Sprintf("required environment variable %s is not set", key))
	}
	return val
}

func getEnvOrDefault(key, defaultVal string) string {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	return val
}

func getEnvAsIntOrDefault(key string, defaultVal int) int {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return defaultVal
	}
	return n
}

// getEnvAsDurationOrDefault accepts Go durations ("45s") or plain seconds.
func getEnvAsDurationOrDefault(key string, defaultVal time.Duration) time.Duration {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	if d, err := time.ParseDuration(val); err == nil {
		return d
	}
	if n, err := strconv.Atoi(val); err == nil {
		return time.Duration(n) * time.Second
	}
	return defaultVal
}
